package gamedb

import "testing"

func TestSetAndGetAttr(t *testing.T) {
	db, _, _, player, orb, _ := newTestWorld(t)

	if err := db.SetAttr(orb, "desc", "A glowing orb."); err != nil {
		t.Fatalf("set: %v", err)
	}
	// Names are case-insensitive with one canonical slot.
	if v, ok := db.GetAttr(orb, "DESC"); !ok || v != "A glowing orb." {
		t.Errorf("get DESC = %q, %v", v, ok)
	}
	if err := db.SetAttr(orb, "Desc", "Dim now."); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if v, _ := db.GetAttr(orb, "desc"); v != "Dim now." {
		t.Errorf("overwrite lost: %q", v)
	}
	if names := db.ListAttrs(orb); len(names) != 1 || names[0] != "DESC" {
		t.Errorf("attrs = %v, want [DESC]", names)
	}
	_ = player
}

func TestClearAttrIdempotent(t *testing.T) {
	db, _, _, _, orb, _ := newTestWorld(t)
	db.SetAttr(orb, "tmp", "x")
	if err := db.ClearAttr(orb, "tmp"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := db.ClearAttr(orb, "tmp"); err != nil {
		t.Errorf("clearing a missing attribute should not fail: %v", err)
	}
	if _, ok := db.GetAttr(orb, "tmp"); ok {
		t.Error("attribute survived clear")
	}
}

func TestAttrFlagsSurviveOverwrite(t *testing.T) {
	db, _, _, _, orb, _ := newTestWorld(t)
	db.SetAttr(orb, "secret", "v1")
	if err := db.SetAttrFlags(orb, "secret", AttrPrivate); err != nil {
		t.Fatalf("set flags: %v", err)
	}
	db.SetAttr(orb, "secret", "v2")
	meta, ok := db.GetAttrMeta(orb, "secret")
	if !ok || meta.Flags&AttrPrivate == 0 {
		t.Error("private flag lost on value overwrite")
	}
}

func TestCanReadAttrPrivate(t *testing.T) {
	db, hall, _, owner, orb, _ := newTestWorld(t)
	stranger, _ := db.Create(KindPlayer, "Eve", Nothing, hall)
	wizard, _ := db.Create(KindPlayer, "Merlin", Nothing, hall)
	db.SetFlag(wizard, FlagWizard, true)

	db.SetAttr(orb, "note", "hidden")
	if !db.CanReadAttr(stranger, orb, "note") {
		t.Error("plain attribute should be readable by anyone")
	}

	db.SetAttrFlags(orb, "note", AttrPrivate)
	if db.CanReadAttr(stranger, orb, "note") {
		t.Error("private attribute readable by a stranger")
	}
	if !db.CanReadAttr(owner, orb, "note") {
		t.Error("private attribute unreadable by its owner")
	}
	if !db.CanReadAttr(wizard, orb, "note") {
		t.Error("private attribute unreadable by a wizard")
	}
}

func TestCanWriteAttrLocked(t *testing.T) {
	db, hall, _, owner, orb, _ := newTestWorld(t)
	stranger, _ := db.Create(KindPlayer, "Eve", Nothing, hall)

	db.SetAttr(orb, "charge", "3")
	if db.CanWriteAttr(stranger, orb, "charge") {
		t.Error("stranger can write attribute on object they do not control")
	}
	db.SetAttrFlags(orb, "charge", AttrLocked)
	if !db.CanWriteAttr(owner, orb, "charge") {
		t.Error("owner locked out of their own locked attribute")
	}
}

func TestControls(t *testing.T) {
	db, hall, _, owner, orb, _ := newTestWorld(t)
	stranger, _ := db.Create(KindPlayer, "Eve", Nothing, hall)
	wizard, _ := db.Create(KindPlayer, "Merlin", Nothing, hall)
	god, _ := db.Create(KindPlayer, "One", Nothing, hall)
	db.SetFlag(wizard, FlagWizard, true)
	db.SetFlag(god, FlagGod, true)

	if !db.Controls(owner, orb) {
		t.Error("owner does not control their thing")
	}
	if db.Controls(stranger, orb) {
		t.Error("stranger controls someone else's thing")
	}
	if !db.Controls(wizard, orb) {
		t.Error("wizard does not control a mortal's thing")
	}
	if db.Controls(wizard, god) {
		t.Error("wizard controls God")
	}
	if !db.Controls(god, wizard) {
		t.Error("God does not control a wizard")
	}
}

func TestLockStorage(t *testing.T) {
	db, _, _, _, orb, _ := newTestWorld(t)

	if _, ok := db.GetLock(orb, LockUse); ok {
		t.Error("unset lock reported as present")
	}
	if err := db.SetLock(orb, "USE", "WIZARD"); err != nil {
		t.Fatalf("set lock: %v", err)
	}
	if expr, ok := db.GetLock(orb, "use"); !ok || expr != "WIZARD" {
		t.Errorf("get lock = %q, %v", expr, ok)
	}
	if locks := db.ListLocks(orb); len(locks) != 1 || locks[0] != "use" {
		t.Errorf("locks = %v, want [use]", locks)
	}
	// Empty expression removes the lock.
	if err := db.SetLock(orb, "use", ""); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if _, ok := db.GetLock(orb, LockUse); ok {
		t.Error("lock survived removal")
	}
}
