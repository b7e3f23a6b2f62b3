package lock

import (
	"errors"
	"strconv"
	"testing"

	"github.com/kochj23/webmush/pkg/gamedb"
)

func lockWorld(t *testing.T) (db *gamedb.Database, wizard, mortal, thing gamedb.DBRef) {
	t.Helper()
	db = gamedb.NewDatabase()
	room, err := db.Create(gamedb.KindRoom, "Room", gamedb.Nothing, gamedb.Nothing)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	wizard, _ = db.Create(gamedb.KindPlayer, "Merlin", gamedb.Nothing, room)
	mortal, _ = db.Create(gamedb.KindPlayer, "Ada", gamedb.Nothing, room)
	thing, _ = db.Create(gamedb.KindThing, "Orb", mortal, room)
	db.SetFlag(wizard, gamedb.FlagWizard, true)
	db.SetAttr(mortal, "level", "7")
	db.SetAttr(mortal, "class", "sorcerer")
	return db, wizard, mortal, thing
}

func TestCheckEmptyPermits(t *testing.T) {
	db, _, mortal, _ := lockWorld(t)
	for _, expr := range []string{"", "   "} {
		ok, err := Check(db, mortal, expr)
		if err != nil || !ok {
			t.Errorf("Check(%q) = %v, %v; want permit", expr, ok, err)
		}
	}
}

func TestCheckAtoms(t *testing.T) {
	db, wizard, mortal, thing := lockWorld(t)

	cases := []struct {
		expr    string
		subject gamedb.DBRef
		want    bool
	}{
		{"#2", mortal, true},
		{"#2", wizard, false},
		{"WIZARD", wizard, true},
		{"WIZARD", mortal, false},
		{"wizard", wizard, true}, // flag names fold case
		{"@PLAYER", mortal, true},
		{"@PLAYER", thing, false},
		{"@THING", thing, true},
		{"LEVEL:7", mortal, true},
		{"LEVEL:8", mortal, false},
		{"LEVEL:>5", mortal, true},
		{"LEVEL:>7", mortal, false},
		{"LEVEL:>=7", mortal, true},
		{"LEVEL:<=6", mortal, false},
		{"CLASS:sorcerer", mortal, true},
		{"CLASS:SORCERER", mortal, true}, // value comparison folds case
		{"CLASS:knight", mortal, false},
		{"CLASS:", mortal, true},  // existence test
		{"MISSING:", mortal, false},
		{"CLASS:>3", mortal, false}, // ordered compare on non-number fails
	}
	for _, tc := range cases {
		ok, err := Check(db, tc.subject, tc.expr)
		if err != nil {
			t.Errorf("Check(%q): %v", tc.expr, err)
			continue
		}
		if ok != tc.want {
			t.Errorf("Check(%q, #%d) = %v, want %v", tc.expr, tc.subject, ok, tc.want)
		}
	}
}

func TestCheckBooleanStructure(t *testing.T) {
	db, wizard, mortal, _ := lockWorld(t)
	db.SetFlag(mortal, "THIEF", true)

	cases := []struct {
		expr    string
		subject gamedb.DBRef
		want    bool
	}{
		{"!THIEF", wizard, true},
		{"!THIEF", mortal, false},
		{"WIZARD|LEVEL:>5", mortal, true},
		{"WIZARD|LEVEL:>5", wizard, true},
		{"WIZARD&LEVEL:>5", mortal, false},
		{"!THIEF&(WIZARD|ROYAL)", wizard, true},
		{"!THIEF&(WIZARD|ROYAL)", mortal, false},
		// NOT binds tighter than AND, AND tighter than OR.
		{"!WIZARD&THIEF|WIZARD", mortal, true},
		{"!WIZARD&THIEF|WIZARD", wizard, true},
	}
	for _, tc := range cases {
		ok, err := Check(db, tc.subject, tc.expr)
		if err != nil {
			t.Errorf("Check(%q): %v", tc.expr, err)
			continue
		}
		if ok != tc.want {
			t.Errorf("Check(%q, #%d) = %v, want %v", tc.expr, tc.subject, ok, tc.want)
		}
	}
}

func TestMalformedDenies(t *testing.T) {
	db, _, mortal, _ := lockWorld(t)
	for _, expr := range []string{
		"&WIZARD",
		"WIZARD|",
		"(WIZARD",
		"#",
		"#abc",
		"@GOBLIN",
		"!!",
		"WIZARD THIEF",
	} {
		ok, err := Check(db, mortal, expr)
		if ok {
			t.Errorf("Check(%q) permitted a malformed lock", expr)
		}
		var malformed *ErrMalformed
		if !errors.As(err, &malformed) {
			t.Errorf("Check(%q) error = %v, want ErrMalformed", expr, err)
		}
	}
}

func TestDestroyedSubjectFailsRefTest(t *testing.T) {
	db, _, mortal, thing := lockWorld(t)
	ref := thing
	if err := db.Destroy(thing); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	ok, err := Check(db, ref, "#"+strconv.Itoa(int(ref)))
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if ok {
		t.Error("destroyed ref matched its own ref test")
	}
	_ = mortal
}

func TestUnparseRoundTrip(t *testing.T) {
	for _, expr := range []string{
		"#5|WIZARD",
		"!THIEF&(WIZARD|ROYAL)",
		"@PLAYER&LEVEL:>=10",
		"CLASS:sorcerer",
		"!(A|B)",
	} {
		node, err := Parse(expr)
		if err != nil {
			t.Fatalf("parse %q: %v", expr, err)
		}
		text := Unparse(node)
		again, err := Parse(text)
		if err != nil {
			t.Fatalf("reparse %q (from %q): %v", text, expr, err)
		}
		if Unparse(again) != text {
			t.Errorf("unparse not stable: %q -> %q -> %q", expr, text, Unparse(again))
		}
	}
}
