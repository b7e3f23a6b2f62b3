package gamedb

import (
	"sort"
	"time"
)

// GetAttr returns the attribute value, or ok=false if the object or the
// attribute does not exist.
func (db *Database) GetAttr(ref DBRef, name string) (string, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	obj, ok := db.objects[ref]
	if !ok {
		return "", false
	}
	attr, ok := obj.Attrs[CanonAttr(name)]
	if !ok {
		return "", false
	}
	return attr.Value, true
}

// GetAttrMeta returns the full attribute record including flags.
func (db *Database) GetAttrMeta(ref DBRef, name string) (Attribute, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	obj, ok := db.objects[ref]
	if !ok {
		return Attribute{}, false
	}
	attr, ok := obj.Attrs[CanonAttr(name)]
	return attr, ok
}

// SetAttr creates or overwrites an attribute. Names are unique per object;
// flags on an existing attribute survive a value overwrite.
func (db *Database) SetAttr(ref DBRef, name, value string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	obj, ok := db.objects[ref]
	if !ok {
		return ErrNotFound
	}
	key := CanonAttr(name)
	if key == "" {
		return ErrNotFound
	}
	prev := obj.Attrs[key]
	obj.Attrs[key] = Attribute{Name: key, Value: value, Flags: prev.Flags}
	obj.ModifiedAt = time.Now()
	return nil
}

// ClearAttr removes an attribute. Removing a missing attribute is not an
// error; the end state is the same.
func (db *Database) ClearAttr(ref DBRef, name string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	obj, ok := db.objects[ref]
	if !ok {
		return ErrNotFound
	}
	delete(obj.Attrs, CanonAttr(name))
	obj.ModifiedAt = time.Now()
	return nil
}

// SetAttrFlags replaces the flag set on an existing attribute.
func (db *Database) SetAttrFlags(ref DBRef, name string, flags AttrFlags) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	obj, ok := db.objects[ref]
	if !ok {
		return ErrNotFound
	}
	key := CanonAttr(name)
	attr, ok := obj.Attrs[key]
	if !ok {
		return ErrNotFound
	}
	attr.Flags = flags
	obj.Attrs[key] = attr
	return nil
}

// ListAttrs returns the object's attribute names, sorted.
func (db *Database) ListAttrs(ref DBRef) []string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	obj, ok := db.objects[ref]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(obj.Attrs))
	for name := range obj.Attrs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// CanReadAttr reports whether viewer may read the named attribute on ref.
// Private attributes are visible only to the object's owner, the owner's
// owner chain, and wizards. A missing attribute reads as not-readable.
func (db *Database) CanReadAttr(viewer, ref DBRef, name string) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	obj, ok := db.objects[ref]
	if !ok {
		return false
	}
	attr, ok := obj.Attrs[CanonAttr(name)]
	if !ok {
		return false
	}
	if attr.Flags&AttrPrivate == 0 {
		return true
	}
	return db.controlsLocked(viewer, ref)
}

// CanWriteAttr reports whether actor may set the named attribute on ref.
// Locked attributes are writable only by a controller of the object.
func (db *Database) CanWriteAttr(actor, ref DBRef, name string) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	obj, ok := db.objects[ref]
	if !ok {
		return false
	}
	if !db.controlsLocked(actor, ref) {
		return false
	}
	attr, ok := obj.Attrs[CanonAttr(name)]
	if ok && attr.Flags&AttrLocked != 0 {
		return db.objects[ref].Owner == db.effectiveOwnerLocked(actor)
	}
	return true
}

// Controls reports whether actor controls target: actors control what they
// own, and wizards control everything but God's things.
func (db *Database) Controls(actor, target DBRef) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.controlsLocked(actor, target)
}

func (db *Database) controlsLocked(actor, target DBRef) bool {
	a, ok := db.objects[actor]
	if !ok {
		return false
	}
	t, ok := db.objects[target]
	if !ok {
		return false
	}
	if actor == target {
		return true
	}
	if a.HasFlag(FlagGod) {
		return true
	}
	if a.HasFlag(FlagWizard) {
		return !t.HasFlag(FlagGod)
	}
	owner := db.effectiveOwnerLocked(actor)
	return t.Owner == owner || target == owner
}

// effectiveOwnerLocked resolves an actor to its owning player.
func (db *Database) effectiveOwnerLocked(actor DBRef) DBRef {
	obj, ok := db.objects[actor]
	if !ok {
		return Nothing
	}
	if obj.Kind == KindPlayer {
		return actor
	}
	return obj.Owner
}

// GetLock returns the stored lock expression for a lock type, or ok=false
// if no lock of that type is set (which policy treats as "permit").
func (db *Database) GetLock(ref DBRef, lockType string) (string, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	obj, ok := db.objects[ref]
	if !ok {
		return "", false
	}
	expr, ok := obj.Locks[CanonLock(lockType)]
	return expr, ok
}

// SetLock stores a lock expression. An empty expression removes the lock.
func (db *Database) SetLock(ref DBRef, lockType, expr string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	obj, ok := db.objects[ref]
	if !ok {
		return ErrNotFound
	}
	key := CanonLock(lockType)
	if expr == "" {
		delete(obj.Locks, key)
	} else {
		obj.Locks[key] = expr
	}
	obj.ModifiedAt = time.Now()
	return nil
}

// ListLocks returns the lock types set on an object, sorted.
func (db *Database) ListLocks(ref DBRef) []string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	obj, ok := db.objects[ref]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(obj.Locks))
	for lt := range obj.Locks {
		out = append(out, lt)
	}
	sort.Strings(out)
	return out
}
