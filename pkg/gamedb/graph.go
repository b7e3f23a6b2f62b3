package gamedb

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// maxAncestryDepth bounds the containment walk in Move's cycle check.
// A legitimate containment chain never gets near this deep.
const maxAncestryDepth = 50

// Database is the in-memory object graph. All access goes through its
// methods; the RWMutex guarantees that a reader never observes a
// half-applied structural mutation.
type Database struct {
	mu        sync.RWMutex
	objects   map[DBRef]*Object
	nextRef   DBRef
	destroyed map[DBRef]bool
}

// NewDatabase creates an empty object graph.
func NewDatabase() *Database {
	return &Database{
		objects:   make(map[DBRef]*Object),
		destroyed: make(map[DBRef]bool),
	}
}

// NextRef returns the next ref that will be allocated.
func (db *Database) NextRef() DBRef {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.nextRef
}

// SetNextRef fast-forwards the allocator, used when loading a persisted
// database so destroyed refs are never handed out again.
func (db *Database) SetNextRef(ref DBRef) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if ref > db.nextRef {
		db.nextRef = ref
	}
}

// Size returns the number of live objects.
func (db *Database) Size() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.objects)
}

// Valid reports whether ref names a live object.
func (db *Database) Valid(ref DBRef) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	_, ok := db.objects[ref]
	return ok
}

// Resolve maps a ref to itself if live, or Nothing if destroyed, never
// allocated, or out of range. Code holding a stale ref must go through
// here rather than trusting the number.
func (db *Database) Resolve(ref DBRef) DBRef {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if _, ok := db.objects[ref]; ok {
		return ref
	}
	return Nothing
}

// Create allocates the next free ref and inserts a new object.
// Rooms take no location; exits record location as their source room;
// things and players require a live container.
func (db *Database) Create(kind Kind, name string, owner, location DBRef) (DBRef, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	name = strings.TrimSpace(name)
	if name == "" {
		return Nothing, fmt.Errorf("gamedb: create: empty name")
	}

	loc := Nothing
	if kind != KindRoom {
		lo, ok := db.objects[location]
		if !ok {
			return Nothing, fmt.Errorf("gamedb: create %s in #%d: %w", kind, location, ErrInvalidLocation)
		}
		if kind != KindExit && lo.Kind == KindExit {
			return Nothing, fmt.Errorf("gamedb: create %s in exit #%d: %w", kind, location, ErrInvalidLocation)
		}
		loc = location
	}

	ref := db.nextRef
	db.nextRef++

	if owner == Nothing {
		owner = ref // bootstrap objects own themselves
	}
	now := time.Now()
	obj := &Object{
		Ref:         ref,
		Kind:        kind,
		Name:        name,
		Owner:       owner,
		Location:    loc,
		Destination: Nothing,
		Home:        loc,
		Flags:       make(map[string]bool),
		Attrs:       make(map[string]Attribute),
		Locks:       make(map[string]string),
		CreatedAt:   now,
		ModifiedAt:  now,
	}
	db.objects[ref] = obj
	if loc != Nothing {
		parent := db.objects[loc]
		parent.Contents = append(parent.Contents, ref)
	}
	return ref, nil
}

// Destroy removes an object. The ref is tombstoned and never reused, so a
// stale #N resolves to Nothing rather than aliasing a later object.
// Destroying a non-room that still has contents is rejected; destroying a
// room first sends its contents home.
func (db *Database) Destroy(ref DBRef) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	obj, ok := db.objects[ref]
	if !ok {
		return ErrNotFound
	}
	if len(obj.Contents) > 0 {
		if obj.Kind != KindRoom {
			return ErrHasContents
		}
		for _, c := range append([]DBRef(nil), obj.Contents...) {
			db.sendHomeLocked(c)
		}
	}
	if obj.Location != Nothing {
		if parent, ok := db.objects[obj.Location]; ok {
			parent.Contents = removeRef(parent.Contents, ref)
		}
	}
	delete(db.objects, ref)
	db.destroyed[ref] = true
	return nil
}

// sendHomeLocked moves obj to its home, or strands it at Nothing if the
// home is itself gone. Caller holds db.mu.
func (db *Database) sendHomeLocked(ref DBRef) {
	obj, ok := db.objects[ref]
	if !ok {
		return
	}
	if obj.Location != Nothing {
		if parent, ok := db.objects[obj.Location]; ok {
			parent.Contents = removeRef(parent.Contents, ref)
		}
	}
	home := obj.Home
	if h, ok := db.objects[home]; ok {
		obj.Location = home
		h.Contents = append(h.Contents, ref)
	} else {
		obj.Location = Nothing
	}
	obj.ModifiedAt = time.Now()
}

// Move relocates an object into a new container. The whole operation —
// cycle check, eviction from the old container, insertion into the new —
// happens under one write lock, so concurrent moves of the same object
// serialize and readers never see a torn state.
func (db *Database) Move(ref, dest DBRef) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	obj, ok := db.objects[ref]
	if !ok {
		return ErrNotFound
	}
	if obj.Kind == KindRoom {
		return ErrInvalidKind
	}
	target, ok := db.objects[dest]
	if !ok || target.Kind == KindExit {
		return fmt.Errorf("gamedb: move #%d to #%d: %w", ref, dest, ErrInvalidLocation)
	}

	// Walk the destination's ancestry; if the moving object appears, the
	// move would make it (transitively) contain itself.
	depth := 0
	for at := dest; at != Nothing; depth++ {
		if at == ref {
			return ErrCycle
		}
		if depth >= maxAncestryDepth {
			return fmt.Errorf("gamedb: move #%d to #%d: ancestry too deep: %w", ref, dest, ErrCycle)
		}
		parent, ok := db.objects[at]
		if !ok {
			break
		}
		at = parent.Location
	}

	if obj.Location != Nothing {
		if old, ok := db.objects[obj.Location]; ok {
			old.Contents = removeRef(old.Contents, ref)
		}
	}
	obj.Location = dest
	target.Contents = append(target.Contents, ref)
	obj.ModifiedAt = time.Now()
	return nil
}

// SendHome moves an object to its home location.
func (db *Database) SendHome(ref DBRef) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.objects[ref]; !ok {
		return ErrNotFound
	}
	db.sendHomeLocked(ref)
	return nil
}

// Kind returns the object's kind.
func (db *Database) Kind(ref DBRef) (Kind, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	obj, ok := db.objects[ref]
	if !ok {
		return 0, false
	}
	return obj.Kind, true
}

// Name returns the object's display name, or "" for a dead ref.
func (db *Database) Name(ref DBRef) string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if obj, ok := db.objects[ref]; ok {
		return obj.Name
	}
	return ""
}

// SetName renames an object.
func (db *Database) SetName(ref DBRef, name string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	obj, ok := db.objects[ref]
	if !ok {
		return ErrNotFound
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("gamedb: rename #%d: empty name", ref)
	}
	obj.Name = name
	obj.ModifiedAt = time.Now()
	return nil
}

// Location returns the containing object (source room for exits).
func (db *Database) Location(ref DBRef) DBRef {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if obj, ok := db.objects[ref]; ok {
		return obj.Location
	}
	return Nothing
}

// Destination returns an exit's target room.
func (db *Database) Destination(ref DBRef) DBRef {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if obj, ok := db.objects[ref]; ok {
		return obj.Destination
	}
	return Nothing
}

// LinkExit sets an exit's destination room.
func (db *Database) LinkExit(exit, dest DBRef) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	obj, ok := db.objects[exit]
	if !ok {
		return ErrNotFound
	}
	if obj.Kind != KindExit {
		return ErrInvalidKind
	}
	if dest != Nothing {
		target, ok := db.objects[dest]
		if !ok || target.Kind != KindRoom {
			return fmt.Errorf("gamedb: link exit #%d to #%d: %w", exit, dest, ErrInvalidLocation)
		}
	}
	obj.Destination = dest
	obj.ModifiedAt = time.Now()
	return nil
}

// Home returns the object's fallback location.
func (db *Database) Home(ref DBRef) DBRef {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if obj, ok := db.objects[ref]; ok {
		return obj.Home
	}
	return Nothing
}

// SetHome changes the object's fallback location.
func (db *Database) SetHome(ref, home DBRef) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	obj, ok := db.objects[ref]
	if !ok {
		return ErrNotFound
	}
	if _, ok := db.objects[home]; !ok {
		return fmt.Errorf("gamedb: set home of #%d to #%d: %w", ref, home, ErrInvalidLocation)
	}
	obj.Home = home
	obj.ModifiedAt = time.Now()
	return nil
}

// Owner returns the object billed for this object.
func (db *Database) Owner(ref DBRef) DBRef {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if obj, ok := db.objects[ref]; ok {
		return obj.Owner
	}
	return Nothing
}

// SetOwner reassigns ownership.
func (db *Database) SetOwner(ref, owner DBRef) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	obj, ok := db.objects[ref]
	if !ok {
		return ErrNotFound
	}
	if _, ok := db.objects[owner]; !ok {
		return ErrNotFound
	}
	obj.Owner = owner
	obj.ModifiedAt = time.Now()
	return nil
}

// Contents returns a copy of the container's contents list.
func (db *Database) Contents(ref DBRef) []DBRef {
	db.mu.RLock()
	defer db.mu.RUnlock()
	obj, ok := db.objects[ref]
	if !ok {
		return nil
	}
	return append([]DBRef(nil), obj.Contents...)
}

// HasFlag reports whether the object carries the named flag.
func (db *Database) HasFlag(ref DBRef, flag string) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	obj, ok := db.objects[ref]
	return ok && obj.HasFlag(flag)
}

// SetFlag sets or clears a named flag.
func (db *Database) SetFlag(ref DBRef, flag string, set bool) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	obj, ok := db.objects[ref]
	if !ok {
		return ErrNotFound
	}
	flag = strings.ToUpper(strings.TrimSpace(flag))
	if flag == "" {
		return fmt.Errorf("gamedb: empty flag name")
	}
	if set {
		obj.Flags[flag] = true
	} else {
		delete(obj.Flags, flag)
	}
	obj.ModifiedAt = time.Now()
	return nil
}

// FlagList returns the object's flags, sorted.
func (db *Database) FlagList(ref DBRef) []string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	obj, ok := db.objects[ref]
	if !ok {
		return nil
	}
	return obj.FlagList()
}

// Pennies returns the object's currency balance.
func (db *Database) Pennies(ref DBRef) int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if obj, ok := db.objects[ref]; ok {
		return obj.Pennies
	}
	return 0
}

// AddPennies adjusts the object's currency balance.
func (db *Database) AddPennies(ref DBRef, delta int) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	obj, ok := db.objects[ref]
	if !ok {
		return ErrNotFound
	}
	obj.Pennies += delta
	return nil
}

// PasswordHash returns a player's stored credential hash.
func (db *Database) PasswordHash(ref DBRef) string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if obj, ok := db.objects[ref]; ok {
		return obj.PasswordHash
	}
	return ""
}

// SetPasswordHash stores a player's credential hash.
func (db *Database) SetPasswordHash(ref DBRef, hash string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	obj, ok := db.objects[ref]
	if !ok {
		return ErrNotFound
	}
	obj.PasswordHash = hash
	obj.ModifiedAt = time.Now()
	return nil
}

// Snapshot returns a deep copy of the object, safe to use outside the lock.
func (db *Database) Snapshot(ref DBRef) (*Object, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	obj, ok := db.objects[ref]
	if !ok {
		return nil, false
	}
	return obj.clone(), true
}

// Put inserts an object wholesale, used by the persistence layer on load.
// The allocator is advanced past the ref.
func (db *Database) Put(obj *Object) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.objects[obj.Ref] = obj
	if obj.Ref >= db.nextRef {
		db.nextRef = obj.Ref + 1
	}
}

// MarkDestroyed records a tombstone, used by the persistence layer on load.
func (db *Database) MarkDestroyed(ref DBRef) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.destroyed[ref] = true
	if ref >= db.nextRef {
		db.nextRef = ref + 1
	}
}

// Query returns the refs of live objects satisfying pred. The predicate
// runs under the read lock and must not call back into the database.
func (db *Database) Query(pred func(*Object) bool) []DBRef {
	db.mu.RLock()
	defer db.mu.RUnlock()
	var out []DBRef
	for ref, obj := range db.objects {
		if pred(obj) {
			out = append(out, ref)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Refs returns all live refs in ascending order.
func (db *Database) Refs() []DBRef {
	return db.Query(func(*Object) bool { return true })
}

// ParseRef parses a "#N" literal. Returns Nothing if s is not a ref
// literal or names a dead object.
func (db *Database) ParseRef(s string) DBRef {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '#' {
		return Nothing
	}
	n, err := strconv.Atoi(s[1:])
	if err != nil || n < 0 {
		return Nothing
	}
	return db.Resolve(DBRef(n))
}

func removeRef(list []DBRef, ref DBRef) []DBRef {
	for i, r := range list {
		if r == ref {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
