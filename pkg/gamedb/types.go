package gamedb

import (
	"errors"
	"sort"
	"strings"
	"time"
)

// DBRef is the fundamental object reference type. Refs are assigned
// monotonically and never reused within a database's lifetime.
type DBRef int

const (
	Nothing   DBRef = -1
	Ambiguous DBRef = -2
	HomeRef   DBRef = -3
)

// Kind is the closed set of object kinds. Behavior differences are
// expressed by kind switches and flags, not subtypes.
type Kind int

const (
	KindRoom Kind = iota
	KindThing
	KindExit
	KindPlayer
)

func (k Kind) String() string {
	switch k {
	case KindRoom:
		return "ROOM"
	case KindThing:
		return "THING"
	case KindExit:
		return "EXIT"
	case KindPlayer:
		return "PLAYER"
	default:
		return "UNKNOWN"
	}
}

// KindFromString parses a kind name (case-insensitive).
func KindFromString(s string) (Kind, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ROOM":
		return KindRoom, true
	case "THING":
		return KindThing, true
	case "EXIT":
		return KindExit, true
	case "PLAYER":
		return KindPlayer, true
	}
	return 0, false
}

// Well-known flag names. Flags are an open vocabulary; these are the ones
// permission code checks by name.
const (
	FlagWizard  = "WIZARD"
	FlagRoyal   = "ROYAL"
	FlagGod     = "GOD"
	FlagDark    = "DARK"
	FlagHaven   = "HAVEN"
	FlagSticky  = "STICKY"
	FlagEnterOK = "ENTER_OK"
	FlagLinkOK  = "LINK_OK"
	FlagQuiet   = "QUIET"
	FlagPuppet  = "PUPPET"
	FlagSafe    = "SAFE"
)

// Well-known lock types. Lock types are an open vocabulary; these are
// the ones command and trigger dispatch consult by name.
const (
	LockDefault = "default" // who may pick up / traverse
	LockEnter   = "enter"
	LockUse     = "use"
	LockSpeech  = "speech"
)

// AttrFlags mark per-attribute capabilities.
type AttrFlags int

const (
	// AttrPrivate hides the value from everyone but the owner and wizards.
	AttrPrivate AttrFlags = 1 << iota
	// AttrNoCommand excludes the attribute from trigger dispatch.
	AttrNoCommand
	// AttrLocked prevents modification by anyone but the owner.
	AttrLocked
)

// Attribute is a named string value on an object. The value is plain text;
// whether it is softcode is decided by the caller that evaluates it.
type Attribute struct {
	Name  string
	Value string
	Flags AttrFlags
}

// Object is the unit of existence in the world.
//
// Location semantics by kind: THING/PLAYER are contained by Location;
// EXIT's Location is its source room and Destination its target room;
// ROOM has no location (Nothing).
type Object struct {
	Ref         DBRef
	Kind        Kind
	Name        string
	Owner       DBRef
	Location    DBRef
	Destination DBRef // exits only
	Home        DBRef
	Contents    []DBRef
	Flags       map[string]bool
	Attrs       map[string]Attribute // key: canonical (upper) attr name
	Locks       map[string]string    // key: lower lock type -> expression
	Pennies     int
	PasswordHash string // players only; bcrypt
	CreatedAt   time.Time
	ModifiedAt  time.Time
}

// HasFlag reports whether the object carries the named flag.
func (o *Object) HasFlag(flag string) bool {
	return o.Flags[strings.ToUpper(flag)]
}

// FlagList returns the object's flags sorted for stable display.
func (o *Object) FlagList() []string {
	out := make([]string, 0, len(o.Flags))
	for f := range o.Flags {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// clone returns a deep copy, used for snapshots handed outside the lock.
func (o *Object) clone() *Object {
	cp := *o
	cp.Contents = append([]DBRef(nil), o.Contents...)
	cp.Flags = make(map[string]bool, len(o.Flags))
	for k, v := range o.Flags {
		cp.Flags[k] = v
	}
	cp.Attrs = make(map[string]Attribute, len(o.Attrs))
	for k, v := range o.Attrs {
		cp.Attrs[k] = v
	}
	cp.Locks = make(map[string]string, len(o.Locks))
	for k, v := range o.Locks {
		cp.Locks[k] = v
	}
	return &cp
}

// Structural mutation errors. A rejected mutation leaves no state change.
var (
	ErrNotFound        = errors.New("gamedb: no such object")
	ErrCycle           = errors.New("gamedb: move would create a containment cycle")
	ErrInvalidLocation = errors.New("gamedb: invalid location")
	ErrHasContents     = errors.New("gamedb: object still has contents")
	ErrInvalidKind     = errors.New("gamedb: operation not valid for this kind")
	ErrAttrLocked      = errors.New("gamedb: attribute is locked")
)

// CanonAttr normalizes an attribute name to its canonical form.
// Attribute names are case-insensitive identifiers.
func CanonAttr(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// CanonLock normalizes a lock-type name.
func CanonLock(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
