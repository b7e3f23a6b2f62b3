package eval

import (
	"strings"
	"time"

	"github.com/kochj23/webmush/pkg/gamedb"
)

// NumPosArgs is the number of positional arguments (%0-%9).
const NumPosArgs = 10

// NumQRegs is the number of single-character local registers (%q0-%q9).
const NumQRegs = 10

// Default evaluation budgets. Exceeding either aborts the current
// top-level evaluation with a sentinel instead of hanging or blowing the
// stack; softcode is untrusted user input.
const (
	DefaultNestLimit   = 50
	DefaultInvokeLimit = 2500
)

// Sentinels written in-band when a budget is exhausted.
const (
	ErrRecursionLimit  = "#-1 FUNCTION RECURSION LIMIT EXCEEDED"
	ErrInvocationLimit = "#-1 FUNCTION INVOCATION LIMIT EXCEEDED"
)

// Handler is the signature for built-in function implementations. Results
// are written into buf; failures are written as "#-1 ..." sentinel strings,
// never returned as Go errors, so enclosing evaluation continues.
type Handler func(ctx *Context, args []string, buf *strings.Builder)

// Function flags.
const (
	// FnVarArgs accepts any argument count.
	FnVarArgs = 1 << iota
	// FnNoEval passes raw argument text; the handler evaluates what it
	// needs (iter, switch, conditionals with lazy branches).
	FnNoEval
)

// Function is a registered built-in.
type Function struct {
	Name    string
	Handler Handler
	NArgs   int // exact count unless FnVarArgs; -N means "at least N"
	Flags   int
}

// Registry is the named-function table the evaluator resolves calls
// against. It is built once at startup and treated as immutable
// afterwards, so concurrent evaluations read it without locking. Names
// are case-insensitive; registering an existing name replaces the prior
// binding, which layered extension sets rely on.
type Registry struct {
	fns map[string]*Function
}

// NewRegistry creates an empty function registry.
func NewRegistry() *Registry {
	return &Registry{fns: make(map[string]*Function)}
}

// Register binds a function name. Last registration wins.
func (r *Registry) Register(name string, handler Handler, nargs int, flags int) {
	key := strings.ToUpper(name)
	r.fns[key] = &Function{Name: key, Handler: handler, NArgs: nargs, Flags: flags}
}

// Alias points an additional name at an already-registered function.
func (r *Registry) Alias(alias, target string) {
	if fn, ok := r.fns[strings.ToUpper(target)]; ok {
		r.fns[strings.ToUpper(alias)] = fn
	}
}

// Resolve looks up a function by name.
func (r *Registry) Resolve(name string) (*Function, bool) {
	fn, ok := r.fns[strings.ToUpper(name)]
	return fn, ok
}

// Len returns the number of distinct bindings.
func (r *Registry) Len() int { return len(r.fns) }

// GameInfo exposes connection-level state to functions without the eval
// package importing the server. A nil GameInfo degrades the dependent
// functions to their not-found sentinels.
type GameInfo interface {
	ConnectedPlayers() []gamedb.DBRef
	IsConnected(player gamedb.DBRef) bool
	MudName() string
	StartTime() time.Time
}

// NotifyKind distinguishes pending notification semantics.
type NotifyKind int

const (
	NotifyTarget     NotifyKind = iota // deliver to target
	NotifyRoom                         // deliver to everyone in target room
	NotifyRoomExcept                   // deliver to target's room except target
)

// Notification is a pending message queued by a side-effect function
// (pemit/emit); the dispatcher drains and delivers them after EXECUTE.
type Notification struct {
	Target  gamedb.DBRef
	Message string
	Kind    NotifyKind
}

// Context is the ephemeral evaluation state for one command or trigger
// invocation. It is created per invocation and never persisted.
type Context struct {
	DB    *gamedb.Database
	Info  GameInfo // may be nil
	Funcs *Registry

	Executor gamedb.DBRef // %! — object whose attrs/permissions resolve v()
	Enactor  gamedb.DBRef // %# — object that initiated the chain
	Caller   gamedb.DBRef

	Args  []string          // positional %0-%9
	QRegs [NumQRegs]string  // %q0-%q9
	XRegs map[string]string // %q<name>

	NestLimit   int
	InvokeLimit int

	Notifications []Notification

	depth   int
	steps   int
	aborted bool
}

// NewContext creates a context with default budgets.
func NewContext(db *gamedb.Database, funcs *Registry, executor, enactor gamedb.DBRef) *Context {
	return &Context{
		DB:          db,
		Funcs:       funcs,
		Executor:    executor,
		Enactor:     enactor,
		Caller:      enactor,
		XRegs:       make(map[string]string),
		NestLimit:   DefaultNestLimit,
		InvokeLimit: DefaultInvokeLimit,
	}
}

// Steps reports the invocation counter of the last evaluation.
func (ctx *Context) Steps() int { return ctx.steps }

// Aborted reports whether the last evaluation hit a recursion or
// invocation budget.
func (ctx *Context) Aborted() bool { return ctx.aborted }

// GetQReg reads a single-character register by its index character.
func (ctx *Context) GetQReg(ch byte) string {
	if idx := qregIndex(ch); idx >= 0 {
		return ctx.QRegs[idx]
	}
	return ""
}

// SetQReg writes a single-character register by its index character.
func (ctx *Context) SetQReg(ch byte, val string) bool {
	if idx := qregIndex(ch); idx >= 0 {
		ctx.QRegs[idx] = val
		return true
	}
	return false
}

func qregIndex(ch byte) int {
	if ch >= '0' && ch <= '9' {
		return int(ch - '0')
	}
	return -1
}

// AttrText reads an attribute through the permission model: a value the
// viewer may not read comes back as not-found.
func (ctx *Context) AttrText(viewer, obj gamedb.DBRef, name string) (string, bool) {
	if ctx.DB.Resolve(obj) == gamedb.Nothing {
		return "", false
	}
	if !ctx.DB.CanReadAttr(viewer, obj, name) {
		return "", false
	}
	return ctx.DB.GetAttr(obj, name)
}

// Notify queues a message for delivery after the evaluation completes.
func (ctx *Context) Notify(target gamedb.DBRef, msg string, kind NotifyKind) {
	ctx.Notifications = append(ctx.Notifications, Notification{Target: target, Message: msg, Kind: kind})
}
