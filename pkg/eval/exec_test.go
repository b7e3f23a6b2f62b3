package eval

import (
	"strconv"
	"strings"
	"testing"

	"github.com/kochj23/webmush/pkg/gamedb"
)

// testRegistry binds a handful of small functions so the scanner can be
// exercised without the full builtin set.
func testRegistry() *Registry {
	r := NewRegistry()
	r.Register("add", func(_ *Context, args []string, buf *strings.Builder) {
		sum := 0
		for _, a := range args {
			n, _ := strconv.Atoi(strings.TrimSpace(a))
			sum += n
		}
		buf.WriteString(strconv.Itoa(sum))
	}, -1, FnVarArgs)
	r.Register("cat", func(_ *Context, args []string, buf *strings.Builder) {
		for _, a := range args {
			buf.WriteString(a)
		}
	}, -1, FnVarArgs)
	r.Register("pair", func(_ *Context, args []string, buf *strings.Builder) {
		buf.WriteString(args[0] + ":" + args[1])
	}, 2, 0)
	r.Register("pairplus", func(_ *Context, args []string, buf *strings.Builder) {
		buf.WriteString(args[0] + "+" + args[1])
	}, -2, FnVarArgs)
	r.Register("raw", func(_ *Context, args []string, buf *strings.Builder) {
		buf.WriteString(args[0])
	}, 1, FnNoEval)
	r.Register("mark", func(_ *Context, _ []string, buf *strings.Builder) {
		buf.WriteString("x")
	}, 0, 0)
	r.Register("loop", func(ctx *Context, _ []string, buf *strings.Builder) {
		buf.WriteString(ctx.EvalNested("[loop()]"))
	}, 0, 0)
	return r
}

func evalWorld(t *testing.T) (*gamedb.Database, gamedb.DBRef) {
	t.Helper()
	db := gamedb.NewDatabase()
	room, err := db.Create(gamedb.KindRoom, "Lab", gamedb.Nothing, gamedb.Nothing)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	player, err := db.Create(gamedb.KindPlayer, "ada", gamedb.Nothing, room)
	if err != nil {
		t.Fatalf("create player: %v", err)
	}
	return db, player
}

func TestEvalPlainTextPassesThrough(t *testing.T) {
	db, player := evalWorld(t)
	ctx := NewContext(db, testRegistry(), player, player)

	cases := map[string]string{
		"hello world":       "hello world",
		"add(2,3)":          "add(2,3)", // calls fire only inside brackets
		"a (parenthetical)": "a (parenthetical)",
		"":                  "",
	}
	for in, want := range cases {
		if got := ctx.Eval(in); got != want {
			t.Errorf("Eval(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEvalFunctionCalls(t *testing.T) {
	db, player := evalWorld(t)
	ctx := NewContext(db, testRegistry(), player, player)

	cases := map[string]string{
		"[add(2,3)]":              "5",
		"[add(1,[add(2,3)],4)]":   "10",
		"sum is [add(2,2)]!":      "sum is 4!",
		"[cat(a,b,c)]":            "abc",
		"[mark()]":                "x",
		"[pair(l, r)]":            "l: r", // argument whitespace is preserved
		"[add(2,3)] [add(4,5)]":   "5 9",
	}
	for in, want := range cases {
		if got := ctx.Eval(in); got != want {
			t.Errorf("Eval(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEvalEscapes(t *testing.T) {
	db, player := evalWorld(t)
	ctx := NewContext(db, testRegistry(), player, player)

	if got := ctx.Eval(`\[add(1,2)]`); got != "[add(1,2)]" {
		t.Errorf("escaped bracket: %q", got)
	}
	if got := ctx.Eval(`100%% done`); got != "100% done" {
		t.Errorf("percent escape: %q", got)
	}
}

func TestEvalUnknownFunctionAbortsRegion(t *testing.T) {
	db, player := evalWorld(t)
	ctx := NewContext(db, testRegistry(), player, player)

	got := ctx.Eval("[nosuchfn(1,2)]")
	if got != "#-1 FUNCTION (NOSUCHFN) NOT FOUND" {
		t.Errorf("unknown fn = %q", got)
	}

	// Text after the failed call in the same region is discarded; text in
	// later regions still evaluates.
	got = ctx.Eval("[nosuchfn(1) trailing][add(1,1)]")
	if got != "#-1 FUNCTION (NOSUCHFN) NOT FOUND2" {
		t.Errorf("abort scope = %q", got)
	}
}

func TestEvalArityErrors(t *testing.T) {
	db, player := evalWorld(t)
	ctx := NewContext(db, testRegistry(), player, player)

	got := ctx.Eval("[pair(only)]")
	if !strings.Contains(got, "EXPECTS 2 ARGUMENTS BUT GOT 1") {
		t.Errorf("exact arity: %q", got)
	}
	got = ctx.Eval("[pair(a,b,c)]")
	if !strings.Contains(got, "EXPECTS 2 ARGUMENTS BUT GOT 3") {
		t.Errorf("exact arity over: %q", got)
	}

	// A varargs minimum still binds below the floor.
	got = ctx.Eval("[pairplus(only)]")
	if !strings.Contains(got, "EXPECTS AT LEAST 2 ARGUMENTS BUT GOT 1") {
		t.Errorf("varargs minimum: %q", got)
	}
	if got = ctx.Eval("[pairplus(a,b,c)]"); got != "a+b" {
		t.Errorf("varargs above minimum: %q", got)
	}
}

func TestEvalNoEvalPassesRawText(t *testing.T) {
	db, player := evalWorld(t)
	ctx := NewContext(db, testRegistry(), player, player)

	if got := ctx.Eval("[raw([add(1,2)])]"); got != "[add(1,2)]" {
		t.Errorf("raw arg = %q", got)
	}
}

func TestEvalRecursionLimit(t *testing.T) {
	db, player := evalWorld(t)
	ctx := NewContext(db, testRegistry(), player, player)

	got := ctx.Eval("[loop()]")
	if !strings.Contains(got, ErrRecursionLimit) {
		t.Errorf("recursion result lacks sentinel: %q", got)
	}
}

func TestEvalInvocationLimit(t *testing.T) {
	db, player := evalWorld(t)
	ctx := NewContext(db, testRegistry(), player, player)
	ctx.InvokeLimit = 3

	got := ctx.Eval("[mark()][mark()][mark()][mark()]")
	if !strings.Contains(got, ErrInvocationLimit) {
		t.Errorf("invocation result lacks sentinel: %q", got)
	}
	if !strings.HasPrefix(got, "xx") {
		t.Errorf("calls before the limit should have produced output: %q", got)
	}
}

func TestSubstitutions(t *testing.T) {
	db, player := evalWorld(t)
	ctx := NewContext(db, testRegistry(), player, player)
	ctx.Args = []string{"zero", "one"}
	ctx.SetQReg('3', "stored")
	ctx.XRegs["depot"] = "boxed"

	playerRef := "#" + strconv.Itoa(int(player))
	cases := map[string]string{
		"%0 and %1": "zero and one",
		"%5":        "", // unset positional is empty
		"%#":        playerRef,
		"%!":        playerRef,
		"%n":        "ada",
		"%N":        "Ada",
		"%q3":       "stored",
		"%q<DEPOT>": "boxed",
		"%q<none>":  "",
		"a%bb":      "a b",
		"%r":        "\n",
		"%z":        "%z", // unrecognized escapes pass through
	}
	for in, want := range cases {
		if got := ctx.Eval(in); got != want {
			t.Errorf("Eval(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRegistryAliasAndCaseFolding(t *testing.T) {
	r := testRegistry()
	r.Alias("plus", "add")

	db, player := evalWorld(t)
	ctx := NewContext(db, r, player, player)
	if got := ctx.Eval("[PLUS(2,3)]"); got != "5" {
		t.Errorf("aliased call = %q", got)
	}
	if got := ctx.Eval("[ADD(2,3)]"); got != "5" {
		t.Errorf("case-folded call = %q", got)
	}
}

func TestNotifyQueue(t *testing.T) {
	db, player := evalWorld(t)
	ctx := NewContext(db, testRegistry(), player, player)

	ctx.Notify(player, "hello", NotifyTarget)
	ctx.Notify(player, "around", NotifyRoomExcept)
	if len(ctx.Notifications) != 2 {
		t.Fatalf("queued %d notifications, want 2", len(ctx.Notifications))
	}
	if ctx.Notifications[0].Kind != NotifyTarget || ctx.Notifications[1].Kind != NotifyRoomExcept {
		t.Error("notification kinds out of order")
	}
}
