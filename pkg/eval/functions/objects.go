package functions

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kochj23/webmush/pkg/eval"
	"github.com/kochj23/webmush/pkg/gamedb"
	"github.com/kochj23/webmush/pkg/lock"
)

// matchRef resolves an object reference string for a given looker:
// "#123", "me", "here", a player name, or the name of something in the
// looker's location or inventory.
func matchRef(ctx *eval.Context, looker gamedb.DBRef, what string) gamedb.DBRef {
	what = strings.TrimSpace(what)
	if what == "" {
		return gamedb.Nothing
	}
	if strings.HasPrefix(what, "#") {
		return ctx.DB.ParseRef(what)
	}
	switch strings.ToLower(what) {
	case "me":
		return ctx.DB.Resolve(looker)
	case "here":
		return ctx.DB.Resolve(ctx.DB.Location(looker))
	}
	if strings.HasPrefix(what, "*") {
		return matchPlayer(ctx, what[1:])
	}

	// Nearby: inventory first, then the room and its contents.
	for _, ref := range ctx.DB.Contents(looker) {
		if nameMatches(ctx, ref, what) {
			return ref
		}
	}
	loc := ctx.DB.Location(looker)
	if loc != gamedb.Nothing {
		if nameMatches(ctx, loc, what) {
			return loc
		}
		for _, ref := range ctx.DB.Contents(loc) {
			if nameMatches(ctx, ref, what) {
				return ref
			}
		}
	}
	return matchPlayer(ctx, what)
}

// nameMatches compares against the object's name; exits also match any
// ";"-separated alias.
func nameMatches(ctx *eval.Context, ref gamedb.DBRef, what string) bool {
	name := ctx.DB.Name(ref)
	if strings.EqualFold(name, what) {
		return true
	}
	if kind, _ := ctx.DB.Kind(ref); kind == gamedb.KindExit {
		for _, alias := range strings.Split(name, ";") {
			if strings.EqualFold(strings.TrimSpace(alias), what) {
				return true
			}
		}
	}
	return false
}

func matchPlayer(ctx *eval.Context, name string) gamedb.DBRef {
	name = strings.TrimSpace(name)
	refs := ctx.DB.Query(func(o *gamedb.Object) bool {
		return o.Kind == gamedb.KindPlayer && strings.EqualFold(o.Name, name)
	})
	if len(refs) == 1 {
		return refs[0]
	}
	return gamedb.Nothing
}

// splitObjAttr parses "obj/attr" into a resolved reference and attribute
// name. With no slash the executor is the object.
func splitObjAttr(ctx *eval.Context, spec string) (gamedb.DBRef, string, bool) {
	obj, attr, found := strings.Cut(spec, "/")
	if !found {
		return ctx.DB.Resolve(ctx.Executor), gamedb.CanonAttr(spec), ctx.DB.Valid(ctx.Executor)
	}
	ref := matchRef(ctx, ctx.Executor, obj)
	if ref == gamedb.Nothing {
		return gamedb.Nothing, "", false
	}
	return ref, gamedb.CanonAttr(attr), true
}

// resolveUFun fetches readable attribute text for u()/map()/filter()/fold().
func resolveUFun(ctx *eval.Context, spec string) (string, bool) {
	ref, attr, ok := splitObjAttr(ctx, spec)
	if !ok {
		return "", false
	}
	return ctx.AttrText(ctx.Executor, ref, attr)
}

// callUFun evaluates attribute text with fresh positional args and its
// own register file, restoring the caller's on return.
func callUFun(ctx *eval.Context, text string, args []string) string {
	savedArgs := ctx.Args
	savedQ := ctx.QRegs
	ctx.Args = args
	out := ctx.EvalNested(text)
	ctx.Args = savedArgs
	ctx.QRegs = savedQ
	return out
}

func writeRef(buf *strings.Builder, ref gamedb.DBRef) {
	fmt.Fprintf(buf, "#%d", ref)
}

func fnName(ctx *eval.Context, args []string, buf *strings.Builder) {
	ref := matchRef(ctx, ctx.Executor, args[0])
	if ref == gamedb.Nothing {
		buf.WriteString("#-1 NO MATCH")
		return
	}
	name := ctx.DB.Name(ref)
	if kind, _ := ctx.DB.Kind(ref); kind == gamedb.KindExit {
		name, _, _ = strings.Cut(name, ";")
	}
	buf.WriteString(name)
}

// fullname() keeps exit aliases.
func fnFullname(ctx *eval.Context, args []string, buf *strings.Builder) {
	ref := matchRef(ctx, ctx.Executor, args[0])
	if ref == gamedb.Nothing {
		buf.WriteString("#-1 NO MATCH")
		return
	}
	buf.WriteString(ctx.DB.Name(ref))
}

func fnNum(ctx *eval.Context, args []string, buf *strings.Builder) {
	ref := matchRef(ctx, ctx.Executor, args[0])
	if ref == gamedb.Nothing {
		buf.WriteString("#-1")
		return
	}
	writeRef(buf, ref)
}

func fnLoc(ctx *eval.Context, args []string, buf *strings.Builder) {
	ref := matchRef(ctx, ctx.Executor, args[0])
	if ref == gamedb.Nothing {
		buf.WriteString("#-1")
		return
	}
	writeRef(buf, ctx.DB.Location(ref))
}

func fnOwner(ctx *eval.Context, args []string, buf *strings.Builder) {
	ref := matchRef(ctx, ctx.Executor, args[0])
	if ref == gamedb.Nothing {
		buf.WriteString("#-1")
		return
	}
	writeRef(buf, ctx.DB.Owner(ref))
}

func fnHome(ctx *eval.Context, args []string, buf *strings.Builder) {
	ref := matchRef(ctx, ctx.Executor, args[0])
	if ref == gamedb.Nothing {
		buf.WriteString("#-1")
		return
	}
	writeRef(buf, ctx.DB.Home(ref))
}

func fnFlags(ctx *eval.Context, args []string, buf *strings.Builder) {
	ref := matchRef(ctx, ctx.Executor, args[0])
	if ref == gamedb.Nothing {
		buf.WriteString("#-1 NO MATCH")
		return
	}
	buf.WriteString(strings.Join(ctx.DB.FlagList(ref), " "))
}

func fnHasflag(ctx *eval.Context, args []string, buf *strings.Builder) {
	ref := matchRef(ctx, ctx.Executor, args[0])
	if ref == gamedb.Nothing {
		buf.WriteString("#-1 NO MATCH")
		return
	}
	writeBool(buf, ctx.DB.HasFlag(ref, strings.ToUpper(strings.TrimSpace(args[1]))))
}

func fnType(ctx *eval.Context, args []string, buf *strings.Builder) {
	ref := matchRef(ctx, ctx.Executor, args[0])
	if ref == gamedb.Nothing {
		buf.WriteString("#-1 NO MATCH")
		return
	}
	kind, _ := ctx.DB.Kind(ref)
	buf.WriteString(kind.String())
}

// con() is the first object in contents; exit() the first exit. next()
// walks siblings. Together they let softcode iterate a room the
// traditional way; lcon()/lexits() return whole lists.
func fnCon(ctx *eval.Context, args []string, buf *strings.Builder) {
	ref := matchRef(ctx, ctx.Executor, args[0])
	if ref == gamedb.Nothing {
		buf.WriteString("#-1")
		return
	}
	for _, c := range ctx.DB.Contents(ref) {
		if kind, _ := ctx.DB.Kind(c); kind != gamedb.KindExit {
			writeRef(buf, c)
			return
		}
	}
	buf.WriteString("#-1")
}

func fnExit(ctx *eval.Context, args []string, buf *strings.Builder) {
	ref := matchRef(ctx, ctx.Executor, args[0])
	if ref == gamedb.Nothing {
		buf.WriteString("#-1")
		return
	}
	for _, c := range ctx.DB.Contents(ref) {
		if kind, _ := ctx.DB.Kind(c); kind == gamedb.KindExit {
			writeRef(buf, c)
			return
		}
	}
	buf.WriteString("#-1")
}

func fnNext(ctx *eval.Context, args []string, buf *strings.Builder) {
	ref := ctx.DB.ParseRef(strings.TrimSpace(args[0]))
	if ref == gamedb.Nothing {
		buf.WriteString("#-1")
		return
	}
	loc := ctx.DB.Location(ref)
	sameKind, _ := ctx.DB.Kind(ref)
	contents := ctx.DB.Contents(loc)
	for i, c := range contents {
		if c != ref {
			continue
		}
		for _, n := range contents[i+1:] {
			if kind, _ := ctx.DB.Kind(n); (kind == gamedb.KindExit) == (sameKind == gamedb.KindExit) {
				writeRef(buf, n)
				return
			}
		}
		break
	}
	buf.WriteString("#-1")
}

func listContents(ctx *eval.Context, ref gamedb.DBRef, exits bool, buf *strings.Builder) {
	first := true
	for _, c := range ctx.DB.Contents(ref) {
		kind, _ := ctx.DB.Kind(c)
		if (kind == gamedb.KindExit) != exits {
			continue
		}
		if !first {
			buf.WriteByte(' ')
		}
		first = false
		writeRef(buf, c)
	}
}

func fnLcon(ctx *eval.Context, args []string, buf *strings.Builder) {
	ref := matchRef(ctx, ctx.Executor, args[0])
	if ref == gamedb.Nothing {
		buf.WriteString("#-1 NO MATCH")
		return
	}
	listContents(ctx, ref, false, buf)
}

func fnLexits(ctx *eval.Context, args []string, buf *strings.Builder) {
	ref := matchRef(ctx, ctx.Executor, args[0])
	if ref == gamedb.Nothing {
		buf.WriteString("#-1 NO MATCH")
		return
	}
	listContents(ctx, ref, true, buf)
}

func fnControls(ctx *eval.Context, args []string, buf *strings.Builder) {
	actor := matchRef(ctx, ctx.Executor, args[0])
	target := matchRef(ctx, ctx.Executor, args[1])
	if actor == gamedb.Nothing || target == gamedb.Nothing {
		buf.WriteString("#-1 NO MATCH")
		return
	}
	writeBool(buf, ctx.DB.Controls(actor, target))
}

// nearby(a, b) is true when the two share a location or one holds the
// other.
func fnNearby(ctx *eval.Context, args []string, buf *strings.Builder) {
	a := matchRef(ctx, ctx.Executor, args[0])
	b := matchRef(ctx, ctx.Executor, args[1])
	if a == gamedb.Nothing || b == gamedb.Nothing {
		buf.WriteString("0")
		return
	}
	la, lb := ctx.DB.Location(a), ctx.DB.Location(b)
	writeBool(buf, la == lb || la == b || lb == a)
}

func fnWhere(ctx *eval.Context, args []string, buf *strings.Builder) {
	ref := matchRef(ctx, ctx.Executor, args[0])
	if ref == gamedb.Nothing {
		buf.WriteString("#-1")
		return
	}
	writeRef(buf, ctx.DB.Location(ref))
}

func fnLocate(ctx *eval.Context, args []string, buf *strings.Builder) {
	looker := matchRef(ctx, ctx.Executor, args[0])
	if looker == gamedb.Nothing {
		buf.WriteString("#-1")
		return
	}
	writeRef(buf, matchRef(ctx, looker, args[1]))
}

func fnPmatch(ctx *eval.Context, args []string, buf *strings.Builder) {
	ref := matchPlayer(ctx, args[0])
	if ref == gamedb.Nothing {
		buf.WriteString("#-1 NO MATCH")
		return
	}
	writeRef(buf, ref)
}

// get(obj/attr) reads through the permission model.
func fnGet(ctx *eval.Context, args []string, buf *strings.Builder) {
	ref, attr, ok := splitObjAttr(ctx, args[0])
	if !ok {
		buf.WriteString("#-1 NO MATCH")
		return
	}
	if text, found := ctx.AttrText(ctx.Executor, ref, attr); found {
		buf.WriteString(text)
	}
}

// xget(obj, attr) is get() with two arguments.
func fnXget(ctx *eval.Context, args []string, buf *strings.Builder) {
	ref := matchRef(ctx, ctx.Executor, args[0])
	if ref == gamedb.Nothing {
		buf.WriteString("#-1 NO MATCH")
		return
	}
	if text, found := ctx.AttrText(ctx.Executor, ref, gamedb.CanonAttr(args[1])); found {
		buf.WriteString(text)
	}
}

// v(attr) reads the executor's own attribute.
func fnV(ctx *eval.Context, args []string, buf *strings.Builder) {
	if text, found := ctx.AttrText(ctx.Executor, ctx.Executor, gamedb.CanonAttr(args[0])); found {
		buf.WriteString(text)
	}
}

// u(obj/attr, args...) evaluates stored text as a function.
func fnU(ctx *eval.Context, args []string, buf *strings.Builder) {
	text, ok := resolveUFun(ctx, args[0])
	if !ok {
		buf.WriteString("#-1 NO SUCH ATTRIBUTE")
		return
	}
	buf.WriteString(callUFun(ctx, text, args[1:]))
}

// eval(obj, attr) is xget() followed by evaluation.
func fnEvalAttr(ctx *eval.Context, args []string, buf *strings.Builder) {
	ref := matchRef(ctx, ctx.Executor, args[0])
	if ref == gamedb.Nothing {
		buf.WriteString("#-1 NO MATCH")
		return
	}
	text, found := ctx.AttrText(ctx.Executor, ref, gamedb.CanonAttr(args[1]))
	if !found {
		return
	}
	buf.WriteString(callUFun(ctx, text, nil))
}

func fnHasattr(ctx *eval.Context, args []string, buf *strings.Builder) {
	ref := matchRef(ctx, ctx.Executor, args[0])
	if ref == gamedb.Nothing {
		buf.WriteString("#-1 NO MATCH")
		return
	}
	_, found := ctx.AttrText(ctx.Executor, ref, gamedb.CanonAttr(args[1]))
	writeBool(buf, found)
}

func fnLattr(ctx *eval.Context, args []string, buf *strings.Builder) {
	ref, pat, hasPat := strings.Cut(args[0], "/")
	target := matchRef(ctx, ctx.Executor, ref)
	if target == gamedb.Nothing {
		buf.WriteString("#-1 NO MATCH")
		return
	}
	first := true
	for _, name := range ctx.DB.ListAttrs(target) {
		if !ctx.DB.CanReadAttr(ctx.Executor, target, name) {
			continue
		}
		if hasPat && !wildMatch(pat, name) {
			continue
		}
		if !first {
			buf.WriteByte(' ')
		}
		first = false
		buf.WriteString(name)
	}
}

// elock(obj, victim[, locktype]) runs a stored lock against a subject.
func fnElock(ctx *eval.Context, args []string, buf *strings.Builder) {
	obj := matchRef(ctx, ctx.Executor, args[0])
	victim := matchRef(ctx, ctx.Executor, args[1])
	if obj == gamedb.Nothing || victim == gamedb.Nothing {
		buf.WriteString("#-1 NO MATCH")
		return
	}
	lockType := gamedb.LockDefault
	if len(args) > 2 && strings.TrimSpace(args[2]) != "" {
		lockType = gamedb.CanonLock(args[2])
	}
	expr, _ := ctx.DB.GetLock(obj, lockType)
	ok, err := lock.Check(ctx.DB, victim, expr)
	if err != nil {
		buf.WriteString("#-1 INVALID LOCK")
		return
	}
	writeBool(buf, ok)
}

// lock(obj[/locktype]) shows the stored expression.
func fnLock(ctx *eval.Context, args []string, buf *strings.Builder) {
	objSpec, lockType, found := strings.Cut(args[0], "/")
	obj := matchRef(ctx, ctx.Executor, objSpec)
	if obj == gamedb.Nothing {
		buf.WriteString("#-1 NO MATCH")
		return
	}
	if !ctx.DB.Controls(ctx.Executor, obj) {
		buf.WriteString("#-1 PERMISSION DENIED")
		return
	}
	if !found {
		lockType = gamedb.LockDefault
	}
	expr, _ := ctx.DB.GetLock(obj, gamedb.CanonLock(lockType))
	buf.WriteString(expr)
}

func fnMoney(ctx *eval.Context, args []string, buf *strings.Builder) {
	ref := matchRef(ctx, ctx.Executor, args[0])
	if ref == gamedb.Nothing {
		buf.WriteString("#-1 NO MATCH")
		return
	}
	writeInt(buf, ctx.DB.Pennies(ref))
}

// create(name[, kind]) makes a new thing (or room/exit for builders)
// owned by the executor.
func fnCreate(ctx *eval.Context, args []string, buf *strings.Builder) {
	name := strings.TrimSpace(args[0])
	if name == "" {
		buf.WriteString("#-1 INVALID NAME")
		return
	}
	kind := gamedb.KindThing
	if len(args) > 1 && strings.TrimSpace(args[1]) != "" {
		k, ok := gamedb.KindFromString(args[1])
		if !ok || k == gamedb.KindPlayer {
			buf.WriteString("#-1 INVALID TYPE")
			return
		}
		kind = k
	}
	loc := ctx.DB.Location(ctx.Executor)
	if kind == gamedb.KindRoom {
		loc = gamedb.Nothing
	}
	ref, err := ctx.DB.Create(kind, name, ctx.DB.Owner(ctx.Executor), loc)
	if err != nil {
		buf.WriteString("#-1 CREATE FAILED")
		return
	}
	writeRef(buf, ref)
}

// set(obj, attr:value) stores an attribute; set(obj, [!]FLAG) toggles a
// flag. Both require control.
func fnSet(ctx *eval.Context, args []string, buf *strings.Builder) {
	ref := matchRef(ctx, ctx.Executor, args[0])
	if ref == gamedb.Nothing {
		buf.WriteString("#-1 NO MATCH")
		return
	}
	if !ctx.DB.Controls(ctx.Executor, ref) {
		buf.WriteString("#-1 PERMISSION DENIED")
		return
	}
	spec := args[1]
	if name, value, found := strings.Cut(spec, ":"); found {
		attr := gamedb.CanonAttr(name)
		if attr == "" || !ctx.DB.CanWriteAttr(ctx.Executor, ref, attr) {
			buf.WriteString("#-1 PERMISSION DENIED")
			return
		}
		if strings.TrimSpace(value) == "" {
			ctx.DB.ClearAttr(ref, attr)
		} else {
			ctx.DB.SetAttr(ref, attr, value)
		}
		return
	}
	flag := strings.ToUpper(strings.TrimSpace(spec))
	clear := strings.HasPrefix(flag, "!")
	flag = strings.TrimPrefix(flag, "!")
	if flag == "" {
		buf.WriteString("#-1 INVALID FLAG")
		return
	}
	if flag == gamedb.FlagWizard || flag == gamedb.FlagGod {
		if !ctx.DB.HasFlag(ctx.DB.Owner(ctx.Executor), gamedb.FlagWizard) {
			buf.WriteString("#-1 PERMISSION DENIED")
			return
		}
	}
	ctx.DB.SetFlag(ref, flag, !clear)
}

// tel(obj, dest) moves an object the executor controls.
func fnTel(ctx *eval.Context, args []string, buf *strings.Builder) {
	ref := matchRef(ctx, ctx.Executor, args[0])
	dest := matchRef(ctx, ctx.Executor, args[1])
	if ref == gamedb.Nothing || dest == gamedb.Nothing {
		buf.WriteString("#-1 NO MATCH")
		return
	}
	if !ctx.DB.Controls(ctx.Executor, ref) {
		buf.WriteString("#-1 PERMISSION DENIED")
		return
	}
	if err := ctx.DB.Move(ref, dest); err != nil {
		buf.WriteString("#-1 CANNOT MOVE")
	}
}

// pemit(target, message) queues a private message; emit(message) queues
// one for the executor's whole room.
func fnPemit(ctx *eval.Context, args []string, buf *strings.Builder) {
	ref := matchRef(ctx, ctx.Executor, args[0])
	if ref == gamedb.Nothing {
		buf.WriteString("#-1 NO MATCH")
		return
	}
	ctx.Notify(ref, args[1], eval.NotifyTarget)
}

func fnEmit(ctx *eval.Context, args []string, _ *strings.Builder) {
	loc := ctx.DB.Location(ctx.Executor)
	if loc == gamedb.Nothing {
		return
	}
	ctx.Notify(loc, args[0], eval.NotifyRoom)
}

func fnRemit(ctx *eval.Context, args []string, buf *strings.Builder) {
	ref := matchRef(ctx, ctx.Executor, args[0])
	if ref == gamedb.Nothing {
		buf.WriteString("#-1 NO MATCH")
		return
	}
	if !ctx.DB.Controls(ctx.Executor, ref) {
		buf.WriteString("#-1 PERMISSION DENIED")
		return
	}
	ctx.Notify(ref, args[1], eval.NotifyRoom)
}

func fnLwho(ctx *eval.Context, _ []string, buf *strings.Builder) {
	if ctx.Info == nil {
		return
	}
	players := ctx.Info.ConnectedPlayers()
	sort.Slice(players, func(i, j int) bool { return players[i] < players[j] })
	for i, p := range players {
		if i > 0 {
			buf.WriteByte(' ')
		}
		writeRef(buf, p)
	}
}

func fnConn(ctx *eval.Context, args []string, buf *strings.Builder) {
	if ctx.Info == nil {
		buf.WriteString("0")
		return
	}
	ref := matchRef(ctx, ctx.Executor, args[0])
	writeBool(buf, ref != gamedb.Nothing && ctx.Info.IsConnected(ref))
}

func fnMudname(ctx *eval.Context, _ []string, buf *strings.Builder) {
	if ctx.Info == nil {
		return
	}
	buf.WriteString(ctx.Info.MudName())
}

func registerObjectFns(r *eval.Registry) {
	r.Register("name", fnName, 1, 0)
	r.Register("fullname", fnFullname, 1, 0)
	r.Register("num", fnNum, 1, 0)
	r.Register("loc", fnLoc, 1, 0)
	r.Alias("location", "loc")
	r.Register("owner", fnOwner, 1, 0)
	r.Register("home", fnHome, 1, 0)
	r.Register("flags", fnFlags, 1, 0)
	r.Register("hasflag", fnHasflag, 2, 0)
	r.Register("type", fnType, 1, 0)
	r.Register("con", fnCon, 1, 0)
	r.Register("exit", fnExit, 1, 0)
	r.Register("next", fnNext, 1, 0)
	r.Register("lcon", fnLcon, 1, 0)
	r.Register("lexits", fnLexits, 1, 0)
	r.Register("controls", fnControls, 2, 0)
	r.Register("nearby", fnNearby, 2, 0)
	r.Register("where", fnWhere, 1, 0)
	r.Register("locate", fnLocate, 2, 0)
	r.Register("pmatch", fnPmatch, 1, 0)
	r.Register("get", fnGet, 1, 0)
	r.Register("xget", fnXget, 2, 0)
	r.Register("v", fnV, 1, 0)
	r.Register("u", fnU, -1, eval.FnVarArgs)
	r.Register("eval", fnEvalAttr, 2, 0)
	r.Register("hasattr", fnHasattr, 2, 0)
	r.Register("lattr", fnLattr, 1, 0)
	r.Register("elock", fnElock, -2, 0)
	r.Register("lock", fnLock, 1, 0)
	r.Register("money", fnMoney, 1, 0)
	r.Register("create", fnCreate, -1, 0)
	r.Register("set", fnSet, 2, 0)
	r.Register("tel", fnTel, 2, 0)
	r.Register("pemit", fnPemit, 2, 0)
	r.Register("emit", fnEmit, 1, 0)
	r.Register("remit", fnRemit, 2, 0)
	r.Register("lwho", fnLwho, 0, 0)
	r.Register("conn", fnConn, 1, 0)
	r.Register("mudname", fnMudname, 0, 0)
}
