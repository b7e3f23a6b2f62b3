package server

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kochj23/webmush/pkg/eval"
	"github.com/kochj23/webmush/pkg/events"
	"github.com/kochj23/webmush/pkg/gamedb"
	"github.com/kochj23/webmush/pkg/lock"
)

// Command is one dispatchable game command.
type Command struct {
	Name    string
	Handler func(g *Game, player gamedb.DBRef, arg, arg2 string)
	Wizard  bool // restricted to WIZARD/GOD players
}

// InitCommands builds the command table.
func (g *Game) InitCommands() {
	g.commands = make(map[string]*Command)
	add := func(name string, h func(*Game, gamedb.DBRef, string, string), wizard bool) {
		g.commands[name] = &Command{Name: name, Handler: h, Wizard: wizard}
	}

	add("look", cmdLook, false)
	add("l", cmdLook, false)
	add("examine", cmdExamine, false)
	add("ex", cmdExamine, false)
	add("inventory", cmdInventory, false)
	add("i", cmdInventory, false)
	add("get", cmdGet, false)
	add("take", cmdGet, false)
	add("drop", cmdDrop, false)
	add("go", cmdGo, false)
	add("move", cmdGo, false)
	add("home", cmdHome, false)
	add("enter", cmdEnter, false)
	add("leave", cmdLeave, false)
	add("give", cmdGive, false)
	add("use", cmdUse, false)
	add("say", cmdSay, false)
	add("pose", cmdPose, false)
	add("think", cmdThink, false)
	add("page", cmdPage, false)
	add("who", cmdWho, false)
	add("score", cmdScore, false)

	add("@create", cmdCreate, false)
	add("@dig", cmdDig, false)
	add("@open", cmdOpen, false)
	add("@link", cmdLink, false)
	add("@name", cmdName, false)
	add("@describe", cmdDescribe, false)
	add("@desc", cmdDescribe, false)
	add("@set", cmdSet, false)
	add("@lock", cmdLock, false)
	add("@unlock", cmdUnlock, false)
	add("@destroy", cmdDestroy, false)
	add("@password", cmdPassword, false)
	add("@teleport", cmdTeleport, false)
	add("@tel", cmdTeleport, false)
	add("@trigger", cmdTrigger, false)
	add("@pemit", cmdPemit, false)
	add("@emit", cmdEmit, false)
	add("@eval", cmdThink, false)
	add("@stats", cmdStats, false)
	add("@find", cmdFind, false)

	add("@sql", cmdSQL, true)
	add("@backup", cmdBackup, true)
	add("@shutdown", cmdShutdown, true)
}

// DispatchCommand parses one input line from a player and executes it.
// Stages: parse the line, resolve the command or an exit by that name,
// check permission, execute, then deliver any queued output.
func (g *Game) DispatchCommand(player gamedb.DBRef, line string) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return
	}
	if g.Metrics != nil {
		g.Metrics.CommandProcessed()
	}

	// Single-character prefixes expand to their long forms.
	switch line[0] {
	case '"':
		cmdSay(g, player, line[1:], "")
		return
	case ':':
		cmdPose(g, player, line[1:], "")
		return
	case ';':
		cmdPoseNospace(g, player, line[1:], "")
		return
	case '&':
		cmdAttrSet(g, player, line[1:])
		return
	}

	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	lowered := strings.ToLower(name)

	cmd, ok := g.commands[lowered]
	if !ok {
		// Bare exit name moves the player.
		if exit := g.matchExit(player, line); exit != gamedb.Nothing {
			g.traverseExit(player, exit)
			return
		}
		g.notify(player, fmt.Sprintf("Huh? (Type \"help\" for help.) Unknown command: %s", name))
		return
	}

	if cmd.Wizard && !g.isWizard(player) {
		g.deny(player, cmd.Name)
		return
	}

	// "@cmd left = right" argument convention.
	left, right, _ := strings.Cut(arg, "=")
	cmd.Handler(g, player, strings.TrimSpace(left), strings.TrimSpace(right))
}

func (g *Game) isWizard(player gamedb.DBRef) bool {
	return g.DB.HasFlag(player, gamedb.FlagWizard) || g.DB.HasFlag(player, gamedb.FlagGod)
}

// notify sends plain text to one player.
func (g *Game) notify(player gamedb.DBRef, text string) {
	g.Bus.EmitToPlayer(player, events.Event{Type: events.EvText, Text: text})
}

// evalFor evaluates softcode text as the player and delivers any
// notifications the evaluation queued.
func (g *Game) evalFor(player gamedb.DBRef, text string) string {
	ctx := g.NewEvalContext(player, player)
	out := ctx.Eval(text)
	if g.Metrics != nil {
		g.Metrics.EvalFinished(ctx.Steps())
		if ctx.Aborted() {
			g.Metrics.SoftcodeAborted()
		}
	}
	g.deliver(ctx)
	return out
}

// deliver drains queued side-effect notifications from an evaluation.
func (g *Game) deliver(ctx *eval.Context) {
	for _, n := range ctx.Notifications {
		ev := events.Event{Type: events.EvEmit, Source: ctx.Executor, Text: n.Message}
		switch n.Kind {
		case eval.NotifyTarget:
			g.Bus.EmitToPlayer(n.Target, ev)
		case eval.NotifyRoom:
			g.Bus.EmitToRoom(g.DB, n.Target, ev)
		case eval.NotifyRoomExcept:
			g.Bus.EmitToRoomExcept(g.DB, g.DB.Location(n.Target), n.Target, ev)
		}
	}
	ctx.Notifications = nil
}

// checkLock evaluates a stored lock against a subject. An absent lock
// permits. A malformed expression denies, is logged, and is reported to
// the lock's owner as a configuration error.
func (g *Game) checkLock(subject, obj gamedb.DBRef, lockType string) bool {
	expr, stored := g.DB.GetLock(obj, lockType)
	if !stored {
		return true
	}
	ok, err := lock.Check(g.DB, subject, expr)
	var malformed *lock.ErrMalformed
	if errors.As(err, &malformed) {
		g.Log.Warn("malformed lock expression",
			zap.Int("object", int(obj)),
			zap.String("lock", lockType),
			zap.String("expr", expr),
			zap.Error(err))
		g.notify(g.DB.Owner(obj), fmt.Sprintf(
			"Warning: the %s lock on %s(#%d) is malformed and denies everyone.",
			lockType, g.DB.Name(obj), obj))
	}
	if !ok && g.Metrics != nil {
		g.Metrics.LockDenied()
	}
	return ok
}

// deny notifies the player and records the refusal as a security event.
func (g *Game) deny(player gamedb.DBRef, action string) {
	g.notify(player, "Permission denied.")
	g.Log.Warn("permission denied",
		zap.Int("player", int(player)),
		zap.String("action", action))
}

// match resolves an object reference the way players type them: "me",
// "here", "#N", "*player", or a nearby name.
func (g *Game) match(player gamedb.DBRef, what string) gamedb.DBRef {
	what = strings.TrimSpace(what)
	if what == "" {
		return gamedb.Nothing
	}
	switch strings.ToLower(what) {
	case "me":
		return g.DB.Resolve(player)
	case "here":
		return g.DB.Resolve(g.DB.Location(player))
	}
	if strings.HasPrefix(what, "#") {
		return g.DB.ParseRef(what)
	}
	if strings.HasPrefix(what, "*") {
		return g.lookupPlayer(what[1:])
	}
	for _, ref := range g.DB.Contents(player) {
		if nameMatches(g.DB.Name(ref), what) {
			return ref
		}
	}
	loc := g.DB.Location(player)
	for _, ref := range g.DB.Contents(loc) {
		if nameMatches(g.DB.Name(ref), what) {
			return ref
		}
	}
	return g.lookupPlayer(what)
}

func (g *Game) lookupPlayer(name string) gamedb.DBRef {
	name = strings.TrimSpace(name)
	refs := g.DB.Query(func(o *gamedb.Object) bool {
		return o.Kind == gamedb.KindPlayer && strings.EqualFold(o.Name, name)
	})
	if len(refs) == 1 {
		return refs[0]
	}
	return gamedb.Nothing
}

// nameMatches checks a typed name against an object name, honoring
// ";"-separated exit aliases.
func nameMatches(objName, typed string) bool {
	for _, alias := range strings.Split(objName, ";") {
		if strings.EqualFold(strings.TrimSpace(alias), typed) {
			return true
		}
	}
	return false
}

// matchExit finds an exit in the player's location by name or alias.
func (g *Game) matchExit(player gamedb.DBRef, name string) gamedb.DBRef {
	loc := g.DB.Location(player)
	for _, ref := range g.DB.Contents(loc) {
		if kind, _ := g.DB.Kind(ref); kind != gamedb.KindExit {
			continue
		}
		if nameMatches(g.DB.Name(ref), strings.TrimSpace(name)) {
			return ref
		}
	}
	return gamedb.Nothing
}

// traverseExit moves a player through an exit: the exit's default lock
// gates passage, movement triggers fire on both rooms.
func (g *Game) traverseExit(player, exit gamedb.DBRef) {
	dest := g.DB.Destination(exit)
	if g.DB.Resolve(dest) == gamedb.Nothing {
		g.notify(player, "That exit leads nowhere.")
		return
	}
	if !g.checkLock(player, exit, gamedb.LockDefault) {
		if fail, found := g.DB.GetAttr(exit, "FAIL"); found {
			g.notify(player, g.evalFor(player, fail))
		} else {
			g.notify(player, "You can't go that way.")
		}
		return
	}
	g.movePlayer(player, dest)
}

// movePlayer relocates a player with departure/arrival messages and
// movement triggers.
func (g *Game) movePlayer(player, dest gamedb.DBRef) {
	from := g.DB.Location(player)
	if err := g.DB.Move(player, dest); err != nil {
		g.notify(player, "You can't go there.")
		return
	}
	name := g.DB.Name(player)
	g.Bus.EmitToRoomExcept(g.DB, from, player, events.Event{
		Type: events.EvMove, Source: player, Text: name + " has left.",
	})
	g.Bus.EmitToRoomExcept(g.DB, dest, player, events.Event{
		Type: events.EvMove, Source: player, Text: name + " has arrived.",
	})
	g.FireTrigger(from, TriggerLeave, player)
	g.FireTrigger(dest, TriggerEnter, player)
	g.SaveObject(player)
	g.SaveObject(from)
	g.SaveObject(dest)
	cmdLook(g, player, "", "")
}

// --- basic commands ---

func cmdLook(g *Game, player gamedb.DBRef, arg, _ string) {
	target := g.DB.Location(player)
	if arg != "" {
		target = g.match(player, arg)
	}
	if target == gamedb.Nothing {
		g.notify(player, "I don't see that here.")
		return
	}

	var b strings.Builder
	b.WriteString(g.DB.Name(target))
	fmt.Fprintf(&b, "(#%d)", target)
	if desc, ok := g.DB.GetAttr(target, "DESC"); ok {
		b.WriteByte('\n')
		b.WriteString(g.evalFor(player, desc))
	}

	var things, players, exits []string
	for _, ref := range g.DB.Contents(target) {
		if ref == player || g.DB.HasFlag(ref, gamedb.FlagDark) {
			continue
		}
		kind, _ := g.DB.Kind(ref)
		switch kind {
		case gamedb.KindExit:
			name, _, _ := strings.Cut(g.DB.Name(ref), ";")
			exits = append(exits, name)
		case gamedb.KindPlayer:
			players = append(players, g.DB.Name(ref))
		default:
			things = append(things, g.DB.Name(ref))
		}
	}
	if len(players) > 0 || len(things) > 0 {
		b.WriteString("\nContents:")
		for _, n := range append(players, things...) {
			b.WriteString("\n  ")
			b.WriteString(n)
		}
	}
	if len(exits) > 0 {
		b.WriteString("\nObvious exits: ")
		b.WriteString(strings.Join(exits, ", "))
	}
	g.notify(player, b.String())
}

func cmdExamine(g *Game, player gamedb.DBRef, arg, _ string) {
	target := g.DB.Location(player)
	if arg != "" {
		target = g.match(player, arg)
	}
	if target == gamedb.Nothing {
		g.notify(player, "I don't see that here.")
		return
	}

	var b strings.Builder
	kind, _ := g.DB.Kind(target)
	fmt.Fprintf(&b, "%s(#%d) [%s]", g.DB.Name(target), target, kind)
	fmt.Fprintf(&b, "\nOwner: %s(#%d)", g.DB.Name(g.DB.Owner(target)), g.DB.Owner(target))
	if flags := g.DB.FlagList(target); len(flags) > 0 {
		fmt.Fprintf(&b, "\nFlags: %s", strings.Join(flags, " "))
	}
	fmt.Fprintf(&b, "\nLocation: #%d  Home: #%d", g.DB.Location(target), g.DB.Home(target))
	if kind == gamedb.KindExit {
		fmt.Fprintf(&b, "\nDestination: #%d", g.DB.Destination(target))
	}
	if !g.DB.Controls(player, target) {
		g.notify(player, b.String())
		return
	}
	for _, lt := range g.DB.ListLocks(target) {
		expr, _ := g.DB.GetLock(target, lt)
		fmt.Fprintf(&b, "\n%s lock: %s", strings.ToUpper(lt[:1])+lt[1:], expr)
	}
	for _, name := range g.DB.ListAttrs(target) {
		if !g.DB.CanReadAttr(player, target, name) {
			continue
		}
		val, _ := g.DB.GetAttr(target, name)
		fmt.Fprintf(&b, "\n%s: %s", name, val)
	}
	g.notify(player, b.String())
}

func cmdInventory(g *Game, player gamedb.DBRef, _, _ string) {
	contents := g.DB.Contents(player)
	if len(contents) == 0 {
		g.notify(player, "You aren't carrying anything.")
		return
	}
	var b strings.Builder
	b.WriteString("You are carrying:")
	for _, ref := range contents {
		fmt.Fprintf(&b, "\n  %s(#%d)", g.DB.Name(ref), ref)
	}
	g.notify(player, b.String())
}

func cmdGet(g *Game, player gamedb.DBRef, arg, _ string) {
	target := g.match(player, arg)
	if target == gamedb.Nothing || g.DB.Location(target) != g.DB.Location(player) {
		g.notify(player, "I don't see that here.")
		return
	}
	if kind, _ := g.DB.Kind(target); kind != gamedb.KindThing {
		g.notify(player, "You can't pick that up.")
		return
	}
	if !g.checkLock(player, target, gamedb.LockDefault) {
		g.notify(player, "You can't pick that up.")
		return
	}
	if err := g.DB.Move(target, player); err != nil {
		g.notify(player, "You can't pick that up.")
		return
	}
	g.notify(player, "Taken.")
	g.FireTrigger(target, TriggerGet, player)
	g.SaveObject(target)
	g.SaveObject(player)
}

func cmdDrop(g *Game, player gamedb.DBRef, arg, _ string) {
	target := g.match(player, arg)
	if target == gamedb.Nothing || g.DB.Location(target) != player {
		g.notify(player, "You aren't carrying that.")
		return
	}
	loc := g.DB.Location(player)
	if err := g.DB.Move(target, loc); err != nil {
		g.notify(player, "You can't drop that here.")
		return
	}
	g.notify(player, "Dropped.")
	g.FireTrigger(target, TriggerDrop, player)
	g.SaveObject(target)
	g.SaveObject(loc)
}

func cmdGo(g *Game, player gamedb.DBRef, arg, _ string) {
	if strings.EqualFold(arg, "home") {
		cmdHome(g, player, "", "")
		return
	}
	exit := g.matchExit(player, arg)
	if exit == gamedb.Nothing {
		g.notify(player, "You can't go that way.")
		return
	}
	g.traverseExit(player, exit)
}

func cmdHome(g *Game, player gamedb.DBRef, _, _ string) {
	home := g.DB.Home(player)
	if g.DB.Resolve(home) == gamedb.Nothing {
		home = g.StartingRoom()
	}
	g.notify(player, "There's no place like home...")
	g.movePlayer(player, home)
}

// cmdEnter moves a player into a thing. The thing must be ENTER_OK or
// controlled by the player, and its enter lock must pass.
func cmdEnter(g *Game, player gamedb.DBRef, arg, _ string) {
	target := g.match(player, arg)
	if target == gamedb.Nothing || g.DB.Location(target) != g.DB.Location(player) {
		g.notify(player, "I don't see that here.")
		return
	}
	if kind, _ := g.DB.Kind(target); kind != gamedb.KindThing {
		g.notify(player, "You can't enter that.")
		return
	}
	if !g.DB.HasFlag(target, gamedb.FlagEnterOK) && !g.DB.Controls(player, target) {
		g.notify(player, "You can't enter that.")
		return
	}
	if !g.checkLock(player, target, gamedb.LockEnter) {
		g.notify(player, "You can't enter that.")
		return
	}
	g.movePlayer(player, target)
}

// cmdLeave steps out of a container into whatever holds it. Rooms have
// no outside.
func cmdLeave(g *Game, player gamedb.DBRef, _, _ string) {
	loc := g.DB.Location(player)
	if kind, _ := g.DB.Kind(loc); kind == gamedb.KindRoom {
		g.notify(player, "You can't leave from here.")
		return
	}
	outer := g.DB.Location(loc)
	if g.DB.Resolve(outer) == gamedb.Nothing {
		g.notify(player, "You can't leave from here.")
		return
	}
	g.movePlayer(player, outer)
}

// cmdGive handles "give player = amount", transferring pennies.
func cmdGive(g *Game, player gamedb.DBRef, arg, arg2 string) {
	target := g.match(player, arg)
	if target == gamedb.Nothing {
		g.notify(player, "Give to whom?")
		return
	}
	if kind, _ := g.DB.Kind(target); kind != gamedb.KindPlayer {
		g.notify(player, "You can only give pennies to players.")
		return
	}
	amount, err := strconv.Atoi(arg2)
	if err != nil || amount <= 0 {
		g.notify(player, "Give how much?")
		return
	}
	if g.DB.Pennies(player) < amount {
		g.notify(player, "You don't have that many pennies.")
		return
	}
	g.DB.AddPennies(player, -amount)
	g.DB.AddPennies(target, amount)
	g.notify(player, fmt.Sprintf("You give %d pennies to %s.", amount, g.DB.Name(target)))
	g.notify(target, fmt.Sprintf("%s gives you %d pennies.", g.DB.Name(player), amount))
	g.SaveObject(player)
	g.SaveObject(target)
}

func cmdUse(g *Game, player gamedb.DBRef, arg, _ string) {
	target := g.match(player, arg)
	if target == gamedb.Nothing {
		g.notify(player, "Use what?")
		return
	}
	if !g.checkLock(player, target, gamedb.LockUse) {
		g.notify(player, "You can't use that.")
		return
	}
	if !g.FireTrigger(target, TriggerUse, player) {
		g.notify(player, "Nothing happens.")
	}
}

// canSpeak checks the room's speech lock against the speaker.
func (g *Game) canSpeak(player gamedb.DBRef) bool {
	return g.checkLock(player, g.DB.Location(player), gamedb.LockSpeech)
}

func cmdSay(g *Game, player gamedb.DBRef, arg, _ string) {
	if !g.canSpeak(player) {
		g.notify(player, "You can't speak here.")
		return
	}
	text := g.evalFor(player, arg)
	name := g.DB.Name(player)
	loc := g.DB.Location(player)
	g.notify(player, fmt.Sprintf("You say, \"%s\"", text))
	g.Bus.EmitToRoomExcept(g.DB, loc, player, events.Event{
		Type: events.EvSay, Source: player,
		Text: fmt.Sprintf("%s says, \"%s\"", name, text),
	})
	g.FireRoomTrigger(loc, TriggerSay, player, text)
}

func cmdPose(g *Game, player gamedb.DBRef, arg, _ string) {
	if !g.canSpeak(player) {
		g.notify(player, "You can't speak here.")
		return
	}
	text := g.evalFor(player, arg)
	loc := g.DB.Location(player)
	g.Bus.EmitToRoom(g.DB, loc, events.Event{
		Type: events.EvPose, Source: player,
		Text: g.DB.Name(player) + " " + text,
	})
}

func cmdPoseNospace(g *Game, player gamedb.DBRef, arg, _ string) {
	if !g.canSpeak(player) {
		g.notify(player, "You can't speak here.")
		return
	}
	text := g.evalFor(player, arg)
	loc := g.DB.Location(player)
	g.Bus.EmitToRoom(g.DB, loc, events.Event{
		Type: events.EvPose, Source: player,
		Text: g.DB.Name(player) + text,
	})
}

func cmdThink(g *Game, player gamedb.DBRef, arg, arg2 string) {
	if arg2 != "" {
		arg = arg + "=" + arg2
	}
	g.notify(player, g.evalFor(player, arg))
}

func cmdPage(g *Game, player gamedb.DBRef, arg, arg2 string) {
	target := g.lookupPlayer(arg)
	if target == gamedb.Nothing {
		g.notify(player, "I don't recognize that player.")
		return
	}
	if !g.IsConnected(target) {
		g.notify(player, fmt.Sprintf("%s is not connected.", g.DB.Name(target)))
		return
	}
	text := g.evalFor(player, arg2)
	g.Bus.EmitToPlayer(target, events.Event{
		Type: events.EvPage, Source: player,
		Text: fmt.Sprintf("%s pages: %s", g.DB.Name(player), text),
	})
	g.notify(player, fmt.Sprintf("You paged %s with '%s'.", g.DB.Name(target), text))
}

func cmdWho(g *Game, player gamedb.DBRef, _, _ string) {
	players := g.ConnectedPlayers()
	var b strings.Builder
	fmt.Fprintf(&b, "Player Name        On For\n")
	for _, p := range players {
		fmt.Fprintf(&b, "%-18s\n", g.DB.Name(p))
	}
	fmt.Fprintf(&b, "%d players are connected.", len(players))
	g.notify(player, b.String())
}

func cmdScore(g *Game, player gamedb.DBRef, _, _ string) {
	g.notify(player, fmt.Sprintf("You have %d pennies.", g.DB.Pennies(player)))
}

// --- building commands ---

func cmdCreate(g *Game, player gamedb.DBRef, arg, _ string) {
	if arg == "" {
		g.notify(player, "Create what?")
		return
	}
	ref, err := g.DB.Create(gamedb.KindThing, arg, g.DB.Owner(player), player)
	if err != nil {
		g.notify(player, "You can't create that.")
		return
	}
	g.notify(player, fmt.Sprintf("Created: %s(#%d).", arg, ref))
	g.SaveObject(ref)
	g.SaveObject(player)
}

func cmdDig(g *Game, player gamedb.DBRef, arg, arg2 string) {
	if arg == "" {
		g.notify(player, "Dig what?")
		return
	}
	room, err := g.DB.Create(gamedb.KindRoom, arg, g.DB.Owner(player), gamedb.Nothing)
	if err != nil {
		g.notify(player, "You can't dig that.")
		return
	}
	g.notify(player, fmt.Sprintf("%s(#%d) created.", arg, room))
	g.SaveObject(room)

	// "@dig name = exit to;aliases, exit back;aliases"
	if arg2 == "" {
		return
	}
	there, back, _ := strings.Cut(arg2, ",")
	loc := g.DB.Location(player)
	if name := strings.TrimSpace(there); name != "" {
		if exit, err := g.DB.Create(gamedb.KindExit, name, g.DB.Owner(player), loc); err == nil {
			g.DB.LinkExit(exit, room)
			g.notify(player, fmt.Sprintf("Opened exit %s(#%d).", name, exit))
			g.SaveObject(exit)
		}
	}
	if name := strings.TrimSpace(back); name != "" {
		if exit, err := g.DB.Create(gamedb.KindExit, name, g.DB.Owner(player), room); err == nil {
			g.DB.LinkExit(exit, loc)
			g.notify(player, fmt.Sprintf("Opened exit %s(#%d).", name, exit))
			g.SaveObject(exit)
		}
	}
	g.SaveObject(loc)
}

func cmdOpen(g *Game, player gamedb.DBRef, arg, arg2 string) {
	if arg == "" {
		g.notify(player, "Open what?")
		return
	}
	loc := g.DB.Location(player)
	if !g.DB.Controls(player, loc) {
		g.deny(player, "@open")
		return
	}
	exit, err := g.DB.Create(gamedb.KindExit, arg, g.DB.Owner(player), loc)
	if err != nil {
		g.notify(player, "You can't open that.")
		return
	}
	if arg2 != "" {
		if dest := g.match(player, arg2); dest != gamedb.Nothing {
			g.DB.LinkExit(exit, dest)
		}
	}
	g.notify(player, fmt.Sprintf("Opened exit %s(#%d).", arg, exit))
	g.SaveObject(exit)
	g.SaveObject(loc)
}

func cmdLink(g *Game, player gamedb.DBRef, arg, arg2 string) {
	target := g.match(player, arg)
	if target == gamedb.Nothing {
		g.notify(player, "I don't see that here.")
		return
	}
	if !g.DB.Controls(player, target) {
		g.deny(player, "@link")
		return
	}
	dest := g.match(player, arg2)
	if dest == gamedb.Nothing {
		g.notify(player, "I can't find that destination.")
		return
	}
	kind, _ := g.DB.Kind(target)
	var err error
	if kind == gamedb.KindExit {
		err = g.DB.LinkExit(target, dest)
	} else {
		err = g.DB.SetHome(target, dest)
	}
	if err != nil {
		g.notify(player, "You can't link that.")
		return
	}
	g.notify(player, "Linked.")
	g.SaveObject(target)
}

func cmdName(g *Game, player gamedb.DBRef, arg, arg2 string) {
	target := g.match(player, arg)
	if target == gamedb.Nothing {
		g.notify(player, "I don't see that here.")
		return
	}
	if !g.DB.Controls(player, target) || arg2 == "" {
		g.deny(player, "@name")
		return
	}
	oldName := g.DB.Name(target)
	if err := g.DB.SetName(target, arg2); err != nil {
		g.notify(player, "That's not a valid name.")
		return
	}
	g.notify(player, "Name set.")
	g.SaveObject(target)
	if kind, _ := g.DB.Kind(target); kind == gamedb.KindPlayer && g.Store != nil {
		if snap, ok := g.DB.Snapshot(target); ok {
			g.Store.UpdatePlayerIndex(snap, oldName)
		}
	}
}

func cmdDescribe(g *Game, player gamedb.DBRef, arg, arg2 string) {
	cmdAttrSetParts(g, player, arg, "DESC", arg2)
}

// cmdAttrSet handles "&ATTR obj = value".
func cmdAttrSet(g *Game, player gamedb.DBRef, rest string) {
	spec, value, _ := strings.Cut(rest, "=")
	attr, obj, found := strings.Cut(strings.TrimSpace(spec), " ")
	if !found {
		g.notify(player, "Usage: &ATTRIBUTE object = value")
		return
	}
	cmdAttrSetParts(g, player, strings.TrimSpace(obj), gamedb.CanonAttr(attr), strings.TrimSpace(value))
}

func cmdAttrSetParts(g *Game, player gamedb.DBRef, objSpec, attr, value string) {
	target := g.match(player, objSpec)
	if target == gamedb.Nothing {
		g.notify(player, "I don't see that here.")
		return
	}
	if !g.DB.Controls(player, target) || !g.DB.CanWriteAttr(player, target, attr) {
		g.deny(player, "set-attribute")
		return
	}
	if value == "" {
		g.DB.ClearAttr(target, attr)
		g.notify(player, fmt.Sprintf("%s - Cleared.", attr))
	} else {
		g.DB.SetAttr(target, attr, value)
		g.notify(player, fmt.Sprintf("%s - Set.", attr))
	}
	g.SaveObject(target)
}

// cmdSet handles "@set obj = [!]FLAG" and "@set obj = attr:value".
func cmdSet(g *Game, player gamedb.DBRef, arg, arg2 string) {
	target := g.match(player, arg)
	if target == gamedb.Nothing {
		g.notify(player, "I don't see that here.")
		return
	}
	if !g.DB.Controls(player, target) {
		g.deny(player, "@set")
		return
	}
	if name, value, found := strings.Cut(arg2, ":"); found {
		cmdAttrSetParts(g, player, arg, gamedb.CanonAttr(name), strings.TrimSpace(value))
		return
	}
	flag := strings.ToUpper(strings.TrimSpace(arg2))
	clear := strings.HasPrefix(flag, "!")
	flag = strings.TrimPrefix(flag, "!")
	if flag == "" {
		g.notify(player, "Set what flag?")
		return
	}
	if (flag == gamedb.FlagWizard || flag == gamedb.FlagGod) && !g.isWizard(player) {
		g.deny(player, "@set "+flag)
		return
	}
	g.DB.SetFlag(target, flag, !clear)
	if clear {
		g.notify(player, fmt.Sprintf("%s - Cleared.", flag))
	} else {
		g.notify(player, fmt.Sprintf("%s - Set.", flag))
	}
	g.SaveObject(target)
}

// cmdLock handles "@lock obj[/locktype] = expression". The expression
// must parse before it is stored.
func cmdLock(g *Game, player gamedb.DBRef, arg, arg2 string) {
	objSpec, lockType, found := strings.Cut(arg, "/")
	if !found {
		lockType = gamedb.LockDefault
	}
	target := g.match(player, objSpec)
	if target == gamedb.Nothing {
		g.notify(player, "I don't see that here.")
		return
	}
	if !g.DB.Controls(player, target) {
		g.deny(player, "@lock")
		return
	}
	if _, err := lock.Parse(arg2); err != nil {
		g.notify(player, "I don't understand that key.")
		return
	}
	g.DB.SetLock(target, gamedb.CanonLock(lockType), arg2)
	g.notify(player, "Locked.")
	g.SaveObject(target)
}

func cmdUnlock(g *Game, player gamedb.DBRef, arg, _ string) {
	objSpec, lockType, found := strings.Cut(arg, "/")
	if !found {
		lockType = gamedb.LockDefault
	}
	target := g.match(player, objSpec)
	if target == gamedb.Nothing {
		g.notify(player, "I don't see that here.")
		return
	}
	if !g.DB.Controls(player, target) {
		g.deny(player, "@unlock")
		return
	}
	g.DB.SetLock(target, gamedb.CanonLock(lockType), "")
	g.notify(player, "Unlocked.")
	g.SaveObject(target)
}

func cmdDestroy(g *Game, player gamedb.DBRef, arg, _ string) {
	target := g.match(player, arg)
	if target == gamedb.Nothing {
		g.notify(player, "I don't see that here.")
		return
	}
	if !g.DB.Controls(player, target) {
		g.deny(player, "@destroy")
		return
	}
	if kind, _ := g.DB.Kind(target); kind == gamedb.KindPlayer {
		g.notify(player, "Players can't be destroyed.")
		return
	}
	if g.DB.HasFlag(target, gamedb.FlagSafe) {
		g.notify(player, "That object is protected.")
		return
	}
	name := g.DB.Name(target)
	if err := g.DB.Destroy(target); err != nil {
		g.notify(player, "It still has contents.")
		return
	}
	g.notify(player, fmt.Sprintf("%s destroyed.", name))
	if g.Store != nil {
		g.Store.DeleteObject(target)
	}
}

func cmdPassword(g *Game, player gamedb.DBRef, arg, arg2 string) {
	if !CheckPassword(g.DB, player, arg) {
		g.notify(player, "Incorrect password.")
		return
	}
	if err := SetPassword(g.DB, player, arg2); err != nil {
		g.notify(player, "That's not a valid password.")
		return
	}
	g.notify(player, "Password changed.")
	g.SaveObject(player)
}

func cmdTeleport(g *Game, player gamedb.DBRef, arg, arg2 string) {
	target := player
	destSpec := arg
	if arg2 != "" {
		target = g.match(player, arg)
		destSpec = arg2
	}
	if target == gamedb.Nothing {
		g.notify(player, "I don't see that here.")
		return
	}
	if !g.DB.Controls(player, target) {
		g.deny(player, "@teleport")
		return
	}
	dest := g.match(player, destSpec)
	if dest == gamedb.Nothing {
		g.notify(player, "I can't find that destination.")
		return
	}
	if !g.DB.Controls(player, dest) && !g.DB.HasFlag(dest, gamedb.FlagEnterOK) {
		g.deny(player, "@teleport")
		return
	}
	if kind, _ := g.DB.Kind(target); kind == gamedb.KindPlayer {
		g.movePlayer(target, dest)
		return
	}
	if err := g.DB.Move(target, dest); err != nil {
		g.notify(player, "You can't teleport that there.")
		return
	}
	g.notify(player, "Teleported.")
	g.SaveObject(target)
	g.SaveObject(dest)
}

// cmdTrigger handles "@trigger obj/attr = arg0, arg1, ...".
func cmdTrigger(g *Game, player gamedb.DBRef, arg, arg2 string) {
	objSpec, attr, found := strings.Cut(arg, "/")
	if !found {
		g.notify(player, "Usage: @trigger object/attribute = args")
		return
	}
	target := g.match(player, objSpec)
	if target == gamedb.Nothing {
		g.notify(player, "I don't see that here.")
		return
	}
	if !g.DB.Controls(player, target) {
		g.deny(player, "@trigger")
		return
	}
	var args []string
	if arg2 != "" {
		for _, a := range strings.Split(arg2, ",") {
			args = append(args, strings.TrimSpace(a))
		}
	}
	if !g.RunAttr(target, gamedb.CanonAttr(attr), player, args) {
		g.notify(player, "No such attribute.")
		return
	}
	g.notify(player, "Triggered.")
}

func cmdPemit(g *Game, player gamedb.DBRef, arg, arg2 string) {
	target := g.match(player, arg)
	if target == gamedb.Nothing {
		g.notify(player, "I don't see that here.")
		return
	}
	text := g.evalFor(player, arg2)
	g.Bus.EmitToPlayer(target, events.Event{Type: events.EvEmit, Source: player, Text: text})
}

func cmdEmit(g *Game, player gamedb.DBRef, arg, arg2 string) {
	if arg2 != "" {
		arg = arg + "=" + arg2
	}
	text := g.evalFor(player, arg)
	g.Bus.EmitToRoom(g.DB, g.DB.Location(player), events.Event{
		Type: events.EvEmit, Source: player, Text: text,
	})
}

func cmdStats(g *Game, player gamedb.DBRef, _, _ string) {
	counts := map[gamedb.Kind]int{}
	for _, ref := range g.DB.Refs() {
		kind, _ := g.DB.Kind(ref)
		counts[kind]++
	}
	g.notify(player, fmt.Sprintf(
		"%d objects = %d rooms, %d exits, %d things, %d players.",
		g.DB.Size(), counts[gamedb.KindRoom], counts[gamedb.KindExit],
		counts[gamedb.KindThing], counts[gamedb.KindPlayer]))
}

// cmdFind lists objects the player owns whose name contains the given
// text. Wizards search the whole database.
func cmdFind(g *Game, player gamedb.DBRef, arg, _ string) {
	wizard := g.isWizard(player)
	needle := strings.ToLower(arg)
	refs := g.DB.Query(func(o *gamedb.Object) bool {
		if !wizard && o.Owner != player {
			return false
		}
		return needle == "" || strings.Contains(strings.ToLower(o.Name), needle)
	})
	if len(refs) == 0 {
		g.notify(player, "Nothing found.")
		return
	}
	var b strings.Builder
	for i, ref := range refs {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s(#%d)", g.DB.Name(ref), ref)
	}
	fmt.Fprintf(&b, "\n*** %d found ***", len(refs))
	g.notify(player, b.String())
}

// --- wizard commands ---

func cmdSQL(g *Game, player gamedb.DBRef, arg, arg2 string) {
	if g.SQL == nil {
		g.notify(player, "SQL is not configured.")
		return
	}
	if arg2 != "" {
		arg = arg + "=" + arg2
	}
	out, err := g.SQL.Query(arg, "\n", " | ")
	if err != nil {
		g.notify(player, fmt.Sprintf("SQL error: %v", err))
		return
	}
	if out == "" {
		out = "No results."
	}
	g.notify(player, out)
}

func cmdBackup(g *Game, player gamedb.DBRef, _, _ string) {
	if g.Store == nil {
		g.notify(player, "No persistent store configured.")
		return
	}
	if err := g.Checkpoint(); err != nil {
		g.notify(player, fmt.Sprintf("Checkpoint failed: %v", err))
		return
	}
	path := fmt.Sprintf("%s/world-%d.db", g.Conf.BackupDir, time.Now().Unix())
	if err := g.Store.Backup(path); err != nil {
		g.notify(player, fmt.Sprintf("Backup failed: %v", err))
		return
	}
	g.notify(player, "Backup written: "+path)
}

func cmdShutdown(g *Game, player gamedb.DBRef, _, _ string) {
	g.notify(player, "Shutting down.")
	g.Log.Info("shutdown requested", zap.Int("by", int(player)))
	if err := g.Checkpoint(); err != nil {
		g.Log.Error("final checkpoint failed", zap.Error(err))
	}
	if g.OnShutdown != nil {
		g.OnShutdown()
	}
}

// CommandNames returns the sorted command table, for help output.
func (g *Game) CommandNames() []string {
	names := make([]string, 0, len(g.commands))
	for name := range g.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
