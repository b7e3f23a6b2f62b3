package server

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/kochj23/webmush/pkg/events"
	"github.com/kochj23/webmush/pkg/gamedb"
)

// recorder captures events delivered to one player.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Receive(ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) Closed() bool { return false }

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

func (r *recorder) contains(sub string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if strings.Contains(ev.Text, sub) {
			return true
		}
	}
	return false
}

func (r *recorder) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return ""
	}
	return r.events[len(r.events)-1].Text
}

// testEnv is a bootstrapped game with two mortals in Limbo and a
// recorder attached to every player.
type testEnv struct {
	g    *Game
	room gamedb.DBRef
	god  gamedb.DBRef
	ada  gamedb.DBRef
	bea  gamedb.DBRef
	out  map[gamedb.DBRef]*recorder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	g := NewGame(gamedb.NewDatabase(), nil, nil, nil)
	if err := g.Bootstrap(); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	env := &testEnv{g: g, room: g.StartingRoom(), out: make(map[gamedb.DBRef]*recorder)}

	env.god = gamedb.DBRef(g.Conf.GodRef)
	var err error
	env.ada, err = g.DB.Create(gamedb.KindPlayer, "Ada", gamedb.Nothing, env.room)
	if err != nil {
		t.Fatalf("create Ada: %v", err)
	}
	env.bea, _ = g.DB.Create(gamedb.KindPlayer, "Bea", gamedb.Nothing, env.room)

	for _, p := range []gamedb.DBRef{env.god, env.ada, env.bea} {
		rec := &recorder{}
		env.out[p] = rec
		g.Bus.Subscribe(p, rec)
	}
	return env
}

func (e *testEnv) resetAll() {
	for _, rec := range e.out {
		rec.reset()
	}
}

// thing creates a plain object owned by Ada in the starting room.
func (e *testEnv) thing(t *testing.T, name string) gamedb.DBRef {
	t.Helper()
	ref, err := e.g.DB.Create(gamedb.KindThing, name, e.ada, e.room)
	if err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	return ref
}

func TestSayPrefix(t *testing.T) {
	env := newTestEnv(t)
	env.g.DispatchCommand(env.ada, `"hello there`)

	if !env.out[env.ada].contains(`You say, "hello there"`) {
		t.Error("speaker missed their own say")
	}
	if !env.out[env.bea].contains(`Ada says, "hello there"`) {
		t.Error("listener missed the say")
	}
	if env.out[env.ada].contains(`Ada says,`) {
		t.Error("speaker heard the third-person form")
	}
}

func TestPosePrefixes(t *testing.T) {
	env := newTestEnv(t)
	env.g.DispatchCommand(env.ada, ":waves.")
	if !env.out[env.bea].contains("Ada waves.") {
		t.Error("pose not delivered")
	}
	env.g.DispatchCommand(env.ada, ";'s eyes widen.")
	if !env.out[env.bea].contains("Ada's eyes widen.") {
		t.Error("nospace pose not delivered")
	}
}

func TestThinkEvaluatesSoftcode(t *testing.T) {
	env := newTestEnv(t)
	env.g.DispatchCommand(env.ada, "think [add(2,3)]")
	if got := env.out[env.ada].last(); got != "5" {
		t.Errorf("think output = %q", got)
	}
}

func TestAttrSetPrefix(t *testing.T) {
	env := newTestEnv(t)
	env.g.DispatchCommand(env.ada, "&TITLE me = the Brave")
	if v, _ := env.g.DB.GetAttr(env.ada, "TITLE"); v != "the Brave" {
		t.Errorf("attribute = %q", v)
	}
	if !env.out[env.ada].contains("TITLE - Set.") {
		t.Error("no confirmation")
	}

	env.g.DispatchCommand(env.ada, "&TITLE me =")
	if _, ok := env.g.DB.GetAttr(env.ada, "TITLE"); ok {
		t.Error("attribute survived clearing")
	}
}

func TestUnknownCommand(t *testing.T) {
	env := newTestEnv(t)
	env.g.DispatchCommand(env.ada, "frobnicate the widget")
	if !env.out[env.ada].contains("Huh?") {
		t.Errorf("got %q", env.out[env.ada].last())
	}
}

func TestWizardCommandsAreGated(t *testing.T) {
	env := newTestEnv(t)
	env.g.DispatchCommand(env.ada, "@backup")
	if !env.out[env.ada].contains("Permission denied.") {
		t.Error("mortal ran a wizard command")
	}
	env.g.DispatchCommand(env.god, "@backup")
	if !env.out[env.god].contains("No persistent store configured.") {
		t.Errorf("wizard blocked: %q", env.out[env.god].last())
	}
}

func TestCreateAndInventory(t *testing.T) {
	env := newTestEnv(t)
	env.g.DispatchCommand(env.ada, "@create widget")
	if !env.out[env.ada].contains("Created: widget") {
		t.Fatalf("create failed: %q", env.out[env.ada].last())
	}
	refs := env.g.DB.Query(func(o *gamedb.Object) bool { return o.Name == "widget" })
	if len(refs) != 1 {
		t.Fatalf("found %d widgets", len(refs))
	}
	if env.g.DB.Location(refs[0]) != env.ada {
		t.Error("new thing not in creator's inventory")
	}

	env.g.DispatchCommand(env.ada, "inventory")
	if !env.out[env.ada].contains("widget") {
		t.Error("inventory missing the widget")
	}
}

func TestGetAndDrop(t *testing.T) {
	env := newTestEnv(t)
	rock := env.thing(t, "rock")

	env.g.DispatchCommand(env.ada, "get rock")
	if !env.out[env.ada].contains("Taken.") || env.g.DB.Location(rock) != env.ada {
		t.Fatalf("get failed; rock at #%d", env.g.DB.Location(rock))
	}

	env.g.DispatchCommand(env.ada, "drop rock")
	if !env.out[env.ada].contains("Dropped.") || env.g.DB.Location(rock) != env.room {
		t.Errorf("drop failed; rock at #%d", env.g.DB.Location(rock))
	}
}

func TestGetRespectsLock(t *testing.T) {
	env := newTestEnv(t)
	rock := env.thing(t, "rock")
	env.g.DB.SetLock(rock, gamedb.LockDefault, "WIZARD")

	env.g.DispatchCommand(env.ada, "get rock")
	if env.g.DB.Location(rock) != env.room {
		t.Error("locked object was picked up")
	}
	if !env.out[env.ada].contains("You can't pick that up.") {
		t.Errorf("got %q", env.out[env.ada].last())
	}
}

func TestDigOpensLinkedExits(t *testing.T) {
	env := newTestEnv(t)
	env.g.DispatchCommand(env.ada, "@dig Vault = east;e, west;w")

	vaults := env.g.DB.Query(func(o *gamedb.Object) bool { return o.Name == "Vault" })
	if len(vaults) != 1 {
		t.Fatalf("found %d Vaults", len(vaults))
	}
	vault := vaults[0]

	env.resetAll()
	env.g.DispatchCommand(env.ada, "east")
	if env.g.DB.Location(env.ada) != vault {
		t.Fatalf("player at #%d, want the vault", env.g.DB.Location(env.ada))
	}
	if !env.out[env.bea].contains("Ada has left.") {
		t.Error("departure not announced")
	}

	// The alias on the return exit works too.
	env.g.DispatchCommand(env.ada, "w")
	if env.g.DB.Location(env.ada) != env.room {
		t.Errorf("player at #%d after return", env.g.DB.Location(env.ada))
	}
}

func TestExitLockBlocksWithFailMessage(t *testing.T) {
	env := newTestEnv(t)
	env.g.DispatchCommand(env.ada, "@dig Vault = east;e")
	exit := env.g.matchExit(env.ada, "east")
	if exit == gamedb.Nothing {
		t.Fatal("exit not found")
	}
	env.g.DB.SetLock(exit, gamedb.LockDefault, "WIZARD")
	env.g.DB.SetAttr(exit, "FAIL", "The door is barred.")

	env.resetAll()
	env.g.DispatchCommand(env.ada, "east")
	if env.g.DB.Location(env.ada) != env.room {
		t.Error("player passed a failing lock")
	}
	if !env.out[env.ada].contains("The door is barred.") {
		t.Errorf("got %q", env.out[env.ada].last())
	}

	// The wizard passes the same lock.
	env.g.DispatchCommand(env.god, "east")
	if env.g.DB.Location(env.god) == env.room {
		t.Error("wizard blocked by a wizard lock")
	}
}

func TestEnterTriggerFires(t *testing.T) {
	env := newTestEnv(t)
	env.g.DispatchCommand(env.ada, "@dig Vault = east;e")
	vault := env.g.DB.Query(func(o *gamedb.Object) bool { return o.Name == "Vault" })[0]
	env.g.DB.SetAttr(vault, TriggerEnter, "[pemit(%#,Welcome to the vault!)]")

	env.resetAll()
	env.g.DispatchCommand(env.ada, "east")
	if !env.out[env.ada].contains("Welcome to the vault!") {
		t.Error("enter trigger did not fire")
	}
}

func TestSayTriggersListeners(t *testing.T) {
	env := newTestEnv(t)
	parrot := env.thing(t, "parrot")
	env.g.DB.SetAttr(parrot, TriggerSay, "[pemit(%#,Squawk: %0)]")

	env.g.DispatchCommand(env.ada, `"pieces of eight`)
	if !env.out[env.ada].contains("Squawk: pieces of eight") {
		t.Error("listener trigger did not fire")
	}
}

func TestNoCommandAttrNeverTriggers(t *testing.T) {
	env := newTestEnv(t)
	parrot := env.thing(t, "parrot")
	env.g.DB.SetAttr(parrot, TriggerSay, "[pemit(%#,Squawk!)]")
	env.g.DB.SetAttrFlags(parrot, TriggerSay, gamedb.AttrNoCommand)

	env.g.DispatchCommand(env.ada, `"quiet now`)
	if env.out[env.ada].contains("Squawk!") {
		t.Error("NoCommand attribute fired as a trigger")
	}
}

func TestSetFlagCommand(t *testing.T) {
	env := newTestEnv(t)
	rock := env.thing(t, "rock")

	env.g.DispatchCommand(env.ada, "@set rock = STICKY")
	if !env.g.DB.HasFlag(rock, gamedb.FlagSticky) {
		t.Error("flag not set")
	}
	env.g.DispatchCommand(env.ada, "@set rock = !STICKY")
	if env.g.DB.HasFlag(rock, gamedb.FlagSticky) {
		t.Error("flag not cleared")
	}

	env.g.DispatchCommand(env.ada, "@set rock = WIZARD")
	if env.g.DB.HasFlag(rock, gamedb.FlagWizard) {
		t.Error("mortal granted WIZARD")
	}
	if !env.out[env.ada].contains("Permission denied.") {
		t.Error("no denial message")
	}
}

func TestLockCommandValidatesExpression(t *testing.T) {
	env := newTestEnv(t)
	rock := env.thing(t, "rock")

	env.g.DispatchCommand(env.ada, "@lock rock = WIZARD|#2")
	if expr, _ := env.g.DB.GetLock(rock, gamedb.LockDefault); expr != "WIZARD|#2" {
		t.Errorf("lock = %q", expr)
	}

	env.g.DispatchCommand(env.ada, "@lock rock = ((")
	if !env.out[env.ada].contains("I don't understand that key.") {
		t.Error("malformed lock accepted")
	}
	if expr, _ := env.g.DB.GetLock(rock, gamedb.LockDefault); expr != "WIZARD|#2" {
		t.Error("malformed lock overwrote the stored one")
	}

	env.g.DispatchCommand(env.ada, "@unlock rock")
	if _, ok := env.g.DB.GetLock(rock, gamedb.LockDefault); ok {
		t.Error("unlock left the lock in place")
	}
}

func TestDestroyCommand(t *testing.T) {
	env := newTestEnv(t)
	rock := env.thing(t, "rock")

	env.g.DispatchCommand(env.ada, "@destroy rock")
	if env.g.DB.Resolve(rock) != gamedb.Nothing {
		t.Error("object survived @destroy")
	}

	safe := env.thing(t, "heirloom")
	env.g.DB.SetFlag(safe, gamedb.FlagSafe, true)
	env.g.DispatchCommand(env.ada, "@destroy heirloom")
	if env.g.DB.Resolve(safe) == gamedb.Nothing {
		t.Error("SAFE object destroyed")
	}

	env.g.DispatchCommand(env.ada, "@destroy Bea")
	if env.g.DB.Resolve(env.bea) == gamedb.Nothing {
		t.Error("player destroyed")
	}
}

func TestTeleportByWizard(t *testing.T) {
	env := newTestEnv(t)
	env.g.DispatchCommand(env.god, "@dig Aerie")
	aerie := env.g.DB.Query(func(o *gamedb.Object) bool { return o.Name == "Aerie" })[0]

	env.g.DispatchCommand(env.god, fmt.Sprintf("@tel *Ada = #%d", aerie))
	if env.g.DB.Location(env.ada) != aerie {
		t.Errorf("Ada at #%d, want the aerie", env.g.DB.Location(env.ada))
	}
}

func TestPageRequiresConnection(t *testing.T) {
	env := newTestEnv(t)
	env.g.DispatchCommand(env.ada, "page Bea = are you there?")
	if !env.out[env.ada].contains("Bea is not connected.") {
		t.Errorf("got %q", env.out[env.ada].last())
	}

	env.g.PlayerConnected(env.bea)
	env.resetAll()
	env.g.DispatchCommand(env.ada, "page Bea = are you there?")
	if !env.out[env.bea].contains("Ada pages: are you there?") {
		t.Error("page not delivered")
	}
	if !env.out[env.ada].contains("You paged Bea") {
		t.Error("no confirmation to sender")
	}
}

func TestTriggerCommand(t *testing.T) {
	env := newTestEnv(t)
	rock := env.thing(t, "rock")
	env.g.DB.SetAttr(rock, "GREET", "[pemit(%#,Hello %n!)]")

	env.g.DispatchCommand(env.ada, "@trigger rock/greet = ignored")
	if !env.out[env.ada].contains("Hello Ada!") {
		t.Errorf("trigger output missing: %q", env.out[env.ada].last())
	}
	if !env.out[env.ada].contains("Triggered.") {
		t.Error("no confirmation")
	}

	env.g.DispatchCommand(env.ada, "@trigger rock/missing")
	if !env.out[env.ada].contains("No such attribute.") {
		t.Error("missing attribute not reported")
	}
}

func TestLookShowsRoomAndContents(t *testing.T) {
	env := newTestEnv(t)
	env.thing(t, "fountain")
	env.g.DispatchCommand(env.ada, "look")
	got := env.out[env.ada].last()
	if !strings.Contains(got, "Limbo") {
		t.Errorf("look missing room name: %q", got)
	}
	if !strings.Contains(got, "fountain") {
		t.Errorf("look missing contents: %q", got)
	}
	if !strings.Contains(got, "floating in a featureless void") {
		t.Errorf("look missing description: %q", got)
	}
}

func TestUseCommandFiresTrigger(t *testing.T) {
	env := newTestEnv(t)
	lever := env.thing(t, "lever")
	env.g.DB.SetAttr(lever, TriggerUse, "[pemit(%#,Clunk.)]")

	env.g.DispatchCommand(env.ada, "use lever")
	if !env.out[env.ada].contains("Clunk.") {
		t.Error("use trigger did not fire")
	}

	env.g.DB.SetLock(lever, gamedb.LockUse, "WIZARD")
	env.resetAll()
	env.g.DispatchCommand(env.ada, "use lever")
	if env.out[env.ada].contains("Clunk.") {
		t.Error("use lock ignored")
	}
}

func TestEnterAndLeave(t *testing.T) {
	env := newTestEnv(t)
	box := env.thing(t, "crate")
	env.g.DB.SetFlag(box, gamedb.FlagEnterOK, true)

	env.g.DispatchCommand(env.ada, "enter crate")
	if env.g.DB.Location(env.ada) != box {
		t.Fatalf("Ada at #%d, want the crate", env.g.DB.Location(env.ada))
	}

	env.g.DispatchCommand(env.ada, "leave")
	if env.g.DB.Location(env.ada) != env.room {
		t.Errorf("Ada at #%d after leave", env.g.DB.Location(env.ada))
	}

	env.g.DispatchCommand(env.ada, "leave")
	if !env.out[env.ada].contains("You can't leave from here.") {
		t.Error("leave from a room not refused")
	}
}

func TestEnterRequiresEnterOKOrControl(t *testing.T) {
	env := newTestEnv(t)
	box := env.thing(t, "crate")

	// Bea neither controls the crate nor finds it ENTER_OK.
	env.g.DispatchCommand(env.bea, "enter crate")
	if env.g.DB.Location(env.bea) == box {
		t.Error("Bea entered a closed crate")
	}
	if !env.out[env.bea].contains("You can't enter that.") {
		t.Errorf("got %q", env.out[env.bea].last())
	}

	// The owner may enter regardless of ENTER_OK.
	env.g.DispatchCommand(env.ada, "enter crate")
	if env.g.DB.Location(env.ada) != box {
		t.Error("owner refused entry to their own crate")
	}
}

func TestEnterLock(t *testing.T) {
	env := newTestEnv(t)
	box := env.thing(t, "crate")
	env.g.DB.SetFlag(box, gamedb.FlagEnterOK, true)
	env.g.DB.SetLock(box, gamedb.LockEnter, "WIZARD")

	env.g.DispatchCommand(env.bea, "enter crate")
	if env.g.DB.Location(env.bea) == box {
		t.Error("enter lock ignored")
	}
}

func TestGiveTransfersPennies(t *testing.T) {
	env := newTestEnv(t)
	env.g.DB.AddPennies(env.ada, 100)

	env.g.DispatchCommand(env.ada, "give Bea = 30")
	if got := env.g.DB.Pennies(env.ada); got != 70 {
		t.Errorf("giver has %d pennies", got)
	}
	if got := env.g.DB.Pennies(env.bea); got != 30 {
		t.Errorf("recipient has %d pennies", got)
	}
	if !env.out[env.bea].contains("Ada gives you 30 pennies.") {
		t.Error("recipient not told")
	}

	env.g.DispatchCommand(env.ada, "give Bea = 500")
	if !env.out[env.ada].contains("You don't have that many pennies.") {
		t.Error("overdraft allowed")
	}
	env.g.DispatchCommand(env.ada, "give Bea = -5")
	if got := env.g.DB.Pennies(env.bea); got != 30 {
		t.Errorf("negative give changed balance to %d", got)
	}
}

func TestSpeechLockSilencesRoom(t *testing.T) {
	env := newTestEnv(t)
	env.g.DB.SetLock(env.room, gamedb.LockSpeech, "WIZARD")

	env.g.DispatchCommand(env.ada, `"can anyone hear me?`)
	if !env.out[env.ada].contains("You can't speak here.") {
		t.Errorf("got %q", env.out[env.ada].last())
	}
	if env.out[env.bea].contains("can anyone hear me?") {
		t.Error("locked speech was delivered")
	}

	env.g.DispatchCommand(env.god, `"order in the court`)
	if !env.out[env.bea].contains("order in the court") {
		t.Error("wizard speech blocked")
	}
}

func TestStatsCountsByKind(t *testing.T) {
	env := newTestEnv(t)
	env.thing(t, "rock")
	env.g.DispatchCommand(env.ada, "@stats")
	want := "5 objects = 1 rooms, 0 exits, 1 things, 3 players."
	if got := env.out[env.ada].last(); got != want {
		t.Errorf("@stats = %q, want %q", got, want)
	}
}

func TestFindListsOwnedObjects(t *testing.T) {
	env := newTestEnv(t)
	rock := env.thing(t, "rock")
	env.thing(t, "pebble")

	env.g.DispatchCommand(env.ada, "@find rock")
	got := env.out[env.ada].last()
	if !strings.Contains(got, fmt.Sprintf("rock(#%d)", rock)) {
		t.Errorf("@find output %q", got)
	}
	if strings.Contains(got, "pebble") {
		t.Error("@find matched a non-matching name")
	}
	if !strings.Contains(got, "*** 1 found ***") {
		t.Errorf("@find count line missing: %q", got)
	}

	env.g.DispatchCommand(env.ada, "@find xyzzy")
	if !env.out[env.ada].contains("Nothing found.") {
		t.Error("no-match case not reported")
	}
}

func TestShortArgBuiltinsReturnSentinels(t *testing.T) {
	env := newTestEnv(t)
	env.g.DispatchCommand(env.ada, "think [if(1)]")
	want := "#-1 FUNCTION (IF) EXPECTS AT LEAST 2 ARGUMENTS BUT GOT 1"
	if got := env.out[env.ada].last(); got != want {
		t.Errorf("think [if(1)] = %q, want %q", got, want)
	}

	env.g.DispatchCommand(env.ada, "think [iter(a b c)]")
	if !env.out[env.ada].contains("EXPECTS AT LEAST 2 ARGUMENTS") {
		t.Errorf("got %q", env.out[env.ada].last())
	}
}

func TestMalformedStoredLockDeniesAndWarnsOwner(t *testing.T) {
	env := newTestEnv(t)
	rock := env.thing(t, "rock")
	// Bypasses @lock validation the way a corrupted import would.
	env.g.DB.SetLock(rock, gamedb.LockDefault, "((")

	env.g.DispatchCommand(env.bea, "get rock")
	if env.g.DB.Location(rock) != env.room {
		t.Error("malformed lock permitted a pickup")
	}
	if !env.out[env.bea].contains("You can't pick that up.") {
		t.Errorf("got %q", env.out[env.bea].last())
	}
	warning := fmt.Sprintf("Warning: the default lock on rock(#%d) is malformed", rock)
	if !env.out[env.ada].contains(warning) {
		t.Error("owner not warned about the malformed lock")
	}
}

func TestConnectionBookkeeping(t *testing.T) {
	env := newTestEnv(t)
	env.g.PlayerConnected(env.ada)
	if !env.out[env.bea].contains("Ada has connected.") {
		t.Error("connect not announced")
	}
	if !env.g.IsConnected(env.ada) {
		t.Error("IsConnected false after connect")
	}

	// A second connection for the same player announces nothing.
	env.resetAll()
	env.g.PlayerConnected(env.ada)
	if env.out[env.bea].contains("has connected") {
		t.Error("second connection announced")
	}
	if env.g.ConnectionCount() != 1 {
		t.Errorf("ConnectionCount = %d", env.g.ConnectionCount())
	}

	env.g.PlayerDisconnected(env.ada)
	if !env.g.IsConnected(env.ada) {
		t.Error("player dropped while a connection remains")
	}
	env.g.PlayerDisconnected(env.ada)
	if env.g.IsConnected(env.ada) {
		t.Error("IsConnected true after last disconnect")
	}
	if !env.out[env.bea].contains("Ada has disconnected.") {
		t.Error("disconnect not announced")
	}
}
