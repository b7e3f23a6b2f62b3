package gamedb

import (
	"errors"
	"sync"
	"testing"
)

// newTestWorld builds a small world: two rooms, a player, a thing the
// player carries, and an exit from hall to vault.
func newTestWorld(t *testing.T) (db *Database, hall, vault, player, orb, door DBRef) {
	t.Helper()
	db = NewDatabase()
	var err error
	hall, err = db.Create(KindRoom, "Hall", Nothing, Nothing)
	if err != nil {
		t.Fatalf("create hall: %v", err)
	}
	vault, err = db.Create(KindRoom, "Vault", Nothing, Nothing)
	if err != nil {
		t.Fatalf("create vault: %v", err)
	}
	player, err = db.Create(KindPlayer, "Ada", Nothing, hall)
	if err != nil {
		t.Fatalf("create player: %v", err)
	}
	orb, err = db.Create(KindThing, "Orb", player, player)
	if err != nil {
		t.Fatalf("create orb: %v", err)
	}
	door, err = db.Create(KindExit, "east;e", player, hall)
	if err != nil {
		t.Fatalf("create door: %v", err)
	}
	if err := db.LinkExit(door, vault); err != nil {
		t.Fatalf("link door: %v", err)
	}
	return db, hall, vault, player, orb, door
}

func contains(list []DBRef, ref DBRef) bool {
	for _, r := range list {
		if r == ref {
			return true
		}
	}
	return false
}

func TestCreateAssignsMonotonicRefs(t *testing.T) {
	db := NewDatabase()
	a, _ := db.Create(KindRoom, "A", Nothing, Nothing)
	b, _ := db.Create(KindRoom, "B", Nothing, Nothing)
	if b != a+1 {
		t.Errorf("expected sequential refs, got %d then %d", a, b)
	}
}

func TestCreateRulesByKind(t *testing.T) {
	db := NewDatabase()
	room, _ := db.Create(KindRoom, "Room", Nothing, Nothing)

	if _, err := db.Create(KindThing, "Lost", Nothing, Nothing); err == nil {
		t.Error("thing with no container should fail")
	}
	if _, err := db.Create(KindThing, "Found", Nothing, room); err != nil {
		t.Errorf("thing in room should succeed: %v", err)
	}
	if _, err := db.Create(KindExit, "out", Nothing, Nothing); err == nil {
		t.Error("exit with no source room should fail")
	}
}

func TestMoveUpdatesBothContainers(t *testing.T) {
	db, hall, vault, player, _, _ := newTestWorld(t)

	if err := db.Move(player, vault); err != nil {
		t.Fatalf("move: %v", err)
	}
	if db.Location(player) != vault {
		t.Errorf("location = %d, want %d", db.Location(player), vault)
	}
	if contains(db.Contents(hall), player) {
		t.Error("player still listed in old room")
	}
	if !contains(db.Contents(vault), player) {
		t.Error("player missing from new room")
	}
}

func TestMoveRejectsCycles(t *testing.T) {
	db := NewDatabase()
	room, _ := db.Create(KindRoom, "Room", Nothing, Nothing)
	outer, _ := db.Create(KindThing, "Outer", Nothing, room)
	inner, _ := db.Create(KindThing, "Inner", Nothing, outer)

	if err := db.Move(outer, outer); !errors.Is(err, ErrCycle) {
		t.Errorf("self-containment: got %v, want ErrCycle", err)
	}
	if err := db.Move(outer, inner); !errors.Is(err, ErrCycle) {
		t.Errorf("ancestor into descendant: got %v, want ErrCycle", err)
	}
	// State must be unchanged after the rejection.
	if db.Location(outer) != room {
		t.Errorf("outer moved despite rejection: at %d", db.Location(outer))
	}
	if !contains(db.Contents(room), outer) {
		t.Error("room contents changed despite rejection")
	}
}

func TestMoveRejectsDeepCycle(t *testing.T) {
	db := NewDatabase()
	room, _ := db.Create(KindRoom, "Room", Nothing, Nothing)
	chain := make([]DBRef, 10)
	parent := room
	for i := range chain {
		ref, err := db.Create(KindThing, "Box", Nothing, parent)
		if err != nil {
			t.Fatalf("create box %d: %v", i, err)
		}
		chain[i] = ref
		parent = ref
	}
	if err := db.Move(chain[0], chain[len(chain)-1]); !errors.Is(err, ErrCycle) {
		t.Errorf("deep cycle: got %v, want ErrCycle", err)
	}
}

func TestDestroyRefusesNonEmptyThing(t *testing.T) {
	db := NewDatabase()
	room, _ := db.Create(KindRoom, "Room", Nothing, Nothing)
	bag, _ := db.Create(KindThing, "Bag", Nothing, room)
	coin, _ := db.Create(KindThing, "Coin", Nothing, bag)

	if err := db.Destroy(bag); !errors.Is(err, ErrHasContents) {
		t.Errorf("destroy non-empty: got %v, want ErrHasContents", err)
	}
	if db.Resolve(coin) == Nothing {
		t.Error("contents destroyed despite rejection")
	}
}

func TestDestroyRoomSendsContentsHome(t *testing.T) {
	db, hall, vault, player, _, _ := newTestWorld(t)
	if err := db.SetHome(player, hall); err != nil {
		t.Fatalf("set home: %v", err)
	}
	if err := db.Move(player, vault); err != nil {
		t.Fatalf("move: %v", err)
	}

	if err := db.Destroy(vault); err != nil {
		t.Fatalf("destroy room: %v", err)
	}
	if db.Location(player) != hall {
		t.Errorf("player at %d after room destroy, want home %d", db.Location(player), hall)
	}
}

func TestDestroyedRefsNeverReused(t *testing.T) {
	db, _, _, player, orb, _ := newTestWorld(t)

	if err := db.Destroy(orb); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if db.Resolve(orb) != Nothing {
		t.Error("destroyed ref still resolves")
	}
	if contains(db.Contents(player), orb) {
		t.Error("destroyed ref still in container")
	}

	next, err := db.Create(KindThing, "New", player, player)
	if err != nil {
		t.Fatalf("create after destroy: %v", err)
	}
	if next == orb {
		t.Error("destroyed ref was reissued")
	}
}

func TestSendHome(t *testing.T) {
	db, hall, vault, player, _, _ := newTestWorld(t)
	db.SetHome(player, vault)
	if err := db.SendHome(player); err != nil {
		t.Fatalf("send home: %v", err)
	}
	if db.Location(player) != vault {
		t.Errorf("player at %d, want home %d", db.Location(player), vault)
	}
	_ = hall
}

func TestExitNameAndDestination(t *testing.T) {
	db, hall, vault, _, _, door := newTestWorld(t)
	if db.Location(door) != hall {
		t.Errorf("exit source = %d, want %d", db.Location(door), hall)
	}
	if db.Destination(door) != vault {
		t.Errorf("exit destination = %d, want %d", db.Destination(door), vault)
	}
	if name := db.Name(door); name != "east;e" {
		t.Errorf("exit name = %q", name)
	}
}

func TestQuery(t *testing.T) {
	db, _, _, player, _, _ := newTestWorld(t)
	players := db.Query(func(o *Object) bool { return o.Kind == KindPlayer })
	if len(players) != 1 || players[0] != player {
		t.Errorf("query players = %v, want [%d]", players, player)
	}
}

func TestParseRef(t *testing.T) {
	db, hall, _, _, _, _ := newTestWorld(t)
	if ref := db.ParseRef("#0"); ref != hall {
		t.Errorf("ParseRef(#0) = %d, want %d", ref, hall)
	}
	if ref := db.ParseRef("#9999"); ref != Nothing {
		t.Errorf("ParseRef of missing = %d, want Nothing", ref)
	}
	if ref := db.ParseRef("bogus"); ref != Nothing {
		t.Errorf("ParseRef of garbage = %d, want Nothing", ref)
	}
}

func TestConcurrentMovesKeepContainmentConsistent(t *testing.T) {
	db := NewDatabase()
	roomA, _ := db.Create(KindRoom, "A", Nothing, Nothing)
	roomB, _ := db.Create(KindRoom, "B", Nothing, Nothing)

	const movers = 8
	things := make([]DBRef, movers)
	for i := range things {
		things[i], _ = db.Create(KindThing, "Thing", Nothing, roomA)
	}

	var wg sync.WaitGroup
	for _, ref := range things {
		wg.Add(1)
		go func(ref DBRef) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				dest := roomA
				if i%2 == 0 {
					dest = roomB
				}
				if err := db.Move(ref, dest); err != nil {
					t.Errorf("move #%d: %v", ref, err)
					return
				}
			}
		}(ref)
	}
	wg.Wait()

	// Every thing is in exactly one room and the contents agree.
	seen := 0
	for _, ref := range things {
		loc := db.Location(ref)
		if loc != roomA && loc != roomB {
			t.Errorf("thing #%d in unexpected location %d", ref, loc)
		}
		if contains(db.Contents(roomA), ref) && contains(db.Contents(roomB), ref) {
			t.Errorf("thing #%d in both rooms", ref)
		}
		if contains(db.Contents(loc), ref) {
			seen++
		}
	}
	if seen != movers {
		t.Errorf("containment out of sync: %d of %d things listed", seen, movers)
	}
}
