// Package server hosts the running game: the command dispatcher, the
// WebSocket gateway, authentication, triggers, and the wiring between
// the world database, the evaluator, and persistence.
package server

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kochj23/webmush/pkg/boltstore"
	"github.com/kochj23/webmush/pkg/eval"
	"github.com/kochj23/webmush/pkg/eval/functions"
	"github.com/kochj23/webmush/pkg/events"
	"github.com/kochj23/webmush/pkg/gamedb"
)

// Game is the top-level server state. One Game serves all connections.
type Game struct {
	DB    *gamedb.Database
	Store *boltstore.Store
	SQL   *SQLStore
	Bus   *events.Bus
	Funcs *eval.Registry
	Conf  *Config
	Log   *zap.Logger

	Metrics *Metrics

	// OnShutdown, when set, is invoked after @shutdown checkpoints.
	OnShutdown func()

	mu        sync.RWMutex
	connected map[gamedb.DBRef]int // player -> live connection count
	startTime time.Time

	commands map[string]*Command
}

// NewGame assembles a game around an already-loaded database. store and
// sqlStore may be nil (tests run without persistence).
func NewGame(db *gamedb.Database, store *boltstore.Store, cfg *Config, log *zap.Logger) *Game {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = zap.NewNop()
	}
	funcs := eval.NewRegistry()
	functions.RegisterAll(funcs)

	g := &Game{
		DB:        db,
		Store:     store,
		Bus:       events.NewBus(),
		Funcs:     funcs,
		Conf:      cfg,
		Log:       log,
		connected: make(map[gamedb.DBRef]int),
		startTime: time.Now(),
	}
	registerSQLFns(g)
	g.InitCommands()
	return g
}

// Bootstrap seeds an empty database with the starting room and the God
// player, matching the refs the default config points at.
func (g *Game) Bootstrap() error {
	if g.DB.Size() > 0 {
		return nil
	}
	room, err := g.DB.Create(gamedb.KindRoom, "Limbo", gamedb.Nothing, gamedb.Nothing)
	if err != nil {
		return err
	}
	g.DB.SetAttr(room, "DESC", "You are floating in a featureless void.")

	god, err := g.DB.Create(gamedb.KindPlayer, "God", gamedb.Nothing, room)
	if err != nil {
		return err
	}
	g.DB.SetFlag(god, gamedb.FlagGod, true)
	g.DB.SetFlag(god, gamedb.FlagWizard, true)
	g.DB.AddPennies(god, g.Conf.StartingMoney)

	g.Log.Info("world bootstrapped",
		zap.Int("starting_room", int(room)),
		zap.Int("god", int(god)))
	return nil
}

// ApplyConfig folds in runtime-tunable settings from a reloaded config.
func (g *Game) ApplyConfig(cfg *Config) {
	g.mu.Lock()
	g.Conf.MudName = cfg.MudName
	g.Conf.FunctionNestLimit = cfg.FunctionNestLimit
	g.Conf.FunctionInvokeLimit = cfg.FunctionInvokeLimit
	g.Conf.CheckpointInterval = cfg.CheckpointInterval
	g.mu.Unlock()
}

// StartingRoom returns the configured spawn room.
func (g *Game) StartingRoom() gamedb.DBRef {
	if ref := g.DB.Resolve(gamedb.DBRef(g.Conf.StartingRoom)); ref != gamedb.Nothing {
		return ref
	}
	return gamedb.DBRef(0)
}

// NewEvalContext builds an evaluation context with the game's budgets
// and connection info wired in.
func (g *Game) NewEvalContext(executor, enactor gamedb.DBRef) *eval.Context {
	ctx := eval.NewContext(g.DB, g.Funcs, executor, enactor)
	ctx.Info = g
	if g.Conf.FunctionNestLimit > 0 {
		ctx.NestLimit = g.Conf.FunctionNestLimit
	}
	if g.Conf.FunctionInvokeLimit > 0 {
		ctx.InvokeLimit = g.Conf.FunctionInvokeLimit
	}
	return ctx
}

// --- eval.GameInfo ---

// ConnectedPlayers returns the refs of all players with a live connection.
func (g *Game) ConnectedPlayers() []gamedb.DBRef {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]gamedb.DBRef, 0, len(g.connected))
	for ref := range g.connected {
		out = append(out, ref)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IsConnected reports whether a player has at least one live connection.
func (g *Game) IsConnected(player gamedb.DBRef) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.connected[player] > 0
}

// MudName returns the configured game name.
func (g *Game) MudName() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.Conf.MudName
}

// StartTime returns when the server came up.
func (g *Game) StartTime() time.Time { return g.startTime }

// --- connection bookkeeping ---

// PlayerConnected records a new live connection for a player and
// announces the first one to the player's room.
func (g *Game) PlayerConnected(player gamedb.DBRef) {
	g.mu.Lock()
	g.connected[player]++
	first := g.connected[player] == 1
	g.mu.Unlock()

	if g.Metrics != nil {
		g.Metrics.ConnectionOpened()
	}
	if first {
		loc := g.DB.Location(player)
		g.Bus.EmitToRoomExcept(g.DB, loc, player, events.Event{
			Type:   events.EvConnect,
			Source: player,
			Text:   g.DB.Name(player) + " has connected.",
		})
	}
}

// PlayerDisconnected drops one live connection for a player.
func (g *Game) PlayerDisconnected(player gamedb.DBRef) {
	g.mu.Lock()
	g.connected[player]--
	last := g.connected[player] <= 0
	if last {
		delete(g.connected, player)
	}
	g.mu.Unlock()

	if last {
		loc := g.DB.Location(player)
		g.Bus.EmitToRoomExcept(g.DB, loc, player, events.Event{
			Type:   events.EvDisconnect,
			Source: player,
			Text:   g.DB.Name(player) + " has disconnected.",
		})
	}
}

// ConnectionCount returns the number of distinct connected players.
func (g *Game) ConnectionCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.connected)
}

// --- persistence ---

// Checkpoint writes the full world to the store.
func (g *Game) Checkpoint() error {
	if g.Store == nil {
		return nil
	}
	return g.Store.SaveAll(g.DB)
}

// RunCheckpoints checkpoints on the configured interval until stop is
// closed.
func (g *Game) RunCheckpoints(stop <-chan struct{}) {
	interval := time.Duration(g.Conf.CheckpointInterval) * time.Second
	if interval <= 0 || g.Store == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := g.Checkpoint(); err != nil {
				g.Log.Error("checkpoint failed", zap.Error(err))
			}
		case <-stop:
			return
		}
	}
}

// SaveObject write-throughs a single object after a mutation.
func (g *Game) SaveObject(ref gamedb.DBRef) {
	if g.Store == nil {
		return
	}
	snap, ok := g.DB.Snapshot(ref)
	if !ok {
		return
	}
	if err := g.Store.PutObject(snap); err != nil {
		g.Log.Error("write-through failed", zap.Int("ref", int(ref)), zap.Error(err))
	}
}
