// Command server runs the WebMUSH game server: it loads or bootstraps
// the world database, starts the checkpoint loop, and serves the
// HTTP/WebSocket gateway.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/kochj23/webmush/pkg/boltstore"
	"github.com/kochj23/webmush/pkg/server"
)

func main() {
	configPath := flag.String("config", "webmush.yaml", "path to config file")
	devLog := flag.Bool("dev", false, "human-readable log output")
	flag.Parse()

	var log *zap.Logger
	var err error
	if *devLog {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := server.LoadConfig(*configPath)
	if err != nil {
		log.Fatal("config load failed", zap.Error(err))
	}

	store, err := boltstore.Open(cfg.DatabasePath, log)
	if err != nil {
		log.Fatal("database open failed", zap.Error(err))
	}
	defer store.Close()

	db, err := store.LoadAll()
	if err != nil {
		log.Fatal("database load failed", zap.Error(err))
	}

	game := server.NewGame(db, store, cfg, log)
	if err := game.Bootstrap(); err != nil {
		log.Fatal("bootstrap failed", zap.Error(err))
	}
	game.Metrics = server.NewMetrics(game)

	if cfg.SQLEnabled && cfg.SQLDatabase != "" {
		sqlStore, err := server.OpenSQLStore(cfg.SQLDatabase, cfg.SQLQueryLimit, cfg.SQLTimeout)
		if err != nil {
			log.Fatal("sql open failed", zap.Error(err))
		}
		defer sqlStore.Close()
		game.SQL = sqlStore
	}

	if err := server.WatchConfig(*configPath, log, game.ApplyConfig); err != nil {
		log.Warn("config watch unavailable", zap.Error(err))
	}

	stop := make(chan struct{})
	go game.RunCheckpoints(stop)

	jwtSecret := cfg.JWTSecret
	if jwtSecret == "" {
		jwtSecret = server.GenerateJWTSecret()
		log.Warn("jwt_secret not set; sessions will not survive restart")
	}
	auth := server.NewAuthService(game, jwtSecret, cfg.JWTExpiry)
	web := server.NewWebServer(game, auth)

	errCh := make(chan error, 1)
	go func() { errCh <- web.ListenAndServe(cfg.WebAddr) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	game.OnShutdown = func() {
		sigCh <- syscall.SIGTERM
	}

	select {
	case sig := <-sigCh:
		log.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("gateway failed", zap.Error(err))
	}

	close(stop)
	if err := game.Checkpoint(); err != nil {
		log.Error("final checkpoint failed", zap.Error(err))
	}
}
