package server

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Config holds server configuration, loaded from YAML.
type Config struct {
	MudName string `yaml:"mud_name"`

	// Key rooms.
	StartingRoom int `yaml:"starting_room"`
	GodRef       int `yaml:"god_ref"`

	// Economy.
	StartingMoney int `yaml:"starting_money"`

	// Evaluation budgets.
	FunctionNestLimit   int `yaml:"function_nest_limit"`
	FunctionInvokeLimit int `yaml:"function_invoke_limit"`

	// Persistence.
	DatabasePath       string `yaml:"database_path"`
	CheckpointInterval int    `yaml:"checkpoint_interval"` // seconds, 0 disables
	BackupDir          string `yaml:"backup_dir"`

	// Web gateway.
	WebAddr     string   `yaml:"web_addr"`
	CORSOrigins []string `yaml:"cors_origins"`
	JWTSecret   string   `yaml:"jwt_secret"` // auto-generated if empty
	JWTExpiry   int      `yaml:"jwt_expiry"` // seconds

	// SQL sidecar for softcode sql().
	SQLEnabled    bool   `yaml:"sql_enabled"`
	SQLDatabase   string `yaml:"sql_database"`
	SQLQueryLimit int    `yaml:"sql_query_limit"`
	SQLTimeout    int    `yaml:"sql_timeout"` // seconds
}

// DefaultConfig returns a Config with usable defaults for a fresh world.
func DefaultConfig() *Config {
	return &Config{
		MudName:             "WebMUSH",
		StartingRoom:        0,
		GodRef:              1,
		StartingMoney:       150,
		FunctionNestLimit:   50,
		FunctionInvokeLimit: 2500,
		DatabasePath:        "world.db",
		CheckpointInterval:  300,
		BackupDir:           "backups",
		WebAddr:             ":8080",
		JWTExpiry:           86400,
		SQLEnabled:          false,
		SQLQueryLimit:       100,
		SQLTimeout:          5,
	}
}

// LoadConfig reads a YAML config file over the defaults. A missing file
// is not an error; the defaults stand.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// WatchConfig re-reads the file on change and hands the result to apply.
// Runtime-tunable settings (budgets, mud name) take effect live; the
// rest apply at next boot. The watcher runs until the process exits.
func WatchConfig(path string, log *zap.Logger, apply func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("config: watch %s: %w", path, err)
	}

	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Name != path || !ev.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				cfg, err := LoadConfig(path)
				if err != nil {
					log.Warn("config reload failed", zap.Error(err))
					continue
				}
				log.Info("config reloaded", zap.String("path", path))
				apply(cfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn("config watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}
