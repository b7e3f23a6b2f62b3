package server

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kochj23/webmush/pkg/eval"
)

// SQLStore manages the SQLite database softcode can query with sql()
// and wizards with @sql.
type SQLStore struct {
	mu         sync.Mutex
	db         *sql.DB
	path       string
	queryLimit int
	timeout    time.Duration
}

// OpenSQLStore opens a SQLite database in WAL mode with a busy timeout.
func OpenSQLStore(path string, queryLimit, timeoutSec int) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d", timeoutSec*1000)); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if queryLimit <= 0 {
		queryLimit = 100
	}
	return &SQLStore{
		db:         db,
		path:       path,
		queryLimit: queryLimit,
		timeout:    time.Duration(timeoutSec) * time.Second,
	}, nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the filesystem path of the SQLite database.
func (s *SQLStore) Path() string { return s.path }

// Query executes SQL and returns results as delimited text. SELECT rows
// are joined by rowDelim with fields separated by fieldDelim; other
// statements return the affected row count.
func (s *SQLStore) Query(query, rowDelim, fieldDelim string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return "", fmt.Errorf("sql not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	trimmed := strings.TrimSpace(query)
	if !strings.HasPrefix(strings.ToUpper(trimmed), "SELECT") {
		result, err := s.db.ExecContext(ctx, trimmed)
		if err != nil {
			return "", err
		}
		affected, _ := result.RowsAffected()
		return fmt.Sprintf("%d", affected), nil
	}

	rows, err := s.db.QueryContext(ctx, trimmed)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", err
	}

	var out []string
	for rows.Next() {
		if len(out) >= s.queryLimit {
			break
		}
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return "", err
		}
		fields := make([]string, len(cols))
		for i, v := range values {
			if v != nil {
				fields[i] = fmt.Sprintf("%v", v)
			}
		}
		out = append(out, strings.Join(fields, fieldDelim))
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return strings.Join(out, rowDelim), nil
}

// Escape doubles single quotes for safe interpolation into literals.
func (s *SQLStore) Escape(input string) string {
	return strings.ReplaceAll(input, "'", "''")
}

// registerSQLFns binds the sql() and sqlescape() softcode functions to
// this game's SQL store. Wizard-only; absent configuration degrades to
// an error sentinel.
func registerSQLFns(g *Game) {
	g.Funcs.Register("sql", func(ctx *eval.Context, args []string, buf *strings.Builder) {
		if g.SQL == nil {
			buf.WriteString("#-1 SQL NOT CONFIGURED")
			return
		}
		if !g.isWizard(ctx.DB.Owner(ctx.Executor)) {
			buf.WriteString("#-1 PERMISSION DENIED")
			return
		}
		rowDelim := " "
		fieldDelim := " "
		if len(args) > 1 && args[1] != "" {
			rowDelim = args[1]
		}
		if len(args) > 2 && args[2] != "" {
			fieldDelim = args[2]
		}
		out, err := g.SQL.Query(args[0], rowDelim, fieldDelim)
		if err != nil {
			buf.WriteString("#-1 SQL ERROR")
			return
		}
		buf.WriteString(out)
	}, -1, eval.FnVarArgs)

	g.Funcs.Register("sqlescape", func(_ *eval.Context, args []string, buf *strings.Builder) {
		if g.SQL == nil {
			buf.WriteString("#-1 SQL NOT CONFIGURED")
			return
		}
		buf.WriteString(g.SQL.Escape(args[0]))
	}, 1, 0)
}
