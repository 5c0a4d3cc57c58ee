// Package sqlite provides a local SQLite implementation of store.Executor and an
// HTTP handler speaking the same statement protocol as the hosted engine. It backs
// `megatable store serve` for development and the end-to-end tests.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Zerofisher/megatable/pkg/store"
)

// Config holds configuration for the SQLite store.
type Config struct {
	// Path to the SQLite database file. ":memory:" keeps everything in memory.
	DBPath string

	// ReadOnly rejects writes at the connection level.
	ReadOnly bool

	// WAL enables WAL mode for better concurrency.
	WAL bool
}

// SQLiteStore is the SQLite implementation of store.Executor.
type SQLiteStore struct {
	db   *sql.DB
	path string
	cfg  Config
}

// New opens the database and, unless read-only, creates the records schema.
func New(cfg Config) (*SQLiteStore, error) {
	if cfg.DBPath != ":memory:" {
		dir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	dsn := cfg.DBPath + "?_busy_timeout=5000"
	if cfg.ReadOnly {
		dsn += "&_query_only=true"
	}
	if cfg.WAL {
		dsn += "&_journal_mode=WAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Single connection: SQLite serializes writers anyway, and ":memory:"
	// databases are per-connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{
		db:   db,
		path: cfg.DBPath,
		cfg:  cfg,
	}

	if !cfg.ReadOnly {
		if err := store.EnsureSchema(context.Background(), s); err != nil {
			db.Close()
			return nil, fmt.Errorf("init schema: %w", err)
		}
	}

	return s, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// DB returns the underlying database connection for direct queries.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Execute runs one statement and returns any rows it produces. Engine failures
// are reported as *store.RemoteQueryError, matching the remote gateway.
func (s *SQLiteStore) Execute(ctx context.Context, query string, args ...any) (*store.Result, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &store.RemoteQueryError{Message: err.Error()}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, &store.RemoteQueryError{Message: err.Error()}
	}

	res := &store.Result{Columns: cols, Rows: []store.Row{}}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &store.RemoteQueryError{Message: err.Error()}
		}

		row := make(store.Row, len(cols))
		for i, col := range cols {
			row[col] = normalize(values[i])
		}
		res.Rows = append(res.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &store.RemoteQueryError{Message: err.Error()}
	}
	return res, nil
}

// normalize converts driver values to JSON-friendly scalars.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
