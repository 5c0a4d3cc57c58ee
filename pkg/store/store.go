// Package store defines the row store gateway: a uniform execute(sql, args) -> rows
// capability over a remote SQL engine, plus the wire envelope it speaks.
package store

import (
	"context"
	"fmt"

	"github.com/Zerofisher/megatable/pkg/model"
)

// Row is a single result row keyed by column name.
// Column order of the engine's response is not preserved; look values up by name.
type Row map[string]any

// Result holds the rows returned by one statement.
type Result struct {
	Columns []string
	Rows    []Row
}

// Executor runs one parameterized statement against the row store.
// Arguments are bound positionally to '?' placeholders.
type Executor interface {
	Execute(ctx context.Context, sql string, args ...any) (*Result, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, sql string, args ...any) (*Result, error)

// Execute calls f(ctx, sql, args...).
func (f ExecutorFunc) Execute(ctx context.Context, sql string, args ...any) (*Result, error) {
	return f(ctx, sql, args...)
}

// ────────────────────────────────────────────────────────────────────────────────
// Schema
// ────────────────────────────────────────────────────────────────────────────────

// SchemaStatements create the records table and the name/email indexes.
// The indexes only help prefix matches; substring search still scans.
var SchemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS ` + model.Table + ` (
	id         TEXT PRIMARY KEY,
	name       TEXT,
	email      TEXT,
	role       TEXT,
	department TEXT,
	status     TEXT,
	location   TEXT,
	salary     INTEGER,
	bio        TEXT
)`,
	`CREATE INDEX IF NOT EXISTS idx_users_name ON ` + model.Table + `(name)`,
	`CREATE INDEX IF NOT EXISTS idx_users_email ON ` + model.Table + `(email)`,
}

// EnsureSchema creates the table and indexes if they do not exist yet.
func EnsureSchema(ctx context.Context, exec Executor) error {
	for _, stmt := range SchemaStatements {
		if _, err := exec.Execute(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
