// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Zerofisher/megatable/pkg/model"
	"github.com/Zerofisher/megatable/pkg/store"
	"github.com/Zerofisher/megatable/pkg/store/sqlite"
)

// NewStore opens a schema-initialized SQLite store in a temp dir.
func NewStore(t testing.TB) *sqlite.SQLiteStore {
	t.Helper()
	s, err := sqlite.New(sqlite.Config{DBPath: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// Insert upserts records one statement at a time.
func Insert(t testing.TB, exec store.Executor, records ...model.Record) {
	t.Helper()
	for _, r := range records {
		_, err := exec.Execute(context.Background(),
			"INSERT OR REPLACE INTO users ("+model.ColumnList(model.Columns)+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
			r.Values()...)
		require.NoError(t, err)
	}
}

// Records builds n records with ids "u0001".."u<n>".
func Records(n int) []model.Record {
	out := make([]model.Record, n)
	for i := range out {
		out[i] = Record(fmt.Sprintf("u%04d", i+1), fmt.Sprintf("User %d", i+1))
	}
	return out
}

// Record builds a fully populated record.
func Record(id, name string) model.Record {
	return model.Record{
		ID:         id,
		Name:       name,
		Email:      id + "@example.com",
		Role:       "Engineer",
		Department: "Platform",
		Status:     "active",
		Location:   "Berlin",
		Salary:     model.Int64(100000),
		Bio:        model.String("Bio of " + name),
	}
}

// CountRows returns the number of rows in the records table.
func CountRows(t testing.TB, s *sqlite.SQLiteStore) int {
	t.Helper()
	var n int
	require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM users").Scan(&n))
	return n
}

// FlakyExecutor fails statements according to a per-key plan before delegating.
// Key derives the plan key from the statement's arguments (e.g. the first id).
type FlakyExecutor struct {
	Inner    store.Executor
	Failures map[string]int // key -> number of leading failures
	Key      func(args []any) string

	mu       sync.Mutex
	attempts map[string]int

	inFlight    atomic.Int64
	MaxInFlight atomic.Int64
}

// Execute implements store.Executor.
func (f *FlakyExecutor) Execute(ctx context.Context, sql string, args ...any) (*store.Result, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.MaxInFlight.Load()
		if n <= cur || f.MaxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}

	key := ""
	if f.Key != nil {
		key = f.Key(args)
	}

	f.mu.Lock()
	if f.attempts == nil {
		f.attempts = make(map[string]int)
	}
	f.attempts[key]++
	attempt := f.attempts[key]
	f.mu.Unlock()

	if attempt <= f.Failures[key] {
		return nil, &store.RemoteQueryError{Message: fmt.Sprintf("injected failure %d for %s", attempt, key)}
	}
	return f.Inner.Execute(ctx, sql, args...)
}

// Attempts returns how many times key was executed.
func (f *FlakyExecutor) Attempts(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[key]
}

// FirstArg keys statements by their first positional argument.
func FirstArg(args []any) string {
	if len(args) == 0 {
		return ""
	}
	return fmt.Sprint(args[0])
}
