package sqlite_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zerofisher/megatable/internal/testutil"
	"github.com/Zerofisher/megatable/pkg/model"
	"github.com/Zerofisher/megatable/pkg/store"
	"github.com/Zerofisher/megatable/pkg/store/remote"
	"github.com/Zerofisher/megatable/pkg/store/sqlite"
)

func TestExecute_SelectReturnsNamedColumns(t *testing.T) {
	s := testutil.NewStore(t)
	testutil.Insert(t, s, testutil.Record("u1", "Alice"))

	res, err := s.Execute(context.Background(), "SELECT email, id, salary FROM users WHERE id = ?", "u1")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, []string{"email", "id", "salary"}, res.Columns)
	assert.Equal(t, "u1", res.Rows[0]["id"])
	assert.Equal(t, "u1@example.com", res.Rows[0]["email"])
	assert.Equal(t, int64(100000), res.Rows[0]["salary"])
}

func TestExecute_UpsertReplacesRow(t *testing.T) {
	s := testutil.NewStore(t)
	first := testutil.Record("u1", "Alice")
	second := testutil.Record("u1", "Alicia")
	testutil.Insert(t, s, first, second)

	assert.Equal(t, 1, testutil.CountRows(t, s))
	res, err := s.Execute(context.Background(), "SELECT name FROM users WHERE id = ?", "u1")
	require.NoError(t, err)
	assert.Equal(t, "Alicia", res.Rows[0]["name"])
}

func TestExecute_EngineErrorIsRemoteQueryError(t *testing.T) {
	s := testutil.NewStore(t)

	_, err := s.Execute(context.Background(), "SELECT * FROM missing_table")
	var remoteErr *store.RemoteQueryError
	require.ErrorAs(t, err, &remoteErr)
	assert.Contains(t, remoteErr.Message, "missing_table")
	assert.True(t, store.IsRetryable(err))
}

func TestNew_ReadOnlyRejectsWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ro.db")
	rw, err := sqlite.New(sqlite.Config{DBPath: path})
	require.NoError(t, err)
	require.NoError(t, rw.Close())

	ro, err := sqlite.New(sqlite.Config{DBPath: path, ReadOnly: true})
	require.NoError(t, err)
	defer ro.Close()

	_, err = ro.Execute(context.Background(),
		"INSERT INTO users (id, name) VALUES (?, ?)", "u1", "Alice")
	assert.Error(t, err)
}

// ────────────────────────────────────────────────────────────────────────────────
// Protocol handler, exercised through the remote gateway
// ────────────────────────────────────────────────────────────────────────────────

func newGateway(t *testing.T, exec store.Executor, token string) *remote.Client {
	t.Helper()
	srv := httptest.NewServer(sqlite.NewHandler(exec, token, nil))
	t.Cleanup(srv.Close)

	c, err := remote.New(remote.Config{URL: srv.URL, Token: "secret"})
	require.NoError(t, err)
	return c
}

func TestHandler_RoundTrip(t *testing.T) {
	s := testutil.NewStore(t)
	gw := newGateway(t, s, "secret")
	ctx := context.Background()

	rec := testutil.Record("u1", "Alice")
	_, err := gw.Execute(ctx,
		"INSERT OR REPLACE INTO users ("+model.ColumnList(model.Columns)+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		rec.Values()...)
	require.NoError(t, err)

	res, err := gw.Execute(ctx, "SELECT id, salary, bio FROM users WHERE id = ?", "u1")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "u1", res.Rows[0]["id"])
	assert.Equal(t, "Bio of Alice", res.Rows[0]["bio"])
	assert.Equal(t, json.Number("100000"), res.Rows[0]["salary"])
}

func TestHandler_EngineErrorPayload(t *testing.T) {
	gw := newGateway(t, testutil.NewStore(t), "secret")

	_, err := gw.Execute(context.Background(), "SELEC nonsense")
	var remoteErr *store.RemoteQueryError
	require.ErrorAs(t, err, &remoteErr)
	assert.Contains(t, strings.ToLower(remoteErr.Message), "syntax error")
}

func TestHandler_RejectsWrongToken(t *testing.T) {
	gw := newGateway(t, testutil.NewStore(t), "other")

	_, err := gw.Execute(context.Background(), "SELECT 1")
	var transportErr *store.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, http.StatusUnauthorized, transportErr.StatusCode)
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	srv := httptest.NewServer(sqlite.NewHandler(testutil.NewStore(t), "", nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHandler_ExecutorFailureStopsBatch(t *testing.T) {
	calls := 0
	exec := store.ExecutorFunc(func(ctx context.Context, sql string, args ...any) (*store.Result, error) {
		calls++
		return nil, errors.New("disk full")
	})
	gw := newGateway(t, exec, "")

	_, err := gw.Execute(context.Background(), "SELECT 1")
	var remoteErr *store.RemoteQueryError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, "disk full", remoteErr.Message)
	assert.Equal(t, 1, calls)
}
