package mcpserver

import (
	"context"
	"testing"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zerofisher/megatable/internal/testutil"
	"github.com/Zerofisher/megatable/pkg/query"
)

func newHandlers(t *testing.T, n int) *handlers {
	t.Helper()
	s := testutil.NewStore(t)
	testutil.Insert(t, s, testutil.Records(n)...)
	return &handlers{svc: query.NewEngine(s, query.Options{})}
}

func call(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestSearchTool(t *testing.T) {
	h := newHandlers(t, 5)

	res, err := h.search(context.Background(), call(ToolSearch, map[string]any{"limit": float64(2)}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	var out struct {
		Data       []map[string]any `json:"data"`
		Count      int              `json:"count"`
		NextCursor *string          `json:"nextCursor"`
		HasMore    bool             `json:"hasMore"`
	}
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &out))
	assert.Equal(t, 2, out.Count)
	assert.True(t, out.HasMore)
	require.NotNil(t, out.NextCursor)
	assert.Equal(t, "u0002", *out.NextCursor)

	res, err = h.search(context.Background(), call(ToolSearch, map[string]any{"term": "user 5", "cursor": "u0001"}))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &out))
	assert.Equal(t, 1, out.Count)
	assert.Equal(t, "u0005", out.Data[0]["id"])
	assert.Nil(t, out.NextCursor)
}

func TestSearchTool_InvalidLimit(t *testing.T) {
	h := newHandlers(t, 1)
	res, err := h.search(context.Background(), call(ToolSearch, map[string]any{"limit": float64(5000)}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "invalid limit")
}

func TestGetTool(t *testing.T) {
	h := newHandlers(t, 3)

	res, err := h.get(context.Background(), call(ToolGet, map[string]any{"id": "u0003"}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &rec))
	assert.Equal(t, "Bio of User 3", rec["bio"])
	assert.Equal(t, float64(100000), rec["salary"])

	res, err = h.get(context.Background(), call(ToolGet, map[string]any{"id": "zzz"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), `no record with id "zzz"`)

	res, err = h.get(context.Background(), call(ToolGet, nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestNew_RegistersTools(t *testing.T) {
	s := New(query.NewEngine(testutil.NewStore(t), query.Options{}), "test")
	resp := s.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	b, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"name":"`+ToolSearch+`"`)
	assert.Contains(t, string(b), `"name":"`+ToolGet+`"`)
}
