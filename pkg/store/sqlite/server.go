package sqlite

import (
	"crypto/subtle"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/Zerofisher/megatable/internal/logging"
	"github.com/Zerofisher/megatable/pkg/store"
)

const maxRequestBody = 32 << 20 // 32MB

// Handler serves the statement protocol on top of any store.Executor.
type Handler struct {
	exec   store.Executor
	token  string
	logger *logging.Logger
}

// NewHandler creates a protocol handler. When token is non-empty, requests must
// carry it as a bearer credential.
func NewHandler(exec store.Executor, token string, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Handler{exec: exec, token: token, logger: logger}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req store.Request
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	results := make([]store.StatementResult, 0, len(req.Statements))
	for _, stmt := range req.Statements {
		res, err := h.exec.Execute(r.Context(), stmt.Q, bindParams(stmt.Params)...)
		if err != nil {
			h.logger.WarnContext(r.Context(), "statement failed", "error", err)
			results = append(results, store.StatementResult{
				Error: &store.StatementError{Message: err.Error()},
			})
			break
		}
		results = append(results, store.StatementResult{Results: toResultSet(res)})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(results); err != nil {
		h.logger.ErrorContext(r.Context(), "encode response", "error", err)
	}
}

func (h *Handler) authorized(r *http.Request) bool {
	if h.token == "" {
		return true
	}
	got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return ok && subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) == 1
}

// bindParams converts decoded JSON numbers into driver values.
func bindParams(params []any) []any {
	out := make([]any, len(params))
	for i, p := range params {
		if n, ok := p.(json.Number); ok {
			if v, err := n.Int64(); err == nil {
				out[i] = v
			} else if f, err := n.Float64(); err == nil {
				out[i] = f
			} else {
				out[i] = n.String()
			}
			continue
		}
		out[i] = p
	}
	return out
}

func toResultSet(res *store.Result) *store.ResultSet {
	rs := &store.ResultSet{Columns: res.Columns, Rows: make([][]any, 0, len(res.Rows))}
	if rs.Columns == nil {
		rs.Columns = []string{}
	}
	for _, row := range res.Rows {
		tuple := make([]any, len(res.Columns))
		for i, col := range res.Columns {
			tuple[i] = row[col]
		}
		rs.Rows = append(rs.Rows, tuple)
	}
	return rs
}
