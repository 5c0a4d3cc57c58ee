// Package server exposes the query service over HTTP:
//
//	GET /data?search=&cursor=&limit=   one page of list-view rows
//	GET /data/{id}                     one full record
//	GET /healthz                       liveness
package server

import (
	"context"
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/Zerofisher/megatable/internal/logging"
	"github.com/Zerofisher/megatable/pkg/model"
	"github.com/Zerofisher/megatable/pkg/query"
)

const shutdownTimeout = 10 * time.Second

// Server serves the data API.
type Server struct {
	svc query.Service
	log *logging.Logger
	mux *http.ServeMux
}

// New creates a Server backed by svc.
func New(svc query.Service, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	s := &Server{svc: svc, log: logger, mux: http.NewServeMux()}
	s.mux.HandleFunc("GET /data", s.handleList)
	s.mux.HandleFunc("GET /data/{id}", s.handleDetail)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return s
}

// Handler returns the routed handler wrapped in request-id, logging and
// recovery middleware.
func (s *Server) Handler() http.Handler {
	return s.withRequestID(s.withLogging(s.withRecover(s.mux)))
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	return Run(ctx, ln, s.Handler(), s.log)
}

// Run serves h on ln until ctx is canceled, then shuts down gracefully,
// letting in-flight requests finish.
func Run(ctx context.Context, ln net.Listener, h http.Handler, logger *logging.Logger) error {
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.InfoContext(ctx, "http server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	logger.InfoContext(ctx, "http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ────────────────────────────────────────────────────────────────────────────────
// Handlers
// ────────────────────────────────────────────────────────────────────────────────

type listResponse struct {
	Data       []model.Summary `json:"data"`
	Latency    int64           `json:"latency"` // ms
	Count      int             `json:"count"`
	NextCursor *string         `json:"nextCursor"`
	HasMore    bool            `json:"hasMore"`
}

type detailResponse struct {
	Data    *model.Record `json:"data"`
	Latency int64         `json:"latency"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	page, err := s.svc.Search(r.Context(), query.SearchRequest{
		Term:   q.Get("search"),
		Cursor: q.Get("cursor"),
		Limit:  limit,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, listResponse{
		Data:       page.Rows,
		Latency:    millis(page.Latency),
		Count:      page.Count,
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
	})
}

func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	d, err := s.svc.GetDetail(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detailResponse{Data: d.Record, Latency: millis(d.Latency)})
}

// fail maps service errors to status codes. Store failures surface their
// message with a 500.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, query.ErrNotFound):
		writeError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, query.ErrInvalidLimit):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.ErrorContext(r.Context(), "request failed",
			"request_id", RequestID(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func millis(d time.Duration) int64 {
	return int64(math.Round(float64(d) / float64(time.Millisecond)))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
