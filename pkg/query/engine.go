package query

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/Zerofisher/megatable/pkg/model"
	"github.com/Zerofisher/megatable/pkg/store"
)

// Options tune the engine.
type Options struct {
	// CaseSensitive switches term matching from case-insensitive LIKE to
	// exact substring matching with instr().
	CaseSensitive bool

	// MaxLimit overrides MaxLimit if > 0.
	MaxLimit int
}

// Engine implements Service on top of a store.Executor.
type Engine struct {
	exec store.Executor
	opts Options
}

// NewEngine creates a new gateway-backed query engine.
func NewEngine(exec store.Executor, opts Options) *Engine {
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = MaxLimit
	}
	return &Engine{exec: exec, opts: opts}
}

var _ Service = (*Engine)(nil)

// Search implements Service. It asks the store for one row more than the page
// size, so HasMore and NextCursor are exact.
func (e *Engine) Search(ctx context.Context, req SearchRequest) (*Page, error) {
	limit, err := e.limit(req.Limit)
	if err != nil {
		return nil, err
	}

	query, args := e.searchStatement(req.Term, req.Cursor, limit+1)

	start := time.Now()
	res, err := e.exec.Execute(ctx, query, args...)
	latency := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("search records: %w", err)
	}

	rows := make([]model.Summary, 0, min(len(res.Rows), limit))
	for _, r := range res.Rows {
		rows = append(rows, scanSummary(r))
	}

	page := &Page{Latency: latency}
	if len(rows) > limit {
		rows = rows[:limit]
		page.HasMore = true
		next := rows[limit-1].ID
		page.NextCursor = &next
	}
	page.Rows = rows
	page.Count = len(rows)
	return page, nil
}

// Each pages through every row matching req, calling fn per page until the
// last page or until fn returns an error.
func Each(ctx context.Context, svc Service, req SearchRequest, fn func(*Page) error) error {
	for {
		page, err := svc.Search(ctx, req)
		if err != nil {
			return err
		}
		if err := fn(page); err != nil {
			return err
		}
		if !page.HasMore {
			return nil
		}
		req.Cursor = *page.NextCursor
	}
}

func (e *Engine) limit(n int) (int, error) {
	if n == 0 {
		return DefaultLimit, nil
	}
	if n < 0 || n > e.opts.MaxLimit {
		return 0, fmt.Errorf("%w: %d (want 1..%d)", ErrInvalidLimit, n, e.opts.MaxLimit)
	}
	return n, nil
}

// searchStatement builds the list query. Conditions are appended the same
// way for every combination so the argument order always matches.
func (e *Engine) searchStatement(term, cursor string, limit int) (string, []any) {
	query := "SELECT " + model.ColumnList(model.ListColumns) + " FROM " + model.Table + " WHERE 1=1"
	args := []any{}

	if term != "" {
		if e.opts.CaseSensitive {
			query += " AND (instr(name, ?) > 0 OR instr(email, ?) > 0)"
			args = append(args, term, term)
		} else {
			// LIKE folds ASCII case only; other characters must match exactly,
			// so the term is sent as typed.
			pattern := "%" + escapeLike(term) + "%"
			query += ` AND (name LIKE ? ESCAPE '\' OR email LIKE ? ESCAPE '\')`
			args = append(args, pattern, pattern)
		}
	}
	if cursor != "" {
		query += " AND id > ?"
		args = append(args, cursor)
	}

	query += " ORDER BY id ASC LIMIT ?"
	args = append(args, limit)
	return query, args
}

// escapeLike makes LIKE wildcards in s match literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// GetDetail implements Service.
func (e *Engine) GetDetail(ctx context.Context, id string) (*Detail, error) {
	query := "SELECT " + model.ColumnList(model.Columns) + " FROM " + model.Table + " WHERE id = ? LIMIT 1"

	start := time.Now()
	res, err := e.exec.Execute(ctx, query, id)
	latency := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("get record %q: %w", id, err)
	}
	if len(res.Rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	rec, err := scanRecord(res.Rows[0])
	if err != nil {
		return nil, fmt.Errorf("get record %q: %w", id, err)
	}
	return &Detail{Record: rec, Latency: latency}, nil
}

// GetOverview implements Service.
func (e *Engine) GetOverview(ctx context.Context) (*Overview, error) {
	overview := &Overview{}

	start := time.Now()
	res, err := e.exec.Execute(ctx, "SELECT COUNT(*) AS total FROM "+model.Table)
	overview.Latency += time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}
	if len(res.Rows) > 0 {
		total, err := toInt64(res.Rows[0]["total"])
		if err != nil {
			return nil, fmt.Errorf("count records: %w", err)
		}
		overview.TotalRecords = int(total)
	}

	overview.ByDepartment, err = e.groupCounts(ctx, "department", overview)
	if err != nil {
		return nil, err
	}
	overview.ByStatus, err = e.groupCounts(ctx, "status", overview)
	if err != nil {
		return nil, err
	}
	return overview, nil
}

func (e *Engine) groupCounts(ctx context.Context, column string, overview *Overview) ([]*GroupCount, error) {
	query := fmt.Sprintf(
		"SELECT %s AS value, COUNT(*) AS n FROM %s GROUP BY %s ORDER BY n DESC, value ASC",
		column, model.Table, column)

	start := time.Now()
	res, err := e.exec.Execute(ctx, query)
	overview.Latency += time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("group by %s: %w", column, err)
	}

	groups := make([]*GroupCount, 0, len(res.Rows))
	for _, r := range res.Rows {
		n, err := toInt64(r["n"])
		if err != nil {
			return nil, fmt.Errorf("group by %s: %w", column, err)
		}
		g := &GroupCount{Value: toString(r["value"]), Count: int(n)}
		if overview.TotalRecords > 0 {
			g.Percent = float64(g.Count) * 100 / float64(overview.TotalRecords)
		}
		groups = append(groups, g)
	}
	return groups, nil
}

// ────────────────────────────────────────────────────────────────────────────────
// Scanner helpers
// ────────────────────────────────────────────────────────────────────────────────

// Values arrive as whatever the executor decoded: strings and int64 from the
// local engine, json.Number (or float64) from the wire.

func scanSummary(r store.Row) model.Summary {
	return model.Summary{
		ID:    toString(r["id"]),
		Name:  toString(r["name"]),
		Email: toString(r["email"]),
		Role:  toString(r["role"]),
	}
}

func scanRecord(r store.Row) (*model.Record, error) {
	rec := &model.Record{
		ID:         toString(r["id"]),
		Name:       toString(r["name"]),
		Email:      toString(r["email"]),
		Role:       toString(r["role"]),
		Department: toString(r["department"]),
		Status:     toString(r["status"]),
		Location:   toString(r["location"]),
	}
	if v := r["salary"]; v != nil {
		salary, err := toInt64(v)
		if err != nil {
			return nil, fmt.Errorf("salary: %w", err)
		}
		rec.Salary = &salary
	}
	if v := r["bio"]; v != nil {
		bio := toString(v)
		rec.Bio = &bio
	}
	return rec, nil
}

func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case json.Number:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case float64:
		return int64(x), nil
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, nil
		}
		f, err := x.Float64()
		if err != nil {
			return 0, err
		}
		return int64(f), nil
	case string:
		return strconv.ParseInt(x, 10, 64)
	case nil:
		return 0, nil
	}
	return 0, fmt.Errorf("unexpected integer value %T", v)
}
