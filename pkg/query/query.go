// Package query provides the pagination and search service over the records table.
// All reads go through a store.Executor; nothing here holds state between requests.
package query

import (
	"context"
	"errors"
	"time"

	"github.com/Zerofisher/megatable/pkg/model"
)

const (
	// DefaultLimit is the page size used when a request does not set one.
	DefaultLimit = 50

	// MaxLimit caps the page size a request may ask for.
	MaxLimit = 1000
)

var (
	// ErrNotFound is returned by GetDetail when no record has the id.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidLimit is returned for a page size outside 1..MaxLimit.
	ErrInvalidLimit = errors.New("invalid limit")
)

// Service is the read API used by the HTTP, MCP and CLI front ends.
type Service interface {
	// Search returns one page of list-view rows ordered by id.
	Search(ctx context.Context, req SearchRequest) (*Page, error)

	// GetDetail returns the full record for id, or ErrNotFound.
	GetDetail(ctx context.Context, id string) (*Detail, error)

	// GetOverview returns table-level counts.
	GetOverview(ctx context.Context) (*Overview, error)
}

// SearchRequest selects one page.
type SearchRequest struct {
	// Term filters rows whose name or email contains it. Empty means no filter.
	Term string

	// Cursor is the id of the last row of the previous page. Empty means start.
	Cursor string

	// Limit is the page size. 0 means DefaultLimit.
	Limit int
}

// Page is one page of search results.
type Page struct {
	Rows []model.Summary

	// NextCursor is the id to pass as Cursor for the next page; nil on the last page.
	NextCursor *string
	HasMore    bool

	Count   int
	Latency time.Duration // store round-trip
}

// Detail is a full record lookup.
type Detail struct {
	Record  *model.Record
	Latency time.Duration
}

// GroupCount is the number of records sharing one column value.
type GroupCount struct {
	Value   string
	Count   int
	Percent float64
}

// Overview provides high-level summary information.
type Overview struct {
	TotalRecords int
	ByDepartment []*GroupCount
	ByStatus     []*GroupCount
	Latency      time.Duration // sum of store round-trips
}
