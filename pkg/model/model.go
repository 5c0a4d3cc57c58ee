// Package model defines the record shape shared by ingestion, storage and query serving.
package model

import "strings"

// Table is the single table every record lives in.
const Table = "users"

// Columns lists every stored column in insert order.
var Columns = []string{
	"id", "name", "email", "role",
	"department", "status", "location",
	"salary", "bio",
}

// ListColumns is the lightweight projection used by paginated list views.
// Heavy fields (salary, bio) are only loaded by detail lookups.
var ListColumns = Columns[:4]

// ColumnList joins column names for use in a SELECT or INSERT clause.
func ColumnList(cols []string) string {
	return strings.Join(cols, ", ")
}

// ────────────────────────────────────────────────────────────────────────────────
// Record
// ────────────────────────────────────────────────────────────────────────────────

// Record is one row of the dataset. ID is unique, immutable and sorts
// consistently with the store's ordering, which makes it usable as a cursor.
type Record struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Department string `json:"department"`
	Status     string `json:"status"`
	Location   string `json:"location"`

	// Heavy fields
	Salary *int64  `json:"salary"`
	Bio    *string `json:"bio"`
}

// Values returns the record's fields positionally aligned with Columns.
func (r *Record) Values() []any {
	var salary, bio any
	if r.Salary != nil {
		salary = *r.Salary
	}
	if r.Bio != nil {
		bio = *r.Bio
	}
	return []any{
		r.ID, r.Name, r.Email, r.Role,
		r.Department, r.Status, r.Location,
		salary, bio,
	}
}

// Summary returns the list-view projection of the record.
func (r *Record) Summary() Summary {
	return Summary{ID: r.ID, Name: r.Name, Email: r.Email, Role: r.Role}
}

// Summary is the list-view subset of a Record (see ListColumns).
type Summary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Int64 returns a pointer to v, for populating Salary.
func Int64(v int64) *int64 { return &v }

// String returns a pointer to s, for populating Bio.
func String(s string) *string { return &s }
