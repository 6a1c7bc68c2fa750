// Package remote defines the contract between entity stores and the tabular
// persistence backend that owns the authoritative records.
//
// The backend assigns primary keys and timestamps, reports total counts for
// pagination, filters by column equality and searches by case-insensitive
// substring across a fixed set of text columns. Implementations live in
// repo (GORM), restclient (HTTP) and remote/memory (in-process).
//
// Error semantics:
//   - A get/update/delete targeting a missing id returns ErrNotFound (possibly
//     wrapped). Callers must treat it as "local cache is stale", not as a
//     transient failure.
//   - Any other error is a transient/backend failure.
package remote

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a record id does not exist in the backend.
var ErrNotFound = errors.New("record not found")

// ErrUnknownColumn is returned when a filter or patch names a column the
// table does not have.
var ErrUnknownColumn = errors.New("unknown column")

// Patch is a partial record in persisted shape, keyed by column name.
// Columns absent from the map are left untouched by Update.
type Patch map[string]any

// Filters holds equality predicates on named columns.
type Filters map[string]string

// Clone returns an independent copy of f (nil stays nil).
func (f Filters) Clone() Filters {
	if f == nil {
		return nil
	}
	out := make(Filters, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Query selects one page of a table.
type Query struct {
	Page     int // 1-based
	PageSize int
	Filters  Filters
}

// Page is one slice of a table plus the total number of matching rows.
type Page[P any] struct {
	Records []P
	Total   int64
}

// Accessor is the tabular persistence interface consumed by entity stores.
//
// Implementations must be safe for concurrent use and honor ctx for
// cancellation and deadlines.
type Accessor[P any] interface {
	// List returns one page ordered by creation time descending.
	List(ctx context.Context, q Query) (Page[P], error)
	// Get returns the record with the given id or ErrNotFound.
	Get(ctx context.Context, id string) (P, error)
	// Insert creates a record; the backend assigns id and timestamps.
	Insert(ctx context.Context, patch Patch) (P, error)
	// Update applies patch to the record and returns the updated row, or
	// ErrNotFound when no row matched.
	Update(ctx context.Context, id string, patch Patch) (P, error)
	// Delete removes the record or returns ErrNotFound.
	Delete(ctx context.Context, id string) error
	// Search returns every record whose search columns contain query
	// (case-insensitive), ordered by creation time descending.
	Search(ctx context.Context, query string) ([]P, error)
}

// Table describes a persisted row type: its table name and the text columns
// searched by Accessor.Search.
type Table interface {
	TableName() string
	SearchColumns() []string
}

// SoftDeletable is implemented by row types that carry a deleted_at column.
type SoftDeletable interface {
	SoftDeletable() bool
}

// Range converts a 1-based page number and page size into an offset/limit
// pair. Non-positive inputs are clamped to page 1 and a size of 1.
//
//	Range(3, 10) // 20, 10
func Range(page, pageSize int) (offset, limit int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}
	return (page - 1) * pageSize, pageSize
}

// TotalPages returns ceil(total/pageSize), or 0 when pageSize is not positive.
func TotalPages(total int64, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}
