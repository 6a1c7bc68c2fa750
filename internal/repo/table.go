// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides Table, the generic remote.Accessor over
// one persisted row type.
//
// Error semantics:
//   - Get/Update/Delete of a missing (or soft-deleted) id return ErrNotFound.
//   - Unique violations return ErrDuplicate.
//   - Filters or patches naming a column the row does not have return
//     remote.ErrUnknownColumn.
//   - Other DB errors are propagated unchanged.
package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"github.com/tbourn/miele-backoffice/internal/remote"
)

// Columns managed by Table itself; patches cannot set them.
var managedColumns = map[string]struct{}{
	"id": {}, "created_at": {}, "updated_at": {}, "deleted_at": {},
}

// TableOption configures a Table.
type TableOption func(*tableOptions)

type tableOptions struct {
	softDelete bool
	now        func() time.Time
}

// WithSoftDelete makes reads skip rows with deleted_at set and Delete stamp
// deleted_at instead of removing the row. Ignored for rows without the column.
func WithSoftDelete(on bool) TableOption {
	return func(o *tableOptions) { o.softDelete = on }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) TableOption {
	return func(o *tableOptions) { o.now = now }
}

// Table is a remote.Accessor backed by one GORM model.
type Table[P remote.Table] struct {
	db     *gorm.DB
	name   string
	fields map[string]*schema.Field
	search []string
	soft   bool
	now    func() time.Time
}

var schemaCache sync.Map

// NewTable parses P's schema and returns an accessor bound to db.
func NewTable[P remote.Table](db *gorm.DB, opts ...TableOption) (*Table[P], error) {
	o := tableOptions{now: func() time.Time { return time.Now().UTC() }}
	for _, fn := range opts {
		fn(&o)
	}

	sch, err := schema.Parse(new(P), &schemaCache, db.NamingStrategy)
	if err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	fields := make(map[string]*schema.Field, len(sch.Fields))
	for _, f := range sch.Fields {
		if f.DBName != "" {
			fields[f.DBName] = f
		}
	}

	var zero P
	soft := false
	if sd, ok := any(zero).(remote.SoftDeletable); ok && sd.SoftDeletable() {
		_, hasCol := fields["deleted_at"]
		soft = o.softDelete && hasCol
	}
	return &Table[P]{
		db:     db,
		name:   zero.TableName(),
		fields: fields,
		search: zero.SearchColumns(),
		soft:   soft,
		now:    o.now,
	}, nil
}

// Name returns the table name.
func (t *Table[P]) Name() string { return t.name }

// SoftDelete reports whether deletes are soft for this table.
func (t *Table[P]) SoftDelete() bool { return t.soft }

// WithDB returns a copy of t bound to db, typically a transaction.
func (t *Table[P]) WithDB(db *gorm.DB) *Table[P] {
	cp := *t
	cp.db = db
	return &cp
}

func (t *Table[P]) scope(ctx context.Context) *gorm.DB {
	q := t.db.WithContext(ctx).Model(new(P))
	if t.soft {
		q = q.Where("deleted_at IS NULL")
	}
	return q
}

// List returns one page ordered by created_at desc, id desc, plus the total
// count of matching rows.
func (t *Table[P]) List(ctx context.Context, q remote.Query) (remote.Page[P], error) {
	where, err := t.filterExprs(q.Filters)
	if err != nil {
		return remote.Page[P]{}, err
	}

	var total int64
	countQ := t.scope(ctx)
	if len(where) > 0 {
		countQ = countQ.Clauses(clause.Where{Exprs: where})
	}
	if err := countQ.Count(&total).Error; err != nil {
		return remote.Page[P]{}, err
	}

	offset, limit := remote.Range(q.Page, q.PageSize)
	out := make([]P, 0, limit)
	listQ := t.scope(ctx)
	if len(where) > 0 {
		listQ = listQ.Clauses(clause.Where{Exprs: where})
	}
	err = listQ.
		Order("created_at desc").
		Order("id desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return remote.Page[P]{}, err
	}
	return remote.Page[P]{Records: out, Total: total}, nil
}

func (t *Table[P]) Get(ctx context.Context, id string) (P, error) {
	var out P
	err := t.scope(ctx).Where("id = ?", id).Take(&out).Error
	return out, mapErr(err)
}

// Insert assigns a UUID and UTC timestamps, inserts the patch and returns the
// stored row (including DB-side defaults).
func (t *Table[P]) Insert(ctx context.Context, patch remote.Patch) (P, error) {
	var zero P
	values, err := t.values(patch)
	if err != nil {
		return zero, err
	}
	id := uuid.NewString()
	now := t.now()
	values["id"] = id
	values["created_at"] = now
	values["updated_at"] = now

	if err := t.db.WithContext(ctx).Model(new(P)).Create(values).Error; err != nil {
		return zero, mapErr(err)
	}
	return t.Get(ctx, id)
}

// Update applies patch and returns the re-read row. Zero rows affected means
// ErrNotFound.
func (t *Table[P]) Update(ctx context.Context, id string, patch remote.Patch) (P, error) {
	var zero P
	values, err := t.values(patch)
	if err != nil {
		return zero, err
	}
	values["updated_at"] = t.now()

	res := t.scope(ctx).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return zero, mapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return zero, ErrNotFound
	}
	return t.Get(ctx, id)
}

func (t *Table[P]) Delete(ctx context.Context, id string) error {
	var res *gorm.DB
	if t.soft {
		res = t.scope(ctx).Where("id = ?", id).Update("deleted_at", t.now())
	} else {
		res = t.db.WithContext(ctx).Where("id = ?", id).Delete(new(P))
	}
	if res.Error != nil {
		return mapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Search matches query as a case-insensitive substring of any search column.
func (t *Table[P]) Search(ctx context.Context, query string) ([]P, error) {
	out := make([]P, 0)
	q := t.scope(ctx)
	if query = strings.TrimSpace(query); query != "" && len(t.search) > 0 {
		pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
		ors := make([]clause.Expression, 0, len(t.search))
		for _, col := range t.search {
			ors = append(ors, clause.Expr{
				SQL:  `LOWER(?) LIKE ? ESCAPE '\'`,
				Vars: []any{clause.Column{Name: col}, pattern},
			})
		}
		q = q.Clauses(clause.Where{Exprs: []clause.Expression{clause.Or(ors...)}})
	}
	err := q.Order("created_at desc").Order("id desc").Find(&out).Error
	return out, err
}

// Stats returns the live row count and the latest updated_at, used for
// list ETags.
func (t *Table[P]) Stats(ctx context.Context) (count int64, maxUpdatedAt *time.Time, err error) {
	if err = t.scope(ctx).Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}
	// avoid MAX() -> TEXT in SQLite
	var row struct {
		UpdatedAt time.Time
	}
	if err = t.scope(ctx).Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}

func (t *Table[P]) filterExprs(f remote.Filters) ([]clause.Expression, error) {
	if len(f) == 0 {
		return nil, nil
	}
	exprs := make([]clause.Expression, 0, len(f))
	for col, raw := range f {
		field, ok := t.fields[col]
		if !ok {
			return nil, fmt.Errorf("%w: %s", remote.ErrUnknownColumn, col)
		}
		exprs = append(exprs, clause.Eq{Column: clause.Column{Name: col}, Value: filterValue(field, raw)})
	}
	return exprs, nil
}

func (t *Table[P]) values(patch remote.Patch) (map[string]any, error) {
	out := make(map[string]any, len(patch)+3)
	for col, v := range patch {
		if _, skip := managedColumns[col]; skip {
			continue
		}
		field, ok := t.fields[col]
		if !ok {
			return nil, fmt.Errorf("%w: %s", remote.ErrUnknownColumn, col)
		}
		cv, err := coerce(field, v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", col, err)
		}
		out[col] = cv
	}
	return out, nil
}

// filterValue converts a query-string filter to the column's Go type so
// comparisons work on numeric and boolean columns.
func filterValue(f *schema.Field, raw string) any {
	switch f.DataType {
	case schema.Bool:
		if b, err := strconv.ParseBool(raw); err == nil {
			return b
		}
	case schema.Int, schema.Uint:
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return n
		}
	case schema.Float:
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			return n
		}
	}
	return raw
}

// coerce turns transport values (decoded JSON, raw bytes) into something the
// column accepts. JSON columns always receive datatypes.JSON.
func coerce(f *schema.Field, v any) (any, error) {
	if v == nil || f.DataType != "json" {
		return v, nil
	}
	switch x := v.(type) {
	case datatypes.JSON:
		return x, nil
	case json.RawMessage:
		return datatypes.JSON(x), nil
	case []byte:
		return datatypes.JSON(x), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
