package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/miele-backoffice/internal/domain"
	"github.com/tbourn/miele-backoffice/internal/remote"
	"github.com/tbourn/miele-backoffice/internal/repo"
)

// Row is a persisted row type served by TableService.
type Row interface {
	remote.Table
	PrimaryKey() string
}

// tableOps erases the row type so one service can serve every table.
type tableOps interface {
	list(ctx context.Context, q remote.Query) (any, int64, error)
	get(ctx context.Context, id string) (any, error)
	insert(ctx context.Context, tx *gorm.DB, p remote.Patch) (string, any, error)
	update(ctx context.Context, tx *gorm.DB, id string, p remote.Patch) (any, error)
	remove(ctx context.Context, tx *gorm.DB, id string) error
	search(ctx context.Context, query string) (any, error)
	stats(ctx context.Context) (int64, *time.Time, error)
}

type handle[P Row] struct{ t *repo.Table[P] }

func (h handle[P]) list(ctx context.Context, q remote.Query) (any, int64, error) {
	page, err := h.t.List(ctx, q)
	return page.Records, page.Total, err
}

func (h handle[P]) get(ctx context.Context, id string) (any, error) { return h.t.Get(ctx, id) }

func (h handle[P]) insert(ctx context.Context, tx *gorm.DB, p remote.Patch) (string, any, error) {
	row, err := h.t.WithDB(tx).Insert(ctx, p)
	if err != nil {
		return "", nil, err
	}
	return row.PrimaryKey(), row, nil
}

func (h handle[P]) update(ctx context.Context, tx *gorm.DB, id string, p remote.Patch) (any, error) {
	return h.t.WithDB(tx).Update(ctx, id, p)
}

func (h handle[P]) remove(ctx context.Context, tx *gorm.DB, id string) error {
	return h.t.WithDB(tx).Delete(ctx, id)
}

func (h handle[P]) search(ctx context.Context, query string) (any, error) {
	return h.t.Search(ctx, query)
}

func (h handle[P]) stats(ctx context.Context) (int64, *time.Time, error) { return h.t.Stats(ctx) }

func register[P Row](m map[string]tableOps, db *gorm.DB, opts []repo.TableOption) error {
	t, err := repo.NewTable[P](db, opts...)
	if err != nil {
		return err
	}
	m[t.Name()] = handle[P]{t: t}
	return nil
}

// TableService serves CRUD and search for every back-office table. Writes to
// any table other than activities append an activity row in the same
// transaction.
type TableService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// IdempotencyTTL bounds RememberInsert records; 0 means 24h.
	IdempotencyTTL time.Duration

	tables map[string]tableOps
}

// NewTableService builds the service over db. opts apply to every table
// (soft delete, clock).
func NewTableService(db *gorm.DB, opts ...repo.TableOption) (*TableService, error) {
	tables := make(map[string]tableOps, 5)
	for _, reg := range []func(map[string]tableOps, *gorm.DB, []repo.TableOption) error{
		register[domain.PerdCompRow],
		register[domain.ClientRow],
		register[domain.RequestRow],
		register[domain.ActivityRow],
		register[domain.SettingRow],
	} {
		if err := reg(tables, db, opts); err != nil {
			return nil, err
		}
	}
	return &TableService{DB: db, tables: tables}, nil
}

// Tables returns the served table names, sorted.
func (s *TableService) Tables() []string {
	out := make([]string, 0, len(s.tables))
	for name := range s.tables {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Has reports whether table is served.
func (s *TableService) Has(table string) bool {
	_, ok := s.tables[table]
	return ok
}

func (s *TableService) ops(table string) (tableOps, error) {
	t, ok := s.tables[table]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}
	return t, nil
}

// List returns one page of rows (a typed slice) and the total count.
func (s *TableService) List(ctx context.Context, table string, q remote.Query) (any, int64, error) {
	ctx, span := startSpan(ctx, "List", table, "")
	defer span.End()

	t, err := s.ops(table)
	if err != nil {
		return nil, 0, err
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = 20
	}
	rows, total, err := t.list(ctx, q)
	return rows, total, record(span, err)
}

func (s *TableService) Get(ctx context.Context, table, id string) (any, error) {
	ctx, span := startSpan(ctx, "Get", table, id)
	defer span.End()

	t, err := s.ops(table)
	if err != nil {
		return nil, err
	}
	row, err := t.get(ctx, id)
	return row, record(span, err)
}

// Search returns every row whose search columns contain query.
func (s *TableService) Search(ctx context.Context, table, query string) (any, error) {
	ctx, span := startSpan(ctx, "Search", table, "")
	defer span.End()

	t, err := s.ops(table)
	if err != nil {
		return nil, err
	}
	rows, err := t.search(ctx, query)
	return rows, record(span, err)
}

// Stats returns the live row count and latest update time of table.
func (s *TableService) Stats(ctx context.Context, table string) (int64, *time.Time, error) {
	t, err := s.ops(table)
	if err != nil {
		return 0, nil, err
	}
	return t.stats(ctx)
}

// Create validates p, fills defaults and inserts the row together with its
// CREATE activity. It returns the new id and the stored row.
func (s *TableService) Create(ctx context.Context, userID, table string, p remote.Patch) (string, any, error) {
	ctx, span := startSpan(ctx, "Create", table, "")
	defer span.End()

	t, err := s.ops(table)
	if err != nil {
		return "", nil, err
	}
	if p == nil {
		p = remote.Patch{}
	}
	if err := tableRules[table].prepare(p, true); err != nil {
		return "", nil, record(span, err)
	}

	var (
		id  string
		row any
	)
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if id, row, err = t.insert(ctx, tx, p); err != nil {
			return err
		}
		return s.audit(ctx, tx, repo.ActionCreate, table, id, userID, p)
	})
	if err != nil {
		return "", nil, record(span, err)
	}
	span.SetAttributes(attribute.String("record.id", id))
	return id, row, nil
}

// Update validates the columns present in p and applies them together with
// an UPDATE activity.
func (s *TableService) Update(ctx context.Context, userID, table, id string, p remote.Patch) (any, error) {
	ctx, span := startSpan(ctx, "Update", table, id)
	defer span.End()

	t, err := s.ops(table)
	if err != nil {
		return nil, err
	}
	if p == nil {
		p = remote.Patch{}
	}
	if err := tableRules[table].prepare(p, false); err != nil {
		return nil, record(span, err)
	}

	var row any
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if row, err = t.update(ctx, tx, id, p); err != nil {
			return err
		}
		return s.audit(ctx, tx, repo.ActionUpdate, table, id, userID, p)
	})
	return row, record(span, err)
}

// Delete removes the row (or stamps deleted_at) with a DELETE activity.
func (s *TableService) Delete(ctx context.Context, userID, table, id string) error {
	ctx, span := startSpan(ctx, "Delete", table, id)
	defer span.End()

	t, err := s.ops(table)
	if err != nil {
		return err
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := t.remove(ctx, tx, id); err != nil {
			return err
		}
		return s.audit(ctx, tx, repo.ActionDelete, table, id, userID, nil)
	})
	return record(span, err)
}

func (s *TableService) audit(ctx context.Context, tx *gorm.DB, acao, table, id, userID string, detalhes remote.Patch) error {
	if table == domain.TableActivities {
		return nil
	}
	var d any
	if detalhes != nil {
		d = detalhes
	}
	_, err := repo.RecordActivity(ctx, tx, acao, table, id, userID, d)
	return err
}

func startSpan(ctx context.Context, name, table, id string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String("table", table)}
	if id != "" {
		attrs = append(attrs, attribute.String("record.id", id))
	}
	return otel.Tracer("services/TableService").Start(ctx, name, trace.WithAttributes(attrs...))
}

func record(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
