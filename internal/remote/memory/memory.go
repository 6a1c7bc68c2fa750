// Package memory is an in-process remote.Accessor. It backs tests, demos and
// the CLI's offline mode, and mimics the backend closely enough that stores
// cannot tell the difference: server-assigned ids and timestamps, total
// counts, equality filters, accent-insensitive substring search and optional
// simulated latency.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tbourn/miele-backoffice/internal/remote"
	"github.com/tbourn/miele-backoffice/internal/utils"
)

// Option configures an Accessor.
type Option func(*options)

type options struct {
	latency    time.Duration
	softDelete bool
	now        func() time.Time
	newID      func() string
}

// WithLatency delays every call by d (honoring ctx).
func WithLatency(d time.Duration) Option { return func(o *options) { o.latency = d } }

// WithSoftDelete stamps deleted_at instead of removing rows, for row types
// that have the column.
func WithSoftDelete(on bool) Option { return func(o *options) { o.softDelete = on } }

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// WithIDs overrides id generation.
func WithIDs(next func() string) Option { return func(o *options) { o.newID = next } }

type entry struct {
	id      string
	created time.Time
	cols    map[string]any
}

// Accessor stores rows of type P as column maps keyed by their JSON tags.
type Accessor[P remote.Table] struct {
	opts    options
	columns map[string]struct{}
	search  []string
	soft    bool

	mu   sync.RWMutex
	rows map[string]*entry
}

// New returns an empty accessor for P.
func New[P remote.Table](opts ...Option) *Accessor[P] {
	o := options{
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.NewString() },
	}
	for _, fn := range opts {
		fn(&o)
	}
	var zero P
	cols, _ := toColumns(zero)
	known := make(map[string]struct{}, len(cols))
	for k := range cols {
		known[k] = struct{}{}
	}
	soft := false
	if sd, ok := any(zero).(remote.SoftDeletable); ok {
		soft = o.softDelete && sd.SoftDeletable()
	}
	return &Accessor[P]{
		opts:    o,
		columns: known,
		search:  zero.SearchColumns(),
		soft:    soft,
		rows:    make(map[string]*entry),
	}
}

// Seed inserts rows verbatim. Missing ids and timestamps are filled in.
func (a *Accessor[P]) Seed(rows ...P) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, r := range rows {
		cols, err := toColumns(r)
		if err != nil {
			return err
		}
		id, _ := cols["id"].(string)
		if id == "" {
			id = a.opts.newID()
			cols["id"] = id
		}
		created := parseTime(cols["created_at"])
		if created.IsZero() {
			created = a.opts.now()
			cols["created_at"] = created
			cols["updated_at"] = created
		}
		a.rows[id] = &entry{id: id, created: created, cols: cols}
	}
	return nil
}

// Len returns the number of live rows.
func (a *Accessor[P]) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.live())
}

func (a *Accessor[P]) List(ctx context.Context, q remote.Query) (remote.Page[P], error) {
	if err := a.wait(ctx); err != nil {
		return remote.Page[P]{}, err
	}
	for col := range q.Filters {
		if _, ok := a.columns[col]; !ok {
			return remote.Page[P]{}, fmt.Errorf("%w: %s", remote.ErrUnknownColumn, col)
		}
	}

	// rows are decoded under the read lock: writers replace e.cols
	a.mu.RLock()
	defer a.mu.RUnlock()
	matched := make([]*entry, 0)
	for _, e := range a.live() {
		if matches(e.cols, q.Filters) {
			matched = append(matched, e)
		}
	}

	sortDesc(matched)
	offset, limit := remote.Range(q.Page, q.PageSize)
	page := remote.Page[P]{Total: int64(len(matched)), Records: []P{}}
	for i := offset; i < len(matched) && i < offset+limit; i++ {
		r, err := fromColumns[P](matched[i].cols)
		if err != nil {
			return remote.Page[P]{}, err
		}
		page.Records = append(page.Records, r)
	}
	return page, nil
}

func (a *Accessor[P]) Get(ctx context.Context, id string) (P, error) {
	var zero P
	if err := a.wait(ctx); err != nil {
		return zero, err
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	e, ok := a.rows[id]
	if !ok || a.deleted(e) {
		return zero, remote.ErrNotFound
	}
	return fromColumns[P](e.cols)
}

func (a *Accessor[P]) Insert(ctx context.Context, patch remote.Patch) (P, error) {
	var zero P
	if err := a.wait(ctx); err != nil {
		return zero, err
	}
	if err := a.checkPatch(patch); err != nil {
		return zero, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	base, _ := toColumns(zero)
	for k, v := range patch {
		base[k] = v
	}
	now := a.opts.now()
	id := a.opts.newID()
	base["id"] = id
	base["created_at"] = now
	base["updated_at"] = now
	row, err := fromColumns[P](base)
	if err != nil {
		return zero, err
	}
	// normalize through the row type so stored values match what Get returns
	cols, err := toColumns(row)
	if err != nil {
		return zero, err
	}
	a.rows[id] = &entry{id: id, created: now, cols: cols}
	return row, nil
}

func (a *Accessor[P]) Update(ctx context.Context, id string, patch remote.Patch) (P, error) {
	var zero P
	if err := a.wait(ctx); err != nil {
		return zero, err
	}
	if err := a.checkPatch(patch); err != nil {
		return zero, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.rows[id]
	if !ok || a.deleted(e) {
		return zero, remote.ErrNotFound
	}
	next := make(map[string]any, len(e.cols))
	for k, v := range e.cols {
		next[k] = v
	}
	for k, v := range patch {
		next[k] = v
	}
	next["id"] = id
	next["created_at"] = e.cols["created_at"]
	next["updated_at"] = a.opts.now()
	row, err := fromColumns[P](next)
	if err != nil {
		return zero, err
	}
	cols, err := toColumns(row)
	if err != nil {
		return zero, err
	}
	e.cols = cols
	return row, nil
}

func (a *Accessor[P]) Delete(ctx context.Context, id string) error {
	if err := a.wait(ctx); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.rows[id]
	if !ok || a.deleted(e) {
		return remote.ErrNotFound
	}
	if a.soft {
		next := make(map[string]any, len(e.cols)+1)
		for k, v := range e.cols {
			next[k] = v
		}
		next["deleted_at"] = a.opts.now()
		e.cols = next
		return nil
	}
	delete(a.rows, id)
	return nil
}

func (a *Accessor[P]) Search(ctx context.Context, query string) ([]P, error) {
	if err := a.wait(ctx); err != nil {
		return nil, err
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	matched := make([]*entry, 0)
	for _, e := range a.live() {
		for _, col := range a.search {
			if s, ok := e.cols[col].(string); ok && utils.ContainsFold(s, query) {
				matched = append(matched, e)
				break
			}
		}
	}

	sortDesc(matched)
	out := make([]P, 0, len(matched))
	for _, e := range matched {
		r, err := fromColumns[P](e.cols)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (a *Accessor[P]) wait(ctx context.Context) error {
	if a.opts.latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(a.opts.latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (a *Accessor[P]) checkPatch(p remote.Patch) error {
	for col := range p {
		if _, ok := a.columns[col]; !ok {
			return fmt.Errorf("%w: %s", remote.ErrUnknownColumn, col)
		}
	}
	return nil
}

// live returns rows not soft-deleted. Caller holds mu.
func (a *Accessor[P]) live() []*entry {
	out := make([]*entry, 0, len(a.rows))
	for _, e := range a.rows {
		if !a.deleted(e) {
			out = append(out, e)
		}
	}
	return out
}

func (a *Accessor[P]) deleted(e *entry) bool {
	return a.soft && e.cols["deleted_at"] != nil
}

func matches(cols map[string]any, f remote.Filters) bool {
	for col, want := range f {
		v := cols[col]
		if v == nil || fmt.Sprint(v) != want {
			return false
		}
	}
	return true
}

func sortDesc(es []*entry) {
	sort.Slice(es, func(i, j int) bool {
		if !es[i].created.Equal(es[j].created) {
			return es[i].created.After(es[j].created)
		}
		return es[i].id > es[j].id
	})
}

func toColumns(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	cols := map[string]any{}
	if err := json.Unmarshal(b, &cols); err != nil {
		return nil, err
	}
	return cols, nil
}

func fromColumns[P any](cols map[string]any) (P, error) {
	var out P
	b, err := json.Marshal(cols)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(b, &out)
	return out, err
}

func parseTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil && !parsed.IsZero() {
			return parsed
		}
	}
	return time.Time{}
}
