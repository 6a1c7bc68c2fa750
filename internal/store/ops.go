package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/miele-backoffice/internal/remote"
)

// FetchPage loads one page (1-based) with the current filters. On success
// Items, TotalCount, TotalPages and CurrentPage are replaced; on failure
// Error is set and the previous Items stay. Failures are not returned.
func (s *Store[P, D, T]) FetchPage(ctx context.Context, page int) {
	_ = s.fetchPage(ctx, page)
}

// Reload re-fetches the current page. It behaves like FetchPage but also
// returns the failure.
func (s *Store[P, D, T]) Reload(ctx context.Context) error {
	return s.fetchPage(ctx, s.State().CurrentPage)
}

func (s *Store[P, D, T]) fetchPage(ctx context.Context, page int) error {
	if page < 1 {
		page = 1
	}
	var (
		seq uint64
		q   remote.Query
		res remote.Page[P]
	)
	return s.run(ctx, OpList, "", false,
		func(st *State[D]) {
			s.issued++
			seq = s.issued
			q = remote.Query{Page: page, PageSize: st.PageSize, Filters: st.Filters.Clone()}
		},
		func(ctx context.Context) (err error) {
			res, err = s.acc.List(ctx, q)
			return err
		},
		func(st *State[D], err error) bool {
			if seq < s.applied {
				return true
			}
			s.applied = seq
			if err != nil {
				return false
			}
			st.Items = s.translate(res.Records)
			st.TotalCount = res.Total
			st.TotalPages = remote.TotalPages(res.Total, q.PageSize)
			st.CurrentPage = page
			st.SearchQuery = ""
			return false
		},
	)
}

// Search replaces Items with every record matching query, unpaginated and in
// the accessor's creation-descending order. A blank query reloads page 1.
// Failures set Error and are not returned.
func (s *Store[P, D, T]) Search(ctx context.Context, query string) {
	query = strings.TrimSpace(query)
	if query == "" {
		s.FetchPage(ctx, 1)
		return
	}
	var (
		seq  uint64
		rows []P
	)
	_ = s.run(ctx, OpSearch, "", false,
		func(*State[D]) {
			s.issued++
			seq = s.issued
		},
		func(ctx context.Context) (err error) {
			rows, err = s.acc.Search(ctx, query)
			return err
		},
		func(st *State[D], err error) bool {
			if seq < s.applied {
				return true
			}
			s.applied = seq
			if err != nil {
				return false
			}
			st.Items = s.translate(rows)
			st.TotalCount = int64(len(st.Items))
			st.TotalPages = 0
			if len(st.Items) > 0 {
				st.TotalPages = 1
			}
			st.CurrentPage = 1
			st.SearchQuery = query
			return false
		},
	)
}

// FetchByID loads one record into Selected, refreshing its cached copy in
// Items when present. Failures set Error and are returned as *OpError.
func (s *Store[P, D, T]) FetchByID(ctx context.Context, id string) (D, error) {
	var d D
	err := s.run(ctx, OpGet, id, false, nil,
		func(ctx context.Context) error {
			row, err := s.acc.Get(ctx, id)
			if err == nil {
				d = s.tr.FromPersisted(row)
			}
			return err
		},
		func(st *State[D], err error) bool {
			if err == nil {
				sel := d
				st.Selected = &sel
				replaceItem(st.Items, d)
			}
			return false
		},
	)
	if err != nil {
		var zero D
		return zero, s.opError(OpGet, id, err)
	}
	return d, nil
}

// Create inserts patch and prepends the stored record to Items. Pagination
// counters are left as they were until the next FetchPage.
func (s *Store[P, D, T]) Create(ctx context.Context, patch T) (D, error) {
	var zero D
	values, err := s.tr.ToPersisted(patch)
	if err != nil {
		return zero, s.reject(OpCreate, "", err)
	}
	var d D
	err = s.run(ctx, OpCreate, "", false, nil,
		func(ctx context.Context) error {
			row, err := s.acc.Insert(ctx, values)
			if err == nil {
				d = s.tr.FromPersisted(row)
			}
			return err
		},
		func(st *State[D], err error) bool {
			if err == nil {
				st.Items = append([]D{d}, st.Items...)
			}
			return false
		},
	)
	if err != nil {
		return zero, s.opError(OpCreate, "", err)
	}
	return d, nil
}

// Update applies patch to id and replaces the cached copy in Items and
// Selected. A record missing remotely yields an error wrapping ErrNotFound
// with the UpdateNotFound message.
func (s *Store[P, D, T]) Update(ctx context.Context, id string, patch T) (D, error) {
	var zero D
	values, err := s.tr.ToPersisted(patch)
	if err != nil {
		return zero, s.reject(OpUpdate, id, err)
	}
	var d D
	err = s.run(ctx, OpUpdate, id, true, nil,
		func(ctx context.Context) error {
			row, err := s.acc.Update(ctx, id, values)
			if err == nil {
				d = s.tr.FromPersisted(row)
			}
			return err
		},
		func(st *State[D], err error) bool {
			if err == nil {
				replaceItem(st.Items, d)
				if st.Selected != nil && (*st.Selected).EntityID() == id {
					sel := d
					st.Selected = &sel
				}
			}
			return false
		},
	)
	if err != nil {
		return zero, s.opError(OpUpdate, id, err)
	}
	return d, nil
}

// Delete removes id remotely, then from Items and Selected. Deleting an id
// that is not cached leaves Items unchanged. When the record is already gone
// remotely the cached copy is dropped as well and ErrNotFound is returned.
func (s *Store[P, D, T]) Delete(ctx context.Context, id string) error {
	err := s.run(ctx, OpDelete, id, true, nil,
		func(ctx context.Context) error {
			return s.acc.Delete(ctx, id)
		},
		func(st *State[D], err error) bool {
			if err == nil || outcome(err) == "not_found" {
				st.Items = removeItem(st.Items, id)
				if st.Selected != nil && (*st.Selected).EntityID() == id {
					st.Selected = nil
				}
			}
			return false
		},
	)
	if err != nil {
		return s.opError(OpDelete, id, err)
	}
	return nil
}

// run executes one accessor call: it marks the store loading, bounds the call
// by the timeout, optionally serializes on id, applies the result under the
// lock and records metrics, logs and a span. apply returns true when the
// response is stale and must be ignored.
func (s *Store[P, D, T]) run(
	ctx context.Context,
	op, id string,
	serialize bool,
	prepare func(*State[D]),
	call func(context.Context) error,
	apply func(*State[D], error) bool,
) error {
	s.mutate(func(st *State[D]) {
		s.inflight++
		st.Error = ""
		if prepare != nil {
			prepare(st)
		}
	})

	ctx, span := s.startSpan(ctx, op, id)
	defer span.End()
	start := time.Now()
	cctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var err error
	unlock := func() {}
	if serialize {
		var release func()
		if release, err = s.locks.lock(cctx, id); err == nil {
			unlock = release
		}
	}
	if err == nil {
		err = call(cctx)
	}

	result := outcome(err)
	s.mutate(func(st *State[D]) {
		s.inflight--
		if apply(st, err) {
			result = "stale"
			return
		}
		if err != nil {
			st.Error = s.cfg.messages.message(op, err)
		}
	})
	unlock()

	s.observe(op, result, start)
	s.logResult(op, id, result, err, start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, result)
	}
	return err
}

// reject records a patch that failed translation.
func (s *Store[P, D, T]) reject(op, id string, cause error) error {
	err := fmt.Errorf("%w: %w", ErrInvalidInput, cause)
	s.mutate(func(st *State[D]) { st.Error = s.cfg.messages.message(op, err) })
	storeOps.WithLabelValues(s.cfg.name, op, outcome(err)).Inc()
	s.cfg.log.Warn().Err(cause).Str("op", op).Str("id", id).Msg("store: invalid input")
	return s.opError(op, id, err)
}

func (s *Store[P, D, T]) opError(op, id string, err error) error {
	return &OpError{Entity: s.cfg.name, Op: op, ID: id, Err: err}
}

func (s *Store[P, D, T]) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.timeout)
}

func (s *Store[P, D, T]) startSpan(ctx context.Context, op, id string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String("entity", s.cfg.name)}
	if id != "" {
		attrs = append(attrs, attribute.String("record.id", id))
	}
	return otel.Tracer("store").Start(ctx, s.cfg.name+"."+op, trace.WithAttributes(attrs...))
}

func (s *Store[P, D, T]) logResult(op, id, result string, err error, start time.Time) {
	ev := s.cfg.log.Debug()
	if err != nil && result != "stale" {
		ev = s.cfg.log.Warn().Err(err)
	}
	ev.Str("op", op).
		Str("id", id).
		Str("outcome", result).
		Dur("took", time.Since(start)).
		Msg("store action")
}

func replaceItem[D Entity](items []D, d D) {
	id := d.EntityID()
	for i := range items {
		if items[i].EntityID() == id {
			items[i] = d
		}
	}
}

func removeItem[D Entity](items []D, id string) []D {
	out := items[:0:0]
	for _, it := range items {
		if it.EntityID() != id {
			out = append(out, it)
		}
	}
	if len(out) == len(items) {
		return items
	}
	return out
}
