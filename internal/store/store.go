// Package store implements the generic Entity Store: an in-memory cache of one
// entity collection plus CRUD, search and pagination actions against a
// remote.Accessor, with schema translation on every read and write.
//
// Presentation code reads State snapshots and subscribes to changes; actions
// run the accessor call without holding any lock and patch the cache once
// the call returns. Operations may run from many goroutines at once:
//
//   - IsLoading is true while any action is in flight.
//   - List and search responses are sequenced; a response older than the
//     last applied one is discarded, so the latest request wins.
//   - Update and Delete on the same id are serialized; different ids run in
//     parallel.
//   - Error is a single field with latest-write-wins semantics.
//   - Every accessor call is bounded by the configured timeout.
package store

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/miele-backoffice/internal/remote"
)

// Defaults.
const (
	DefaultPageSize = 20
	DefaultTimeout  = 15 * time.Second
)

// Entity is implemented by domain records.
type Entity interface {
	EntityID() string
}

// Translator maps persisted rows P to domain records D, and domain patches T
// to persisted patches.
type Translator[P, D, T any] interface {
	FromPersisted(P) D
	ToPersisted(T) (remote.Patch, error)
}

// State is an immutable snapshot of a store.
type State[D any] struct {
	Items       []D
	Selected    *D
	IsLoading   bool
	Error       string
	CurrentPage int
	PageSize    int
	TotalPages  int
	TotalCount  int64
	Filters     remote.Filters
	// SearchQuery is the query behind Items when they came from Search.
	SearchQuery string
	// Version increases with every change; subscribers can drop snapshots
	// older than one they already rendered.
	Version uint64
}

// Option configures a Store.
type Option func(*config)

type config struct {
	name       string
	pageSize   int
	timeout    time.Duration
	softDelete bool
	filters    remote.Filters
	messages   Messages
	log        zerolog.Logger
}

// WithName sets the entity name used in logs, metrics and errors.
func WithName(name string) Option { return func(c *config) { c.name = name } }

// WithPageSize sets the page size used by FetchPage.
func WithPageSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithTimeout bounds every accessor call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		if d >= 0 {
			c.timeout = d
		}
	}
}

// WithSoftDelete records whether the accessor honors deleted_at. The store
// never sees the column; stores.NewRegistry sets this from the same flag its
// accessor factories were built with.
func WithSoftDelete(on bool) Option { return func(c *config) { c.softDelete = on } }

// WithFilters sets the initial list filters.
func WithFilters(f remote.Filters) Option { return func(c *config) { c.filters = f.Clone() } }

// WithMessages overrides the user-facing error messages.
func WithMessages(m Messages) Option { return func(c *config) { c.messages = m.withDefaults() } }

// WithLogger sets the logger; defaults to the global zerolog logger.
func WithLogger(l zerolog.Logger) Option { return func(c *config) { c.log = l } }

// Store is the Entity Store for one collection.
type Store[P any, D Entity, T any] struct {
	acc remote.Accessor[P]
	tr  Translator[P, D, T]
	cfg config

	mu       sync.Mutex
	state    State[D]
	inflight int
	issued   uint64 // last list/search sequence handed out
	applied  uint64 // last list/search sequence applied to state
	subs     map[uint64]func(State[D])
	nextSub  uint64

	locks keyedMutex
}

// New returns an empty store over acc.
func New[P any, D Entity, T any](acc remote.Accessor[P], tr Translator[P, D, T], opts ...Option) *Store[P, D, T] {
	cfg := config{
		name:     "entity",
		pageSize: DefaultPageSize,
		timeout:  DefaultTimeout,
		messages: DefaultMessages(),
		log:      log.Logger,
	}
	for _, o := range opts {
		o(&cfg)
	}
	cfg.log = cfg.log.With().Str("entity", cfg.name).Logger()
	return &Store[P, D, T]{
		acc: acc,
		tr:  tr,
		cfg: cfg,
		state: State[D]{
			Items:       []D{},
			CurrentPage: 1,
			PageSize:    cfg.pageSize,
			Filters:     cfg.filters,
		},
		subs: make(map[uint64]func(State[D])),
	}
}

// Name returns the entity name.
func (s *Store[P, D, T]) Name() string { return s.cfg.name }

// SoftDelete reports the honorSoftDelete setting.
func (s *Store[P, D, T]) SoftDelete() bool { return s.cfg.softDelete }

// State returns a snapshot of the current state.
func (s *Store[P, D, T]) State() State[D] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers fn to receive a snapshot after every change and
// returns a function that removes it. fn runs on the goroutine that made the
// change, after the store lock is released.
func (s *Store[P, D, T]) Subscribe(fn func(State[D])) (unsubscribe func()) {
	s.mu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// SetFilters replaces the equality filters used by later FetchPage calls.
func (s *Store[P, D, T]) SetFilters(f remote.Filters) {
	s.mutate(func(st *State[D]) { st.Filters = f.Clone() })
}

// Select marks the cached item with the given id as selected. It reports
// false, and clears the selection, when the id is not cached.
func (s *Store[P, D, T]) Select(id string) bool {
	found := false
	s.mutate(func(st *State[D]) {
		st.Selected = nil
		for i := range st.Items {
			if st.Items[i].EntityID() == id {
				d := st.Items[i]
				st.Selected = &d
				found = true
				return
			}
		}
	})
	return found
}

// ClearSelection drops the selected record.
func (s *Store[P, D, T]) ClearSelection() {
	s.mutate(func(st *State[D]) { st.Selected = nil })
}

// ClearError dismisses the current error.
func (s *Store[P, D, T]) ClearError() {
	s.mutate(func(st *State[D]) { st.Error = "" })
}

// Reset empties the cache. List or search responses still in flight are
// discarded when they arrive.
func (s *Store[P, D, T]) Reset() {
	s.mutate(func(st *State[D]) {
		s.issued++
		s.applied = s.issued
		*st = State[D]{
			Items:       []D{},
			CurrentPage: 1,
			PageSize:    s.cfg.pageSize,
			Filters:     s.cfg.filters.Clone(),
			Version:     st.Version,
		}
	})
}

// mutate applies fn under the lock, bumps the version and notifies
// subscribers outside the lock.
func (s *Store[P, D, T]) mutate(fn func(st *State[D])) {
	s.mu.Lock()
	fn(&s.state)
	s.state.IsLoading = s.inflight > 0
	s.state.Version++
	snap := s.snapshotLocked()
	subs := make([]func(State[D]), 0, len(s.subs))
	for _, f := range s.subs {
		subs = append(subs, f)
	}
	s.mu.Unlock()

	for _, f := range subs {
		f(snap)
	}
}

func (s *Store[P, D, T]) snapshotLocked() State[D] {
	snap := s.state
	snap.Items = append([]D(nil), s.state.Items...)
	if snap.Items == nil {
		snap.Items = []D{}
	}
	if s.state.Selected != nil {
		d := *s.state.Selected
		snap.Selected = &d
	}
	snap.Filters = s.state.Filters.Clone()
	return snap
}

func (s *Store[P, D, T]) translate(rows []P) []D {
	out := make([]D, 0, len(rows))
	for _, r := range rows {
		out = append(out, s.tr.FromPersisted(r))
	}
	return out
}
