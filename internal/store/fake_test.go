package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tbourn/miele-backoffice/internal/remote"
)

// widgetRow / widget / widgetPatch are a minimal persisted/domain pair.
type widgetRow struct {
	ID        string
	Name      string
	Price     *float64
	CreatedAt time.Time
}

type widget struct {
	ID    string
	Name  string
	Price string
}

func (w widget) EntityID() string { return w.ID }

type widgetPatch struct {
	Name  *string
	Price *string
}

type widgetTranslator struct{}

func (widgetTranslator) FromPersisted(r widgetRow) widget {
	price := "0"
	if r.Price != nil {
		price = strconv.FormatFloat(*r.Price, 'f', -1, 64)
	}
	return widget{ID: r.ID, Name: r.Name, Price: price}
}

func (widgetTranslator) ToPersisted(p widgetPatch) (remote.Patch, error) {
	out := remote.Patch{}
	if p.Name != nil {
		out["name"] = *p.Name
	}
	if p.Price != nil {
		f, err := strconv.ParseFloat(*p.Price, 64)
		if err != nil {
			return nil, fmt.Errorf("price: %w", err)
		}
		out["price"] = f
	}
	return out, nil
}

func sp(s string) *string { return &s }

// fakeAccessor keeps rows in memory; hooks run before the default behavior
// and may block or fail.
type fakeAccessor struct {
	mu    sync.Mutex
	rows  []widgetRow
	seq   int
	clock time.Time

	queries  []remote.Query
	calls    map[string]int
	listErr  error
	listHook func(ctx context.Context, q remote.Query) error
	getHook  func(ctx context.Context, id string) error
	updHook  func(ctx context.Context, id string) error
	delHook  func(ctx context.Context, id string) error
}

func newFake(n int) *fakeAccessor {
	f := &fakeAccessor{clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), calls: map[string]int{}}
	for i := 0; i < n; i++ {
		f.add(fmt.Sprintf("w%02d", i+1), nil)
	}
	return f
}

func (f *fakeAccessor) add(name string, price *float64) widgetRow {
	f.seq++
	f.clock = f.clock.Add(time.Second)
	r := widgetRow{ID: fmt.Sprintf("id-%02d", f.seq), Name: name, Price: price, CreatedAt: f.clock}
	f.rows = append(f.rows, r)
	return r
}

func (f *fakeAccessor) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeAccessor) sorted() []widgetRow {
	out := append([]widgetRow(nil), f.rows...)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (f *fakeAccessor) List(ctx context.Context, q remote.Query) (remote.Page[widgetRow], error) {
	f.mu.Lock()
	f.calls["list"]++
	f.queries = append(f.queries, q)
	hook, listErr := f.listHook, f.listErr
	f.mu.Unlock()
	if hook != nil {
		if err := hook(ctx, q); err != nil {
			return remote.Page[widgetRow]{}, err
		}
	}
	if listErr != nil {
		return remote.Page[widgetRow]{}, listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.sorted()
	offset, limit := remote.Range(q.Page, q.PageSize)
	page := remote.Page[widgetRow]{Total: int64(len(all)), Records: []widgetRow{}}
	for i := offset; i < len(all) && i < offset+limit; i++ {
		page.Records = append(page.Records, all[i])
	}
	return page, nil
}

func (f *fakeAccessor) Get(ctx context.Context, id string) (widgetRow, error) {
	f.mu.Lock()
	f.calls["get"]++
	hook := f.getHook
	f.mu.Unlock()
	if hook != nil {
		if err := hook(ctx, id); err != nil {
			return widgetRow{}, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ID == id {
			return r, nil
		}
	}
	return widgetRow{}, remote.ErrNotFound
}

func (f *fakeAccessor) Insert(_ context.Context, p remote.Patch) (widgetRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["insert"]++
	name, _ := p["name"].(string)
	var price *float64
	if v, ok := p["price"].(float64); ok {
		price = &v
	}
	return f.add(name, price), nil
}

func (f *fakeAccessor) Update(ctx context.Context, id string, p remote.Patch) (widgetRow, error) {
	f.mu.Lock()
	f.calls["update"]++
	hook := f.updHook
	f.mu.Unlock()
	if hook != nil {
		if err := hook(ctx, id); err != nil {
			return widgetRow{}, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.rows {
		if f.rows[i].ID != id {
			continue
		}
		if v, ok := p["name"].(string); ok {
			f.rows[i].Name = v
		}
		if v, ok := p["price"].(float64); ok {
			f.rows[i].Price = &v
		}
		return f.rows[i], nil
	}
	return widgetRow{}, fmt.Errorf("update %s: %w", id, remote.ErrNotFound)
}

func (f *fakeAccessor) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	f.calls["delete"]++
	hook := f.delHook
	f.mu.Unlock()
	if hook != nil {
		if err := hook(ctx, id); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.rows {
		if f.rows[i].ID == id {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return nil
		}
	}
	return remote.ErrNotFound
}

func (f *fakeAccessor) Search(_ context.Context, q string) ([]widgetRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["search"]++
	out := []widgetRow{}
	for _, r := range f.sorted() {
		if strings.Contains(strings.ToLower(r.Name), strings.ToLower(q)) {
			out = append(out, r)
		}
	}
	return out, nil
}

func newWidgetStore(acc *fakeAccessor, opts ...Option) *Store[widgetRow, widget, widgetPatch] {
	return New[widgetRow, widget, widgetPatch](acc, widgetTranslator{}, append([]Option{WithName("widgets")}, opts...)...)
}
