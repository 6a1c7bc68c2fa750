package stores

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/tbourn/miele-backoffice/internal/domain"
	"github.com/tbourn/miele-backoffice/internal/remote"
	"github.com/tbourn/miele-backoffice/internal/remote/memory"
	"github.com/tbourn/miele-backoffice/internal/repo"
	"github.com/tbourn/miele-backoffice/internal/restclient"
	"github.com/tbourn/miele-backoffice/internal/store"
)

// Entities lists the registry's entity names in display order.
var Entities = []string{
	domain.TablePerdComps,
	domain.TableClients,
	domain.TableRequests,
	domain.TableActivities,
	domain.TableSettings,
}

// Accessors holds one remote accessor per table. SoftDelete is the
// honorSoftDelete setting the accessors were built with; NewRegistry hands it
// to every store.
type Accessors struct {
	PerdComps  remote.Accessor[domain.PerdCompRow]
	Clients    remote.Accessor[domain.ClientRow]
	Requests   remote.Accessor[domain.RequestRow]
	Activities remote.Accessor[domain.ActivityRow]
	Settings   remote.Accessor[domain.SettingRow]
	SoftDelete bool
}

// MemoryAccessors returns in-process accessors, one per table.
func MemoryAccessors(honorSoftDelete bool, opts ...memory.Option) Accessors {
	opts = append(opts, memory.WithSoftDelete(honorSoftDelete))
	return Accessors{
		SoftDelete: honorSoftDelete,
		PerdComps:  memory.New[domain.PerdCompRow](opts...),
		Clients:    memory.New[domain.ClientRow](opts...),
		Requests:   memory.New[domain.RequestRow](opts...),
		Activities: memory.New[domain.ActivityRow](opts...),
		Settings:   memory.New[domain.SettingRow](opts...),
	}
}

// TableAccessors returns GORM-backed accessors sharing db.
func TableAccessors(db *gorm.DB, honorSoftDelete bool, opts ...repo.TableOption) (Accessors, error) {
	opts = append(opts, repo.WithSoftDelete(honorSoftDelete))
	var (
		a   = Accessors{SoftDelete: honorSoftDelete}
		err error
	)
	if a.PerdComps, err = table[domain.PerdCompRow](db, opts); err != nil {
		return Accessors{}, err
	}
	if a.Clients, err = table[domain.ClientRow](db, opts); err != nil {
		return Accessors{}, err
	}
	if a.Requests, err = table[domain.RequestRow](db, opts); err != nil {
		return Accessors{}, err
	}
	if a.Activities, err = table[domain.ActivityRow](db, opts); err != nil {
		return Accessors{}, err
	}
	if a.Settings, err = table[domain.SettingRow](db, opts); err != nil {
		return Accessors{}, err
	}
	return a, nil
}

func table[P remote.Table](db *gorm.DB, opts []repo.TableOption) (remote.Accessor[P], error) {
	t, err := repo.NewTable[P](db, opts...)
	if err != nil {
		var zero P
		return nil, fmt.Errorf("table %s: %w", zero.TableName(), err)
	}
	return t, nil
}

// RESTAccessors returns accessors speaking to the backend through c. Soft
// delete is the backend's SOFT_DELETE setting and is not visible here.
func RESTAccessors(c *restclient.Client) Accessors {
	return Accessors{
		PerdComps:  restclient.NewAccessor[domain.PerdCompRow](c),
		Clients:    restclient.NewAccessor[domain.ClientRow](c),
		Requests:   restclient.NewAccessor[domain.RequestRow](c),
		Activities: restclient.NewAccessor[domain.ActivityRow](c),
		Settings:   restclient.NewAccessor[domain.SettingRow](c),
	}
}

// Registry groups the five entity stores.
type Registry struct {
	PerdComps  *PerdCompStore
	Clients    *ClientStore
	Requests   *RequestStore
	Activities *ActivityStore
	Settings   *SettingStore
}

// NewRegistry builds every store over a; opts apply to all of them.
func NewRegistry(a Accessors, opts ...store.Option) *Registry {
	opts = append([]store.Option{store.WithSoftDelete(a.SoftDelete)}, opts...)
	return &Registry{
		PerdComps:  NewPerdCompStore(a.PerdComps, opts...),
		Clients:    NewClientStore(a.Clients, opts...),
		Requests:   NewRequestStore(a.Requests, opts...),
		Activities: NewActivityStore(a.Activities, opts...),
		Settings:   NewSettingStore(a.Settings, opts...),
	}
}

// Refresh reloads the current page of every store concurrently and returns
// the first failure. Each store keeps its own Error regardless.
func (r *Registry) Refresh(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error { return r.PerdComps.Reload(ctx) })
	g.Go(func() error { return r.Clients.Reload(ctx) })
	g.Go(func() error { return r.Requests.Reload(ctx) })
	g.Go(func() error { return r.Activities.Reload(ctx) })
	g.Go(func() error { return r.Settings.Reload(ctx) })
	return g.Wait()
}

// Reset clears every store.
func (r *Registry) Reset() {
	r.PerdComps.Reset()
	r.Clients.Reset()
	r.Requests.Reset()
	r.Activities.Reset()
	r.Settings.Reset()
}
