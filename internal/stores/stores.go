// Package stores instantiates the generic Entity Store for each back-office
// entity and groups them in a Registry.
package stores

import (
	"github.com/tbourn/miele-backoffice/internal/domain"
	"github.com/tbourn/miele-backoffice/internal/remote"
	"github.com/tbourn/miele-backoffice/internal/store"
	"github.com/tbourn/miele-backoffice/internal/translate"
)

type (
	PerdCompStore = store.Store[domain.PerdCompRow, domain.PerdComp, domain.PerdCompPatch]
	ClientStore   = store.Store[domain.ClientRow, domain.Client, domain.ClientPatch]
	RequestStore  = store.Store[domain.RequestRow, domain.Request, domain.RequestPatch]
	ActivityStore = store.Store[domain.ActivityRow, domain.Activity, domain.ActivityPatch]
	SettingStore  = store.Store[domain.SettingRow, domain.Setting, domain.SettingPatch]
)

// NewPerdCompStore returns the filings store.
func NewPerdCompStore(acc remote.Accessor[domain.PerdCompRow], opts ...store.Option) *PerdCompStore {
	return store.New[domain.PerdCompRow, domain.PerdComp, domain.PerdCompPatch](acc, translate.PerdComp{}, named(domain.TablePerdComps, opts)...)
}

// NewClientStore returns the clients store.
func NewClientStore(acc remote.Accessor[domain.ClientRow], opts ...store.Option) *ClientStore {
	return store.New[domain.ClientRow, domain.Client, domain.ClientPatch](acc, translate.Client{}, named(domain.TableClients, opts)...)
}

// NewRequestStore returns the change-requests store.
func NewRequestStore(acc remote.Accessor[domain.RequestRow], opts ...store.Option) *RequestStore {
	return store.New[domain.RequestRow, domain.Request, domain.RequestPatch](acc, translate.Request{}, named(domain.TableRequests, opts)...)
}

// NewActivityStore returns the audit-log store.
func NewActivityStore(acc remote.Accessor[domain.ActivityRow], opts ...store.Option) *ActivityStore {
	return store.New[domain.ActivityRow, domain.Activity, domain.ActivityPatch](acc, translate.Activity{}, named(domain.TableActivities, opts)...)
}

// NewSettingStore returns the settings store.
func NewSettingStore(acc remote.Accessor[domain.SettingRow], opts ...store.Option) *SettingStore {
	return store.New[domain.SettingRow, domain.Setting, domain.SettingPatch](acc, translate.Setting{}, named(domain.TableSettings, opts)...)
}

// named puts the table name first so callers can still override it.
func named(name string, opts []store.Option) []store.Option {
	return append([]store.Option{store.WithName(name)}, opts...)
}
