// Command miele drives the back-office entity stores against a running
// backend from the terminal.
//
//	miele [flags] <entity> <list|get|create|update|delete|search> [args]
//
// Entities are perdcomps, clients, requests, activities and settings.
// create and update take field=value pairs in the entity's domain shape:
//
//	miele clients create razao_social="ACME Ltda" cnpj=12.345.678/0001-95
//	miele perdcomps update 3f2a... status=TRANSMITIDO
//	miele perdcomps list 2 --filter status=DEFERIDO
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/tbourn/miele-backoffice/internal/config"
	"github.com/tbourn/miele-backoffice/internal/observability"
	"github.com/tbourn/miele-backoffice/internal/remote"
	"github.com/tbourn/miele-backoffice/internal/restclient"
	"github.com/tbourn/miele-backoffice/internal/store"
	"github.com/tbourn/miele-backoffice/internal/stores"
	"github.com/tbourn/miele-backoffice/internal/sysutil"
)

var version = "dev"

// usageError makes main print the usage text along with the message.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func usagef(format string, a ...any) error { return usageError{msg: fmt.Sprintf(format, a...)} }

func main() {
	_ = config.LoadDotEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		var ue usageError
		if errors.As(err, &ue) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

type options struct {
	server   string
	user     string
	pageSize int
	retries  int
	timeout  time.Duration
	filters  []string
	verbose  bool
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	var o options
	fs := pflag.NewFlagSet("miele", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&o.server, "server", "s", cfg.Remote.URL, "backend base URL including the API path")
	fs.StringVarP(&o.user, "user", "u", sysutil.FirstNonEmpty(os.Getenv("MIELE_USER"), os.Getenv("USER")), "user recorded in the activity log")
	fs.IntVar(&o.pageSize, "page-size", store.DefaultPageSize, "rows per page for list")
	fs.IntVar(&o.retries, "retries", cfg.Remote.Retries, "retries for failed requests")
	fs.DurationVar(&o.timeout, "timeout", cfg.Remote.StoreTimeout, "per-request timeout")
	fs.StringArrayVarP(&o.filters, "filter", "f", nil, "column=value equality filter for list (repeatable)")
	fs.BoolVarP(&o.verbose, "verbose", "v", false, "log requests and store actions to stderr")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: miele [flags] <%s> <list|get|create|update|delete|search> [args]\n\nFlags:\n", strings.Join(stores.Entities, "|"))
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	level := "warn"
	if o.verbose {
		level = "debug"
	}
	logger := observability.SetupLogging(stderr, level, true, "miele", version)

	rest := fs.Args()
	if len(rest) < 2 {
		fs.Usage()
		return usagef("entity and action are required")
	}

	filters, err := parseFilters(o.filters)
	if err != nil {
		return err
	}

	client, err := restclient.New(o.server,
		restclient.WithUserID(o.user),
		restclient.WithRetries(o.retries),
		restclient.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	reg := stores.NewRegistry(stores.RESTAccessors(client),
		store.WithPageSize(o.pageSize),
		store.WithTimeout(o.timeout),
		store.WithFilters(filters),
		store.WithLogger(logger),
	)

	entity, action, params := rest[0], rest[1], rest[2:]
	out := json.NewEncoder(stdout)
	out.SetIndent("", "  ")

	switch entity {
	case "perdcomps":
		return dispatch(ctx, reg.PerdComps, action, params, out)
	case "clients":
		return dispatch(ctx, reg.Clients, action, params, out)
	case "requests":
		return dispatch(ctx, reg.Requests, action, params, out)
	case "activities":
		return dispatch(ctx, reg.Activities, action, params, out)
	case "settings":
		return dispatch(ctx, reg.Settings, action, params, out)
	}
	return usagef("unknown entity %q", entity)
}

// dispatch runs one store action and prints its result as JSON.
func dispatch[P any, D store.Entity, T any](ctx context.Context, s *store.Store[P, D, T], action string, args []string, out *json.Encoder) error {
	switch action {
	case "list":
		page := 1
		if len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 {
				return usagef("page must be a positive number, got %q", args[0])
			}
			page = n
		}
		s.FetchPage(ctx, page)
		return printState(s.State(), out)

	case "search":
		s.Search(ctx, strings.Join(args, " "))
		return printState(s.State(), out)

	case "get":
		id, err := one(args, "id")
		if err != nil {
			return err
		}
		d, err := s.FetchByID(ctx, id)
		if err != nil {
			return err
		}
		return out.Encode(d)

	case "create":
		patch, err := stores.ParsePatch[T](args)
		if err != nil {
			return usagef("%v", err)
		}
		d, err := s.Create(ctx, patch)
		if err != nil {
			return err
		}
		return out.Encode(d)

	case "update":
		if len(args) < 2 {
			return usagef("update needs an id and at least one field=value")
		}
		patch, err := stores.ParsePatch[T](args[1:])
		if err != nil {
			return usagef("%v", err)
		}
		d, err := s.Update(ctx, args[0], patch)
		if err != nil {
			return err
		}
		return out.Encode(d)

	case "delete":
		id, err := one(args, "id")
		if err != nil {
			return err
		}
		if err := s.Delete(ctx, id); err != nil {
			return err
		}
		return out.Encode(map[string]string{"deleted": id})
	}
	return usagef("unknown action %q", action)
}

// listing is what list and search print.
type listing[D any] struct {
	Items       []D            `json:"items"`
	Page        int            `json:"page"`
	PageSize    int            `json:"page_size"`
	TotalPages  int            `json:"total_pages"`
	TotalCount  int64          `json:"total_count"`
	Filters     remote.Filters `json:"filters,omitempty"`
	SearchQuery string         `json:"search_query,omitempty"`
}

func printState[D any](st store.State[D], out *json.Encoder) error {
	if st.Error != "" {
		return errors.New(st.Error)
	}
	items := st.Items
	if items == nil {
		items = []D{}
	}
	return out.Encode(listing[D]{
		Items:       items,
		Page:        st.CurrentPage,
		PageSize:    st.PageSize,
		TotalPages:  st.TotalPages,
		TotalCount:  st.TotalCount,
		Filters:     st.Filters,
		SearchQuery: st.SearchQuery,
	})
}

func one(args []string, name string) (string, error) {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return "", usagef("expected exactly one %s", name)
	}
	return args[0], nil
}

func parseFilters(pairs []string) (remote.Filters, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	f := remote.Filters{}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, usagef("filter must be column=value, got %q", p)
		}
		f[strings.TrimSpace(k)] = v
	}
	return f, nil
}
