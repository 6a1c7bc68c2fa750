// Command miele-server runs the back-office REST backend.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/tbourn/miele-backoffice/internal/config"
	httpapi "github.com/tbourn/miele-backoffice/internal/http"
	"github.com/tbourn/miele-backoffice/internal/observability"
	"github.com/tbourn/miele-backoffice/internal/repo"
	"github.com/tbourn/miele-backoffice/internal/services"
)

// version is set with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		os.Exit(1)
	}
	observability.SetupLogging(nil, cfg.LogLevel, cfg.LogPretty, cfg.OTEL.ServiceName, version)

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("server terminated with error")
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(c); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.Open(cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	svc, err := services.NewTableService(db, repo.WithSoftDelete(cfg.DB.SoftDelete))
	if err != nil {
		return fmt.Errorf("table service: %w", err)
	}
	svc.IdempotencyTTL = cfg.IdempotencyTTL

	if cfg.SeedDemo {
		seeded, err := svc.SeedDemo(ctx, "seed")
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		log.Info().Bool("seeded", seeded).Msg("demo data")
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, svc, cfg)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		purgeIdempotency(ctx, svc, cfg.IdempotencyPurge)
		return nil
	})

	g.Go(func() error {
		log.Info().
			Str("addr", server.Addr).
			Str("base_path", cfg.APIBasePath).
			Str("db_driver", cfg.DB.Driver).
			Bool("soft_delete", cfg.DB.SoftDelete).
			Msg("starting miele-server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		c, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(c); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		log.Info().Msg("server stopped")
		return nil
	})

	return g.Wait()
}

// purgeIdempotency deletes expired Idempotency-Key records every interval
// until ctx is done.
func purgeIdempotency(ctx context.Context, svc *services.TableService, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := svc.PurgeIdempotency(ctx, now)
			if err != nil {
				log.Warn().Err(err).Msg("idempotency purge failed")
				continue
			}
			if n > 0 {
				log.Debug().Int64("removed", n).Msg("idempotency keys purged")
			}
		}
	}
}
