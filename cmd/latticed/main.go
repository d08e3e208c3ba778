// Command latticed runs the authorization and resource-graph service: an API
// server plus a separate health/metrics listener.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/lattice/pkg/api"
	"github.com/platinummonkey/lattice/pkg/authz"
	"github.com/platinummonkey/lattice/pkg/config"
	"github.com/platinummonkey/lattice/pkg/graph"
	"github.com/platinummonkey/lattice/pkg/graph/postgres"
	"github.com/platinummonkey/lattice/pkg/graph/surreal"
	"github.com/platinummonkey/lattice/pkg/observability"
	"github.com/platinummonkey/lattice/pkg/sessions"
	"github.com/platinummonkey/lattice/pkg/users"
	"github.com/platinummonkey/lattice/pkg/workspaces"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "latticed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	log := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	log.WithField("store", cfg.Store.Type).
		WithField("sessions", cfg.Sessions.Backend).
		Info("starting latticed")

	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	pingers := make(map[string]observability.Pinger)

	store, cleanup, err := buildStore(cfg, pingers)
	if err != nil {
		return err
	}
	defer cleanup()
	if metrics != nil {
		store = graph.Instrument(store, cfg.Store.Type, metrics)
	}

	sessionStore, err := buildSessionStore(cfg)
	if err != nil {
		return err
	}
	pingers["sessions"] = sessionStore

	sessionMgr := sessions.NewManager(sessionStore, cfg.Sessions.TTL, log, metrics)
	if err := sessionMgr.StartSweeper(cfg.Sessions.SweepSchedule); err != nil {
		return err
	}
	defer sessionMgr.StopSweeper()

	checker := authz.NewChecker(store)
	if metrics != nil {
		checker.WithMetrics(metrics)
	}
	vis := authz.NewVisibilityFilter(store, checker)
	prov := authz.NewProvenanceResolver(store, vis)

	server := api.NewServer(api.Deps{
		Store:      store,
		Users:      users.NewService(store, checker, cfg.Auth.BcryptCost),
		Workspaces: workspaces.NewService(store, checker, vis,
			workspaces.Options{RequireSourceView: cfg.Auth.RequireSourceView}, log),
		Visibility:   vis,
		Provenance:   prov,
		Sessions:     sessionMgr,
		Logger:       log,
		Metrics:      metrics,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	})

	apiSrv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	healthSrv := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: observability.NewHealthHandler(registry, pingers).Routes(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("addr", apiSrv.Addr).Info("api server listening")
		if err := apiSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.WithField("addr", healthSrv.Addr).Info("health server listening")
		if err := healthSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		_ = healthSrv.Shutdown(shutdownCtx)
		return apiSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// buildStore constructs the configured graph store, registering its health
// pinger, and returns a cleanup func.
func buildStore(cfg *config.Config, pingers map[string]observability.Pinger) (graph.Store, func(), error) {
	switch cfg.Store.Type {
	case "memory":
		return graph.NewMemoryStore(), func() {}, nil
	case "postgres":
		store, err := postgres.Open(cfg.Store.PostgresURL, cfg.Store.PostgresMaxConns, cfg.Store.PostgresTimeout)
		if err != nil {
			return nil, nil, err
		}
		pingers["postgres"] = store
		return store, func() { store.Close() }, nil
	case "surreal":
		store, err := surreal.Open(surreal.Config{
			URL:       cfg.Store.SurrealURL,
			User:      cfg.Store.SurrealUser,
			Password:  cfg.Store.SurrealPassword,
			Namespace: cfg.Store.SurrealNamespace,
			Database:  cfg.Store.SurrealDatabase,
		})
		if err != nil {
			return nil, nil, err
		}
		pingers["surreal"] = store
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store type %q", cfg.Store.Type)
	}
}

func buildSessionStore(cfg *config.Config) (sessions.Store, error) {
	switch cfg.Sessions.Backend {
	case "memory":
		return sessions.NewMemoryStore(), nil
	case "redis":
		return sessions.NewRedisStore(cfg.Sessions.RedisURL, cfg.Sessions.RedisPassword, cfg.Sessions.RedisDB)
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Sessions.Backend)
	}
}
