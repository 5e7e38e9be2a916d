package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	cashandler "cas/internal/cas/handler"
	casservice "cas/internal/cas/service"
	identitystore "cas/internal/identity/store"
	"cas/internal/otp"
	"cas/internal/platform/config"
	"cas/internal/platform/httpserver"
	"cas/internal/platform/logger"
	"cas/internal/platform/metrics"
	"cas/internal/platform/postgres"
	redisclient "cas/internal/platform/redis"
	"cas/internal/registry"
	registrystore "cas/internal/registry/store"
	"cas/internal/securecontext"
	"cas/internal/session"
	"cas/internal/ticket"
	ticketstore "cas/internal/ticket/store"
	httptransport "cas/internal/transport/http"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("cas server exited", "error", err)
		os.Exit(1)
	}
}

// run wires dependencies and blocks until a signal or a fatal error.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	checks := map[string]httptransport.HealthCheck{}

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
		checks["postgres"] = db.PingContext
	}

	rdb, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
		checks["redis"] = rdb.Health
	}

	identities, services := buildDirectory(db)
	tickets := buildTicketStore(rdb)
	log.Info("stores selected",
		"postgres", db != nil,
		"redis", rdb != nil,
	)

	if err := seedAdmin(ctx, identities, cfg.Bootstrap); err != nil {
		return err
	}
	if err := seedServices(ctx, services, cfg.Bootstrap.Services); err != nil {
		return err
	}

	matcher := registry.NewMatcher(services, registry.WithLogger(log))
	issuer := session.NewIssuer(cfg.Session.SigningKey, cfg.Session.Issuer, cfg.Session.TTL)
	ticketHandler := ticket.New(tickets, identities, cfg.Ticket.TTL,
		ticket.WithLogger(log),
		ticket.WithMetrics(m),
	)
	svc := casservice.New(matcher, identities, ticketHandler, issuer, otp.New(cfg.OTP.Period, cfg.OTP.Skew), cfg.SystemDomain,
		casservice.WithLogger(log),
		casservice.WithMetrics(m),
		casservice.WithTracer(otel.Tracer("cas")),
	)

	router := httptransport.NewRouter(httptransport.Dependencies{
		Logger:   log,
		Gatherer: prometheus.DefaultGatherer,
		Chain: securecontext.Chain{
			securecontext.SessionTokenResolver(cfg.Cookie.Name, issuer, identities, matcher, log),
			securecontext.APITokenResolver(cfg.APITokenHeader, identities, matcher),
		},
		Modules: []httptransport.Registrar{cashandler.New(svc, cfg.Cookie, log)},
		Checks:  checks,
	})
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting cas server", "addr", cfg.Addr, "system_domain", cfg.SystemDomain)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return ticket.NewSweeper(tickets, m, log).Run(gctx, cfg.Ticket.SweepInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}

type directoryStore interface {
	securecontext.IdentityFinder
	identityWriter
}

type serviceStore interface {
	registry.ServiceLister
	serviceWriter
}

// buildDirectory picks PostgreSQL for identities and services when a database
// is configured, otherwise the in-memory stores.
func buildDirectory(db *sql.DB) (directoryStore, serviceStore) {
	if db != nil {
		return identitystore.NewPostgres(db), registrystore.NewPostgres(db)
	}
	return identitystore.NewInMemory(), registrystore.NewInMemory()
}

func buildTicketStore(rdb *redisclient.Client) ticket.Store {
	if rdb != nil {
		return ticketstore.NewRedis(rdb.Client)
	}
	return ticketstore.NewInMemory()
}
