package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"registrar/internal/events"
	"registrar/internal/jwtauth"
	"registrar/internal/ledger"
	"registrar/internal/platform/config"
	"registrar/internal/platform/httpserver"
	"registrar/internal/platform/logger"
	platformredis "registrar/internal/platform/redis"
	"registrar/internal/registry"
	"registrar/internal/registry/cache"
	regmetrics "registrar/internal/registry/metrics"
	regservice "registrar/internal/registry/service"
	regstore "registrar/internal/registry/store"
	id "registrar/pkg/domain"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	treasury := mustAccount(log, "treasury", cfg.Treasury)
	feeAdmin := mustAccount(log, "fee admin", cfg.FeeAdmin)

	store, cleanup, err := buildStore(ctx, cfg)
	if err != nil {
		log.Error("failed to build registry store", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	opts := []regservice.Option{
		regservice.WithLogger(log),
		regservice.WithMetrics(regmetrics.New()),
	}

	g, ctx := errgroup.WithContext(ctx)

	if len(cfg.KafkaBrokers) > 0 {
		publisher, err := events.NewKafkaPublisher(ctx, cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.Error("failed to connect kafka publisher", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
		opts = append(opts, regservice.WithEventPublisher(publisher))
	} else {
		inbox := make(chan events.Event, 64)
		worker := events.NewWorker(events.NewInMemoryStore(), inbox)
		g.Go(func() error {
			if err := worker.Run(ctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
		opts = append(opts, regservice.WithEventPublisher(events.NewAsyncPublisher(inbox)))
	}

	if cfg.RedisURL != "" {
		rdb, err := platformredis.New(cfg.RedisURL)
		if err != nil {
			log.Error("failed to connect redis", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		opts = append(opts, regservice.WithOwnerCache(cache.NewOwnerCache(rdb.Client, config.OwnerCacheTTL)))
	}

	bank := ledger.NewInMemory()
	svc, err := registry.NewService(store, bank, treasury, feeAdmin, opts...)
	if err != nil {
		log.Error("failed to build registry service", "error", err)
		os.Exit(1)
	}

	jwt := jwtauth.NewService(cfg.JWTSigningKey, "registrar", "registrar")
	h := registry.NewHandler(svc, jwt, log)

	router := chi.NewRouter()
	h.Register(router)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting registrar", "addr", cfg.Addr, "treasury", treasury.String())

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

// buildStore picks Postgres when configured, in-memory otherwise.
func buildStore(ctx context.Context, cfg config.Server) (regservice.RegistryStore, func(), error) {
	if cfg.PostgresURL == "" {
		store, err := regstore.NewInMemory(cfg.DefaultFee)
		return store, func() {}, err
	}

	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		return nil, func() {}, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, func() {}, err
	}
	store := regstore.NewPostgres(db)
	if err := store.EnsureSchema(ctx, cfg.DefaultFee); err != nil {
		_ = db.Close()
		return nil, func() {}, err
	}
	return store, func() { _ = db.Close() }, nil
}

// mustAccount parses a configured identity, generating an ephemeral one for
// development when unset.
func mustAccount(log *slog.Logger, role, raw string) id.AccountID {
	if raw == "" {
		account := id.NewAccountID()
		log.Warn("no "+role+" account configured, generated ephemeral identity",
			"account", account.String())
		return account
	}
	account, err := id.ParseAccountID(raw)
	if err != nil || account.IsNil() {
		log.Error("invalid "+role+" account", "value", raw)
		os.Exit(1)
	}
	return account
}
