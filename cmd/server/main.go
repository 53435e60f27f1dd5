package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"gatelog/internal/auditlog"
	"gatelog/internal/auditlog/cache"
	"gatelog/internal/auditlog/handler"
	"gatelog/internal/auditlog/metrics"
	"gatelog/internal/auditlog/store/memory"
	"gatelog/internal/auditlog/store/postgres"
	"gatelog/internal/auditlog/store/sqlite"
	"gatelog/internal/platform/config"
	"gatelog/internal/platform/httpserver"
	"gatelog/internal/platform/logger"
	"gatelog/internal/platform/middleware"
	platformredis "gatelog/internal/platform/redis"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in internal/auditlog.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	store, closeStore, err := openStore(cfg, log)
	if err != nil {
		log.Error("store initialization failed", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	m := metrics.New()

	serviceOpts := []auditlog.ServiceOption{
		auditlog.WithLogger(log),
		auditlog.WithMetrics(m),
		auditlog.WithMaxPageSize(cfg.MaxPageSize),
		auditlog.WithCatalog(auditlog.NewStaticCatalog()),
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis initialization failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		serviceOpts = append(serviceOpts,
			auditlog.WithFacetCache(cache.NewRedisFacetCache(redisClient.Client, cfg.FacetCacheTTL, log)))
		log.Info("facet cache enabled", "ttl", cfg.FacetCacheTTL)
	}

	recorder := auditlog.NewRecorder(store,
		auditlog.WithRecorderLogger(log),
		auditlog.WithRecorderMetrics(m),
		auditlog.WithAsyncBuffer(cfg.RecorderBuffer),
	)
	service := auditlog.NewService(store, serviceOpts...)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logging(log))
	handler.New(recorder, service, log).Register(router)
	router.Handle("/metrics", promhttp.Handler())

	srv := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("starting gatelog server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		// Drain buffered audit events before exiting.
		return recorder.Close()
	})

	if err := group.Wait(); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

// openStore picks the storage backend: postgres when a database URL is
// configured, a local SQLite file when a path is given, and the in-memory
// store otherwise (development only; events do not survive restarts).
func openStore(cfg config.Server, log *slog.Logger) (auditlog.Store, func(), error) {
	switch {
	case cfg.DatabaseURL != "":
		store, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		log.Info("using postgres audit store")
		return store, func() { _ = store.Close() }, nil
	case cfg.SQLitePath != "":
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		log.Info("using sqlite audit store", "path", cfg.SQLitePath)
		return store, func() { _ = store.Close() }, nil
	default:
		log.Warn("using in-memory audit store, events will not survive restarts")
		return memory.NewInMemoryStore(), func() {}, nil
	}
}
