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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	jwt_token "hearth/internal/jwt_token"
	"hearth/internal/listing/events"
	"hearth/internal/listing/handler"
	listingmetrics "hearth/internal/listing/metrics"
	"hearth/internal/listing/service"
	"hearth/internal/listing/store/cache"
	"hearth/internal/listing/store/memory"
	listingpg "hearth/internal/listing/store/postgres"
	"hearth/internal/platform/config"
	"hearth/internal/platform/httpserver"
	"hearth/internal/platform/kafka"
	"hearth/internal/platform/logger"
	"hearth/internal/platform/metrics"
	"hearth/internal/platform/middleware"
	"hearth/internal/platform/postgres"
	platformredis "hearth/internal/platform/redis"
	"hearth/internal/platform/tracing"
	"hearth/pkg/platform/httputil"
	"hearth/pkg/platform/middleware/metadata"
	"hearth/pkg/platform/middleware/requesttime"
)

const (
	requestTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal/listing.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, log)
	stop()
	if err != nil {
		log.Error("listing service stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics := metrics.New(reg)
	listingMetrics := listingmetrics.New(reg)

	tp, err := tracing.New(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(flushCtx); err != nil {
			log.Warn("failed to flush traces", "error", err)
		}
	}()
	log.Info("tracing configured", "exporter", cfg.Tracing.Exporter, "sample_ratio", cfg.Tracing.SampleRatio)

	deps, cleanup, err := buildStores(ctx, cfg, log, listingMetrics)
	if err != nil {
		return err
	}
	defer cleanup()

	sink, closeSink, err := buildSink(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeSink()

	svc := service.New(deps.listings, deps.versions, deps.tx,
		service.WithLogger(log),
		service.WithMetrics(listingMetrics),
		service.WithEventSink(sink),
		service.WithTopic(cfg.Kafka.Topic),
		service.WithMaxAttempts(cfg.Listing.MaxConflictAttempts),
		service.WithCreatedEvents(cfg.Listing.EmitCreatedEvents),
		service.WithTracerProvider(tp),
	)

	jwtService := jwt_token.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer)
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, httpMetrics)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(requesttime.Middleware)
	router.Use(metadata.ClientMetadata)
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Logger(log))
	router.Use(middleware.Latency(httpMetrics))
	router.Use(middleware.Timeout(requestTimeout))
	router.Use(middleware.ContentTypeJSON)
	router.Get("/health", deps.health)

	handler.New(svc, jwt_token.NewJWTServiceAdapter(jwtService), log,
		handler.WithWriteMiddleware(limiter.Middleware),
	).Register(router)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	apiServer := httpserver.New(cfg.Addr, router)
	metricsServer := httpserver.New(cfg.MetricsAddr, metricsMux)

	g, gctx := errgroup.WithContext(ctx)
	serve := func(name string, srv *http.Server) {
		g.Go(func() error {
			log.Info("listening", "server", name, "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	serve("api", apiServer)
	serve("metrics", metricsServer)

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return errors.Join(apiServer.Shutdown(shutdownCtx), metricsServer.Shutdown(shutdownCtx))
	})

	return g.Wait()
}

type storeDeps struct {
	listings service.ListingStore
	versions service.VersionStore
	tx       service.StoreTx
	health   http.HandlerFunc
}

// buildStores picks postgres when DATABASE_URL is set and the in-memory store
// otherwise, and fronts version reads with redis when REDIS_URL is set.
func buildStores(ctx context.Context, cfg config.Server, log *slog.Logger, m *listingmetrics.Metrics) (storeDeps, func(), error) {
	var (
		deps     storeDeps
		closers  []func()
		checks   []func(context.Context) error
		versions service.VersionStore
	)
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return deps, cleanup, err
		}
		closers = append(closers, func() { _ = db.Close() })
		if err := listingpg.Migrate(ctx, db); err != nil {
			cleanup()
			return deps, func() {}, err
		}
		store := listingpg.New(db)
		deps.listings, deps.tx, versions = store, store, store
		checks = append(checks, db.PingContext)
		log.Info("using postgres listing store")
	} else {
		store := memory.NewInMemory()
		deps.listings, deps.tx, versions = store, store, store
		log.Warn("DATABASE_URL not set; listings are kept in memory")
	}

	rc, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		cleanup()
		return deps, func() {}, err
	}
	if rc != nil {
		closers = append(closers, func() { _ = rc.Close() })
		versions = cache.NewVersionCache(rc.Client, versions, cfg.Listing.VersionCacheTTL,
			cache.WithMetrics(m),
			cache.WithLogger(log),
		)
		checks = append(checks, rc.Health)
		log.Info("snapshot cache enabled")
	}
	deps.versions = versions

	deps.health = func(w http.ResponseWriter, r *http.Request) {
		for _, check := range checks {
			if err := check(r.Context()); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
	return deps, cleanup, nil
}

// buildSink returns a Kafka sink when brokers are configured and a log-only
// sink otherwise.
func buildSink(ctx context.Context, cfg config.Server, log *slog.Logger) (service.EventSink, func(), error) {
	if len(cfg.Kafka.Brokers) == 0 {
		log.Warn("KAFKA_BROKERS not set; listing events are only logged")
		return events.NewMemorySink(log), func() {}, nil
	}
	client, err := kafka.NewClient(cfg.Kafka)
	if err != nil {
		return nil, nil, err
	}
	if err := kafka.EnsureTopic(ctx, client, cfg.Kafka.Topic); err != nil {
		client.Close()
		return nil, nil, err
	}
	return events.NewKafkaSink(client), closeKafka(client), nil
}

func closeKafka(client *kgo.Client) func() {
	return func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Flush(flushCtx)
		client.Close()
	}
}
