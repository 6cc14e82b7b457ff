package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/internal/corpus/loader"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/internal/searcher/service"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/pkg/ratelimit"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/pkg/tracing"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	exportIndex := flag.String("export-index", "", "write the loaded index as a .ridx snapshot to this path and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if err := run(cfg, *exportIndex); err != nil {
		slog.Error("recipe service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("recipe service stopped")
}

func run(cfg *config.Config, exportIndex string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pg *postgres.Client
	if cfg.Corpus.Source == config.SourcePostgres || cfg.Analytics.SnapshotEnabled {
		var err error
		pg, err = postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return err
		}
		defer pg.Close()
		slog.Info("postgres connected", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	}
	var db *sql.DB
	if pg != nil {
		db = pg.DB
	}

	loaded, err := loader.Load(ctx, cfg.Corpus, db)
	if err != nil {
		return fmt.Errorf("loading corpus: %w", err)
	}
	if exportIndex != "" {
		path, err := loader.ExportIndex(loaded.Index, exportIndex)
		if err != nil {
			return fmt.Errorf("exporting index: %w", err)
		}
		slog.Info("index snapshot written", "path", path, "tokens", loaded.Index.Len())
		return nil
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	m.CorpusRecipes.Set(float64(loaded.Store.Len()))
	m.IndexTokens.Set(float64(loaded.Index.Len()))
	var shutdownMetrics func(context.Context) error
	if cfg.Metrics.Enabled {
		shutdownMetrics = m.StartServer(cfg.Metrics.Port)
	}

	checker := health.NewChecker()
	opts := []service.Option{
		service.WithMetrics(m),
		service.WithLimits(cfg.Search),
		service.WithTracer(tracing.New(cfg.Tracing)),
	}

	var cacheAdmin handler.CacheAdmin
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			breaker := resilience.NewCircuitBreaker("redis-cache", resilience.CircuitBreakerConfig{
				FailureThreshold: 5,
				ResetTimeout:     30 * time.Second,
				OnStateChange: func(name string, _, to resilience.State) {
					m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
				},
			})
			m.CircuitBreakerState.WithLabelValues("redis-cache").Set(float64(resilience.StateClosed))
			queryCache := cache.New[service.Page](redisClient, cfg.Redis.CacheTTL, pkgredis.IsNilError, breaker)
			opts = append(opts, service.WithCache(queryCache))
			cacheAdmin = queryCache
			checker.Register("redis", health.PingCheck(redisClient.Ping, true))
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	// Background workers stop once the HTTP server has drained, not on the
	// signal itself.
	bgCtx, cancelBg := context.WithCancel(context.Background())
	defer cancelBg()
	var wg sync.WaitGroup
	agg := analytics.NewAggregator()
	var publisher analytics.Publisher = &analytics.LocalPublisher{Aggregator: agg}
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer producer.Close()
		publisher = producer

		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, analytics.HandleEvent(agg))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Run(bgCtx); err != nil {
				slog.Error("analytics consumer error", "error", err)
			}
		}()
		slog.Info("analytics publishing to kafka", "topic", cfg.Kafka.Topics.AnalyticsEvents)
	}
	collector := analytics.NewCollector(publisher, analytics.CollectorConfig{
		BufferSize:    cfg.Analytics.BufferSize,
		BatchSize:     cfg.Analytics.BatchSize,
		FlushInterval: cfg.Analytics.FlushInterval,
	}, m.AnalyticsDropped.Inc)
	collector.Start(bgCtx)
	opts = append(opts, service.WithTracker(collector))

	var snapshots analytics.SnapshotLister
	if cfg.Analytics.SnapshotEnabled {
		store := aggregator.NewStore(pg)
		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("migrating analytics store: %w", err)
		}
		snapshots = store
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := store.Run(bgCtx, agg, cfg.Analytics.SnapshotSchedule); err != nil {
				slog.Error("analytics snapshots disabled", "error", err)
			}
		}()
	}
	if pg != nil {
		checker.Register("postgres", health.PingCheck(pg.Ping, cfg.Corpus.Source != config.SourcePostgres))
	}

	svc := service.New(loaded.Store, loaded.Index, opts...)
	checker.Register("corpus", health.PingCheck(svc.Ready, false))

	mux := http.NewServeMux()
	images := handler.Images{BaseURL: cfg.Server.ImageBaseURL, Placeholder: cfg.Server.PlaceholderImage}
	if cfg.Server.AdminToken == "" {
		slog.Warn("no admin token configured, cache invalidation is open")
	}
	handler.New(svc, cacheAdmin, images, cfg.Search.PreviewSize).
		ProtectAdmin(middleware.AdminToken(cfg.Server.AdminToken)).
		RegisterRoutes(mux)
	analytics.NewHandler(agg, snapshots).RegisterRoutes(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.Metrics(m)(chain)
	if rl := cfg.Server.RateLimit; rl.Enabled {
		trusted, err := middleware.ParseTrustedProxies(rl.TrustedProxies)
		if err != nil {
			return err
		}
		limiter := ratelimit.New(rl.RequestsPerMinute, rl.Burst)
		go limiter.RunSweeper(bgCtx, 5*time.Minute)
		chain = middleware.RateLimit(limiter, trusted)(chain)
		slog.Info("rate limiting enabled",
			"requests_per_minute", rl.RequestsPerMinute,
			"burst", rl.Burst,
			"trusted_proxies", len(trusted),
		)
	}
	chain = middleware.CORS(cfg.CORS)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout + time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		if shutdownMetrics != nil {
			if err := shutdownMetrics(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}
	}()

	slog.Info("recipe service listening",
		"addr", server.Addr,
		"recipes", loaded.Store.Len(),
		"tokens", loaded.Index.Len(),
	)
	serveErr := server.ListenAndServe()
	if errors.Is(serveErr, http.ErrServerClosed) {
		serveErr = nil
	}
	stop()
	<-shutdownDone

	collector.Close()
	cancelBg()
	wg.Wait()
	if serveErr != nil {
		return fmt.Errorf("serving http: %w", serveErr)
	}
	return nil
}
