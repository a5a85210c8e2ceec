// Command detector starts the syndication-detection service.
//
// On startup every configured language shard is restored from its Redis
// snapshot, or rebuilt from the PostgreSQL article corpus when no usable
// snapshot exists. Once all shards are up the service answers POST
// /is_duplicate with one of duplicate, similarity, unique or
// duplicate_keys. On shutdown each shard is snapshotted back to Redis.
//
// Usage:
//
//	go run ./cmd/detector [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/newsroom-io/syndication-detector/internal/corpus"
	"github.com/newsroom-io/syndication-detector/internal/detector/handler"
	"github.com/newsroom-io/syndication-detector/internal/detector/minhash"
	"github.com/newsroom-io/syndication-detector/internal/detector/recovery"
	"github.com/newsroom-io/syndication-detector/internal/detector/shard"
	"github.com/newsroom-io/syndication-detector/internal/snapshot"
	"github.com/newsroom-io/syndication-detector/pkg/config"
	"github.com/newsroom-io/syndication-detector/pkg/health"
	"github.com/newsroom-io/syndication-detector/pkg/logger"
	"github.com/newsroom-io/syndication-detector/pkg/metrics"
	"github.com/newsroom-io/syndication-detector/pkg/middleware"
	"github.com/newsroom-io/syndication-detector/pkg/postgres"
	"github.com/newsroom-io/syndication-detector/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup("detector", cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting detector service",
		"port", cfg.Server.Port,
		"languages", cfg.Detector.Languages,
		"num_perm", cfg.Detector.NumPerm,
		"ttl", cfg.Detector.TTL,
	)

	m := metrics.New()

	// Redis — snapshot store.
	redisClient, err := redis.NewClient(cfg.Redis)
	if err != nil {
		slog.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.Info("connected to redis", "addr", cfg.Redis.Addr)

	// PostgreSQL — authoritative article corpus for cold-start recovery.
	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to postgres")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Shard manager: snapshot load with corpus recovery as fallback. Both
	// paths sign with the same generator.
	gen := minhash.NewGenerator(cfg.Detector.NumPerm, cfg.Detector.Seed)
	store := snapshot.NewRedisStore(redisClient)
	pipeline := recovery.New(
		corpus.New(db.DB, cfg.Recovery.PageSize),
		cfg.Detector, cfg.Recovery,
		gen, m,
	)
	shards := shard.NewManager(cfg.Detector, gen, store, pipeline, m)

	if err := shards.Init(ctx); err != nil {
		slog.Error("failed to initialise shards", "error", err)
		os.Exit(1)
	}

	checker := health.NewChecker()
	checker.Register("redis", probe(redisClient.Ping))
	checker.Register("postgres", probe(db.Ping))
	checker.Register("shards", func(ctx context.Context) health.ComponentHealth {
		ready, total := shards.Ready()
		if ready < total {
			return health.ComponentHealth{
				Status:  health.StatusDegraded,
				Message: fmt.Sprintf("%d of %d shards ready", ready, total),
			}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	mux := http.NewServeMux()
	h := handler.New(shards, checker, m)
	h.Register(mux)

	chain := middleware.RequestID(
		middleware.Metrics(m)(
			middleware.Timeout(cfg.Server.RequestTimeout)(mux),
		),
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	var stopMetrics func(context.Context) error
	if cfg.Metrics.Enabled {
		stopMetrics = metrics.StartServer(cfg.Metrics.Port)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		// Persist shard state after the listener drains, so no request is
		// classified against a shard newer than its snapshot.
		shards.Shutdown(shutdownCtx)
		if stopMetrics != nil {
			if err := stopMetrics(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}
	}()

	slog.Info("detector service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	<-done
	slog.Info("detector service stopped")
}

// probe adapts a ping function into a health check.
func probe(ping func(ctx context.Context) error) health.Check {
	return func(ctx context.Context) health.ComponentHealth {
		if err := ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	}
}
