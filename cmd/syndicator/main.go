// Command syndicator consumes crawled articles from Kafka, classifies each
// one via the detector service and republishes it to the distribution topic
// with the verdict attached. A side-loop watches the consumer backlog and
// pauses upstream crawling through a Redis flag when it grows too deep.
//
// Usage:
//
//	go run ./cmd/syndicator [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/newsroom-io/syndication-detector/internal/syndicator"
	"github.com/newsroom-io/syndication-detector/pkg/config"
	"github.com/newsroom-io/syndication-detector/pkg/kafka"
	"github.com/newsroom-io/syndication-detector/pkg/logger"
	"github.com/newsroom-io/syndication-detector/pkg/metrics"
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

	logger.Setup("syndicator", cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting syndicator service",
		"detector_url", cfg.Syndicator.DetectorURL,
		"topic", cfg.Kafka.Topics.CrawledArticles,
		"group", cfg.Kafka.ConsumerGroup,
	)

	m := metrics.New()

	redisClient, err := redis.NewClient(cfg.Redis)
	if err != nil {
		slog.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.Info("connected to redis", "addr", cfg.Redis.Addr)

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.Distribution)
	defer producer.Close()

	detector := syndicator.NewDetectorClient(cfg.Syndicator, m)
	consumer := syndicator.NewConsumer(detector, redisClient, producer, m)
	kafkaConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.CrawledArticles, consumer.Handle)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	monitor := syndicator.NewMonitor(cfg.Syndicator, kafkaConsumer, redisClient, m)
	go monitor.Run(ctx)

	var stopMetrics func(context.Context) error
	if cfg.Metrics.Enabled {
		stopMetrics = metrics.StartServer(cfg.Metrics.Port)
	}

	slog.Info("syndicator ready, consuming from kafka")
	if err := kafkaConsumer.Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
	}

	if stopMetrics != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := stopMetrics(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown error", "error", err)
		}
	}

	slog.Info("syndicator service stopped")
}
