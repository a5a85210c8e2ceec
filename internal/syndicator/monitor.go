package syndicator

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/newsroom-io/syndication-detector/pkg/config"
	"github.com/newsroom-io/syndication-detector/pkg/metrics"
)

// ThrottleKey is the Redis flag the crawler fleet polls before enqueueing
// more work. "false" pauses crawling until the backlog drains.
const ThrottleKey = "is_syndicate_on"

// DepthProbe reports the consumer's backlog on the crawled-articles topic.
type DepthProbe interface {
	Lag() int64
}

// FlagStore persists the throttle flag.
type FlagStore interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Monitor watches queue depth and pauses upstream crawling when the
// backlog exceeds the configured limit.
type Monitor struct {
	probe    DepthProbe
	flags    FlagStore
	maxDepth int64
	interval time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewMonitor creates a Monitor from the syndicator configuration.
func NewMonitor(cfg config.SyndicatorConfig, probe DepthProbe, flags FlagStore, m *metrics.Metrics) *Monitor {
	return &Monitor{
		probe:    probe,
		flags:    flags,
		maxDepth: cfg.MaxQueueDepth,
		interval: cfg.MonitorInterval,
		metrics:  m,
		logger:   slog.Default().With("component", "queue-monitor"),
	}
}

// Run probes the backlog on each tick until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info("queue monitor started", "max_depth", m.maxDepth, "interval", m.interval)
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("queue monitor stopping")
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check probes the backlog once and updates the throttle flag.
func (m *Monitor) Check(ctx context.Context) {
	depth := m.probe.Lag()
	if m.metrics != nil {
		m.metrics.QueueDepth.Set(float64(depth))
	}

	throttle := depth > m.maxDepth
	if throttle {
		m.logger.Warn("backlog over limit, pausing syndication", "depth", depth, "max_depth", m.maxDepth)
	}
	if err := m.flags.Set(ctx, ThrottleKey, strconv.FormatBool(!throttle), 0); err != nil {
		m.logger.Error("setting throttle flag", "error", err)
		return
	}
	if m.metrics != nil {
		if throttle {
			m.metrics.ThrottleActive.Set(1)
		} else {
			m.metrics.ThrottleActive.Set(0)
		}
	}
}
