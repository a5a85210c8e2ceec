package shard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/newsroom-io/syndication-detector/internal/detector/lsh"
	"github.com/newsroom-io/syndication-detector/internal/detector/minhash"
	"github.com/newsroom-io/syndication-detector/internal/detector/tokenizer"
	"github.com/newsroom-io/syndication-detector/pkg/config"
	apperrors "github.com/newsroom-io/syndication-detector/pkg/errors"
	"github.com/newsroom-io/syndication-detector/pkg/metrics"
	"github.com/newsroom-io/syndication-detector/pkg/resilience"
)

// SnapshotStore persists whole shard states as opaque blobs, keyed per
// language. Load returns ErrSnapshotNotFound when no blob exists.
type SnapshotStore interface {
	Load(ctx context.Context, shardKey string) ([]byte, error)
	Save(ctx context.Context, shardKey string, blob []byte) error
}

// Rebuilder rebuilds one language's index from the authoritative corpus.
// It may return a partially populated index together with an error when the
// corpus fails mid-fetch; an empty or partial shard is preferable to
// blocking startup.
type Rebuilder interface {
	Rebuild(ctx context.Context, language string) (*lsh.Index, error)
}

// Manager owns the language-to-shard map. Shards are created at startup
// (snapshot load or recovery), handed out to the request path by Get, and
// persisted at shutdown. There is no other way to mutate the map.
type Manager struct {
	cfg     config.DetectorConfig
	gen     *minhash.Generator
	store   SnapshotStore
	rebuild Rebuilder
	metrics *metrics.Metrics
	logger  *slog.Logger
	mu      sync.RWMutex
	shards  map[string]*Shard
}

// NewManager creates a Manager with no shards loaded. The generator must be
// the same one used to sign recovered documents, or snapshot and rebuild
// paths would disagree on signatures.
func NewManager(cfg config.DetectorConfig, gen *minhash.Generator, store SnapshotStore, rebuild Rebuilder, m *metrics.Metrics) *Manager {
	return &Manager{
		cfg:     cfg,
		gen:     gen,
		store:   store,
		rebuild: rebuild,
		metrics: m,
		logger:  slog.Default().With("component", "shard-manager"),
		shards:  make(map[string]*Shard),
	}
}

// Get returns the shard for a language, or false if the language is
// unsupported or its shard has not been made ready.
func (m *Manager) Get(language string) (*Shard, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.shards[language]
	return s, ok
}

// Init builds one shard per configured language: snapshot load first, full
// recovery on miss or corruption. A shard is only published to the request
// path once fully built, so live traffic never sees a half-loaded index.
// Init never fails the whole startup for one language; the worst outcome is
// an empty shard.
func (m *Manager) Init(ctx context.Context) error {
	for _, language := range m.cfg.Languages {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !tokenizer.Supported(language) {
			m.logger.Warn("no stop-word table for language, tokenizing without one", "language", language)
		}
		index := m.loadOrRebuild(ctx, language)
		sh := New(language, m.gen, index, m.metrics)
		m.mu.Lock()
		m.shards[language] = sh
		m.mu.Unlock()
		m.logger.Info("shard ready", "language", language, "entries", index.Len())
	}
	return nil
}

func (m *Manager) loadOrRebuild(ctx context.Context, language string) *lsh.Index {
	params := lsh.Params{NumPerm: m.cfg.NumPerm, Bands: m.cfg.Bands, Rows: m.cfg.Rows}

	blob, err := m.store.Load(ctx, snapshotKey(language))
	switch {
	case err == nil:
		index, uerr := lsh.Unmarshal(blob, params, m.cfg.TTL, m.cfg.Seed)
		if uerr == nil {
			m.countLoad("ok")
			m.logger.Info("shard loaded from snapshot", "language", language, "entries", index.Len())
			return index
		}
		m.countLoad("corrupt")
		m.logger.Error("snapshot unusable, running recovery", "language", language, "error", uerr)
	case errors.Is(err, apperrors.ErrSnapshotNotFound):
		m.countLoad("miss")
		m.logger.Info("no snapshot found, running recovery", "language", language)
	default:
		m.countLoad("error")
		m.logger.Error("snapshot store unavailable, running recovery", "language", language, "error", err)
	}

	if m.metrics != nil {
		m.metrics.LSHIndexesCreatedTotal.Inc()
	}
	index, err := m.rebuild.Rebuild(ctx, language)
	if err != nil {
		m.logger.Error("recovery incomplete, serving what was recovered",
			"language", language,
			"entries", index.Len(),
			"error", err,
		)
	}
	return index
}

// Shutdown persists every shard to the snapshot store. Save failures are
// logged and retried but never block shutdown; the corpus can re-derive the
// lost entries on the next cold start.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for language, sh := range m.shards {
		blob, err := sh.Snapshot(m.cfg.Seed)
		if err != nil {
			m.countSave("error")
			m.logger.Error("failed to serialise shard", "language", language, "error", err)
			continue
		}
		err = resilience.Retry(ctx, "snapshot-save", resilience.RetryConfig{MaxAttempts: 3}, func() error {
			return m.store.Save(ctx, snapshotKey(language), blob)
		})
		if err != nil {
			m.countSave("error")
			m.logger.Error("failed to save shard snapshot", "language", language, "error", err)
			continue
		}
		m.countSave("ok")
		if m.metrics != nil {
			m.metrics.SnapshotSizeBytes.WithLabelValues(language).Set(float64(len(blob)))
		}
		m.logger.Info("shard snapshot saved", "language", language, "bytes", len(blob))
	}
}

// snapshotKey is the store key for a language's serialised index.
func snapshotKey(language string) string {
	return fmt.Sprintf("%s:lsh_index", language)
}

// Ready reports how many of the configured languages have a shard. The
// readiness probe reports degraded until the counts match.
func (m *Manager) Ready() (ready int, total int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.shards), len(m.cfg.Languages)
}

func (m *Manager) countLoad(outcome string) {
	if m.metrics != nil {
		m.metrics.SnapshotLoadsTotal.WithLabelValues(outcome).Inc()
	}
}

func (m *Manager) countSave(outcome string) {
	if m.metrics != nil {
		m.metrics.SnapshotSavesTotal.WithLabelValues(outcome).Inc()
	}
}
