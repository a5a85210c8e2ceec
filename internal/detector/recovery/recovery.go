// Package recovery rebuilds a language shard's index from the authoritative
// article corpus when no usable snapshot exists. Documents are fetched
// through a cursor over a bounded recent window, signed in parallel by a
// fixed-size worker pool, and bulk-loaded into a fresh index in one
// serialised pass. The index is only handed to the request path after the
// pass completes.
package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/newsroom-io/syndication-detector/internal/detector/lsh"
	"github.com/newsroom-io/syndication-detector/internal/detector/minhash"
	"github.com/newsroom-io/syndication-detector/internal/detector/shard"
	"github.com/newsroom-io/syndication-detector/internal/detector/tokenizer"
	"github.com/newsroom-io/syndication-detector/pkg/config"
	"github.com/newsroom-io/syndication-detector/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// maxWorkers caps the auto-sized worker pool.
const maxWorkers = 16

// Document is one corpus article.
type Document struct {
	ArticleID string
	Domain    string
	Text      string
	CrawledAt time.Time
}

// Cursor pages through a corpus result set. Next returns a nil batch when
// the result set is exhausted. Close must always be called to release
// server-side resources.
type Cursor interface {
	Next(ctx context.Context) ([]Document, error)
	Close(ctx context.Context) error
}

// Corpus is the "fetch recent documents" capability of the authoritative
// article store.
type Corpus interface {
	Open(ctx context.Context, language string, window time.Duration) (Cursor, error)
}

// Pipeline rebuilds indexes from a Corpus.
type Pipeline struct {
	corpus  Corpus
	detCfg  config.DetectorConfig
	recCfg  config.RecoveryConfig
	gen     *minhash.Generator
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a Pipeline. metrics may be nil.
func New(corpus Corpus, detCfg config.DetectorConfig, recCfg config.RecoveryConfig, gen *minhash.Generator, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		corpus:  corpus,
		detCfg:  detCfg,
		recCfg:  recCfg,
		gen:     gen,
		metrics: m,
		logger:  slog.Default().With("component", "recovery"),
	}
}

// Rebuild fetches the recent corpus window for a language and builds a fresh
// index from it. On a corpus failure mid-fetch it returns whatever was
// recovered so far together with the error; the returned index is always
// usable.
func (p *Pipeline) Rebuild(ctx context.Context, language string) (*lsh.Index, error) {
	start := time.Now()
	params := lsh.Params{NumPerm: p.detCfg.NumPerm, Bands: p.detCfg.Bands, Rows: p.detCfg.Rows}
	index := lsh.New(params, p.detCfg.TTL)

	p.logger.Info("starting recovery", "language", language, "window", p.recCfg.Window)

	docs, fetchErr := p.fetch(ctx, language)
	if fetchErr != nil {
		p.logger.Error("corpus fetch incomplete", "language", language, "fetched", len(docs), "error", fetchErr)
	}
	if len(docs) == 0 {
		p.countOutcome(fetchErr, 0)
		if fetchErr != nil {
			return index, fetchErr
		}
		p.logger.Info("recovery found no documents", "language", language)
		return index, nil
	}

	entries, signErr := p.sign(ctx, language, docs)
	if signErr != nil {
		// Only context cancellation can surface here; signing itself is
		// pure computation.
		p.countOutcome(signErr, len(entries))
		return index, signErr
	}

	// Single bulk pass: the index is private to this function until
	// returned, so no live traffic can observe the load in progress.
	index.InsertBatch(entries)

	elapsed := time.Since(start)
	p.logger.Info("recovery complete",
		"language", language,
		"documents", len(docs),
		"entries", index.Len(),
		"elapsed", elapsed.Round(time.Millisecond),
	)
	if p.metrics != nil {
		p.metrics.RecoveredDocsTotal.WithLabelValues(language).Add(float64(len(entries)))
		p.metrics.RecoveryDuration.WithLabelValues(language).Observe(elapsed.Seconds())
	}
	p.countOutcome(fetchErr, len(entries))
	return index, fetchErr
}

// fetch drains the corpus cursor for the language's recent window. On error
// it returns the documents collected so far.
func (p *Pipeline) fetch(ctx context.Context, language string) ([]Document, error) {
	cursor, err := p.corpus.Open(ctx, language, p.recCfg.Window)
	if err != nil {
		return nil, fmt.Errorf("opening corpus cursor: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if cerr := cursor.Close(closeCtx); cerr != nil {
			p.logger.Error("failed to close corpus cursor", "error", cerr)
		}
	}()

	var docs []Document
	page := 0
	for {
		batch, err := cursor.Next(ctx)
		if err != nil {
			return docs, fmt.Errorf("fetching corpus page %d: %w", page+1, err)
		}
		if batch == nil {
			return docs, nil
		}
		page++
		docs = append(docs, batch...)
		p.logger.Info("corpus page fetched", "language", language, "page", page, "documents", len(docs))
	}
}

// sign computes signatures for all documents using a bounded worker pool.
// Signature generation is stateless CPU work, so batches run fully in
// parallel; results land in pre-allocated per-batch slots.
func (p *Pipeline) sign(ctx context.Context, language string, docs []Document) ([]lsh.BatchEntry, error) {
	batchSize := p.recCfg.BatchSize
	if batchSize <= 0 {
		batchSize = 1000
	}
	numBatches := (len(docs) + batchSize - 1) / batchSize
	results := make([][]lsh.BatchEntry, numBatches)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers())
	for b := 0; b < numBatches; b++ {
		lo := b * batchSize
		hi := min(lo+batchSize, len(docs))
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			entries := make([]lsh.BatchEntry, 0, hi-lo)
			for _, doc := range docs[lo:hi] {
				sig := p.gen.Sign(tokenizer.TokenSet(doc.Text, language))
				entries = append(entries, lsh.BatchEntry{
					Key: shard.Key(doc.ArticleID, doc.Domain),
					Sig: sig,
					At:  doc.CrawledAt,
				})
			}
			results[b] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	entries := make([]lsh.BatchEntry, 0, len(docs))
	for _, batch := range results {
		entries = append(entries, batch...)
	}
	return entries, nil
}

// workers resolves the pool size: configured value, or 2x cores capped at
// maxWorkers when unset.
func (p *Pipeline) workers() int {
	if p.recCfg.Workers > 0 {
		return p.recCfg.Workers
	}
	return min(2*runtime.GOMAXPROCS(0), maxWorkers)
}

func (p *Pipeline) countOutcome(err error, entries int) {
	if p.metrics == nil {
		return
	}
	switch {
	case err != nil:
		p.metrics.RecoveriesTotal.WithLabelValues("partial").Inc()
	case entries == 0:
		p.metrics.RecoveriesTotal.WithLabelValues("empty").Inc()
	default:
		p.metrics.RecoveriesTotal.WithLabelValues("complete").Inc()
	}
}
