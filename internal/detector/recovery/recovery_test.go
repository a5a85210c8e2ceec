package recovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/newsroom-io/syndication-detector/internal/detector/lsh"
	"github.com/newsroom-io/syndication-detector/internal/detector/minhash"
	"github.com/newsroom-io/syndication-detector/internal/detector/shard"
	"github.com/newsroom-io/syndication-detector/pkg/config"
	apperrors "github.com/newsroom-io/syndication-detector/pkg/errors"
)

var testParams = lsh.Params{NumPerm: 128, Bands: 8, Rows: 16}

const (
	testSeed = 1
	testTTL  = 24 * time.Hour
)

type fakeCorpus struct {
	pages   [][]Document
	openErr error
	pageErr error // returned after all pages are served
	opened  []string
	closed  bool
}

func (f *fakeCorpus) Open(ctx context.Context, language string, window time.Duration) (Cursor, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.opened = append(f.opened, language)
	return &fakeCursor{corpus: f}, nil
}

type fakeCursor struct {
	corpus *fakeCorpus
	page   int
}

func (c *fakeCursor) Next(ctx context.Context) ([]Document, error) {
	if c.page >= len(c.corpus.pages) {
		if c.corpus.pageErr != nil {
			return nil, c.corpus.pageErr
		}
		return nil, nil
	}
	batch := c.corpus.pages[c.page]
	c.page++
	return batch, nil
}

func (c *fakeCursor) Close(ctx context.Context) error {
	c.corpus.closed = true
	return nil
}

func testPipeline(corpus Corpus) *Pipeline {
	detCfg := config.DetectorConfig{
		NumPerm: testParams.NumPerm,
		Bands:   testParams.Bands,
		Rows:    testParams.Rows,
		TTL:     testTTL,
		Seed:    testSeed,
	}
	recCfg := config.RecoveryConfig{Window: 4 * time.Hour, BatchSize: 3, Workers: 4}
	gen := minhash.NewGenerator(detCfg.NumPerm, detCfg.Seed)
	return New(corpus, detCfg, recCfg, gen, nil)
}

func doc(id, domain, subject string, age time.Duration) Document {
	var b strings.Builder
	for i := 0; i < 120; i++ {
		fmt.Fprintf(&b, "%s%d ", subject, i)
	}
	return Document{
		ArticleID: id,
		Domain:    domain,
		Text:      b.String(),
		CrawledAt: time.Now().Add(-age),
	}
}

func TestRebuildFromCorpus(t *testing.T) {
	corpus := &fakeCorpus{pages: [][]Document{
		{doc("a1", "siteA.com", "election", time.Hour), doc("a2", "siteB.com", "cricket", time.Hour)},
		{doc("a3", "siteC.com", "volcano", 2 * time.Hour)},
	}}
	p := testPipeline(corpus)

	index, err := p.Rebuild(context.Background(), "english")
	if err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}
	if index.Len() != 3 {
		t.Errorf("expected 3 entries, got %d", index.Len())
	}
	if !corpus.closed {
		t.Error("cursor must be closed after the fetch")
	}
}

func TestRebuildIndexClassifiesRecoveredDuplicates(t *testing.T) {
	// Two syndication clusters in the corpus plus one standalone article.
	election := doc("a1", "siteA.com", "election", time.Hour)
	electionCopy := doc("a2", "siteB.com", "election", time.Hour)
	cricket := doc("b1", "siteC.com", "cricket", time.Hour)
	cricketCopy := doc("b2", "siteD.com", "cricket", time.Hour)
	standalone := doc("c1", "siteE.com", "volcano", time.Hour)

	corpus := &fakeCorpus{pages: [][]Document{
		{election, electionCopy, cricket},
		{cricketCopy, standalone},
	}}
	p := testPipeline(corpus)

	index, err := p.Rebuild(context.Background(), "english")
	if err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}

	// The rebuilt index behaves exactly as if the documents had streamed in
	// live: a fresh copy of a clustered article matches, the standalone one
	// stays alone.
	sh := shard.New("english", p.gen, index, nil)
	if got := sh.Peek(election.Text, "siteX.com", "x1"); got != shard.StatusSimilarity {
		t.Errorf("expected similarity against the election cluster, got %s", got)
	}
	if got := sh.Peek(cricket.Text, "siteC.com", "x2"); got != shard.StatusDuplicate {
		t.Errorf("expected duplicate against the same-domain cricket copy, got %s", got)
	}
	if got := sh.Peek(doc("x3", "siteY.com", "asteroid", 0).Text, "siteY.com", "x3"); got != shard.StatusUnique {
		t.Errorf("expected unique for unseen content, got %s", got)
	}
}

func TestRebuildAgesEntriesFromCrawlTime(t *testing.T) {
	corpus := &fakeCorpus{pages: [][]Document{{
		doc("old", "siteA.com", "archive", testTTL+time.Hour),
		doc("new", "siteB.com", "breaking", time.Hour),
	}}}
	p := testPipeline(corpus)

	index, err := p.Rebuild(context.Background(), "english")
	if err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}
	if evicted := index.Sweep(time.Now()); evicted != 1 {
		t.Errorf("the already-expired document should sweep out, evicted %d", evicted)
	}
	if index.Len() != 1 {
		t.Errorf("expected 1 live entry, got %d", index.Len())
	}
}

func TestRebuildEmptyCorpus(t *testing.T) {
	p := testPipeline(&fakeCorpus{})
	index, err := p.Rebuild(context.Background(), "english")
	if err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}
	if index.Len() != 0 {
		t.Errorf("expected empty index, got %d entries", index.Len())
	}
}

func TestRebuildCorpusUnavailable(t *testing.T) {
	p := testPipeline(&fakeCorpus{openErr: apperrors.ErrCorpusUnavailable})
	index, err := p.Rebuild(context.Background(), "english")
	if !errors.Is(err, apperrors.ErrCorpusUnavailable) {
		t.Errorf("expected ErrCorpusUnavailable, got %v", err)
	}
	if index == nil {
		t.Fatal("a usable (empty) index must be returned even on failure")
	}
	if index.Len() != 0 {
		t.Errorf("expected empty index, got %d entries", index.Len())
	}
}

func TestRebuildPartialOnMidFetchFailure(t *testing.T) {
	corpus := &fakeCorpus{
		pages:   [][]Document{{doc("a1", "siteA.com", "election", time.Hour)}},
		pageErr: apperrors.ErrCorpusUnavailable,
	}
	p := testPipeline(corpus)

	index, err := p.Rebuild(context.Background(), "english")
	if !errors.Is(err, apperrors.ErrCorpusUnavailable) {
		t.Errorf("expected ErrCorpusUnavailable, got %v", err)
	}
	if index.Len() != 1 {
		t.Errorf("expected the fetched page recovered, got %d entries", index.Len())
	}
	if !corpus.closed {
		t.Error("cursor must be closed even on a failed fetch")
	}
}

func TestRebuildCancelled(t *testing.T) {
	corpus := &fakeCorpus{pages: [][]Document{{doc("a1", "siteA.com", "election", time.Hour)}}}
	p := testPipeline(corpus)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Rebuild(ctx, "english"); err == nil {
		t.Error("expected an error from a cancelled rebuild")
	}
}

func TestWorkersDefaultBounded(t *testing.T) {
	p := testPipeline(&fakeCorpus{})
	p.recCfg.Workers = 0
	if w := p.workers(); w < 1 || w > 16 {
		t.Errorf("derived worker count out of bounds: %d", w)
	}
	p.recCfg.Workers = 3
	if w := p.workers(); w != 3 {
		t.Errorf("configured worker count not honoured: %d", w)
	}
}
