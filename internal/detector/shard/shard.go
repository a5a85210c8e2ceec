// Package shard owns one language's similarity index and applies the
// duplicate/similarity/unique decision rule. All index access is serialised
// behind the shard mutex so the classifier's sweep-insert-query sequence is
// one atomic unit per language.
package shard

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/newsroom-io/syndication-detector/internal/detector/lsh"
	"github.com/newsroom-io/syndication-detector/internal/detector/minhash"
	"github.com/newsroom-io/syndication-detector/internal/detector/tokenizer"
	"github.com/newsroom-io/syndication-detector/pkg/metrics"
)

// Status is the classification outcome for one document.
type Status string

const (
	StatusDuplicate     Status = "duplicate"
	StatusSimilarity    Status = "similarity"
	StatusUnique        Status = "unique"
	StatusDuplicateKeys Status = "duplicate_keys"
)

// keySeparator joins article_id and domain into the composite index key.
// Inputs containing it would make the key ambiguous to split, which is the
// duplicate_keys condition.
const keySeparator = "|"

// Key builds the composite index key for an article.
func Key(articleID, domain string) string {
	return articleID + keySeparator + domain
}

// SplitKey splits a composite key back into its article_id and domain
// components.
func SplitKey(key string) (articleID, domain string) {
	articleID, domain, _ = strings.Cut(key, keySeparator)
	return articleID, domain
}

// ValidKeyPart reports whether a key component is safe to embed in a
// composite key.
func ValidKeyPart(part string) bool {
	return !strings.Contains(part, keySeparator)
}

// Shard is one language's similarity index plus its signature generator.
type Shard struct {
	language string
	mu       sync.Mutex
	gen      *minhash.Generator
	index    *lsh.Index
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// New wraps an index and generator into a Shard. metrics may be nil.
func New(language string, gen *minhash.Generator, index *lsh.Index, m *metrics.Metrics) *Shard {
	return &Shard{
		language: language,
		gen:      gen,
		index:    index,
		metrics:  m,
		logger:   slog.Default().With("component", "shard", "language", language),
		now:      time.Now,
	}
}

// Language returns the shard's language.
func (s *Shard) Language() string {
	return s.language
}

// Len returns the number of entries currently tracked.
func (s *Shard) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Len()
}

// Classify computes the document's signature, inserts it into the index so
// future documents can match it, and classifies it against the candidate
// set. Expired entries are swept first; the whole sequence holds the shard
// lock so concurrent requests for the same language cannot interleave.
func (s *Shard) Classify(content, domain, articleID string) Status {
	if !ValidKeyPart(articleID) || !ValidKeyPart(domain) {
		s.count(StatusDuplicateKeys)
		return StatusDuplicateKeys
	}
	sig := s.sign(content)
	key := Key(articleID, domain)
	now := s.now()

	s.mu.Lock()
	evicted := s.index.Sweep(now)
	s.index.Insert(key, sig, now)
	candidates := s.index.Query(sig, now)
	size := s.index.Len()
	s.mu.Unlock()

	if evicted > 0 {
		s.logger.Info("expired entries removed", "count", evicted)
		if s.metrics != nil {
			s.metrics.ExpiredKeysTotal.WithLabelValues(s.language).Add(float64(evicted))
			s.metrics.SweepsTotal.Inc()
		}
	}
	if s.metrics != nil {
		s.metrics.IndexEntries.WithLabelValues(s.language).Set(float64(size))
	}

	status := s.resolve(candidates, domain, articleID)
	s.count(status)
	return status
}

// Peek classifies without inserting. Used for read-only probes; repeated
// calls against a fixed index state return the same status.
func (s *Shard) Peek(content, domain, articleID string) Status {
	if !ValidKeyPart(articleID) || !ValidKeyPart(domain) {
		return StatusDuplicateKeys
	}
	sig := s.sign(content)

	s.mu.Lock()
	candidates := s.index.Query(sig, s.now())
	s.mu.Unlock()

	return s.resolve(candidates, domain, articleID)
}

// resolve applies the decision rule to a candidate set. Candidates with the
// querying document's own article_id are dropped first, so a document never
// matches its just-inserted self; the comparison is on the article_id
// component alone, letting the same article crawled from two domains still
// match itself across domains.
func (s *Shard) resolve(candidates []string, domain, articleID string) Status {
	matched := false
	for _, key := range candidates {
		candID, candDomain := SplitKey(key)
		if candID == articleID {
			continue
		}
		matched = true
		if candDomain == domain {
			return StatusDuplicate
		}
	}
	if matched {
		return StatusSimilarity
	}
	return StatusUnique
}

func (s *Shard) sign(content string) minhash.Signature {
	return s.gen.Sign(tokenizer.TokenSet(content, s.language))
}

// Snapshot serialises the shard's index under the given seed.
func (s *Shard) Snapshot(seed uint64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Marshal(seed)
}

func (s *Shard) count(status Status) {
	if s.metrics != nil {
		s.metrics.ClassificationsTotal.WithLabelValues(string(status), s.language).Inc()
	}
}
