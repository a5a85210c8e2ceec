package syndicator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/newsroom-io/syndication-detector/internal/detector/handler"
	"github.com/newsroom-io/syndication-detector/internal/detector/shard"
	"github.com/newsroom-io/syndication-detector/pkg/kafka"
	"github.com/newsroom-io/syndication-detector/pkg/metrics"
)

// Redis set names recording classified article URLs.
const (
	SimilaritySet = "similarity"
	DuplicateSet  = "duplicate"
)

// Classifier asks the detector service for a document's status.
type Classifier interface {
	Classify(ctx context.Context, req handler.ClassifyRequest) (string, error)
}

// ResultStore records classified article URLs, keyed by outcome.
type ResultStore interface {
	SAdd(ctx context.Context, key string, members ...interface{}) error
}

// Publisher forwards classified documents downstream.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Consumer classifies each crawled document and republishes it to the
// distribution topic with the outcome attached. A document that cannot be
// classified still flows downstream; detection is advisory, distribution
// is not.
type Consumer struct {
	detector  Classifier
	results   ResultStore
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewConsumer creates a Consumer wired to the given collaborators.
func NewConsumer(detector Classifier, results ResultStore, publisher Publisher, m *metrics.Metrics) *Consumer {
	return &Consumer{
		detector:  detector,
		results:   results,
		publisher: publisher,
		metrics:   m,
		logger:    slog.Default().With("component", "syndicator-consumer"),
	}
}

// Handle is the kafka.MessageHandler for crawled documents.
func (c *Consumer) Handle(ctx context.Context, key []byte, value []byte) error {
	doc, err := kafka.DecodeJSON[CrawledDocument](value)
	if err != nil {
		if c.metrics != nil {
			c.metrics.FailedConsumeTotal.Inc()
		}
		return fmt.Errorf("decoding crawled document: %w", err)
	}
	if c.metrics != nil {
		c.metrics.DocumentsConsumedTotal.Inc()
	}

	c.classify(ctx, &doc)
	return c.distribute(ctx, key, &doc)
}

// classify asks the detector about the document and folds the outcome into
// it. Errors are logged, never returned: the document must still be
// distributed.
func (c *Consumer) classify(ctx context.Context, doc *CrawledDocument) {
	domain, err := RegisteredDomain(doc.TopicRecord.URL)
	if err != nil {
		c.logger.Error("extracting domain", "url", doc.TopicRecord.URL, "error", err)
		return
	}

	status, err := c.detector.Classify(ctx, handler.ClassifyRequest{
		Content:   doc.TopicRecord.Topic,
		Language:  doc.Language,
		Domain:    domain,
		ArticleID: ArticleID(doc.TopicRecord.URL),
	})
	if err != nil {
		c.logger.Error("classifying document", "url", doc.TopicRecord.URL, "error", err)
		return
	}

	doc.Classification = status
	switch shard.Status(status) {
	case shard.StatusSimilarity:
		doc.Syndicated = true
		c.record(ctx, SimilaritySet, doc.TopicRecord.URL)
	case shard.StatusDuplicate:
		c.record(ctx, DuplicateSet, doc.TopicRecord.URL)
	case shard.StatusUnique:
		c.logger.Info("document is original content", "url", doc.TopicRecord.URL)
	case StatusIndeterminate:
		c.logger.Warn("no verdict for document", "url", doc.TopicRecord.URL, "language", doc.Language)
	}
}

func (c *Consumer) record(ctx context.Context, set, url string) {
	if err := c.results.SAdd(ctx, set, url); err != nil {
		c.logger.Error("recording classified url", "set", set, "url", url, "error", err)
	}
}

func (c *Consumer) distribute(ctx context.Context, key []byte, doc *CrawledDocument) error {
	if err := c.publisher.Publish(ctx, kafka.Event{Key: string(key), Value: doc}); err != nil {
		if c.metrics != nil {
			c.metrics.FailedDistributionTotal.Inc()
		}
		return fmt.Errorf("publishing to distribution topic: %w", err)
	}
	if c.metrics != nil {
		c.metrics.DistributedTotal.Inc()
	}
	return nil
}

// ArticleID derives the stable document identifier from its URL.
func ArticleID(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(sum[:])
}

// RegisteredDomain extracts the eTLD+1 from a URL, so that subdomains of
// the same publisher compare as one domain.
func RegisteredDomain(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing url: %w", err)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		// Bare hostnames and IPs have no public suffix; use the host as-is.
		return host, nil
	}
	return domain, nil
}
