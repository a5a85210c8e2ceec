package syndicator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/newsroom-io/syndication-detector/internal/detector/handler"
	"github.com/newsroom-io/syndication-detector/pkg/config"
	"github.com/newsroom-io/syndication-detector/pkg/metrics"
	"github.com/newsroom-io/syndication-detector/pkg/resilience"
)

// StatusIndeterminate is returned when the detector has no shard for the
// document's language yet.
const StatusIndeterminate = ""

// DetectorClient calls the detector's classification endpoint. Calls run
// behind a circuit breaker so a down detector fails fast instead of
// stalling the consume loop, with a short retry inside each admitted call.
type DetectorClient struct {
	baseURL string
	http    *http.Client
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewDetectorClient creates a client for the configured detector URL.
func NewDetectorClient(cfg config.SyndicatorConfig, m *metrics.Metrics) *DetectorClient {
	return &DetectorClient{
		baseURL: cfg.DetectorURL,
		http:    &http.Client{Timeout: cfg.RequestTimeout},
		breaker: resilience.NewCircuitBreaker("detector", resilience.CircuitBreakerConfig{}),
		metrics: m,
		logger:  slog.Default().With("component", "detector-client"),
	}
}

// Classify posts the document to the detector and returns the status
// string, or StatusIndeterminate for a null status.
func (c *DetectorClient) Classify(ctx context.Context, req handler.ClassifyRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshaling classify request: %w", err)
	}

	var status string
	err = c.breaker.Execute(func() error {
		return resilience.Retry(ctx, "classify", resilience.RetryConfig{MaxAttempts: 3}, func() error {
			s, err := c.post(ctx, body)
			if err != nil {
				return err
			}
			status = s
			return nil
		})
	})
	if err != nil {
		if c.metrics != nil {
			c.metrics.DetectorRequestErrors.Inc()
		}
		return "", err
	}
	return status, nil
}

func (c *DetectorClient) post(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/is_duplicate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building classify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling detector: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if c.metrics != nil {
			c.metrics.DetectorBadResponsesTotal.Inc()
		}
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("detector returned %d: %s", resp.StatusCode, payload)
	}

	var cr handler.ClassifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("decoding detector response: %w", err)
	}
	if cr.Status == nil {
		return StatusIndeterminate, nil
	}
	return *cr.Status, nil
}
