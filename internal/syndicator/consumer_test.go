package syndicator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/newsroom-io/syndication-detector/internal/detector/handler"
	"github.com/newsroom-io/syndication-detector/pkg/config"
	"github.com/newsroom-io/syndication-detector/pkg/kafka"
)

type fakeClassifier struct {
	status string
	err    error
	reqs   []handler.ClassifyRequest
}

func (f *fakeClassifier) Classify(ctx context.Context, req handler.ClassifyRequest) (string, error) {
	f.reqs = append(f.reqs, req)
	return f.status, f.err
}

type fakeResults struct {
	sets map[string][]string
	err  error
}

func newFakeResults() *fakeResults {
	return &fakeResults{sets: make(map[string][]string)}
}

func (f *fakeResults) SAdd(ctx context.Context, key string, members ...interface{}) error {
	if f.err != nil {
		return f.err
	}
	for _, m := range members {
		f.sets[key] = append(f.sets[key], m.(string))
	}
	return nil
}

type fakePublisher struct {
	events []kafka.Event
	err    error
}

func (f *fakePublisher) Publish(ctx context.Context, event kafka.Event) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func message(t *testing.T, doc CrawledDocument) []byte {
	t.Helper()
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	return raw
}

func testDoc() CrawledDocument {
	return CrawledDocument{
		TopicRecord: TopicRecord{
			URL:   "https://news.siteA.com/politics/story-1",
			Topic: "the full article text goes here",
		},
		Language: "english",
		Index:    "news",
	}
}

func TestHandleSimilarity(t *testing.T) {
	classifier := &fakeClassifier{status: "similarity"}
	results := newFakeResults()
	publisher := &fakePublisher{}
	c := NewConsumer(classifier, results, publisher, nil)

	doc := testDoc()
	if err := c.Handle(context.Background(), nil, message(t, doc)); err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	// The detector saw the derived identifiers, not the raw URL.
	if len(classifier.reqs) != 1 {
		t.Fatalf("expected 1 classify call, got %d", len(classifier.reqs))
	}
	req := classifier.reqs[0]
	if req.ArticleID != ArticleID(doc.TopicRecord.URL) {
		t.Errorf("article_id not derived from url: %q", req.ArticleID)
	}
	if req.Domain != "sitea.com" {
		t.Errorf("expected registered domain sitea.com, got %q", req.Domain)
	}
	if req.Content != doc.TopicRecord.Topic || req.Language != "english" {
		t.Errorf("unexpected classify request: %+v", req)
	}

	if got := results.sets[SimilaritySet]; len(got) != 1 || got[0] != doc.TopicRecord.URL {
		t.Errorf("url not recorded in similarity set: %v", got)
	}

	out := distributed(t, publisher)
	if !out.Syndicated || out.Classification != "similarity" {
		t.Errorf("expected syndicated similarity document, got %+v", out)
	}
}

// distributed asserts exactly one document was published and returns it.
func distributed(t *testing.T, p *fakePublisher) *CrawledDocument {
	t.Helper()
	if len(p.events) != 1 {
		t.Fatalf("expected 1 distributed document, got %d", len(p.events))
	}
	doc, ok := p.events[0].Value.(*CrawledDocument)
	if !ok {
		t.Fatalf("unexpected event value %T", p.events[0].Value)
	}
	return doc
}

func TestHandleDuplicate(t *testing.T) {
	classifier := &fakeClassifier{status: "duplicate"}
	results := newFakeResults()
	publisher := &fakePublisher{}
	c := NewConsumer(classifier, results, publisher, nil)

	doc := testDoc()
	if err := c.Handle(context.Background(), nil, message(t, doc)); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if got := results.sets[DuplicateSet]; len(got) != 1 {
		t.Errorf("url not recorded in duplicate set: %v", got)
	}
	out := distributed(t, publisher)
	if out.Syndicated {
		t.Error("a duplicate is not marked syndicated")
	}
	if out.Classification != "duplicate" {
		t.Errorf("expected duplicate classification, got %q", out.Classification)
	}
}

func TestHandleUniqueRecordsNothing(t *testing.T) {
	classifier := &fakeClassifier{status: "unique"}
	results := newFakeResults()
	publisher := &fakePublisher{}
	c := NewConsumer(classifier, results, publisher, nil)

	if err := c.Handle(context.Background(), nil, message(t, testDoc())); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if len(results.sets) != 0 {
		t.Errorf("unique documents must not be recorded, got %v", results.sets)
	}
	if len(publisher.events) != 1 {
		t.Errorf("unique documents still flow downstream, got %d events", len(publisher.events))
	}
}

func TestHandleClassifierFailureStillDistributes(t *testing.T) {
	classifier := &fakeClassifier{err: errors.New("detector down")}
	publisher := &fakePublisher{}
	c := NewConsumer(classifier, newFakeResults(), publisher, nil)

	if err := c.Handle(context.Background(), nil, message(t, testDoc())); err != nil {
		t.Fatalf("handle must tolerate a classifier failure: %v", err)
	}
	out := distributed(t, publisher)
	if out.Classification != "" || out.Syndicated {
		t.Errorf("unclassified document should pass through untouched, got %+v", out)
	}
}

func TestHandleBadPayload(t *testing.T) {
	c := NewConsumer(&fakeClassifier{}, newFakeResults(), &fakePublisher{}, nil)
	if err := c.Handle(context.Background(), nil, []byte("{nope")); err == nil {
		t.Error("expected an error for an undecodable message")
	}
}

func TestHandlePublishFailure(t *testing.T) {
	publisher := &fakePublisher{err: errors.New("broker down")}
	c := NewConsumer(&fakeClassifier{status: "unique"}, newFakeResults(), publisher, nil)
	if err := c.Handle(context.Background(), nil, message(t, testDoc())); err == nil {
		t.Error("expected a publish failure to surface")
	}
}

func TestArticleIDStable(t *testing.T) {
	url := "https://news.siteA.com/story"
	if ArticleID(url) != ArticleID(url) {
		t.Error("article id must be deterministic")
	}
	if len(ArticleID(url)) != 64 {
		t.Errorf("expected a hex sha256, got %q", ArticleID(url))
	}
	if ArticleID(url) == ArticleID(url+"?page=2") {
		t.Error("different urls must not share an id")
	}
}

func TestRegisteredDomain(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://news.siteA.com/story", "sitea.com"},
		{"https://www.bbc.co.uk/news/article", "bbc.co.uk"},
		{"http://localhost:9039/x", "localhost"},
	}
	for _, tt := range tests {
		got, err := RegisteredDomain(tt.url)
		if err != nil {
			t.Errorf("%s: %v", tt.url, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: expected %q, got %q", tt.url, tt.want, got)
		}
	}
	if _, err := RegisteredDomain("not a url at all"); err == nil {
		t.Error("expected an error for a hostless url")
	}
}

func TestDetectorClientClassify(t *testing.T) {
	var got handler.ClassifyRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/is_duplicate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		status := "duplicate"
		json.NewEncoder(w).Encode(handler.ClassifyResponse{Status: &status})
	}))
	defer srv.Close()

	client := NewDetectorClient(config.SyndicatorConfig{
		DetectorURL:    srv.URL,
		RequestTimeout: 5 * time.Second,
	}, nil)

	status, err := client.Classify(context.Background(), handler.ClassifyRequest{
		Content: "text", Language: "english", Domain: "sitea.com", ArticleID: "a1",
	})
	if err != nil {
		t.Fatalf("classify failed: %v", err)
	}
	if status != "duplicate" {
		t.Errorf("expected duplicate, got %q", status)
	}
	if got.ArticleID != "a1" {
		t.Errorf("request not forwarded, got %+v", got)
	}
}

func TestDetectorClientNullStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(handler.ClassifyResponse{Status: nil})
	}))
	defer srv.Close()

	client := NewDetectorClient(config.SyndicatorConfig{
		DetectorURL:    srv.URL,
		RequestTimeout: 5 * time.Second,
	}, nil)

	status, err := client.Classify(context.Background(), handler.ClassifyRequest{})
	if err != nil {
		t.Fatalf("classify failed: %v", err)
	}
	if status != StatusIndeterminate {
		t.Errorf("expected indeterminate, got %q", status)
	}
}

func TestDetectorClientBadResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewDetectorClient(config.SyndicatorConfig{
		DetectorURL:    srv.URL,
		RequestTimeout: time.Second,
	}, nil)

	if _, err := client.Classify(context.Background(), handler.ClassifyRequest{}); err == nil {
		t.Error("expected an error for a 500 response")
	}
}
