// Package syndicator consumes crawled articles from Kafka, asks the
// detector service whether each one is a republish, records the outcome,
// and forwards the classified document downstream.
package syndicator

// TopicRecord is the crawled payload inside a queue message.
type TopicRecord struct {
	URL   string `json:"url"`
	Topic string `json:"topic"`
}

// CrawledDocument is the queue message produced by the crawler fleet.
// Classification and Syndicated are attached before the document is
// republished downstream.
type CrawledDocument struct {
	TopicRecord    TopicRecord `json:"topicRecord"`
	Language       string      `json:"language"`
	Index          string      `json:"index,omitempty"`
	Syndicated     bool        `json:"syndicated"`
	Classification string      `json:"classification,omitempty"`
}
