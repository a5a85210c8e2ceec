// Package corpus adapts the authoritative article store (PostgreSQL) to the
// recovery pipeline's fetch contract. Pagination uses a server-side cursor
// inside a read-only transaction, so the page sequence stays stable under
// concurrent corpus writes, and Close releases the server resources.
package corpus

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/newsroom-io/syndication-detector/internal/detector/recovery"
	apperrors "github.com/newsroom-io/syndication-detector/pkg/errors"
)

const cursorName = "recent_articles_cur"

// Store fetches recent articles for recovery.
type Store struct {
	db       *sql.DB
	pageSize int
	logger   *slog.Logger
}

// New creates a Store reading pageSize documents per fetch.
func New(db *sql.DB, pageSize int) *Store {
	if pageSize <= 0 {
		pageSize = 500
	}
	return &Store{
		db:       db,
		pageSize: pageSize,
		logger:   slog.Default().With("component", "corpus"),
	}
}

// Open declares a server-side cursor over articles of the given language
// crawled within the window, oldest first.
func (s *Store) Open(ctx context.Context, language string, window time.Duration) (recovery.Cursor, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("%w: beginning transaction: %v", apperrors.ErrCorpusUnavailable, err)
	}

	since := time.Now().Add(-window).UTC()
	// DECLARE does not take bind parameters, so the two values are quoted
	// as literals.
	stmt := fmt.Sprintf(
		`DECLARE %s CURSOR FOR
			SELECT article_id, domain, body, crawled_at
			FROM articles
			WHERE language = %s AND crawled_at >= %s
			ORDER BY crawled_at, article_id`,
		cursorName,
		pq.QuoteLiteral(language),
		pq.QuoteLiteral(since.Format(time.RFC3339Nano)),
	)
	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("declaring corpus cursor: %w", err)
	}
	return &cursor{tx: tx, pageSize: s.pageSize, logger: s.logger}, nil
}

type cursor struct {
	tx       *sql.Tx
	pageSize int
	logger   *slog.Logger
	done     bool
}

// Next fetches the next page. A nil batch signals exhaustion.
func (c *cursor) Next(ctx context.Context) ([]recovery.Document, error) {
	if c.done {
		return nil, nil
	}
	rows, err := c.tx.QueryContext(ctx, fmt.Sprintf("FETCH %d FROM %s", c.pageSize, cursorName))
	if err != nil {
		return nil, fmt.Errorf("fetching from corpus cursor: %w", err)
	}
	defer rows.Close()

	var docs []recovery.Document
	for rows.Next() {
		var doc recovery.Document
		if err := rows.Scan(&doc.ArticleID, &doc.Domain, &doc.Text, &doc.CrawledAt); err != nil {
			return nil, fmt.Errorf("scanning corpus row: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating corpus rows: %w", err)
	}
	if len(docs) < c.pageSize {
		c.done = true
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return docs, nil
}

// Close closes the server-side cursor and ends the transaction.
func (c *cursor) Close(ctx context.Context) error {
	if _, err := c.tx.ExecContext(ctx, fmt.Sprintf("CLOSE %s", cursorName)); err != nil {
		c.logger.Error("failed to close corpus cursor", "error", err)
	}
	if err := c.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return fmt.Errorf("ending corpus transaction: %w", err)
	}
	return nil
}
