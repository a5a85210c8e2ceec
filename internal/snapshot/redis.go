// Package snapshot persists serialised shard state in Redis, one opaque
// blob per language shard.
package snapshot

import (
	"context"
	"fmt"
	"log/slog"

	apperrors "github.com/newsroom-io/syndication-detector/pkg/errors"
	"github.com/newsroom-io/syndication-detector/pkg/logger"
	"github.com/newsroom-io/syndication-detector/pkg/redis"
)

// RedisStore implements the shard.SnapshotStore contract on top of Redis.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisStore wraps a Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		logger: logger.WithComponent("snapshot-store"),
	}
}

// Load returns the blob stored for shardKey, or ErrSnapshotNotFound.
func (s *RedisStore) Load(ctx context.Context, shardKey string) ([]byte, error) {
	blob, err := s.client.GetBytes(ctx, shardKey)
	if err != nil {
		if redis.IsNilError(err) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrSnapshotNotFound, shardKey)
		}
		return nil, fmt.Errorf("loading snapshot %s: %w", shardKey, err)
	}
	s.logger.Debug("snapshot loaded", "key", shardKey, "bytes", len(blob))
	return blob, nil
}

// Save stores the blob for shardKey with no expiry; superseded snapshots
// are simply overwritten on the next shutdown.
func (s *RedisStore) Save(ctx context.Context, shardKey string, blob []byte) error {
	if err := s.client.Set(ctx, shardKey, blob, 0); err != nil {
		return fmt.Errorf("saving snapshot %s: %w", shardKey, err)
	}
	s.logger.Debug("snapshot saved", "key", shardKey, "bytes", len(blob))
	return nil
}
