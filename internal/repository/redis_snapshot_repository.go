package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type redisSnapshotRepository struct {
	client *redis.Client
	key    string
}

// NewRedisSnapshotRepository creates a SnapshotRepository storing the snapshot under a single key
func NewRedisSnapshotRepository(client *redis.Client, key string) SnapshotRepository {
	return &redisSnapshotRepository{client: client, key: key}
}

// Read returns the stored snapshot document
func (r *redisSnapshotRepository) Read(ctx context.Context) ([]byte, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to read snapshot from redis: %w", err)
	}
	return data, nil
}

// Write replaces the stored snapshot. SET is atomic so readers never see a partial value.
func (r *redisSnapshotRepository) Write(ctx context.Context, data []byte) error {
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write snapshot to redis: %w", err)
	}
	return nil
}

func (r *redisSnapshotRepository) Describe() string {
	return "redis:" + r.key
}
