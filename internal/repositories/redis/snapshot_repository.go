package redisrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arkamarket/checkout/internal/domain"
	"github.com/arkamarket/checkout/internal/repositories"
)

const snapshotKeyPrefix = "checkout:items:"

// SnapshotStore is the Redis-backed CartSnapshotStore. The cart page
// writes the snapshot under a well-known per-user key; the wizard reads
// it at session start and deletes it after a successful order.
type SnapshotStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSnapshotStore wraps the provided Redis client. ttl bounds how long
// an untouched snapshot survives; zero means no expiry.
func NewSnapshotStore(client *redis.Client, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{client: client, ttl: ttl}
}

func snapshotKey(userID string) string {
	return snapshotKeyPrefix + userID
}

// Load implements repositories.CartSnapshotStore.
func (s *SnapshotStore) Load(ctx context.Context, userID string) (domain.CartSnapshot, error) {
	raw, err := s.client.Get(ctx, snapshotKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.CartSnapshot{}, repositories.ErrSnapshotNotFound
	}
	if err != nil {
		return domain.CartSnapshot{}, fmt.Errorf("%w: %v", repositories.ErrUnavailable, err)
	}

	var snapshot domain.CartSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return domain.CartSnapshot{}, fmt.Errorf("redis: decoding cart snapshot for user %s: %w", userID, err)
	}
	return snapshot, nil
}

// Save implements repositories.CartSnapshotStore.
func (s *SnapshotStore) Save(ctx context.Context, userID string, snapshot domain.CartSnapshot) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("redis: encoding cart snapshot for user %s: %w", userID, err)
	}
	if err := s.client.Set(ctx, snapshotKey(userID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", repositories.ErrUnavailable, err)
	}
	return nil
}

// Delete implements repositories.CartSnapshotStore.
func (s *SnapshotStore) Delete(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, snapshotKey(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", repositories.ErrUnavailable, err)
	}
	return nil
}

// Ping verifies connectivity for readiness probes.
func (s *SnapshotStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
