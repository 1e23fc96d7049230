package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/promo-crawler/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "promo:snapshot:"
	RunStream = "promo:runs"
)

var ErrNotFound = errors.New("snapshot not cached")

// RedisClient is the subset of go-redis used here.
type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
	Close() error
}

// SnapshotCache keeps the latest snapshot per timeframe and announces
// finished runs on a stream.
type SnapshotCache struct {
	client RedisClient
	ttl    time.Duration
	logger *slog.Logger
}

func New(client RedisClient, ttl time.Duration, logger *slog.Logger) *SnapshotCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotCache{
		client: client,
		ttl:    ttl,
		logger: logger.With("component", "snapshot_cache"),
	}
}

// Dial connects to addr and checks the connection.
func Dial(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func Key(timeframe models.TimeframeKey) string {
	return keyPrefix + string(timeframe)
}

func (c *SnapshotCache) WriteSnapshot(ctx context.Context, snapshot *models.Snapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	key := Key(snapshot.Window.Key)
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache snapshot: %w", err)
	}

	c.logger.Debug("cached snapshot", "key", key, "bytes", len(payload))
	return nil
}

func (c *SnapshotCache) Latest(ctx context.Context, timeframe models.TimeframeKey) (*models.Snapshot, error) {
	payload, err := c.client.Get(ctx, Key(timeframe)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached snapshot: %w", err)
	}

	var snapshot models.Snapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snapshot, nil
}

// PublishRun appends a run summary to the run stream.
func (c *SnapshotCache) PublishRun(ctx context.Context, runID string, summary any) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: RunStream,
		MaxLen: 1000,
		Approx: true,
		Values: map[string]interface{}{
			"run_id":       runID,
			"payload":      string(payload),
			"published_at": time.Now().UTC().Format(time.RFC3339),
		},
	}
	if err := c.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to publish run: %w", err)
	}
	return nil
}

func (c *SnapshotCache) Close() error {
	return c.client.Close()
}
