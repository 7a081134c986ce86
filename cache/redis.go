package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"options-flow-tracker/models"
)

const (
	// SnapshotKey holds the last applied backend snapshot
	SnapshotKey = "flow:snapshot:last"
	// ReadModelChannel receives every published read model
	ReadModelChannel = "flow:readmodel"
)

// ErrNotFound is returned when no cached snapshot exists
var ErrNotFound = errors.New("cache: not found")

// RedisClient wraps redis.Client
type RedisClient struct {
	client *redis.Client
	ttl    time.Duration
	log    *logrus.Entry
}

// NewRedisClient creates a new Redis client and verifies the connection
func NewRedisClient(host, port, password string, ttl time.Duration, logger *logrus.Logger) (*RedisClient, error) {
	addr := fmt.Sprintf("%s:%s", host, port)
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0, // use default DB
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	log := logger.WithField("component", "cache")
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	log.Infof("✅ Connected to Redis at %s", addr)
	return &RedisClient{client: client, ttl: ttl, log: log}, nil
}

// Set stores a value in Redis with expiration
func (r *RedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if r.client == nil {
		return fmt.Errorf("redis client not initialized")
	}

	jsonBytes, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return r.client.Set(ctx, key, jsonBytes, expiration).Err()
}

// Get retrieves a value from Redis
func (r *RedisClient) Get(ctx context.Context, key string, dest interface{}) error {
	if r.client == nil {
		return fmt.Errorf("redis client not initialized")
	}

	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	return json.Unmarshal([]byte(val), dest)
}

// SaveSnapshot stores the snapshot as the last known good state
func (r *RedisClient) SaveSnapshot(ctx context.Context, snap *models.Snapshot) error {
	if snap == nil {
		return nil
	}
	if err := r.Set(ctx, SnapshotKey, snap, r.ttl); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the cached snapshot, or ErrNotFound
func (r *RedisClient) LoadSnapshot(ctx context.Context) (*models.Snapshot, error) {
	var snap models.Snapshot
	if err := r.Get(ctx, SnapshotKey, &snap); err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	snap.Normalize()
	return &snap, nil
}

// Publish sends a message to a channel
func (r *RedisClient) Publish(ctx context.Context, channel string, message interface{}) error {
	if r.client == nil {
		return fmt.Errorf("redis client not initialized")
	}

	jsonBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	return r.client.Publish(ctx, channel, jsonBytes).Err()
}

// Close closes the Redis connection
func (r *RedisClient) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}
