// Package cache stores generated dataset archives in Redis so a repeated
// run with the same generator, seed and parameters can skip generation.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datagen/pkg/params"
)

const (
	keyPrefix  = "datagen:dataset:"
	lockPrefix = "datagen:lock:"

	lockTTL = 2 * time.Minute
)

// DatasetCache is safe to use as a nil pointer; every lookup then misses.
type DatasetCache struct {
	client *redis.Client
	locker *redislock.Client
	ttl    time.Duration
	logger *zap.Logger
}

// New returns nil when client is nil.
func New(client *redis.Client, ttl time.Duration, logger *zap.Logger) *DatasetCache {
	if client == nil {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DatasetCache{
		client: client,
		locker: redislock.New(client),
		ttl:    ttl,
		logger: logger.Named("cache"),
	}
}

// Fingerprint identifies one generation request. Resolved parameter values
// are serialized with sorted keys, so equal requests hash equally.
func Fingerprint(generator string, seed int64, values params.Values) (string, error) {
	body, err := json.Marshal(struct {
		Generator string        `json:"g"`
		Seed      int64         `json:"s"`
		Params    params.Values `json:"p"`
	}{generator, seed, values})
	if err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", generator, err)
	}
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:]), nil
}

// Get returns the cached ZIP archive for fingerprint.
func (c *DatasetCache) Get(ctx context.Context, fingerprint string) ([]byte, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	data, err := c.client.Get(ctx, keyPrefix+fingerprint).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}
	c.logger.Debug("Cache hit", zap.String("fingerprint", fingerprint), zap.Int("bytes", len(data)))
	return data, true, nil
}

// Put stores archive under fingerprint with the configured TTL.
func (c *DatasetCache) Put(ctx context.Context, fingerprint string, archive []byte) error {
	if c == nil {
		return nil
	}
	if err := c.client.Set(ctx, keyPrefix+fingerprint, archive, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// Lock serializes generation of one fingerprint across processes. When the
// lock is held elsewhere past the wait, the caller proceeds unlocked; the
// returned release func is always safe to call.
func (c *DatasetCache) Lock(ctx context.Context, fingerprint string, wait time.Duration) (func(), error) {
	noop := func() {}
	if c == nil {
		return noop, nil
	}

	attempts := max(int(wait/(250*time.Millisecond)), 1)
	lock, err := c.locker.Obtain(ctx, lockPrefix+fingerprint, lockTTL, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(250*time.Millisecond), attempts),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		c.logger.Warn("Could not obtain generation lock; proceeding without it",
			zap.String("fingerprint", fingerprint))
		return noop, nil
	}
	if err != nil {
		return noop, fmt.Errorf("obtain lock: %w", err)
	}

	return func() {
		// The caller's context may already be cancelled.
		if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			c.logger.Warn("Failed to release generation lock", zap.Error(err))
		}
	}, nil
}
