//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datagen/pkg/testhelpers"
)

func TestDatasetCache_RoundTrip(t *testing.T) {
	c := New(testhelpers.GetTestRedis(t), time.Minute, zap.NewNop())
	ctx := context.Background()
	fp := uuid.NewString()

	_, ok, err := c.Get(ctx, fp)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(ctx, fp, []byte("PK\x03\x04archive")))
	data, ok, err := c.Get(ctx, fp)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("PK\x03\x04archive"), data)

	ttl, err := c.client.TTL(ctx, keyPrefix+fp).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestDatasetCache_LockSerializes(t *testing.T) {
	c := New(testhelpers.GetTestRedis(t), time.Minute, zap.NewNop())
	ctx := context.Background()
	fp := uuid.NewString()

	release, err := c.Lock(ctx, fp, time.Second)
	require.NoError(t, err)

	exists, err := c.client.Exists(ctx, lockPrefix+fp).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)

	// A second caller gives up after the wait and proceeds unlocked.
	started := time.Now()
	second, err := c.Lock(ctx, fp, 500*time.Millisecond)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(started), 250*time.Millisecond)
	second()

	release()
	exists, err = c.client.Exists(ctx, lockPrefix+fp).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), exists)
}
