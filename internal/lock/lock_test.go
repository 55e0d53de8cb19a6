package lock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker(t *testing.T) {
	var l Locker = LocalLocker{}

	first, err := l.Obtain(context.Background(), "sweep", time.Minute)
	require.NoError(t, err)
	second, err := l.Obtain(context.Background(), "sweep", time.Minute)
	require.NoError(t, err)

	assert.NoError(t, first.Release(context.Background()))
	assert.NoError(t, second.Release(context.Background()))
}

func TestConnect_InvalidURL(t *testing.T) {
	_, err := Connect(context.Background(), "://nope")
	assert.Error(t, err)
}

// TestRedisLocker runs against a real Redis when TEST_REDIS_URL is set.
func TestRedisLocker(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}

	ctx := context.Background()
	rdb, err := Connect(ctx, url)
	require.NoError(t, err)
	defer rdb.Close()

	l := NewRedisLocker(rdb)
	key := "bwg:test:" + uuid.NewString()

	lease, err := l.Obtain(ctx, key, 5*time.Second)
	require.NoError(t, err)

	_, err = l.Obtain(ctx, key, 5*time.Second)
	assert.ErrorIs(t, err, ErrNotObtained)

	require.NoError(t, lease.Release(ctx))

	again, err := l.Obtain(ctx, key, 5*time.Second)
	require.NoError(t, err)
	assert.NoError(t, again.Release(ctx))
}
