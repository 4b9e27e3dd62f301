package notification

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDeduperFirstDelivery(t *testing.T) {
	d := NewMemoryDeduper(time.Hour)
	ctx := context.Background()

	first, err := d.FirstDelivery(ctx, "u1", "e1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := d.FirstDelivery(ctx, "u1", "e1")
	require.NoError(t, err)
	assert.False(t, again)

	otherUser, _ := d.FirstDelivery(ctx, "u2", "e1")
	assert.True(t, otherUser)
}

func TestMemoryDeduperEmptyIDAlwaysDelivers(t *testing.T) {
	d := NewMemoryDeduper(time.Hour)
	for i := 0; i < 3; i++ {
		ok, err := d.FirstDelivery(context.Background(), "u1", "")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, 0, d.Len())
}

func TestMemoryDeduperExpires(t *testing.T) {
	d := NewMemoryDeduper(time.Minute)
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	ok, _ := d.FirstDelivery(context.Background(), "u1", "e1")
	require.True(t, ok)

	now = now.Add(2 * time.Minute)
	ok, _ = d.FirstDelivery(context.Background(), "u1", "e1")
	assert.True(t, ok)
	assert.Equal(t, 1, d.Len())
}

func TestRedisDeduper(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	d := NewRedisDeduper(client, time.Minute)
	ctx := context.Background()
	eventID := "test-" + time.Now().Format(time.RFC3339Nano)

	first, err := d.FirstDelivery(ctx, "u1", eventID)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := d.FirstDelivery(ctx, "u1", eventID)
	require.NoError(t, err)
	assert.False(t, again)
}
