package redis

import (
	"context"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sentinel-antinuke/internal/antinuke"
)

func TestDebouncerSharedLatch(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client, err := New(ctx, Config{Addr: addr})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	guildID := "test-" + time.Now().Format("150405.000000")
	first := NewDebouncer(client, 200*time.Millisecond, zap.NewNop())
	second := NewDebouncer(client, 200*time.Millisecond, zap.NewNop())

	assert.True(t, first.TryAcquire(ctx, antinuke.ModuleBan, guildID))
	assert.False(t, second.TryAcquire(ctx, antinuke.ModuleBan, guildID), "latch is shared across debouncers")
	assert.True(t, second.TryAcquire(ctx, antinuke.ModuleKick, guildID))

	time.Sleep(300 * time.Millisecond)
	assert.True(t, second.TryAcquire(ctx, antinuke.ModuleBan, guildID))
}

func TestDebouncerFallsBackWhenRedisIsDown(t *testing.T) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })

	d := NewDebouncer(&Client{client: rdb}, time.Minute, zap.NewNop())
	ctx := context.Background()

	assert.True(t, d.TryAcquire(ctx, antinuke.ModuleBan, "g1"))
	assert.False(t, d.TryAcquire(ctx, antinuke.ModuleBan, "g1"))
	assert.True(t, d.fallback.Held(antinuke.ModuleBan, "g1"))
}
