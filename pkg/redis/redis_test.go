package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/CyberArcenal/Kabisilya-Management-sub006/config"
)

// 需要真实 Redis：PITAK_TEST_REDIS_ADDR=localhost:6379 go test ./pkg/redis/...
func newTestClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("PITAK_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("未设置 PITAK_TEST_REDIS_ADDR，跳过 Redis 测试")
	}
	c, err := NewClient(&config.RedisConfig{Addr: addr}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCheckRateLimit(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	key := "test:" + uuid.NewString()

	for i := 0; i < 3; i++ {
		ok, err := c.CheckRateLimit(ctx, key, 3, time.Second)
		require.NoError(t, err)
		assert.True(t, ok, "第 %d 次请求应放行", i+1)
	}

	ok, err := c.CheckRateLimit(ctx, key, 3, time.Second)
	require.NoError(t, err)
	assert.False(t, ok, "超出限额应拒绝")

	time.Sleep(1100 * time.Millisecond)
	ok, err = c.CheckRateLimit(ctx, key, 3, time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "窗口滑过后应恢复")
}

func TestBlacklist(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	jti := uuid.NewString()

	listed, err := c.IsBlacklisted(ctx, jti)
	require.NoError(t, err)
	assert.False(t, listed)

	require.NoError(t, c.BlacklistToken(ctx, jti, time.Minute))
	listed, err = c.IsBlacklisted(ctx, jti)
	require.NoError(t, err)
	assert.True(t, listed)

	// 已过期的 Token 不写入
	other := uuid.NewString()
	require.NoError(t, c.BlacklistToken(ctx, other, 0))
	listed, err = c.IsBlacklisted(ctx, other)
	require.NoError(t, err)
	assert.False(t, listed)
}

func TestNewClient_Unreachable(t *testing.T) {
	_, err := NewClient(&config.RedisConfig{Addr: "127.0.0.1:1"}, zap.NewNop())
	assert.Error(t, err)
}
