package llm

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	calls atomic.Int32
	texts atomic.Int32
}

func (c *countingEmbedder) Name() string { return "counting" }

func (c *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(1)
	c.texts.Add(int32(len(texts)))
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func (c *countingEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	out, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// setupTestRedis 连接本地 Redis，不可用时跳过测试。
func setupTestRedis(t *testing.T) *goredis.Client {
	t.Helper()
	client := goredis.NewClient(&goredis.Options{Addr: "localhost:6379", DB: 15})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() {
		client.FlushDB(context.Background())
		_ = client.Close()
	})
	return client
}

func TestCachedEmbeddingProvider_Disabled(t *testing.T) {
	inner := &countingEmbedder{}
	c := NewCachedEmbeddingProvider(inner, nil, nil)

	_, err := c.EmbedSingle(context.Background(), "hello")
	require.NoError(t, err)
	_, err = c.EmbedSingle(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())
	assert.Equal(t, "counting", c.Name())
}

func TestCachedEmbeddingProvider_Redis(t *testing.T) {
	client := setupTestRedis(t)
	inner := &countingEmbedder{}
	c := NewCachedEmbeddingProvider(inner, client, &EmbeddingCacheConfig{
		Enabled: true, TTL: time.Minute, KeyPrefix: "test:emb:",
	})
	ctx := context.Background()

	first, err := c.Embed(ctx, []string{"a", "bb"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 1}, {2, 1}}, first)

	// "a" 和 "bb" 已缓存，只有 "ccc" 需要计算
	second, err := c.Embed(ctx, []string{"bb", "ccc", "a"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{2, 1}, {3, 1}, {1, 1}}, second)
	assert.Equal(t, int32(2), inner.calls.Load())
	assert.Equal(t, int32(3), inner.texts.Load())
}
