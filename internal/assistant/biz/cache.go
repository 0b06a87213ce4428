package biz

import (
	"context"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/moktashif/internal/pkg/textutil"
	"github.com/kart-io/moktashif/pkg/utils/json"
)

// SummaryCacheConfig 摘要缓存配置。
type SummaryCacheConfig struct {
	// Enabled 是否启用缓存。
	Enabled bool
	// TTL 缓存过期时间。
	TTL time.Duration
	// KeyPrefix 缓存键前缀。
	KeyPrefix string
}

// DefaultSummaryCacheConfig 返回默认配置。
func DefaultSummaryCacheConfig() *SummaryCacheConfig {
	return &SummaryCacheConfig{
		Enabled:   true,
		TTL:       24 * time.Hour,
		KeyPrefix: "moktashif:summary:",
	}
}

// SummaryCache 以文档内容哈希缓存层级摘要。redis 为 nil 时所有操作为空操作。
type SummaryCache struct {
	redis  goredis.UniversalClient
	config *SummaryCacheConfig
}

type cachedSummary struct {
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
}

// NewSummaryCache 创建摘要缓存实例。
func NewSummaryCache(redis goredis.UniversalClient, config *SummaryCacheConfig) *SummaryCache {
	if config == nil {
		config = DefaultSummaryCacheConfig()
	}
	return &SummaryCache{redis: redis, config: config}
}

func (c *SummaryCache) enabled() bool {
	return c != nil && c.config.Enabled && c.redis != nil
}

// Key 基于内容和摘要参数生成缓存键。
func (c *SummaryCache) Key(text string, maxChars, maxDepth int) string {
	if c == nil {
		return ""
	}
	return c.config.KeyPrefix + textutil.HashString(fmt.Sprintf("%d:%d:%s", maxChars, maxDepth, text))
}

// Get 读取缓存，未命中或失败时返回 false。
func (c *SummaryCache) Get(ctx context.Context, key string) (string, bool) {
	if !c.enabled() {
		return "", false
	}

	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != goredis.Nil {
			logger.Warnw("failed to get summary from cache", "error", err.Error(), "key", key)
		}
		return "", false
	}

	var entry cachedSummary
	if err := json.Unmarshal(data, &entry); err != nil {
		logger.Warnw("failed to unmarshal cached summary", "error", err.Error(), "key", key)
		_ = c.redis.Del(ctx, key).Err()
		return "", false
	}
	return entry.Summary, true
}

// Set 写入缓存，失败只记录日志。
func (c *SummaryCache) Set(ctx context.Context, key, summary string) {
	if !c.enabled() {
		return
	}

	data, err := json.Marshal(cachedSummary{Summary: summary, CreatedAt: time.Now().UTC()})
	if err != nil {
		logger.Warnw("failed to marshal summary for caching", "error", err.Error())
		return
	}
	if err := c.redis.Set(ctx, key, data, c.config.TTL).Err(); err != nil {
		logger.Warnw("failed to set summary cache", "error", err.Error(), "key", key)
	}
}
