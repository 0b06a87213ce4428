// Package cache provides cache configuration options.
package cache

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/moktashif/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options 缓存配置，缓存依赖 Redis，Redis 不可用时自动关闭。
type Options struct {
	// Enabled 是否启用缓存。
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// SummaryTTL 文档摘要缓存过期时间。
	SummaryTTL time.Duration `json:"summary-ttl" mapstructure:"summary-ttl"`

	// EmbeddingTTL 向量缓存过期时间。
	EmbeddingTTL time.Duration `json:"embedding-ttl" mapstructure:"embedding-ttl"`

	// KeyPrefix 缓存键前缀。
	KeyPrefix string `json:"key-prefix" mapstructure:"key-prefix"`
}

// NewOptions 创建默认缓存配置。
func NewOptions() *Options {
	return &Options{
		Enabled:      true,
		SummaryTTL:   6 * time.Hour,
		EmbeddingTTL: 24 * time.Hour,
		KeyPrefix:    "moktashif:",
	}
}

// AddFlags adds flags for cache options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "cache."
	fs.BoolVar(&o.Enabled, p+"enabled", o.Enabled, "Enable Redis caching of summaries and embeddings.")
	fs.DurationVar(&o.SummaryTTL, p+"summary-ttl", o.SummaryTTL, "Summary cache TTL.")
	fs.DurationVar(&o.EmbeddingTTL, p+"embedding-ttl", o.EmbeddingTTL, "Embedding cache TTL.")
	fs.StringVar(&o.KeyPrefix, p+"key-prefix", o.KeyPrefix, "Cache key prefix.")
}

// Validate validates the cache options.
func (o *Options) Validate() []error {
	if o == nil || !o.Enabled {
		return nil
	}

	var errs []error
	if o.SummaryTTL <= 0 {
		errs = append(errs, fmt.Errorf("cache.summary-ttl must be positive"))
	}
	if o.EmbeddingTTL <= 0 {
		errs = append(errs, fmt.Errorf("cache.embedding-ttl must be positive"))
	}
	return errs
}

// Complete completes the cache options with defaults.
func (o *Options) Complete() error {
	if o.KeyPrefix == "" {
		o.KeyPrefix = "moktashif:"
	}
	return nil
}
