// Package llm provides LLM provider configuration options.
package llm

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/moktashif/pkg/options"
)

var _ options.IOptions = (*ProviderOptions)(nil)

// ProviderOptions 定义 LLM 供应商配置。
type ProviderOptions struct {
	// Provider 供应商名称（openai, ollama, gemini, huggingface）。
	Provider string `json:"provider" mapstructure:"provider"`

	// BaseURL API 基础地址，OpenAI 兼容服务（Groq、DeepSeek 等）通过它切换。
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// APIKey API 密钥，为空时从 <SECTION>_API_KEY 环境变量读取。
	APIKey string `json:"-" mapstructure:"api-key"`

	// Model 使用的模型名称。
	Model string `json:"model" mapstructure:"model"`

	// Timeout 请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries HTTP 层最大重试次数。上游错误默认不自动重试，由调用方重新发起。
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`

	// RetryAttempts 熔断包装层的总尝试次数（含首次），默认 1 即只熔断不重试。
	RetryAttempts int `json:"retry-attempts" mapstructure:"retry-attempts"`

	// Organization 组织 ID（OpenAI 可选）。
	Organization string `json:"organization" mapstructure:"organization"`

	// Temperature 采样温度。
	Temperature float64 `json:"temperature" mapstructure:"temperature"`

	// MaxTokens 最大生成 token 数，0 表示不限制。
	MaxTokens int `json:"max-tokens" mapstructure:"max-tokens"`

	// BreakerMaxFailures 连续失败多少次后熔断，0 表示关闭熔断包装。
	BreakerMaxFailures int `json:"breaker-max-failures" mapstructure:"breaker-max-failures"`

	// BreakerOpenTimeout 熔断持续时间。
	BreakerOpenTimeout time.Duration `json:"breaker-open-timeout" mapstructure:"breaker-open-timeout"`

	// section 是 flag 与环境变量使用的分组名（llm 或 embedding）。
	section string
}

// NewChatOptions 创建默认 Chat 供应商配置（Groq 的 OpenAI 兼容接口）。
func NewChatOptions() *ProviderOptions {
	return &ProviderOptions{
		Provider:           "openai",
		BaseURL:            "https://api.groq.com/openai/v1",
		Model:              "llama-3.1-8b-instant",
		Timeout:            120 * time.Second,
		MaxRetries:         0,
		RetryAttempts:      1,
		Temperature:        0.6,
		BreakerMaxFailures: 5,
		BreakerOpenTimeout: 30 * time.Second,
		section:            "llm",
	}
}

// NewEmbeddingOptions 创建默认 Embedding 供应商配置。
func NewEmbeddingOptions() *ProviderOptions {
	return &ProviderOptions{
		Provider:           "huggingface",
		BaseURL:            "https://api-inference.huggingface.co",
		Model:              "sentence-transformers/all-MiniLM-L6-v2",
		Timeout:            60 * time.Second,
		MaxRetries:         0,
		RetryAttempts:      1,
		BreakerMaxFailures: 5,
		BreakerOpenTimeout: 30 * time.Second,
		section:            "embedding",
	}
}

// Section 返回 flag 分组名。
func (o *ProviderOptions) Section() string {
	if o.section == "" {
		return "llm"
	}
	return o.section
}

// ToConfigMap 转换为配置 map，用于供应商工厂。
func (o *ProviderOptions) ToConfigMap() map[string]any {
	return map[string]any{
		"base_url":     o.BaseURL,
		"api_key":      o.APIKey,
		"embed_model":  o.Model,
		"chat_model":   o.Model,
		"timeout":      o.Timeout,
		"max_retries":  o.MaxRetries,
		"organization": o.Organization,
		"temperature":  o.Temperature,
		"max_tokens":   o.MaxTokens,
	}
}

// AddFlags adds flags for LLM provider options to the specified FlagSet.
func (o *ProviderOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + o.Section() + "."
	fs.StringVar(&o.Provider, p+"provider", o.Provider, "Provider name (openai, ollama, gemini, huggingface).")
	fs.StringVar(&o.BaseURL, p+"base-url", o.BaseURL, "API base URL.")
	fs.StringVar(&o.Model, p+"model", o.Model, "Model name.")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "Request timeout.")
	fs.IntVar(&o.MaxRetries, p+"max-retries", o.MaxRetries, "Maximum number of HTTP retries, 0 sends each request once.")
	fs.IntVar(&o.RetryAttempts, p+"retry-attempts", o.RetryAttempts, "Attempts per call behind the circuit breaker, including the first.")
	fs.StringVar(&o.Organization, p+"organization", o.Organization, "Organization ID (optional).")
	fs.Float64Var(&o.Temperature, p+"temperature", o.Temperature, "Sampling temperature.")
	fs.IntVar(&o.MaxTokens, p+"max-tokens", o.MaxTokens, "Maximum generated tokens, 0 for no limit.")
	fs.IntVar(&o.BreakerMaxFailures, p+"breaker-max-failures", o.BreakerMaxFailures, "Consecutive failures before the circuit opens, 0 disables the breaker.")
	fs.DurationVar(&o.BreakerOpenTimeout, p+"breaker-open-timeout", o.BreakerOpenTimeout, "How long the circuit stays open.")
}

// Validate validates the LLM provider options.
func (o *ProviderOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Provider == "" {
		errs = append(errs, fmt.Errorf("%s.provider is required", o.Section()))
	}
	if o.Model == "" {
		errs = append(errs, fmt.Errorf("%s.model is required", o.Section()))
	}
	// 远程托管的供应商需要 API key
	switch o.Provider {
	case "openai", "gemini":
		if o.APIKey == "" {
			errs = append(errs, fmt.Errorf("%s.api-key is required for %s provider", o.Section(), o.Provider))
		}
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%s.timeout must be positive", o.Section()))
	}
	if o.Temperature < 0 || o.Temperature > 2 {
		errs = append(errs, fmt.Errorf("%s.temperature must be between 0 and 2", o.Section()))
	}
	return errs
}

// Complete 从环境变量补全 API key，并修正非法的重试次数。
func (o *ProviderOptions) Complete() error {
	if o.APIKey == "" {
		o.APIKey = os.Getenv(strings.ToUpper(o.Section()) + "_API_KEY")
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryAttempts < 1 {
		o.RetryAttempts = 1
	}
	return nil
}
