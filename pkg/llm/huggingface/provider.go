// Package huggingface 提供 HuggingFace Inference API 的 Embedding 供应商。
// 默认使用 sentence-transformers/all-MiniLM-L6-v2（384 维）。
package huggingface

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kart-io/moktashif/pkg/llm"
	"github.com/kart-io/moktashif/pkg/utils/httpclient"
	"github.com/kart-io/moktashif/pkg/utils/json"
)

// ProviderName 是 HuggingFace 供应商的名称标识符
const ProviderName = "huggingface"

func init() {
	llm.RegisterEmbeddingProvider(ProviderName, NewProvider)
}

var _ llm.EmbeddingProvider = (*Provider)(nil)

// Config HuggingFace 供应商配置。
type Config struct {
	// BaseURL API 基础地址。
	BaseURL string `json:"base_url" mapstructure:"base_url"`

	// APIKey HuggingFace API Token。
	APIKey string `json:"api_key" mapstructure:"api_key"`

	// EmbedModel 用于生成嵌入的模型 ID。
	EmbedModel string `json:"embed_model" mapstructure:"embed_model"`

	// Timeout 请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries 最大重试次数。
	MaxRetries int `json:"max_retries" mapstructure:"max_retries"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "https://api-inference.huggingface.co",
		EmbedModel: "sentence-transformers/all-MiniLM-L6-v2",
		Timeout:    60 * time.Second,
		MaxRetries: 3,
	}
}

// Provider HuggingFace Embedding 供应商。
type Provider struct {
	config *Config
	client *httpclient.Client
}

// NewProvider 从配置 map 创建 HuggingFace 供应商。
func NewProvider(configMap map[string]any) (llm.EmbeddingProvider, error) {
	cfg := DefaultConfig()

	if v, ok := configMap["base_url"].(string); ok && v != "" {
		cfg.BaseURL = strings.TrimRight(v, "/")
	}
	if v, ok := configMap["api_key"].(string); ok && v != "" {
		cfg.APIKey = v
	}
	if v, ok := configMap["embed_model"].(string); ok && v != "" {
		cfg.EmbedModel = v
	}
	if v, ok := configMap["timeout"].(time.Duration); ok && v > 0 {
		cfg.Timeout = v
	}
	if v, ok := configMap["max_retries"].(int); ok && v >= 0 {
		cfg.MaxRetries = v
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("huggingface: api_key 是必需的")
	}
	return NewProviderWithConfig(cfg), nil
}

// NewProviderWithConfig 使用结构化配置创建 HuggingFace 供应商。
func NewProviderWithConfig(cfg *Config) *Provider {
	return &Provider{
		config: cfg,
		client: httpclient.NewClient(cfg.Timeout, cfg.MaxRetries),
	}
}

// Name 返回供应商名称。
func (p *Provider) Name() string {
	return ProviderName
}

type featureRequest struct {
	Inputs  []string        `json:"inputs"`
	Options map[string]bool `json:"options"`
}

// Embed 为多个文本生成向量嵌入。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(featureRequest{Inputs: texts, Options: map[string]bool{"wait_for_model": true}})
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}
	url := fmt.Sprintf("%s/pipeline/feature-extraction/%s", p.config.BaseURL, p.config.EmbedModel)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	resp, err := p.client.DoRequest(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, &httpclient.StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	embeddings, err := decodeFeatures(raw)
	if err != nil {
		return nil, err
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("向量数量不匹配: 期望 %d, 实际 %d", len(texts), len(embeddings))
	}
	return embeddings, nil
}

// EmbedSingle 为单个文本生成向量嵌入。
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// decodeFeatures 解析句向量 [][]float32；若模型返回 token 级 [][][]float32 则做均值池化。
func decodeFeatures(raw []byte) ([][]float32, error) {
	var sentences [][]float32
	if err := json.Unmarshal(raw, &sentences); err == nil {
		return sentences, nil
	}

	var tokens [][][]float32
	if err := json.Unmarshal(raw, &tokens); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}
	out := make([][]float32, len(tokens))
	for i, seq := range tokens {
		if len(seq) == 0 {
			continue
		}
		pooled := make([]float32, len(seq[0]))
		for _, tok := range seq {
			for j := 0; j < len(pooled) && j < len(tok); j++ {
				pooled[j] += tok[j]
			}
		}
		for j := range pooled {
			pooled[j] /= float32(len(seq))
		}
		out[i] = pooled
	}
	return out, nil
}
