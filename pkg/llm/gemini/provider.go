// Package gemini 基于 generative-ai-go SDK 提供 Google Gemini 供应商实现。
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/kart-io/moktashif/pkg/llm"
)

const ProviderName = "gemini"

const (
	roleUser  = "user"
	roleModel = "model"
)

func init() {
	llm.RegisterProvider(ProviderName, NewProvider)
}

var _ llm.StreamingChatProvider = (*Provider)(nil)

// Config Gemini 供应商配置。
type Config struct {
	// APIKey Google AI API 密钥。
	APIKey string `json:"api_key" mapstructure:"api_key"`

	// EmbedModel 用于生成嵌入的模型。
	EmbedModel string `json:"embed_model" mapstructure:"embed_model"`

	// ChatModel 用于对话的模型。
	ChatModel string `json:"chat_model" mapstructure:"chat_model"`

	// Timeout 非流式请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// Temperature 采样温度。
	Temperature float32 `json:"temperature" mapstructure:"temperature"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		EmbedModel:  "text-embedding-004",
		ChatModel:   "gemini-1.5-flash-latest",
		Timeout:     120 * time.Second,
		Temperature: 0.6,
	}
}

// Provider Gemini 供应商实现。
type Provider struct {
	config *Config
	client *genai.Client
}

// NewProvider 从配置 map 创建 Gemini 供应商。
func NewProvider(configMap map[string]any) (llm.Provider, error) {
	cfg := DefaultConfig()

	if v, ok := configMap["api_key"].(string); ok && v != "" {
		cfg.APIKey = v
	}
	if v, ok := configMap["embed_model"].(string); ok && v != "" {
		cfg.EmbedModel = v
	}
	if v, ok := configMap["chat_model"].(string); ok && v != "" {
		cfg.ChatModel = v
	}
	if v, ok := configMap["timeout"].(time.Duration); ok && v > 0 {
		cfg.Timeout = v
	}
	if v, ok := configMap["temperature"].(float64); ok {
		cfg.Temperature = float32(v)
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: api_key 是必需的")
	}

	return NewProviderWithConfig(context.Background(), cfg)
}

// NewProviderWithConfig 使用结构化配置创建 Gemini 供应商。
func NewProviderWithConfig(ctx context.Context, cfg *Config, opts ...option.ClientOption) (*Provider, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(cfg.APIKey)}, opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gemini: 创建客户端失败: %w", err)
	}
	return &Provider{config: cfg, client: client}, nil
}

// Name 返回供应商名称。
func (p *Provider) Name() string {
	return ProviderName
}

// Close 释放底层客户端。
func (p *Provider) Close() error {
	return p.client.Close()
}

// Embed 为多个文本生成向量嵌入。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	em := p.client.EmbeddingModel(p.config.EmbedModel)
	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	res, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("gemini embedding request failed: %w", err)
	}
	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("向量数量不匹配: 期望 %d, 实际 %d", len(texts), len(res.Embeddings))
	}

	out := make([][]float32, len(texts))
	for i, e := range res.Embeddings {
		if e == nil || len(e.Values) == 0 {
			return nil, fmt.Errorf("no embedding data received from gemini")
		}
		out[i] = e.Values
	}
	return out, nil
}

// EmbedSingle 为单个文本生成向量嵌入。
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	out, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// Chat 进行多轮对话。
func (p *Provider) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	cs, last, err := p.startChat(messages)
	if err != nil {
		return "", err
	}

	resp, err := cs.SendMessage(ctx, last.Parts...)
	if err != nil {
		return "", fmt.Errorf("gemini chat SendMessage failed: %w", err)
	}
	text := responseText(resp)
	if text == "" {
		return "", fmt.Errorf("gemini returned an empty response")
	}
	return text, nil
}

// Generate 根据提示生成文本。
func (p *Provider) Generate(ctx context.Context, prompt string, systemPrompt string) (string, error) {
	messages := make([]llm.Message, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: prompt})
	return p.Chat(ctx, messages)
}

// ChatStream 通过 SDK 的流式迭代器进行多轮对话。
func (p *Provider) ChatStream(ctx context.Context, messages []llm.Message) (<-chan llm.StreamChunk, error) {
	cs, last, err := p.startChat(messages)
	if err != nil {
		return nil, err
	}

	iter := cs.SendMessageStream(ctx, last.Parts...)
	out := make(chan llm.StreamChunk)
	go func() {
		defer close(out)
		for {
			resp, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			chunk := llm.StreamChunk{Content: responseText(resp)}
			if err != nil {
				chunk = llm.StreamChunk{Err: fmt.Errorf("gemini stream failed: %w", err)}
			}
			if chunk.Err == nil && chunk.Content == "" {
				continue
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
			if chunk.Err != nil {
				return
			}
		}
	}()
	return out, nil
}

// startChat 构造会话：系统消息合并为 SystemInstruction，最后一条必须来自用户。
func (p *Provider) startChat(messages []llm.Message) (*genai.ChatSession, *genai.Content, error) {
	system, history := splitMessages(messages)
	if len(history) == 0 {
		return nil, nil, fmt.Errorf("prompt history is empty for chat completion")
	}
	last := history[len(history)-1]
	if last.Role != roleUser {
		return nil, nil, fmt.Errorf("last message in history is not from 'user'")
	}

	model := p.client.GenerativeModel(p.config.ChatModel)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	temp := p.config.Temperature
	model.GenerationConfig = genai.GenerationConfig{Temperature: &temp}

	cs := model.StartChat()
	cs.History = history[:len(history)-1]
	return cs, last, nil
}

// splitMessages 将系统消息拼接为单个指令，其余消息转换为 Gemini 内容。
// Gemini 要求角色交替，相邻同角色消息合并为一条。
func splitMessages(messages []llm.Message) (string, []*genai.Content) {
	var system []string
	var history []*genai.Content
	for _, m := range messages {
		if m.Role == llm.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		role := roleUser
		if m.Role == llm.RoleAssistant {
			role = roleModel
		}
		if n := len(history); n > 0 && history[n-1].Role == role {
			history[n-1].Parts = append(history[n-1].Parts, genai.Text(m.Content))
			continue
		}
		history = append(history, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}
	return strings.Join(system, "\n\n"), history
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return sb.String()
}
