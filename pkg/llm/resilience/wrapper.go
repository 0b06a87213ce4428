package resilience

import (
	"context"

	"github.com/kart-io/moktashif/pkg/llm"
)

var (
	_ llm.EmbeddingProvider     = (*EmbeddingProvider)(nil)
	_ llm.StreamingChatProvider = (*ChatProvider)(nil)
)

// EmbeddingProvider 带重试与熔断的 Embedding 供应商包装器。
type EmbeddingProvider struct {
	inner   llm.EmbeddingProvider
	retry   *RetryConfig
	breaker *Breaker
}

// WrapEmbedding 为 Embedding 供应商增加重试与熔断。
func WrapEmbedding(p llm.EmbeddingProvider, retry *RetryConfig, breaker *BreakerConfig) *EmbeddingProvider {
	return &EmbeddingProvider{
		inner:   p,
		retry:   retry,
		breaker: NewBreaker(p.Name()+"-embedding", breaker),
	}
}

// Embed 为多个文本生成向量嵌入。
func (r *EmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := Retry(ctx, r.retry, func() error {
		return r.breaker.Execute(func() (err error) {
			out, err = r.inner.Embed(ctx, texts)
			return err
		})
	})
	return out, err
}

// EmbedSingle 为单个文本生成向量嵌入。
func (r *EmbeddingProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := Retry(ctx, r.retry, func() error {
		return r.breaker.Execute(func() (err error) {
			out, err = r.inner.EmbedSingle(ctx, text)
			return err
		})
	})
	return out, err
}

// Name 返回底层供应商名称。
func (r *EmbeddingProvider) Name() string { return r.inner.Name() }

// Breaker 返回熔断器（用于健康检查）。
func (r *EmbeddingProvider) Breaker() *Breaker { return r.breaker }

// ChatProvider 带重试与熔断的 Chat 供应商包装器。
// 流式调用只对建立连接阶段重试，已开始输出的流不会重放。
type ChatProvider struct {
	inner   llm.ChatProvider
	retry   *RetryConfig
	breaker *Breaker
}

// WrapChat 为 Chat 供应商增加重试与熔断。
func WrapChat(p llm.ChatProvider, retry *RetryConfig, breaker *BreakerConfig) *ChatProvider {
	return &ChatProvider{
		inner:   p,
		retry:   retry,
		breaker: NewBreaker(p.Name()+"-chat", breaker),
	}
}

// Chat 进行多轮对话。
func (r *ChatProvider) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	var out string
	err := Retry(ctx, r.retry, func() error {
		return r.breaker.Execute(func() (err error) {
			out, err = r.inner.Chat(ctx, messages)
			return err
		})
	})
	return out, err
}

// Generate 根据提示生成文本。
func (r *ChatProvider) Generate(ctx context.Context, prompt, systemPrompt string) (string, error) {
	var out string
	err := Retry(ctx, r.retry, func() error {
		return r.breaker.Execute(func() (err error) {
			out, err = r.inner.Generate(ctx, prompt, systemPrompt)
			return err
		})
	})
	return out, err
}

// ChatStream 以流式方式对话，流中途出现的错误同样计入熔断器。
func (r *ChatProvider) ChatStream(ctx context.Context, messages []llm.Message) (<-chan llm.StreamChunk, error) {
	var upstream <-chan llm.StreamChunk
	err := Retry(ctx, r.retry, func() error {
		if err := r.breaker.Allow(); err != nil {
			return err
		}
		ch, err := llm.Stream(ctx, r.inner, messages)
		if err != nil {
			r.breaker.Record(err)
			return err
		}
		upstream = ch
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make(chan llm.StreamChunk)
	go func() {
		defer close(out)
		var streamErr error
		defer func() { r.breaker.Record(streamErr) }()
		for c := range upstream {
			if c.Err != nil {
				streamErr = c.Err
			}
			select {
			case out <- c:
			case <-ctx.Done():
				// 排空上游，避免生产者阻塞
				for range upstream {
				}
				return
			}
		}
	}()
	return out, nil
}

// Name 返回底层供应商名称。
func (r *ChatProvider) Name() string { return r.inner.Name() }

// Breaker 返回熔断器（用于健康检查）。
func (r *ChatProvider) Breaker() *Breaker { return r.breaker }
