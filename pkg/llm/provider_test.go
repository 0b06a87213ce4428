package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockProvider 模拟供应商实现，用于测试。
type mockProvider struct {
	name  string
	reply string
	err   error
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	for i := range texts {
		result[i] = []float32{0.1, 0.2, 0.3}
	}
	return result, nil
}

func (m *mockProvider) EmbedSingle(_ context.Context, _ string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

func (m *mockProvider) Chat(_ context.Context, _ []Message) (string, error) {
	return m.reply, m.err
}

func (m *mockProvider) Generate(_ context.Context, _ string, _ string) (string, error) {
	return m.reply, m.err
}

// mockStreamer 按预设片段输出。
type mockStreamer struct {
	mockProvider
	parts []string
}

func (m *mockStreamer) ChatStream(_ context.Context, _ []Message) (<-chan StreamChunk, error) {
	out := make(chan StreamChunk, len(m.parts))
	for _, p := range m.parts {
		out <- StreamChunk{Content: p}
	}
	close(out)
	return out, nil
}

func collect(t *testing.T, ch <-chan StreamChunk) (string, error) {
	t.Helper()
	var text string
	for c := range ch {
		if c.Err != nil {
			return text, c.Err
		}
		text += c.Content
	}
	return text, nil
}

func TestRegisterAndNewProvider(t *testing.T) {
	RegisterProvider("test-provider", func(config map[string]any) (Provider, error) {
		name := "test-provider"
		if n, ok := config["name"].(string); ok {
			name = n
		}
		return &mockProvider{name: name}, nil
	})

	provider, err := NewProvider("test-provider", map[string]any{"name": "custom-name"})
	require.NoError(t, err)
	assert.Equal(t, "custom-name", provider.Name())

	// 完整供应商可以作为 Chat 与 Embedding 供应商使用
	chat, err := NewChatProvider("test-provider", nil)
	require.NoError(t, err)
	assert.Equal(t, "test-provider", chat.Name())

	emb, err := NewEmbeddingProvider("test-provider", nil)
	require.NoError(t, err)
	assert.Equal(t, "test-provider", emb.Name())

	assert.Contains(t, ListProviders(), "test-provider")
}

func TestNewProviderUnknown(t *testing.T) {
	_, err := NewProvider("unknown-provider", nil)
	assert.Error(t, err)

	_, err = NewChatProvider("unknown-provider", nil)
	assert.Error(t, err)

	_, err = NewEmbeddingProvider("unknown-provider", nil)
	assert.Error(t, err)
}

func TestDedicatedFactoryWins(t *testing.T) {
	RegisterProvider("dual", func(map[string]any) (Provider, error) {
		return &mockProvider{name: "full"}, nil
	})
	RegisterChatProvider("dual", func(map[string]any) (ChatProvider, error) {
		return &mockProvider{name: "chat-only"}, nil
	})

	p, err := NewChatProvider("dual", nil)
	require.NoError(t, err)
	assert.Equal(t, "chat-only", p.Name())
}

func TestStream_NativeStreaming(t *testing.T) {
	p := &mockStreamer{parts: []string{"Hel", "lo"}}
	ch, err := Stream(context.Background(), p, nil)
	require.NoError(t, err)

	text, err := collect(t, ch)
	require.NoError(t, err)
	assert.Equal(t, "Hello", text)
}

func TestStream_FallbackToChat(t *testing.T) {
	ch, err := Stream(context.Background(), &mockProvider{reply: "whole answer"}, nil)
	require.NoError(t, err)

	text, err := collect(t, ch)
	require.NoError(t, err)
	assert.Equal(t, "whole answer", text)

	boom := errors.New("boom")
	ch, err = Stream(context.Background(), &mockProvider{err: boom}, nil)
	require.NoError(t, err)
	_, err = collect(t, ch)
	assert.ErrorIs(t, err, boom)
}
