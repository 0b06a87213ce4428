package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/moktashif/pkg/llm"
)

const testAPIKey = "test-key"

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	cfg.APIKey = testAPIKey
	cfg.MaxRetries = 0
	cfg.Timeout = 5 * time.Second
	return NewProviderWithConfig(cfg)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "https://api.openai.com/v1", cfg.BaseURL)
	assert.Equal(t, "gpt-4o-mini", cfg.ChatModel)
	assert.Equal(t, 120*time.Second, cfg.Timeout)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.InDelta(t, 0.6, cfg.Temperature, 1e-9)
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name      string
		config    map[string]any
		wantError bool
	}{
		{"valid config", map[string]any{"api_key": testAPIKey}, false},
		{"compatible backend", map[string]any{
			"api_key":     testAPIKey,
			"base_url":    "https://api.groq.com/openai/v1/",
			"chat_model":  "llama-3.3-70b-versatile",
			"temperature": 0.2,
		}, false},
		{"missing api_key", map[string]any{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewProvider(tt.config)
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, ProviderName, provider.Name())
		})
	}

	p, err := NewProvider(map[string]any{"api_key": testAPIKey, "base_url": "https://x/v1/"})
	require.NoError(t, err)
	assert.Equal(t, "https://x/v1", p.(*Provider).config.BaseURL)
}

func TestProviderEmbed(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer "+testAPIKey, r.Header.Get("Authorization"))

		// 故意乱序返回
		_, _ = fmt.Fprint(w, `{"data":[{"embedding":[0.4,0.5],"index":1},{"embedding":[0.1,0.2],"index":0}]}`)
	})

	embeddings, err := provider.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, embeddings, 2)
	assert.Equal(t, []float32{0.1, 0.2}, embeddings[0])
	assert.Equal(t, []float32{0.4, 0.5}, embeddings[1])

	empty, err := provider.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestProviderChat(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		assert.Equal(t, "gpt-4o-mini", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)

		_, _ = fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"XSS is an injection flaw."}}]}`)
	})

	out, err := provider.Generate(context.Background(), "what is xss", "you are a security assistant")
	require.NoError(t, err)
	assert.Equal(t, "XSS is an injection flaw.", out)
}

func TestProviderChat_NoChoices(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, `{"choices":[]}`)
	})

	_, err := provider.Chat(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}})
	assert.Error(t, err)
}

func TestProviderChatStream(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		events := []string{
			`data: {"choices":[{"delta":{"role":"assistant"}}]}`,
			`data: {"choices":[{"delta":{"content":"SQL "}}]}`,
			``,
			`: keep-alive`,
			`data: not-json`,
			`data: {"choices":[{"delta":{"content":"injection"}}]}`,
			`data: [DONE]`,
			`data: {"choices":[{"delta":{"content":"ignored"}}]}`,
		}
		for _, e := range events {
			_, _ = fmt.Fprintln(w, e)
			flusher.Flush()
		}
	})

	ch, err := provider.ChatStream(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "sqli?"}})
	require.NoError(t, err)

	var parts []string
	for c := range ch {
		require.NoError(t, c.Err)
		parts = append(parts, c.Content)
	}
	assert.Equal(t, []string{"SQL ", "injection"}, parts)
}

func TestProviderChatStream_HTTPError(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = fmt.Fprint(w, `{"error":"bad key"}`)
	})

	_, err := provider.ChatStream(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestOrganizationHeader(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "org-123", r.Header.Get("OpenAI-Organization"))
		_, _ = fmt.Fprint(w, `{"data":[{"id":"m1"},{"id":"m2"}]}`)
	})
	provider.config.Organization = "org-123"

	models, err := provider.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, models)
}
