package ollama

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

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	cfg.MaxRetries = 0
	cfg.Timeout = 5 * time.Second
	return NewProviderWithConfig(cfg)
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(map[string]any{"base_url": "http://ollama:11434/", "chat_model": "llama3"})
	require.NoError(t, err)
	assert.Equal(t, ProviderName, p.Name())
	assert.Equal(t, "http://ollama:11434", p.(*Provider).config.BaseURL)
	assert.Equal(t, "llama3", p.(*Provider).config.ChatModel)
}

func TestEmbed(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		_, _ = fmt.Fprint(w, `{"embeddings":[[1,0],[0,1]]}`)
	})

	out, err := p.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, out)

	_, err = p.EmbedSingle(context.Background(), "only one")
	assert.Error(t, err, "count mismatch must be reported")
}

func TestChat(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		require.NotNil(t, req.Options)
		assert.InDelta(t, 0.6, req.Options.Temperature, 1e-9)
		_, _ = fmt.Fprint(w, `{"message":{"role":"assistant","content":"Use parameterized queries."},"done":true}`)
	})

	out, err := p.Generate(context.Background(), "how to stop sqli", "")
	require.NoError(t, err)
	assert.Equal(t, "Use parameterized queries.", out)
}

func TestChatStream(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		flusher := w.(http.Flusher)
		for _, line := range []string{
			`{"message":{"role":"assistant","content":"Port "},"done":false}`,
			``,
			`{"message":{"role":"assistant","content":"scanning"},"done":false}`,
			`{"message":{"role":"assistant","content":""},"done":true}`,
			`{"message":{"role":"assistant","content":"late"},"done":false}`,
		} {
			_, _ = fmt.Fprintln(w, line)
			flusher.Flush()
		}
	})

	ch, err := p.ChatStream(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "nmap?"}})
	require.NoError(t, err)

	var text string
	for c := range ch {
		require.NoError(t, c.Err)
		text += c.Content
	}
	assert.Equal(t, "Port scanning", text)
}

func TestChatStream_ErrorLine(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprintln(w, `{"error":"model not found"}`)
	})

	ch, err := p.ChatStream(context.Background(), nil)
	require.NoError(t, err)

	var last llm.StreamChunk
	for c := range ch {
		last = c
	}
	require.Error(t, last.Err)
	assert.Contains(t, last.Err.Error(), "model not found")
}
