package huggingface

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider_RequiresAPIKey(t *testing.T) {
	_, err := NewProvider(map[string]any{})
	assert.Error(t, err)

	p, err := NewProvider(map[string]any{"api_key": "hf_x"})
	require.NoError(t, err)
	assert.Equal(t, ProviderName, p.Name())
}

func TestDecodeFeatures_MeanPooling(t *testing.T) {
	out, err := decodeFeatures([]byte(`[[[1,2],[3,4]],[[5,5]]]`))
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{2, 3}, {5, 5}}, out)

	out, err = decodeFeatures([]byte(`[[0.5,0.25]]`))
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.5, 0.25}}, out)

	_, err = decodeFeatures([]byte(`{"error":"loading"}`))
	assert.Error(t, err)
}

func TestEmbed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pipeline/feature-extraction/sentence-transformers/all-MiniLM-L6-v2", r.URL.Path)
		assert.Equal(t, "Bearer hf_x", r.Header.Get("Authorization"))
		_, _ = fmt.Fprint(w, `[[1,0],[0,1]]`)
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	cfg.APIKey = "hf_x"
	cfg.MaxRetries = 0
	p := NewProviderWithConfig(cfg)

	out, err := p.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestEmbed_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	cfg.APIKey = "hf_x"
	cfg.MaxRetries = 0

	_, err := NewProviderWithConfig(cfg).EmbedSingle(context.Background(), "x")
	assert.Error(t, err)
}
