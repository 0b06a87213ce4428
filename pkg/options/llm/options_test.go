package llm

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatOptions_Flags(t *testing.T) {
	o := NewChatOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs)

	require.NoError(t, fs.Parse([]string{"--llm.model=llama3", "--llm.temperature=0.2"}))
	assert.Equal(t, "llama3", o.Model)
	assert.InDelta(t, 0.2, o.Temperature, 1e-9)
}

func TestEmbeddingOptions_FlagsUseOwnSection(t *testing.T) {
	o := NewEmbeddingOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs)

	require.NoError(t, fs.Parse([]string{"--embedding.provider=ollama"}))
	assert.Equal(t, "ollama", o.Provider)
	assert.Nil(t, fs.Lookup("llm.provider"))
}

func TestComplete_ReadsAPIKeyFromEnv(t *testing.T) {
	t.Setenv("LLM_API_KEY", "chat-key")
	t.Setenv("EMBEDDING_API_KEY", "embed-key")

	chat := NewChatOptions()
	embed := NewEmbeddingOptions()
	require.NoError(t, chat.Complete())
	require.NoError(t, embed.Complete())

	assert.Equal(t, "chat-key", chat.APIKey)
	assert.Equal(t, "embed-key", embed.APIKey)
}

func TestValidate(t *testing.T) {
	o := NewChatOptions()
	errs := o.Validate()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "api-key")

	o.APIKey = "k"
	assert.Empty(t, o.Validate())

	o.Timeout = 0
	o.Temperature = 3
	assert.Len(t, o.Validate(), 2)
}

func TestDefaults_UpstreamCallsAreNotRetried(t *testing.T) {
	for _, o := range []*ProviderOptions{NewChatOptions(), NewEmbeddingOptions()} {
		assert.Zero(t, o.MaxRetries, o.Section())
		assert.Equal(t, 1, o.RetryAttempts, o.Section())
		assert.Equal(t, 0, o.ToConfigMap()["max_retries"], o.Section())
	}

	o := NewChatOptions()
	o.MaxRetries, o.RetryAttempts = -1, 0
	require.NoError(t, o.Complete())
	assert.Zero(t, o.MaxRetries)
	assert.Equal(t, 1, o.RetryAttempts)
}

func TestToConfigMap(t *testing.T) {
	o := NewChatOptions()
	o.APIKey = "k"
	m := o.ToConfigMap()

	assert.Equal(t, "k", m["api_key"])
	assert.Equal(t, o.Model, m["chat_model"])
	assert.Equal(t, 0.6, m["temperature"])
	assert.Equal(t, 120*time.Second, m["timeout"])
}
