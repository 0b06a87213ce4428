package gemini

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/moktashif/pkg/llm"
)

func TestNewProvider_RequiresAPIKey(t *testing.T) {
	_, err := NewProvider(map[string]any{})
	assert.Error(t, err)
}

func TestSplitMessages(t *testing.T) {
	system, history := splitMessages([]llm.Message{
		{Role: llm.RoleSystem, Content: "persona"},
		{Role: llm.RoleSystem, Content: "context"},
		{Role: llm.RoleUser, Content: "hi"},
		{Role: llm.RoleAssistant, Content: "hello"},
		{Role: llm.RoleUser, Content: "what is csrf"},
		{Role: llm.RoleUser, Content: "and xss"},
	})

	assert.Equal(t, "persona\n\ncontext", system)
	require.Len(t, history, 3)
	assert.Equal(t, roleUser, history[0].Role)
	assert.Equal(t, roleModel, history[1].Role)
	assert.Equal(t, roleUser, history[2].Role)
	assert.Equal(t, []genai.Part{genai.Text("what is csrf"), genai.Text("and xss")}, history[2].Parts)
}

func TestResponseText(t *testing.T) {
	assert.Empty(t, responseText(nil))
	assert.Empty(t, responseText(&genai.GenerateContentResponse{}))

	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("a"), genai.Blob{}, genai.Text("b")}},
		}},
	}
	assert.Equal(t, "ab", responseText(resp))
}
