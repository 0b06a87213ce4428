package websearch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/kart-io/moktashif/pkg/llm"
	searchopts "github.com/kart-io/moktashif/pkg/options/search"
)

type fakeSearcher struct {
	results []Result
	err     error
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, query string, _ int) ([]Result, error) {
	f.queries = append(f.queries, query)
	return f.results, f.err
}

type fakeChat struct {
	reply    string
	err      error
	messages []llm.Message
}

func (f *fakeChat) Chat(_ context.Context, messages []llm.Message) (string, error) {
	f.messages = messages
	return f.reply, f.err
}

func (f *fakeChat) Generate(context.Context, string, string) (string, error) { return f.reply, f.err }
func (f *fakeChat) Name() string                                          { return "fake" }

func TestNeedsWebSearch(t *testing.T) {
	assert.True(t, NeedsWebSearch("What is the LATEST OpenSSL advisory?"))
	assert.True(t, NeedsWebSearch("details on CVE-2024-3094"))
	assert.False(t, NeedsWebSearch("What is SQL injection?"))
}

func TestAgent_ForcedSearch(t *testing.T) {
	s := &fakeSearcher{results: []Result{{Title: "Advisory", Link: "https://example.com/a", Snippet: "patch now"}}}
	c := &fakeChat{reply: "Patch to 3.0.14."}
	a := NewAgent(s, c, Config{SystemPrompt: "persona"})

	ans, err := a.Answer(context.Background(), "how to fix this\n\nPrevious message context: x", true)
	require.NoError(t, err)
	assert.True(t, ans.UsedWebSearch)
	assert.Equal(t, []string{"https://example.com/a"}, ans.Links)
	assert.Equal(t, "Patch to 3.0.14.", ans.Answer)
	assert.Equal(t, []string{"how to fix this"}, s.queries)
	assert.Equal(t, "persona", c.messages[0].Content)
	assert.Contains(t, c.messages[1].Content, "https://example.com/a")
}

func TestAgent_SkipsSearchWhenNotNeeded(t *testing.T) {
	s := &fakeSearcher{}
	a := NewAgent(s, &fakeChat{reply: "ok"}, Config{})

	ans, err := a.Answer(context.Background(), "what is xss", false)
	require.NoError(t, err)
	assert.False(t, ans.UsedWebSearch)
	assert.Empty(t, s.queries)
}

func TestAgent_SearchFailureDegrades(t *testing.T) {
	s := &fakeSearcher{err: errors.New("quota")}
	c := &fakeChat{reply: "from model"}
	ans, err := NewAgent(s, c, Config{}).Answer(context.Background(), "latest ransomware", false)
	require.NoError(t, err)
	assert.False(t, ans.UsedWebSearch)
	assert.Equal(t, "latest ransomware", c.messages[1].Content)
}

func TestAgent_ModelFailure(t *testing.T) {
	_, err := NewAgent(nil, &fakeChat{err: errors.New("503")}, Config{}).Answer(context.Background(), "q", true)
	assert.Error(t, err)
}

func TestGoogle_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "cx-1", r.URL.Query().Get("cx"))
		assert.Equal(t, "log4shell", r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"title":"Log4Shell","link":"https://example.com/l","snippet":"CVE-2021-44228"}]}`))
	}))
	defer srv.Close()

	opts := searchopts.NewOptions()
	opts.APIKey = "key"
	opts.EngineID = "cx-1"
	g, err := NewGoogle(context.Background(), opts, option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	results, err := g.Search(context.Background(), "log4shell", 3)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://example.com/l", results[0].Link)
	assert.True(t, strings.HasPrefix(results[0].Snippet, "CVE"))
}

func TestNewGoogle_RequiresCredentials(t *testing.T) {
	_, err := NewGoogle(context.Background(), searchopts.NewOptions())
	assert.Error(t, err)
}
