// Package websearch answers questions grounded on live web search results.
package websearch

import (
	"context"
	"fmt"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/moktashif/internal/pkg/textutil"
	"github.com/kart-io/moktashif/pkg/llm"
)

// recencyKeywords mark questions that need current information.
var recencyKeywords = []string{
	"latest", "recent", "today", "current", "news", "this week",
	"new cve", "cve-20", "breaking", "released", "update on", "zero-day",
}

// NeedsWebSearch reports whether msg asks for recent or breaking information.
func NeedsWebSearch(msg string) bool {
	return textutil.ContainsAny(msg, recencyKeywords)
}

// Result is one web search hit.
type Result struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Searcher runs a web search.
type Searcher interface {
	Search(ctx context.Context, query string, n int) ([]Result, error)
}

// Answer is the result of a web-grounded completion.
type Answer struct {
	Answer        string   `json:"answer"`
	UsedWebSearch bool     `json:"used_web_search"`
	Links         []string `json:"links"`
}

// Answerer answers a query, optionally grounded on web search.
type Answerer interface {
	Answer(ctx context.Context, query string, force bool) (*Answer, error)
}

// Config configures an Agent.
type Config struct {
	// SystemPrompt is the persona and domain rules given to the model.
	SystemPrompt string
	// Results is the number of search results fed to the model.
	Results int
}

var _ Answerer = (*Agent)(nil)

// Agent combines a Searcher with a chat model.
type Agent struct {
	searcher Searcher
	chat     llm.ChatProvider
	cfg      Config
}

// NewAgent creates an Agent. A nil searcher answers from the model alone.
func NewAgent(searcher Searcher, chat llm.ChatProvider, cfg Config) *Agent {
	if cfg.Results <= 0 {
		cfg.Results = 5
	}
	return &Agent{searcher: searcher, chat: chat, cfg: cfg}
}

// Answer searches the web when forced or when the query needs current information,
// then asks the model to answer from the results. Search failures degrade to a
// model-only answer; model failures are returned.
func (a *Agent) Answer(ctx context.Context, query string, force bool) (*Answer, error) {
	var results []Result
	if a.searcher != nil && (force || NeedsWebSearch(query)) {
		var err error
		results, err = a.searcher.Search(ctx, searchQuery(query), a.cfg.Results)
		if err != nil {
			logger.Warnw("Web search failed, answering without results", "error", err.Error())
			results = nil
		}
	}

	text, err := a.chat.Chat(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: a.cfg.SystemPrompt},
		{Role: llm.RoleUser, Content: buildPrompt(query, results)},
	})
	if err != nil {
		return nil, fmt.Errorf("web search completion failed: %w", err)
	}

	links := make([]string, 0, len(results))
	for _, r := range results {
		links = append(links, r.Link)
	}
	return &Answer{
		Answer:        text,
		UsedWebSearch: len(results) > 0,
		Links:         links,
	}, nil
}

// searchQuery keeps the first line of an enriched query; search engines reject long inputs.
func searchQuery(query string) string {
	first, _, _ := strings.Cut(strings.TrimSpace(query), "\n")
	return textutil.Truncate(first, 256)
}

func buildPrompt(query string, results []Result) string {
	if len(results) == 0 {
		return query
	}

	var b strings.Builder
	b.WriteString("Answer the question using the web search results below. Cite the links you rely on.\n\n")
	for i, r := range results {
		fmt.Fprintf(&b, "[%d] %s\n%s\n%s\n\n", i+1, r.Title, r.Link, r.Snippet)
	}
	b.WriteString("Question: ")
	b.WriteString(query)
	return b.String()
}
