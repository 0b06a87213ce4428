package websearch

import (
	"context"
	"fmt"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"

	searchopts "github.com/kart-io/moktashif/pkg/options/search"
)

var _ Searcher = (*Google)(nil)

// Google searches the web through the Custom Search JSON API.
type Google struct {
	svc      *customsearch.Service
	engineID string
	opts     *searchopts.Options
}

// NewGoogle creates a Custom Search client. Extra client options are appended after the API key.
func NewGoogle(ctx context.Context, opts *searchopts.Options, clientOpts ...option.ClientOption) (*Google, error) {
	if !opts.Configured() {
		return nil, fmt.Errorf("google search requires api key and engine id")
	}

	svc, err := customsearch.NewService(ctx, append([]option.ClientOption{option.WithAPIKey(opts.APIKey)}, clientOpts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create custom search service: %w", err)
	}
	return &Google{svc: svc, engineID: opts.EngineID, opts: opts}, nil
}

// Search returns at most n results for query.
func (g *Google) Search(ctx context.Context, query string, n int) ([]Result, error) {
	if n <= 0 || n > 10 {
		n = g.opts.Results
	}
	if g.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()
	}

	resp, err := g.svc.Cse.List().Context(ctx).Cx(g.engineID).Q(query).Num(int64(n)).Do()
	if err != nil {
		return nil, fmt.Errorf("custom search failed: %w", err)
	}

	results := make([]Result, 0, len(resp.Items))
	for _, item := range resp.Items {
		results = append(results, Result{
			Title:   item.Title,
			Link:    item.Link,
			Snippet: item.Snippet,
		})
	}
	return results, nil
}
