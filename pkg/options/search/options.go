// Package search provides web search options.
package search

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/moktashif/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options configures Google Custom Search.
type Options struct {
	// Enabled turns web search on. When off the web search branch answers from the model alone.
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// APIKey is the Google API key, read from GOOGLE_API_KEY when empty.
	APIKey string `json:"-" mapstructure:"api-key"`

	// EngineID is the custom search engine id, read from GOOGLE_CSE_ID when empty.
	EngineID string `json:"engine-id" mapstructure:"engine-id"`

	// Results is the number of results fed to the model.
	Results int `json:"results" mapstructure:"results"`

	// Timeout bounds one search call.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Enabled: true,
		Results: 5,
		Timeout: 15 * time.Second,
	}
}

// AddFlags adds flags for search options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "search."
	fs.BoolVar(&o.Enabled, p+"enabled", o.Enabled, "Enable Google Custom Search.")
	fs.StringVar(&o.EngineID, p+"engine-id", o.EngineID, "Custom search engine id. Defaults to $GOOGLE_CSE_ID.")
	fs.IntVar(&o.Results, p+"results", o.Results, "Number of search results given to the model (1-10).")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "Search request timeout.")
}

// Complete reads credentials from the environment when unset.
func (o *Options) Complete() error {
	if o.APIKey == "" {
		o.APIKey = os.Getenv("GOOGLE_API_KEY")
	}
	if o.EngineID == "" {
		o.EngineID = os.Getenv("GOOGLE_CSE_ID")
	}
	return nil
}

// Validate validates the search options.
func (o *Options) Validate() []error {
	if o == nil || !o.Enabled {
		return nil
	}

	var errs []error
	if o.Results < 1 || o.Results > 10 {
		errs = append(errs, fmt.Errorf("search.results must be between 1 and 10"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("search.timeout must be positive"))
	}
	return errs
}

// Configured reports whether credentials are present.
func (o *Options) Configured() bool {
	return o.Enabled && o.APIKey != "" && o.EngineID != ""
}
