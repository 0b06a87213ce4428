// Package options contains flags and options for initializing the Moktashif server.
package options

import (
	"fmt"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/kart-io/moktashif/internal/assistant"
	"github.com/kart-io/moktashif/pkg/infra/app"
	assistantopts "github.com/kart-io/moktashif/pkg/options/assistant"
	cacheopts "github.com/kart-io/moktashif/pkg/options/cache"
	httpopts "github.com/kart-io/moktashif/pkg/options/http"
	jwtopts "github.com/kart-io/moktashif/pkg/options/jwt"
	llmopts "github.com/kart-io/moktashif/pkg/options/llm"
	logopts "github.com/kart-io/moktashif/pkg/options/logger"
	milvusopts "github.com/kart-io/moktashif/pkg/options/milvus"
	mongoopts "github.com/kart-io/moktashif/pkg/options/mongodb"
	redisopts "github.com/kart-io/moktashif/pkg/options/redis"
	searchopts "github.com/kart-io/moktashif/pkg/options/search"
	storageopts "github.com/kart-io/moktashif/pkg/options/storage"
)

var _ app.CliOptions = (*ServerOptions)(nil)

// ServerOptions contains the configuration options for the server.
type ServerOptions struct {
	// HTTPOptions contains HTTP server configuration.
	HTTPOptions *httpopts.Options `json:"http" mapstructure:"http"`

	// LogOptions contains logger configuration.
	LogOptions *logopts.Options `json:"log" mapstructure:"log"`

	// JWTOptions contains bearer token verification configuration.
	JWTOptions *jwtopts.Options `json:"jwt" mapstructure:"jwt"`

	// MongoOptions contains MongoDB configuration.
	MongoOptions *mongoopts.Options `json:"mongodb" mapstructure:"mongodb"`

	// MilvusOptions contains Milvus configuration.
	MilvusOptions *milvusopts.Options `json:"milvus" mapstructure:"milvus"`

	// RedisOptions contains Redis configuration.
	RedisOptions *redisopts.Options `json:"redis" mapstructure:"redis"`

	// CacheOptions contains cache configuration.
	CacheOptions *cacheopts.Options `json:"cache" mapstructure:"cache"`

	// StorageOptions contains raw upload storage configuration.
	StorageOptions *storageopts.Options `json:"storage" mapstructure:"storage"`

	// SearchOptions contains web search configuration.
	SearchOptions *searchopts.Options `json:"search" mapstructure:"search"`

	// ChatOptions contains chat provider configuration.
	ChatOptions *llmopts.ProviderOptions `json:"llm" mapstructure:"llm"`

	// EmbeddingOptions contains embedding provider configuration.
	EmbeddingOptions *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`

	// AssistantOptions contains chat pipeline tunables.
	AssistantOptions *assistantopts.Options `json:"assistant" mapstructure:"assistant"`
}

// NewServerOptions creates a ServerOptions instance with default values.
func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		HTTPOptions:      httpopts.NewOptions(),
		LogOptions:       logopts.NewOptions(),
		JWTOptions:       jwtopts.NewOptions(),
		MongoOptions:     mongoopts.NewOptions(),
		MilvusOptions:    milvusopts.NewOptions(),
		RedisOptions:     redisopts.NewOptions(),
		CacheOptions:     cacheopts.NewOptions(),
		StorageOptions:   storageopts.NewOptions(),
		SearchOptions:    searchopts.NewOptions(),
		ChatOptions:      llmopts.NewChatOptions(),
		EmbeddingOptions: llmopts.NewEmbeddingOptions(),
		AssistantOptions: assistantopts.NewOptions(),
	}
}

// Flags returns flags for a specific server by section name.
func (o *ServerOptions) Flags() (fss app.NamedFlagSets) {
	o.HTTPOptions.AddFlags(fss.FlagSet("http"))
	o.LogOptions.AddFlags(fss.FlagSet("log"))
	o.JWTOptions.AddFlags(fss.FlagSet("jwt"))
	o.MongoOptions.AddFlags(fss.FlagSet("mongodb"))
	o.MilvusOptions.AddFlags(fss.FlagSet("milvus"))
	o.RedisOptions.AddFlags(fss.FlagSet("redis"))
	o.CacheOptions.AddFlags(fss.FlagSet("cache"))
	o.StorageOptions.AddFlags(fss.FlagSet("storage"))
	o.SearchOptions.AddFlags(fss.FlagSet("search"))
	o.ChatOptions.AddFlags(fss.FlagSet("llm"))
	o.EmbeddingOptions.AddFlags(fss.FlagSet("embedding"))
	o.AssistantOptions.AddFlags(fss.FlagSet("assistant"))
	return fss
}

// Complete completes all the required options.
func (o *ServerOptions) Complete() error {
	completers := []struct {
		name string
		fn   func() error
	}{
		{"http", o.HTTPOptions.Complete},
		{"log", o.LogOptions.Complete},
		{"jwt", o.JWTOptions.Complete},
		{"mongodb", o.MongoOptions.Complete},
		{"milvus", o.MilvusOptions.Complete},
		{"redis", o.RedisOptions.Complete},
		{"cache", o.CacheOptions.Complete},
		{"storage", o.StorageOptions.Complete},
		{"search", o.SearchOptions.Complete},
		{"llm", o.ChatOptions.Complete},
		{"embedding", o.EmbeddingOptions.Complete},
		{"assistant", o.AssistantOptions.Complete},
	}
	for _, c := range completers {
		if err := c.fn(); err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}
	}
	return nil
}

// Validate checks whether the options in ServerOptions are valid.
// Backend options are only checked when that backend is selected.
func (o *ServerOptions) Validate() error {
	errs := []error{}

	errs = append(errs, o.HTTPOptions.Validate()...)
	errs = append(errs, o.LogOptions.Validate()...)
	errs = append(errs, o.JWTOptions.Validate()...)
	errs = append(errs, o.StorageOptions.Validate()...)
	errs = append(errs, o.SearchOptions.Validate()...)
	errs = append(errs, o.ChatOptions.Validate()...)
	errs = append(errs, o.EmbeddingOptions.Validate()...)
	errs = append(errs, o.AssistantOptions.Validate()...)
	errs = append(errs, o.CacheOptions.Validate()...)

	if o.AssistantOptions.Store == assistantopts.StoreMongo {
		errs = append(errs, o.MongoOptions.Validate()...)
	}
	if o.AssistantOptions.Vector == assistantopts.VectorMilvus {
		errs = append(errs, o.MilvusOptions.Validate()...)
	}
	if o.CacheOptions.Enabled {
		errs = append(errs, o.RedisOptions.Validate()...)
	}

	return utilerrors.NewAggregate(errs)
}

// Config builds an assistant.Config based on ServerOptions.
func (o *ServerOptions) Config() (*assistant.Config, error) {
	return &assistant.Config{
		HTTPOptions:      o.HTTPOptions,
		LogOptions:       o.LogOptions,
		JWTOptions:       o.JWTOptions,
		MongoOptions:     o.MongoOptions,
		MilvusOptions:    o.MilvusOptions,
		RedisOptions:     o.RedisOptions,
		CacheOptions:     o.CacheOptions,
		StorageOptions:   o.StorageOptions,
		SearchOptions:    o.SearchOptions,
		ChatOptions:      o.ChatOptions,
		EmbeddingOptions: o.EmbeddingOptions,
		AssistantOptions: o.AssistantOptions,
	}, nil
}
