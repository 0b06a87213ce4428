// Package assistant provides the chat pipeline tunables.
package assistant

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/moktashif/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Backend names.
const (
	StoreMongo   = "mongo"
	StoreMemory  = "memory"
	VectorMilvus = "milvus"
	VectorMemory = "memory"
)

// Options contains pipeline configuration.
type Options struct {
	// Store selects the document store backend (mongo, memory).
	Store string `json:"store" mapstructure:"store"`

	// Vector selects the vector index backend (milvus, memory).
	Vector string `json:"vector" mapstructure:"vector"`

	// ChunkSize is the maximum number of characters per document chunk.
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`

	// SummaryMaxDepth bounds hierarchical summarization recursion.
	SummaryMaxDepth int `json:"summary-max-depth" mapstructure:"summary-max-depth"`

	// HistoryWindow is the number of trailing messages sent to the model.
	HistoryWindow int `json:"history-window" mapstructure:"history-window"`

	// TopK is the number of chunks retrieved for document questions.
	TopK int `json:"top-k" mapstructure:"top-k"`

	// DocumentExcerpt is the number of document characters quoted into prompts.
	DocumentExcerpt int `json:"document-excerpt" mapstructure:"document-excerpt"`

	// SearchContext is the number of document characters appended to web search queries.
	SearchContext int `json:"search-context" mapstructure:"search-context"`

	// FileContentLimit caps the characters returned by the file content endpoint.
	FileContentLimit int `json:"file-content-limit" mapstructure:"file-content-limit"`

	// Memory configures memory retrieval ranking.
	Memory *MemoryOptions `json:"memory" mapstructure:"memory"`

	// FactWorkers is the size of the background fact extraction pool.
	FactWorkers int `json:"fact-workers" mapstructure:"fact-workers"`
}

// MemoryOptions 记忆检索排序配置。
type MemoryOptions struct {
	// Limit 每个分桶（当前会话、其他会话）返回的最大条数。
	Limit int `json:"limit" mapstructure:"limit"`

	// SimilarityWeight 相似度权重。
	SimilarityWeight float64 `json:"similarity-weight" mapstructure:"similarity-weight"`

	// RecencyWeight 时间衰减权重。
	RecencyWeight float64 `json:"recency-weight" mapstructure:"recency-weight"`

	// ImportanceWeight 重要度权重。
	ImportanceWeight float64 `json:"importance-weight" mapstructure:"importance-weight"`

	// HalfLife 时间衰减的半衰期。
	HalfLife time.Duration `json:"half-life" mapstructure:"half-life"`

	// FactImportance 个人事实记忆的重要度。
	FactImportance float64 `json:"fact-importance" mapstructure:"fact-importance"`

	// FileImportance 文件记忆的重要度。
	FileImportance float64 `json:"file-importance" mapstructure:"file-importance"`
}

// NewMemoryOptions 创建默认记忆检索配置。
func NewMemoryOptions() *MemoryOptions {
	return &MemoryOptions{
		Limit:            5,
		SimilarityWeight: 0.6,
		RecencyWeight:    0.25,
		ImportanceWeight: 0.15,
		HalfLife:         72 * time.Hour,
		FactImportance:   0.8,
		FileImportance:   0.7,
	}
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Store:            StoreMongo,
		Vector:           VectorMilvus,
		ChunkSize:        2000,
		SummaryMaxDepth:  3,
		HistoryWindow:    10,
		TopK:             5,
		DocumentExcerpt:  2000,
		SearchContext:    300,
		FileContentLimit: 5000,
		Memory:           NewMemoryOptions(),
		FactWorkers:      8,
	}
}

// AddFlags adds flags for assistant options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "assistant."
	fs.StringVar(&o.Store, p+"store", o.Store, "Document store backend (mongo, memory).")
	fs.StringVar(&o.Vector, p+"vector", o.Vector, "Vector index backend (milvus, memory).")
	fs.IntVar(&o.ChunkSize, p+"chunk-size", o.ChunkSize, "Maximum characters per document chunk.")
	fs.IntVar(&o.SummaryMaxDepth, p+"summary-max-depth", o.SummaryMaxDepth, "Maximum hierarchical summarization depth.")
	fs.IntVar(&o.HistoryWindow, p+"history-window", o.HistoryWindow, "Number of trailing messages sent to the model.")
	fs.IntVar(&o.TopK, p+"top-k", o.TopK, "Number of chunks retrieved for document questions.")
	fs.IntVar(&o.DocumentExcerpt, p+"document-excerpt", o.DocumentExcerpt, "Document characters quoted into prompts.")
	fs.IntVar(&o.SearchContext, p+"search-context", o.SearchContext, "Document characters appended to web search queries.")
	fs.IntVar(&o.FileContentLimit, p+"file-content-limit", o.FileContentLimit, "Characters returned by the file content endpoint.")
	fs.IntVar(&o.FactWorkers, p+"fact-workers", o.FactWorkers, "Background fact extraction workers.")

	if o.Memory == nil {
		o.Memory = NewMemoryOptions()
	}
	fs.IntVar(&o.Memory.Limit, p+"memory.limit", o.Memory.Limit, "Memories returned per bucket.")
	fs.Float64Var(&o.Memory.SimilarityWeight, p+"memory.similarity-weight", o.Memory.SimilarityWeight, "Ranking weight of similarity.")
	fs.Float64Var(&o.Memory.RecencyWeight, p+"memory.recency-weight", o.Memory.RecencyWeight, "Ranking weight of recency.")
	fs.Float64Var(&o.Memory.ImportanceWeight, p+"memory.importance-weight", o.Memory.ImportanceWeight, "Ranking weight of importance.")
	fs.DurationVar(&o.Memory.HalfLife, p+"memory.half-life", o.Memory.HalfLife, "Recency decay half-life.")
	fs.Float64Var(&o.Memory.FactImportance, p+"memory.fact-importance", o.Memory.FactImportance, "Importance of personal fact memories.")
	fs.Float64Var(&o.Memory.FileImportance, p+"memory.file-importance", o.Memory.FileImportance, "Importance of file memories.")
}

// Validate validates the assistant options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Store != StoreMongo && o.Store != StoreMemory {
		errs = append(errs, fmt.Errorf("assistant.store must be %q or %q", StoreMongo, StoreMemory))
	}
	if o.Vector != VectorMilvus && o.Vector != VectorMemory {
		errs = append(errs, fmt.Errorf("assistant.vector must be %q or %q", VectorMilvus, VectorMemory))
	}
	if o.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("assistant.chunk-size must be positive"))
	}
	if o.SummaryMaxDepth < 0 {
		errs = append(errs, fmt.Errorf("assistant.summary-max-depth must not be negative"))
	}
	if o.HistoryWindow <= 0 {
		errs = append(errs, fmt.Errorf("assistant.history-window must be positive"))
	}
	if o.TopK <= 0 {
		errs = append(errs, fmt.Errorf("assistant.top-k must be positive"))
	}
	if o.Memory != nil {
		if o.Memory.Limit <= 0 {
			errs = append(errs, fmt.Errorf("assistant.memory.limit must be positive"))
		}
		for name, w := range map[string]float64{
			"fact-importance": o.Memory.FactImportance,
			"file-importance": o.Memory.FileImportance,
		} {
			if w < 0 || w > 1 {
				errs = append(errs, fmt.Errorf("assistant.memory.%s must be between 0 and 1", name))
			}
		}
	}
	return errs
}

// Complete completes the assistant options with defaults.
func (o *Options) Complete() error {
	if o.Memory == nil {
		o.Memory = NewMemoryOptions()
	}
	if o.Memory.HalfLife <= 0 {
		o.Memory.HalfLife = 72 * time.Hour
	}
	if o.FactWorkers <= 0 {
		o.FactWorkers = 1
	}
	return nil
}
