package metrics

import (
	"sort"
	"strings"
	"sync"
)

// Registry collects metric families for export.
type Registry struct {
	mu      sync.RWMutex
	metrics map[string]Metric
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{metrics: map[string]Metric{}}
}

// Register adds m, replacing any family with the same name.
func (r *Registry) Register(m Metric) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics[m.Name()] = m
}

// Export renders every family sorted by name.
func (r *Registry) Export() string {
	r.mu.RLock()
	names := make([]string, 0, len(r.metrics))
	for name := range r.metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	families := make([]Metric, len(names))
	for i, name := range names {
		families[i] = r.metrics[name]
	}
	r.mu.RUnlock()

	var sb strings.Builder
	for _, m := range families {
		sb.WriteString(m.Describe())
		sb.WriteString("\n")
	}
	return sb.String()
}
