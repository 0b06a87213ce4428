package metrics

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// DefaultBuckets suit request latencies in seconds.
var DefaultBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

type desc struct {
	name string
	help string
	typ  MetricType
}

func (d desc) Name() string     { return d.name }
func (d desc) Help() string     { return d.help }
func (d desc) Type() MetricType { return d.typ }

func (d desc) header(sb *strings.Builder) {
	sb.WriteString("# HELP " + d.name + " " + d.help + "\n")
	sb.WriteString("# TYPE " + d.name + " " + string(d.typ) + "\n")
}

// atomicFloat is a float64 updated with compare-and-swap.
type atomicFloat struct{ bits atomic.Uint64 }

func (f *atomicFloat) load() float64   { return math.Float64frombits(f.bits.Load()) }
func (f *atomicFloat) store(v float64) { f.bits.Store(math.Float64bits(v)) }

func (f *atomicFloat) add(v float64) {
	for {
		old := f.bits.Load()
		if f.bits.CompareAndSwap(old, math.Float64bits(math.Float64frombits(old)+v)) {
			return
		}
	}
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// formatLabels renders labels sorted by name, followed by any extra pairs.
func formatLabels(labels Labels, extra ...string) string {
	pairs := make([]string, 0, len(labels)+len(extra)/2)
	for k, v := range labels {
		pairs = append(pairs, k+"="+strconv.Quote(v))
	}
	sort.Strings(pairs)
	for i := 0; i+1 < len(extra); i += 2 {
		pairs = append(pairs, extra[i]+"="+strconv.Quote(extra[i+1]))
	}
	if len(pairs) == 0 {
		return ""
	}
	return "{" + strings.Join(pairs, ",") + "}"
}

// counter

type counter struct {
	desc
	labels Labels
	val    atomicFloat
}

// NewCounter creates a counter.
func NewCounter(name, help string) Counter {
	return &counter{desc: desc{name, help, TypeCounter}}
}

func (c *counter) Inc() { c.val.add(1) }

func (c *counter) Add(v float64) {
	if v > 0 {
		c.val.add(v)
	}
}

func (c *counter) Get() float64 { return c.val.load() }

func (c *counter) series(sb *strings.Builder) {
	sb.WriteString(c.name + formatLabels(c.labels) + " " + formatValue(c.Get()) + "\n")
}

func (c *counter) Describe() string {
	var sb strings.Builder
	c.header(&sb)
	c.series(&sb)
	return sb.String()
}

// gauge

type gauge struct {
	desc
	val atomicFloat
}

// NewGauge creates a gauge.
func NewGauge(name, help string) Gauge {
	return &gauge{desc: desc{name, help, TypeGauge}}
}

func (g *gauge) Set(v float64) { g.val.store(v) }
func (g *gauge) Inc()          { g.val.add(1) }
func (g *gauge) Dec()          { g.val.add(-1) }
func (g *gauge) Add(v float64) { g.val.add(v) }
func (g *gauge) Get() float64  { return g.val.load() }

func (g *gauge) Describe() string {
	var sb strings.Builder
	g.header(&sb)
	sb.WriteString(g.name + " " + formatValue(g.Get()) + "\n")
	return sb.String()
}

// histogram

type histogram struct {
	desc
	labels  Labels
	buckets []float64

	mu     sync.Mutex
	counts []uint64
	count  uint64
	sum    float64
}

// NewHistogram creates a histogram. Nil buckets use DefaultBuckets.
func NewHistogram(name, help string, buckets []float64) Histogram {
	return newHistogram(desc{name, help, TypeHistogram}, nil, buckets)
}

func newHistogram(d desc, labels Labels, buckets []float64) *histogram {
	if len(buckets) == 0 {
		buckets = DefaultBuckets
	}
	b := append([]float64(nil), buckets...)
	sort.Float64s(b)
	return &histogram{desc: d, labels: labels, buckets: b, counts: make([]uint64, len(b))}
}

func (h *histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	for i, le := range h.buckets {
		if v <= le {
			h.counts[i]++
		}
	}
}

func (h *histogram) Count() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

func (h *histogram) Sum() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sum
}

func (h *histogram) series(sb *strings.Builder) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, le := range h.buckets {
		sb.WriteString(h.name + "_bucket" + formatLabels(h.labels, "le", formatValue(le)) +
			" " + strconv.FormatUint(h.counts[i], 10) + "\n")
	}
	sb.WriteString(h.name + "_bucket" + formatLabels(h.labels, "le", "+Inf") +
		" " + strconv.FormatUint(h.count, 10) + "\n")
	sb.WriteString(h.name + "_sum" + formatLabels(h.labels) + " " + formatValue(h.sum) + "\n")
	sb.WriteString(h.name + "_count" + formatLabels(h.labels) + " " + strconv.FormatUint(h.count, 10) + "\n")
}

func (h *histogram) Describe() string {
	var sb strings.Builder
	h.header(&sb)
	h.series(&sb)
	return sb.String()
}

// family holds the labelled series of a vector, created on first use.
type family[T any] struct {
	desc
	mu     sync.Mutex
	series map[string]T
	create func(Labels) T
}

func (f *family[T]) with(labels Labels) T {
	key := formatLabels(labels)
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.series[key]; ok {
		return s
	}
	s := f.create(labels)
	f.series[key] = s
	return s
}

func (f *family[T]) each(fn func(T)) {
	f.mu.Lock()
	keys := make([]string, 0, len(f.series))
	for k := range f.series {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	items := make([]T, len(keys))
	for i, k := range keys {
		items[i] = f.series[k]
	}
	f.mu.Unlock()

	for _, s := range items {
		fn(s)
	}
}

type counterVec struct{ family[*counter] }

// NewCounterVec creates a counter family.
func NewCounterVec(name, help string) CounterVec {
	d := desc{name, help, TypeCounter}
	v := &counterVec{}
	v.family = family[*counter]{desc: d, series: map[string]*counter{}, create: func(l Labels) *counter {
		return &counter{desc: d, labels: l}
	}}
	return v
}

func (v *counterVec) With(labels Labels) Counter { return v.with(labels) }

func (v *counterVec) Describe() string {
	var sb strings.Builder
	v.header(&sb)
	v.each(func(c *counter) { c.series(&sb) })
	return sb.String()
}

type histogramVec struct{ family[*histogram] }

// NewHistogramVec creates a histogram family sharing one bucket layout.
func NewHistogramVec(name, help string, buckets []float64) HistogramVec {
	d := desc{name, help, TypeHistogram}
	v := &histogramVec{}
	v.family = family[*histogram]{desc: d, series: map[string]*histogram{}, create: func(l Labels) *histogram {
		return newHistogram(d, l, buckets)
	}}
	return v
}

func (v *histogramVec) With(labels Labels) Histogram { return v.with(labels) }

func (v *histogramVec) Describe() string {
	var sb strings.Builder
	v.header(&sb)
	v.each(func(h *histogram) { h.series(&sb) })
	return sb.String()
}
