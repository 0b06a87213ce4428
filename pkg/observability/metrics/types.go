// Package metrics implements the counters, gauges and histograms exported on
// /metrics in the Prometheus text exposition format.
package metrics

// MetricType is the Prometheus TYPE of a metric family.
type MetricType string

const (
	TypeCounter   MetricType = "counter"
	TypeGauge     MetricType = "gauge"
	TypeHistogram MetricType = "histogram"
)

// Labels are the label pairs of one series.
type Labels map[string]string

// Metric is a metric family that can render itself.
type Metric interface {
	Name() string
	Help() string
	Type() MetricType
	// Describe renders HELP, TYPE and every series of the family.
	Describe() string
}

// Counter only goes up.
type Counter interface {
	Metric
	Inc()
	// Add ignores negative values.
	Add(float64)
	Get() float64
}

// Gauge can go up and down.
type Gauge interface {
	Metric
	Set(float64)
	Inc()
	Dec()
	Add(float64)
	Get() float64
}

// Histogram counts observations into cumulative buckets.
type Histogram interface {
	Metric
	Observe(float64)
	Count() uint64
	Sum() float64
}

// CounterVec is a counter family partitioned by labels.
type CounterVec interface {
	Metric
	With(Labels) Counter
}

// HistogramVec is a histogram family partitioned by labels.
type HistogramVec interface {
	Metric
	With(Labels) Histogram
}
