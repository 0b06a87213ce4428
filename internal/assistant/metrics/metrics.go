// Package metrics 定义助手服务的业务计数器，以 Prometheus 文本格式导出。
package metrics

import (
	"time"

	"github.com/kart-io/moktashif/pkg/observability/metrics"
)

// Registry 是助手服务的指标注册表。
var Registry = metrics.NewRegistry()

var (
	turns = metrics.NewCounterVec("moktashif_turns_total",
		"Chat turns by context branch.")
	upstreamErrors = metrics.NewCounter("moktashif_upstream_errors_total",
		"Completion or web search failures surfaced in stream.")
	retrievalFailures = metrics.NewCounter("moktashif_retrieval_failures_total",
		"Vector retrieval calls that fell back to summarization.")
	factsCaptured = metrics.NewCounter("moktashif_facts_captured_total",
		"Personal facts stored in memory.")
	summaries = metrics.NewCounterVec("moktashif_summaries_total",
		"Hierarchical summaries by cache result.")
	uploads = metrics.NewCounterVec("moktashif_uploads_total",
		"Uploaded files by type.")
	activeStreams = metrics.NewGauge("moktashif_active_streams",
		"Chat responses currently streaming.")
	streamSeconds = metrics.NewHistogramVec("moktashif_stream_duration_seconds",
		"Time from first byte to end of a streamed chat response, by branch.",
		[]float64{0.5, 1, 2.5, 5, 10, 30, 60, 120})
)

func init() {
	for _, m := range []metrics.Metric{turns, upstreamErrors, retrievalFailures, factsCaptured, summaries, uploads, activeStreams, streamSeconds} {
		Registry.Register(m)
	}
}

// TurnStarted 记录一次进入指定分支的对话轮次。
func TurnStarted(branch string) {
	turns.With(metrics.Labels{"branch": branch}).Inc()
}

// UpstreamError 记录一次上游失败。
func UpstreamError() { upstreamErrors.Inc() }

// RetrievalFailure 记录一次检索降级。
func RetrievalFailure() { retrievalFailures.Inc() }

// FactCaptured 记录一次事实写入。
func FactCaptured() { factsCaptured.Inc() }

// SummaryGenerated 记录一次摘要，cached 表示命中缓存。
func SummaryGenerated(cached bool) {
	result := "miss"
	if cached {
		result = "hit"
	}
	summaries.With(metrics.Labels{"cache": result}).Inc()
}

// Uploaded 记录一次文件上传。
func Uploaded(fileType string) {
	uploads.With(metrics.Labels{"filetype": fileType}).Inc()
}

// StreamOpened 记录一个开始输出的流式回复。
func StreamOpened() { activeStreams.Inc() }

// StreamClosed 记录流式回复结束及其耗时。
func StreamClosed(branch string, d time.Duration) {
	activeStreams.Dec()
	streamSeconds.With(metrics.Labels{"branch": branch}).Observe(d.Seconds())
}

// Export 以 Prometheus 文本格式导出全部指标。
func Export() string {
	return Registry.Export()
}
