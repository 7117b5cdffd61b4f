package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	generationReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sheetmd",
			Name:      "generation_requests_total",
			Help:      "Total generation requests by model and result",
		},
		[]string{"model", "result"},
	)

	generationLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sheetmd",
			Name:      "generation_request_duration_seconds",
			Help:      "Duration of generation requests by model",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"model"},
	)

	retriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sheetmd",
			Name:      "generation_retries_total",
			Help:      "Generation retries by reason (rate_limited, backoff)",
		},
		[]string{"reason"},
	)

	batchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sheetmd",
			Name:      "batches_total",
			Help:      "Batches processed by result (success, fallback)",
		},
		[]string{"result"},
	)

	sheetsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sheetmd",
			Name:      "sheets_total",
			Help:      "Sheets converted by mode and result",
		},
		[]string{"mode", "result"},
	)

	parseOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sheetmd",
			Name:      "response_parse_total",
			Help:      "Response parse outcomes by stage (direct, fenced, brace, raw)",
		},
		[]string{"stage"},
	)

	filesWritten = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sheetmd",
			Name:      "files_written_total",
			Help:      "Markdown files materialized to disk",
		},
	)
)

// Init registers collectors.
func Init() {
	prometheus.MustRegister(generationReqs, generationLatency, retriesTotal, batchesTotal, sheetsTotal, parseOutcomes, filesWritten)
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func ObserveGeneration(model, result string, dur time.Duration) {
	generationReqs.WithLabelValues(model, result).Inc()
	generationLatency.WithLabelValues(model).Observe(dur.Seconds())
}

func IncRetry(reason string)       { retriesTotal.WithLabelValues(reason).Inc() }
func IncBatch(result string)       { batchesTotal.WithLabelValues(result).Inc() }
func IncSheet(mode, result string) { sheetsTotal.WithLabelValues(mode, result).Inc() }
func IncParse(stage string)        { parseOutcomes.WithLabelValues(stage).Inc() }
func IncFileWritten()              { filesWritten.Inc() }
