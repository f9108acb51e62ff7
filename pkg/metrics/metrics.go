// Package metrics exposes Prometheus instrumentation for the upstream
// calls and the analysis pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	providerCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hagglekit",
		Name:      "provider_calls_total",
		Help:      "Chat completion calls by outcome.",
	}, []string{"status"})

	providerDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "hagglekit",
		Name:      "provider_call_duration_seconds",
		Help:      "Chat completion call latency.",
		Buckets:   prometheus.DefBuckets,
	})

	analyses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hagglekit",
		Name:      "analyses_total",
		Help:      "Screenshot analyses by outcome.",
	}, []string{"status"})

	analysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "hagglekit",
		Name:      "analysis_duration_seconds",
		Help:      "Screenshot analysis latency.",
		Buckets:   prometheus.DefBuckets,
	})

	uploadsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hagglekit",
		Name:      "uploads_rejected_total",
		Help:      "Uploads rejected before any network call.",
	})
)

func ObserveProviderCall(d time.Duration, ok bool) {
	status := "success"
	if !ok {
		status = "error"
	}
	providerCalls.WithLabelValues(status).Inc()
	providerDuration.Observe(d.Seconds())
}

// ObserveAnalysis records one analysis. A degraded fallback counts as
// its own status so dashboards can watch parse quality.
func ObserveAnalysis(d time.Duration, ok, degraded bool) {
	status := "success"
	switch {
	case !ok:
		status = "error"
	case degraded:
		status = "degraded"
	}
	analyses.WithLabelValues(status).Inc()
	analysisDuration.Observe(d.Seconds())
}

func ObserveUploadRejected() {
	uploadsRejected.Inc()
}
