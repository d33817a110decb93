// Package metrics exposes the daemon's Prometheus gauges and counters:
// download throughput, catalog size, engine lifecycle, and inference
// latency. The HTTP façade mounts these at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Downloads ──────────────────────────────────────────────────────────────

// DownloadBytesTotal tracks bytes written to disk across all items.
var DownloadBytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "lumen",
	Name:      "download_bytes_total",
	Help:      "Total bytes written to disk by the download service.",
}, []string{"model"})

// DownloadsActive tracks in-flight download items.
var DownloadsActive = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "lumen",
	Name:      "downloads_active",
	Help:      "Number of download items currently in flight.",
})

// DownloadsFailed tracks terminal download failures by reason.
var DownloadsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "lumen",
	Name:      "downloads_failed_total",
	Help:      "Total download items that ended in a non-recoverable error.",
}, []string{"reason"})

// ─── Catalog ────────────────────────────────────────────────────────────────

// CatalogSize tracks the number of entries currently in the catalog.
var CatalogSize = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "lumen",
	Name:      "catalog_size",
	Help:      "Number of models currently tracked in the catalog.",
})

// ─── Engines ────────────────────────────────────────────────────────────────

// EngineInstalls tracks engine install attempts by name and outcome.
var EngineInstalls = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "lumen",
	Name:      "engine_installs_total",
	Help:      "Total engine install attempts.",
}, []string{"engine", "outcome"})

// EnginesLoaded tracks currently loaded (refcount > 0) engine libraries.
var EnginesLoaded = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "lumen",
	Name:      "engines_loaded",
	Help:      "Number of active handles to a loaded engine library.",
}, []string{"engine"})

// ─── Inference ──────────────────────────────────────────────────────────────

// InferenceLatency tracks time-to-first-token and total generation time.
var InferenceLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "lumen",
	Name:      "inference_latency_seconds",
	Help:      "Generation request duration in seconds.",
	Buckets:   prometheus.DefBuckets,
}, []string{"model", "stage"})

// InferenceTokens tracks tokens generated per model.
var InferenceTokens = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "lumen",
	Name:      "inference_tokens_total",
	Help:      "Total tokens generated.",
}, []string{"model"})

// RunPipelineLatency tracks the end-to-end run-orchestrator duration,
// labelled by outcome ("ok" or "error"); cold and warm runs are not told
// apart.
var RunPipelineLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "lumen",
	Name:      "run_pipeline_latency_seconds",
	Help:      "Duration of the run pipeline from handle to loaded model.",
	Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300},
}, []string{"outcome"})
