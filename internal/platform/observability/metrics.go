package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SignalsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radar_signals_ingested_total",
		Help: "The total number of raw signals accepted by the normalizer",
	}, []string{"source"})

	SignalsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radar_signals_dropped_total",
		Help: "The total number of signals dropped before ranking",
	}, []string{"reason"})

	StageProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radar_stage_processed_total",
		Help: "Items processed per pipeline stage by outcome",
	}, []string{"stage", "status"})

	DegradedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radar_degraded_events_total",
		Help: "Fallback activations per pipeline stage",
	}, []string{"stage"})

	LLMRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "radar_llm_request_duration_seconds",
		Help:    "Duration of reasoning-service requests",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"provider", "model"})

	LLMFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radar_llm_fallbacks_total",
		Help: "Reasoning-service provider fallback events",
	}, []string{"from_provider", "to_provider"})

	StoreQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "radar_store_query_duration_seconds",
		Help:    "Duration of knowledge store operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	CycleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "radar_cycle_duration_seconds",
		Help:    "Duration of a full pipeline cycle",
		Buckets: []float64{30, 60, 300, 600, 1800, 3600, 7200},
	}, []string{"mode"})

	SynthesisEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radar_synthesis_emitted_total",
		Help: "Syntheses emitted per mode and generation path",
	}, []string{"mode", "path"})
)

// Stage label values.
const (
	StageIngest     = "ingest"
	StageRank       = "rank"
	StageNovelty    = "novelty"
	StageAnalyze    = "analyze"
	StageSynthesize = "synthesize"
	StageStore      = "store"
)

// Status label values.
const (
	StatusOK        = "ok"
	StatusDiscarded = "discarded"
	StatusExcluded  = "excluded"
	StatusDegraded  = "degraded"
	StatusError     = "error"
)
