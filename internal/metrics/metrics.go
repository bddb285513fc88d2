// Package metrics defines the Prometheus collectors exported by NeuralHire.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "neuralhire"

// Ranking pipeline metrics.
var (
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rank_stage_duration_seconds",
			Help:      "Duration of each ranking stage in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15},
		},
		[]string{"stage"},
	)

	StageCandidates = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rank_stage_candidates",
			Help:      "Candidates left after each ranking stage",
			Buckets:   []float64{0, 1, 5, 10, 20, 50, 100, 500, 1000, 5000},
		},
		[]string{"stage"},
	)

	RankRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rank_requests_total",
			Help:      "Total ranking requests by outcome",
		},
		[]string{"outcome"}, // ok, no_matches, error
	)

	ValidatorFallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_validator_fallback_total",
			Help:      "LLM validator responses that degraded to the input order",
		},
		[]string{"reason"},
	)

	RerankFallbackTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rerank_fallback_total",
			Help:      "Cross-encoder failures answered with combined-score order",
		},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_total",
			Help:      "Embedding cache hits and misses",
		},
		[]string{"result"}, // hit, miss
	)
)

var registerOnce sync.Once

// Register registers all collectors with the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			StageDuration,
			StageCandidates,
			RankRequestsTotal,
			ValidatorFallbackTotal,
			RerankFallbackTotal,
			EmbeddingCacheTotal,
			httpRequestDuration,
			httpRequestsTotal,
		)
	})
}
