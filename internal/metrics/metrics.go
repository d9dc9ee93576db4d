// Package metrics holds the Prometheus instruments exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cursobot_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// Conversation
	MessagesPersisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cursobot_messages_persisted_total",
			Help: "Total number of messages written to the conversation store",
		},
		[]string{"sender"},
	)

	ConversationsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cursobot_conversations_started_total",
			Help: "Total number of conversations created",
		},
	)

	TurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cursobot_turn_duration_seconds",
			Help:    "Time to process one user turn, persistence included",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"}, // "ok", "empty", "welcome", "unavailable", "error"
	)

	// Dialogue
	DialogueTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cursobot_dialogue_transitions_total",
			Help: "Dialogue step transitions",
		},
		[]string{"from", "to"},
	)

	Recommendations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cursobot_recommendations_total",
			Help: "Recommendation cycles by outcome",
		},
		[]string{"outcome"}, // "results", "alternatives", "empty"
	)

	// Ranking
	RankingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cursobot_ranking_duration_seconds",
			Help:    "Duration of similarity ranking in seconds",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		},
		[]string{"variant"},
	)

	// Catalog
	CatalogReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cursobot_catalog_reloads_total",
			Help: "Catalog artifact loads by result",
		},
		[]string{"result"}, // "success", "failure"
	)

	CatalogRows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cursobot_catalog_rows",
			Help: "Number of offerings in the active catalog snapshot",
		},
	)

	// Tagging
	EmbeddingCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cursobot_embedding_cache_hits_total",
			Help: "Message embedding cache hits",
		},
	)

	EmbeddingCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cursobot_embedding_cache_misses_total",
			Help: "Message embedding cache misses",
		},
	)
)

// ObserveHTTP records one request.
func ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// ObserveTransition records a dialogue step change. Unchanged steps are not recorded.
func ObserveTransition(from, to int) {
	if from == to {
		return
	}
	DialogueTransitions.WithLabelValues(strconv.Itoa(from), strconv.Itoa(to)).Inc()
}
