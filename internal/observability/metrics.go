package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AskRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assistant_ask_duration_seconds",
			Help:    "End to end question handling duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"intent", "source", "status"},
	)

	AskRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_ask_requests_total",
			Help: "Total number of answered questions",
		},
		[]string{"intent", "status"},
	)

	ClassificationConfidence = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assistant_classification_confidence",
			Help:    "Resolved classification confidence",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		},
		[]string{"source"},
	)

	ModelFallbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_model_fallback_total",
			Help: "Model collaborator invocations by outcome",
		},
		[]string{"outcome"},
	)

	FuzzyRecoveryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_fuzzy_recovery_total",
			Help: "Fuzzy recovery attempts by record kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_query_duration_seconds",
			Help:    "Directory store lookup duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"backend", "kind", "status"},
	)

	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "redis_cache_hits_total",
			Help: "Total number of Redis cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "redis_cache_misses_total",
			Help: "Total number of Redis cache misses",
		},
	)

	CHQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ch_query_duration_seconds",
			Help:    "ClickHouse query duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"query_type", "status"},
	)

	ReindexRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reindex_records_total",
			Help: "Directory records copied into the search index",
		},
		[]string{"kind", "status"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	SlowPipelineCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_slow_pipeline_total",
			Help: "Total number of slow question pipelines",
		},
		[]string{"severity", "intent"},
	)

	KafkaMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_total",
			Help: "Kafka messages handled by topic and status",
		},
		[]string{"topic", "status"},
	)

	ESClusterHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "es_cluster_health_status",
			Help: "ES cluster health; the current color is set to 1",
		},
		[]string{"color"},
	)

	QuestionsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "assistant_questions_in_flight",
			Help: "HTTP questions currently being answered",
		},
	)
)
