package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// initEngineMetrics initializes context engine metrics.
func (m *Manager) initEngineMetrics(cfg Config) {
	m.messagesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mnemos_messages_processed_total",
			Help: "Total number of messages processed by the context engine",
		},
		[]string{"role"},
	)

	m.processDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mnemos_message_process_duration_seconds",
			Help:    "Duration of the per-message processing pipeline",
			Buckets: cfg.ProcessDurationBuckets,
		},
	)

	m.themesExtracted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mnemos_themes_extracted_total",
			Help: "Total number of conversation themes extracted",
		},
	)

	m.topicShifts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mnemos_topic_shifts_total",
			Help: "Topic shift detections by shift type",
		},
		[]string{"type"},
	)

	m.entitiesTracked = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mnemos_entities_tracked",
			Help: "Entities currently tracked per conversation graph",
		},
		[]string{"conversation_id"},
	)

	m.embeddingsComputed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mnemos_embeddings_computed_total",
			Help: "Total number of embedding vectors computed",
		},
	)

	m.embeddingCacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mnemos_embedding_cache_hits_total",
			Help: "Embedding cache hits by cache layer",
		},
		[]string{"layer"},
	)

	m.refExpansions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mnemos_ref_expansions_total",
			Help: "Reference token expansions by outcome",
		},
		[]string{"outcome"},
	)

	m.refsPruned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mnemos_refs_pruned_total",
			Help: "Reference pointers evicted by the oldest-first policy",
		},
	)

	m.storageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mnemos_storage_operation_duration_seconds",
			Help:    "Storage collaborator operation duration",
			Buckets: cfg.StorageDurationBuckets,
		},
		[]string{"operation"},
	)

	m.registry.MustRegister(
		m.messagesProcessed,
		m.processDuration,
		m.themesExtracted,
		m.topicShifts,
		m.entitiesTracked,
		m.embeddingsComputed,
		m.embeddingCacheHits,
		m.refExpansions,
		m.refsPruned,
		m.storageDuration,
	)
}

// RecordMessageProcessed records one processed message and its pipeline
// duration.
func (m *Manager) RecordMessageProcessed(role string, duration time.Duration) {
	if !m.enabled {
		return
	}
	m.messagesProcessed.WithLabelValues(role).Inc()
	m.processDuration.Observe(duration.Seconds())
}

// RecordThemesExtracted records extracted themes.
func (m *Manager) RecordThemesExtracted(count int) {
	if !m.enabled || count <= 0 {
		return
	}
	m.themesExtracted.Add(float64(count))
}

// RecordTopicShift records a shift detection outcome.
func (m *Manager) RecordTopicShift(shiftType string) {
	if !m.enabled {
		return
	}
	m.topicShifts.WithLabelValues(shiftType).Inc()
}

// SetEntitiesTracked sets the current entity count for a conversation.
func (m *Manager) SetEntitiesTracked(conversationID string, count int) {
	if !m.enabled {
		return
	}
	m.entitiesTracked.WithLabelValues(conversationID).Set(float64(count))
}

// RecordEmbeddingComputed records a freshly computed embedding.
func (m *Manager) RecordEmbeddingComputed() {
	if !m.enabled {
		return
	}
	m.embeddingsComputed.Inc()
}

// RecordEmbeddingCacheHit records a cache hit in the given layer
// ("local" or "redis").
func (m *Manager) RecordEmbeddingCacheHit(layer string) {
	if !m.enabled {
		return
	}
	m.embeddingCacheHits.WithLabelValues(layer).Inc()
}

// RecordRefExpansion records a reference expansion outcome
// ("resolved" or "unresolved").
func (m *Manager) RecordRefExpansion(outcome string) {
	if !m.enabled {
		return
	}
	m.refExpansions.WithLabelValues(outcome).Inc()
}

// RecordRefsPruned records evicted reference pointers.
func (m *Manager) RecordRefsPruned(count int) {
	if !m.enabled || count <= 0 {
		return
	}
	m.refsPruned.Add(float64(count))
}

// RecordStorageOperation records a storage collaborator call.
func (m *Manager) RecordStorageOperation(operation string, duration time.Duration) {
	if !m.enabled {
		return
	}
	m.storageDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
