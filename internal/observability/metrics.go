package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	completionPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "deskfit",
		Subsystem: "persistence",
		Name:      "last_completion_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent completion persisted to Postgres.",
	})
	completionsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "deskfit",
		Subsystem: "completions",
		Name:      "recorded_total",
		Help:      "Number of exercise completions recorded.",
	})
	achievementUnlockCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "deskfit",
		Subsystem: "achievements",
		Name:      "unlocked_total",
		Help:      "Number of achievement unlocks, labeled by requirement type.",
	}, []string{"requirement_type"})
	recommendationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "deskfit",
		Subsystem: "recommendations",
		Name:      "served_total",
		Help:      "Recommendations served, labeled by source (cache, provider, fallback).",
	}, []string{"source"})
	providerErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "deskfit",
		Subsystem: "recommendations",
		Name:      "provider_errors_total",
		Help:      "Suggestion provider failures, labeled by kind.",
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(
		completionPersistGauge,
		completionsCounter,
		achievementUnlockCounter,
		recommendationCounter,
		providerErrorCounter,
	)
}

// RecordCompletionPersisted updates the persistence watermark gauge and the
// completion counter.
func RecordCompletionPersisted(ts time.Time) {
	completionsCounter.Inc()
	if ts.IsZero() {
		return
	}
	completionPersistGauge.Set(float64(ts.Unix()))
}

// RecordAchievementUnlocked counts one unlock per requirement type.
func RecordAchievementUnlocked(requirementType string) {
	achievementUnlockCounter.WithLabelValues(requirementType).Inc()
}

// RecordRecommendationServed counts one served recommendation by source.
func RecordRecommendationServed(source string) {
	recommendationCounter.WithLabelValues(source).Inc()
}

// RecordProviderError counts one suggestion provider failure by kind.
func RecordProviderError(kind string) {
	providerErrorCounter.WithLabelValues(kind).Inc()
}
