// Package metrics provides Prometheus metrics for publishbot.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "publishbot"

var (
	// PublishTotal counts worker iterations by outcome.
	PublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_total",
			Help:      "Worker loop iterations by language and outcome",
		},
		[]string{"lang", "outcome"},
	)

	// DeliveryAttempts counts individual webhook POST attempts.
	DeliveryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_attempts_total",
			Help:      "Webhook POST attempts by outcome",
		},
		[]string{"outcome"},
	)

	// DeliveryDuration measures a full send including retries.
	DeliveryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delivery_duration_seconds",
			Help:      "Duration of a webhook send including retries",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	Quota = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quota",
			Help:      "Daily publish quota drawn at worker start",
		},
		[]string{"lang"},
	)

	PublishedToday = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "published_today",
			Help:      "Ledger entries for the current UTC day",
		},
		[]string{"lang"},
	)

	Pending = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending",
			Help:      "Articles not yet in the ledger",
		},
		[]string{"lang"},
	)
)

// RecordAttempt records one webhook attempt ("ok", "status", "error").
func RecordAttempt(outcome string) {
	DeliveryAttempts.WithLabelValues(outcome).Inc()
}

// RecordSend records the duration of a whole send.
func RecordSend(d time.Duration) {
	DeliveryDuration.Observe(d.Seconds())
}

// RecordOutcome records one worker iteration.
func RecordOutcome(lang, outcome string) {
	PublishTotal.WithLabelValues(lang, outcome).Inc()
}

// SetLanguageState publishes the latest per-language counters.
func SetLanguageState(lang string, quota, today, pending int) {
	Quota.WithLabelValues(lang).Set(float64(quota))
	PublishedToday.WithLabelValues(lang).Set(float64(today))
	if pending >= 0 {
		Pending.WithLabelValues(lang).Set(float64(pending))
	}
}
