// Package metrics holds the service's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"milk-herd-backend/internal/pedigree"
)

// Result labels for meter readings and push notifications.
const (
	MeterStored  = "stored"
	MeterSkipped = "skipped"
	MeterInvalid = "invalid"

	NotificationSent    = "sent"
	NotificationExpired = "expired"
	NotificationFailed  = "failed"
)

var (
	// parentValidations counts parent-edge validations by outcome
	parentValidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "herd_parent_validations_total",
		Help: "Parent assignment validations by outcome (ok, rejection reason, or error)",
	}, []string{"outcome"})

	// pedigreeBuildDuration tracks pedigree tree build latency
	pedigreeBuildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "herd_pedigree_build_duration_seconds",
		Help:    "Pedigree build duration in seconds by requested depth",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	}, []string{"depth"})

	// meterRecords counts milk meter readings by result
	meterRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "herd_meter_records_total",
		Help: "Milk meter readings processed by result",
	}, []string{"result"})

	// notificationsSent counts push notification attempts by result
	notificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "herd_notifications_sent_total",
		Help: "Offspring push notifications by result",
	}, []string{"result"})
)

// ValidationOutcome maps a Guard result to a metric label.
func ValidationOutcome(err error) string {
	if err == nil {
		return "ok"
	}
	if rej, ok := pedigree.AsRejection(err); ok {
		return string(rej.Reason)
	}
	return "error"
}

// ObserveValidation records one Guard result.
func ObserveValidation(err error) {
	parentValidations.WithLabelValues(ValidationOutcome(err)).Inc()
}

// ObservePedigreeBuild records how long a pedigree of the given depth took.
func ObservePedigreeBuild(depth string, d time.Duration) {
	pedigreeBuildDuration.WithLabelValues(depth).Observe(d.Seconds())
}

// AddMeterRecords counts n meter readings with the given result.
func AddMeterRecords(result string, n int) {
	if n > 0 {
		meterRecords.WithLabelValues(result).Add(float64(n))
	}
}

// ObserveNotification records a push attempt.
func ObserveNotification(result string) {
	notificationsSent.WithLabelValues(result).Inc()
}
