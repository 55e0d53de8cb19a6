package metrics

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReportResolved records a report leaving PENDING and the rebate it
// credited.
func ReportResolved(status, approvalType string, rebate decimal.Decimal) {
	ReportsResolved.WithLabelValues(status, approvalType).Inc()
	if rebate.IsPositive() {
		RebateCreditedTotal.Add(rebate.InexactFloat64())
	}
}

// ResolutionConflict records a resolver that found the report already
// resolved.
func ResolutionConflict(resolver string) {
	ResolutionConflicts.WithLabelValues(resolver).Inc()
}

// SweepCompleted records a finished expiry sweep.
func SweepCompleted(duration time.Duration, itemErrors int) {
	SweepRunsTotal.WithLabelValues("completed").Inc()
	SweepDuration.Observe(duration.Seconds())
	if itemErrors > 0 {
		SweepItemErrors.Add(float64(itemErrors))
	}
}

// SweepSkipped records a tick where another replica held the sweep lock.
func SweepSkipped() {
	SweepRunsTotal.WithLabelValues("skipped_locked").Inc()
}

// SweepFailed records a sweep that could not list its candidates.
func SweepFailed() {
	SweepRunsTotal.WithLabelValues("failed").Inc()
}

// Notification records one channel delivery attempt.
func Notification(notificationType, channel string, err error) {
	status := "sent"
	if err != nil {
		status = "failed"
	}
	NotificationsSent.WithLabelValues(notificationType, channel, status).Inc()
}

// WebhookCallback records a detection callback by outcome: approved,
// merged, failed, replayed or invalid.
func WebhookCallback(outcome string) {
	WebhookCallbacks.WithLabelValues(outcome).Inc()
}

// DetectionTriggered records an outbound detection trigger attempt.
func DetectionTriggered(err error) {
	status := "sent"
	if err != nil {
		status = "failed"
	}
	DetectionTriggers.WithLabelValues(status).Inc()
}
