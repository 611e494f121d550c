// Package metrics provides Prometheus metrics for Sunflower:
// decisions, picks, notifications, entitlement and health.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Decisions ──────────────────────────────────────────────────────────────

// ModalsPresented counts foreground decisions by resulting modal.
var ModalsPresented = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "sunflower",
	Name:      "modals_presented_total",
	Help:      "Foreground decisions by modal presented.",
}, []string{"modal"})

// ForcedPaywalls counts decisions that forced the non-dismissable paywall.
var ForcedPaywalls = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "sunflower",
	Name:      "forced_paywalls_total",
	Help:      "Decisions that forced the paywall after the trial ended.",
})

// Launches counts cold launches.
var Launches = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "sunflower",
	Name:      "launches_total",
	Help:      "Cold launches registered.",
})

// ─── Picks & Streak ─────────────────────────────────────────────────────────

// PicksRecorded counts newly recorded picks.
var PicksRecorded = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "sunflower",
	Name:      "picks_recorded_total",
	Help:      "Picks recorded in the ledger.",
})

// StreakCurrent tracks today's streak.
var StreakCurrent = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "sunflower",
	Name:      "streak_current_days",
	Help:      "Today's consecutive-day pick streak.",
})

// ─── Sun Exposure ───────────────────────────────────────────────────────────

// ExposureSeconds tracks the last sampled sun exposure for today.
var ExposureSeconds = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "sunflower",
	Name:      "exposure_seconds",
	Help:      "Last sampled daylight exposure for today, in seconds.",
})

// ─── Notifications ──────────────────────────────────────────────────────────

// NotificationsQueued counts notifications written to the outbox by type.
var NotificationsQueued = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "sunflower",
	Name:      "notifications_queued_total",
	Help:      "Notifications queued by type.",
}, []string{"type"})

// ─── Entitlement ────────────────────────────────────────────────────────────

// EntitlementRefreshes counts entitlement refreshes by result (ok, stale).
var EntitlementRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "sunflower",
	Name:      "entitlement_refreshes_total",
	Help:      "Entitlement refreshes by result.",
}, []string{"result"})

// Entitled is 1 while the user has any access tier other than none.
var Entitled = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "sunflower",
	Name:      "entitled",
	Help:      "1 if the user currently has access, 0 otherwise.",
})

// CompanionSendFailures counts failed relays to the companion device.
var CompanionSendFailures = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "sunflower",
	Name:      "companion_send_failures_total",
	Help:      "Failed companion relay sends.",
})

// ─── Health ─────────────────────────────────────────────────────────────────

// HealthCheckStatus tracks health check results (1=healthy, 0=unhealthy).
var HealthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "sunflower",
	Name:      "health_check_status",
	Help:      "Health check result per component (1=healthy, 0=unhealthy).",
}, []string{"check"})

// HealthRecoveries tracks auto-recovery attempts.
var HealthRecoveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "sunflower",
	Name:      "health_recoveries_total",
	Help:      "Total auto-recovery attempts per check.",
}, []string{"check"})

// BoolGauge converts a flag to a gauge value.
func BoolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
