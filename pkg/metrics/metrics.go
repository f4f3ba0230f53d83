package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Alert lifecycle counters, exported at /metrics.
var (
	AlertsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "safety_alerts_created_total",
		Help: "Safety alerts created, by severity",
	}, []string{"severity"})

	DispatchOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "safety_alert_dispatch_total",
		Help: "Per-target dispatch outcomes",
	}, []string{"outcome"})

	DispatchAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "safety_alert_dispatch_attempts_total",
		Help: "Individual delivery attempts including retries",
	})

	Acknowledgments = promauto.NewCounter(prometheus.CounterOpts{
		Name: "safety_alert_acknowledgments_total",
		Help: "Acknowledgments recorded (idempotent re-submissions included)",
	})

	Escalations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "safety_alert_escalations_total",
		Help: "Escalation transitions, by escalated-to severity",
	}, []string{"severity"})

	CriticalPushes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "safety_alert_critical_push_total",
		Help: "Critical push notifications sent (one per dispatch)",
	})
)

// Handler exposes the prometheus scrape endpoint.
func Handler() http.Handler { return promhttp.Handler() }
