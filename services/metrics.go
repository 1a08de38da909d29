package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	alertsEmittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coopwatch",
		Name:      "alerts_emitted_total",
		Help:      "Notifications handed to the delivery gateway, by alert kind.",
	}, []string{"kind"})

	alertsSuppressedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coopwatch",
		Name:      "alerts_suppressed_total",
		Help:      "Breaches suppressed by the cooldown gate, by alert kind.",
	}, []string{"kind"})

	deliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coopwatch",
		Name:      "deliveries_total",
		Help:      "Per-channel delivery attempts, by channel and result.",
	}, []string{"channel", "result"})

	watchdogFiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "coopwatch",
		Name:      "watchdog_fired_total",
		Help:      "Watchdog checks that fired for a device still armed.",
	})

	dailyJobRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coopwatch",
		Name:      "daily_job_runs_total",
		Help:      "Daily job executions, by job and result.",
	}, []string{"job", "result"})

	alertRecordsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "coopwatch",
		Name:      "alert_records_dropped_total",
		Help:      "Alert records that could not be persisted.",
	})
)

func deliveryResultLabel(delivered bool) string {
	if delivered {
		return "delivered"
	}
	return "failed"
}
