/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "petfeeder"

// HTTP API metrics.
var (
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "api_requests_total",
		Help:      "Total HTTP requests handled by the control API.",
	}, []string{"method", "endpoint", "status"})

	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "api_request_duration_seconds",
		Help:      "Control API request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	APIWebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "api_websocket_connections",
		Help:      "Open event stream websocket connections.",
	})

	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "api_active_connections",
		Help:      "In-flight control API requests.",
	})
)

// Motor sequencer metrics.
var (
	MotorPhase = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "motor_phase",
		Help:      "1 for the phase the motor sequencer is currently in, 0 otherwise.",
	}, []string{"phase"})

	MotorQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "motor_queue_depth",
		Help:      "Instructions waiting in the motor queue.",
	})

	MotorInstructionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "motor_instructions_total",
		Help:      "Motor instructions processed, by source and result.",
	}, []string{"source", "result"})

	MotorRunSecondsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "motor_run_seconds_total",
		Help:      "Seconds the motor has spent driven at running duty cycle.",
	})

	MotorDriverFaultsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "motor_driver_faults_total",
		Help:      "Driver operations that failed.",
	})
)

// Feed scheduler metrics.
var (
	FeedsTriggeredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "feeds_triggered_total",
		Help:      "Feeds submitted to the motor, by source.",
	}, []string{"source"})

	ScheduleInWindow = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "schedule_in_window",
		Help:      "1 while the current time of day is inside the feeding window.",
	})

	ClockSyncTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "clock_sync_total",
		Help:      "External time sync attempts, by result.",
	}, []string{"result"})

	ScheduleRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "schedule_refresh_total",
		Help:      "Schedule fetch attempts, by result.",
	}, []string{"result"})
)

// Remote fetch metrics.
var (
	RemoteFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "remote_fetch_duration_seconds",
		Help:      "Latency of remote time and schedule fetches.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"source"})

	RemoteFetchRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "remote_fetch_retries_total",
		Help:      "Remote fetch attempts that were retried.",
	}, []string{"source"})

	WebhookDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_deliveries_total",
		Help:      "Outbound webhook deliveries by result.",
	}, []string{"event", "result"})

	EventBusDegraded = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "eventbus_degraded",
		Help:      "1 while the distributed event bus has fallen back to in-memory delivery.",
	})
)

// Feed history database metrics.
var (
	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "db_query_duration_seconds",
		Help:      "Feed history database operation latency.",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"operation", "table"})

	DatabaseErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "db_errors_total",
		Help:      "Feed history database operations that returned an error.",
	}, []string{"operation"})

	DatabaseConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "db_connections_active",
		Help:      "Open connections in the feed history pool.",
	})
)

// Handler exposes metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetMotorPhase marks phase as the single active motor phase.
func SetMotorPhase(phase string, all []string) {
	for _, p := range all {
		value := 0.0
		if p == phase {
			value = 1
		}
		MotorPhase.WithLabelValues(p).Set(value)
	}
}
