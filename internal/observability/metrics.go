// Package observability exposes Prometheus metrics for session
// synchronization and remote persistence.
package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	activeSessions      prometheus.Gauge
	sessionLoadDuration prometheus.Histogram
	sessionSaveDuration prometheus.Histogram
	turnsAppendedTotal  prometheus.Counter

	remoteWriteTotal    *prometheus.CounterVec
	remoteWriteFailures *prometheus.CounterVec
	reconcilePushTotal  prometheus.Counter

	gatewayClients prometheus.Gauge
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			activeSessions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "sessions_total",
					Help: "Current number of sessions in the collection.",
				},
			),
			sessionLoadDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "session_load_duration_seconds",
					Help:    "Bootstrap load duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			sessionSaveDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "session_save_duration_seconds",
					Help:    "Local write-through duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			turnsAppendedTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "turns_appended_total",
					Help: "Total turns appended across all sessions.",
				},
			),
			remoteWriteTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "remote_write_total",
					Help: "Total background remote writes by operation.",
				},
				[]string{"op"},
			),
			remoteWriteFailures: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "remote_write_failures_total",
					Help: "Remote writes that failed and were not retried, by operation.",
				},
				[]string{"op"},
			),
			reconcilePushTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "reconcile_push_total",
					Help: "Rows pushed to the remote store by reconciliation sweeps.",
				},
			),
			gatewayClients: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "gateway_clients",
					Help: "Connected gateway clients.",
				},
			),
		}

		prometheus.MustRegister(
			m.activeSessions,
			m.sessionLoadDuration,
			m.sessionSaveDuration,
			m.turnsAppendedTotal,
			m.remoteWriteTotal,
			m.remoteWriteFailures,
			m.reconcilePushTotal,
			m.gatewayClients,
		)

		metricsInst = m
	})
	return metricsInst
}

// EnsureRegistered registers all metrics with the default registry.
// Safe to call from multiple packages.
func EnsureRegistered() {
	getMetrics()
}

// Handler returns the HTTP handler for the metrics endpoint.
func Handler() http.Handler {
	getMetrics()
	return promhttp.Handler()
}

// SetSessionCount records the current collection size.
func SetSessionCount(n int) {
	getMetrics().activeSessions.Set(float64(n))
}

// RecordSessionLoad records a bootstrap duration.
func RecordSessionLoad(d time.Duration) {
	getMetrics().sessionLoadDuration.Observe(d.Seconds())
}

// RecordSessionSave records a local write-through duration.
func RecordSessionSave(d time.Duration) {
	getMetrics().sessionSaveDuration.Observe(d.Seconds())
}

// RecordTurnAppended counts one appended turn.
func RecordTurnAppended() {
	getMetrics().turnsAppendedTotal.Inc()
}

// RecordRemoteWrite counts a background remote write attempt.
func RecordRemoteWrite(op string) {
	getMetrics().remoteWriteTotal.WithLabelValues(op).Inc()
}

// RecordRemoteWriteFailure counts a background remote write failure.
func RecordRemoteWriteFailure(op string) {
	getMetrics().remoteWriteFailures.WithLabelValues(op).Inc()
}

// RecordReconcilePush counts rows pushed by a reconciliation sweep.
func RecordReconcilePush(n int) {
	getMetrics().reconcilePushTotal.Add(float64(n))
}

// SetGatewayClients records the connected client count.
func SetGatewayClients(n int) {
	getMetrics().gatewayClients.Set(float64(n))
}
