package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gym"

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	emailsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mail",
			Name:      "sent_total",
			Help:      "Emails handed to the mail provider, by template and outcome.",
		},
		[]string{"template", "success"},
	)
	payments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "transitions_total",
			Help:      "Payment status changes by provider.",
		},
		[]string{"provider", "status"},
	)
	checkIns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "attendance",
			Name:      "scans_total",
			Help:      "QR scans by outcome (check_in, check_out, rejected).",
		},
		[]string{"outcome"},
	)
	planActivations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "plans",
			Name:      "activations_total",
			Help:      "Plan versions activated, by kind and source.",
		},
		[]string{"kind", "source"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, emailsSent, payments, checkIns, planActivations)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

func RecordEmail(template string, success bool) {
	RegisterMetrics()
	emailsSent.WithLabelValues(template, strconv.FormatBool(success)).Inc()
}

func RecordPayment(provider, status string) {
	RegisterMetrics()
	payments.WithLabelValues(provider, status).Inc()
}

func RecordScan(outcome string) {
	RegisterMetrics()
	checkIns.WithLabelValues(outcome).Inc()
}

func RecordPlanActivation(kind, source string) {
	RegisterMetrics()
	planActivations.WithLabelValues(kind, source).Inc()
}
