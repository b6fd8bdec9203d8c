package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "apptree",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total status server HTTP requests.",
		},
		[]string{"run", "route", "method", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "apptree",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Status server HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"run", "route", "method", "status"},
	)
	appLaunches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "apptree",
			Subsystem: "app",
			Name:      "launches_total",
			Help:      "App launches by concurrency mode.",
		},
		[]string{"app", "mode"},
	)
	appUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "apptree",
			Subsystem: "app",
			Name:      "updates_total",
			Help:      "Update hook invocations.",
		},
		[]string{"app"},
	)
	appFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "apptree",
			Subsystem: "app",
			Name:      "failures_total",
			Help:      "Apps whose launch ended in an error or panic.",
		},
		[]string{"app", "phase"},
	)
	appRunning = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "apptree",
			Subsystem: "app",
			Name:      "running",
			Help:      "Apps currently inside their launch, by concurrency mode.",
		},
		[]string{"mode"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, appLaunches, appUpdates, appFailures, appRunning)
	})
}

// RecordHTTPRequest counts one status request by route group.
func RecordHTTPRequest(run, route, method string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(run, route, method, statusLabel).Inc()
	httpDuration.WithLabelValues(run, route, method, statusLabel).Observe(duration.Seconds())
}

// RecordLaunch counts a launch and marks the app running until the
// returned func is called.
func RecordLaunch(app, mode string) func() {
	RegisterMetrics()
	appLaunches.WithLabelValues(app, mode).Inc()
	g := appRunning.WithLabelValues(mode)
	g.Inc()
	return g.Dec
}

func RecordUpdate(app string) {
	RegisterMetrics()
	appUpdates.WithLabelValues(app).Inc()
}

func RecordFailure(app, phase string) {
	RegisterMetrics()
	appFailures.WithLabelValues(app, phase).Inc()
}
