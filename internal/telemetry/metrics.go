package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// SerialLines counts framed lines (or raw chunks) read from monitor
	// subprocesses.
	SerialLines = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleetd",
			Name:      "serial_lines_total",
			Help:      "Total number of serial lines read from monitor sessions",
		},
		[]string{"port"},
	)

	// EventsDropped counts events discarded by the broadcaster's
	// drop-oldest policy.
	EventsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleetd",
			Name:      "events_dropped_total",
			Help:      "Total number of events dropped toward slow subscribers",
		},
		[]string{"reason"},
	)

	// SessionsStarted counts monitor session starts.
	SessionsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fleetd",
			Name:      "sessions_started_total",
			Help:      "Total number of monitor sessions started",
		},
	)

	// SessionsActive tracks sessions currently running or stopping.
	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fleetd",
			Name:      "sessions_active",
			Help:      "Number of monitor sessions currently active",
		},
	)

	// CrashSignals counts crash/reboot signal lines per port.
	CrashSignals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleetd",
			Name:      "crash_signals_total",
			Help:      "Total number of crash or reboot signal lines detected",
		},
		[]string{"port", "kind"},
	)

	// CapturesResolved counts capture resolutions by outcome.
	CapturesResolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleetd",
			Name:      "captures_resolved_total",
			Help:      "Total number of pattern captures resolved",
		},
		[]string{"status"},
	)

	// UploadsTotal counts firmware upload attempts by outcome.
	UploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleetd",
			Name:      "uploads_total",
			Help:      "Total number of firmware uploads attempted",
		},
		[]string{"status"},
	)

	// Ensure metrics are only registered once
	once sync.Once
)

// InitMetrics registers all metrics with the global Prometheus registry.
// This function is idempotent and can be called multiple times safely.
func InitMetrics() {
	once.Do(func() {
		prometheus.DefaultRegisterer.Register(SerialLines)
		prometheus.DefaultRegisterer.Register(EventsDropped)
		prometheus.DefaultRegisterer.Register(SessionsStarted)
		prometheus.DefaultRegisterer.Register(SessionsActive)
		prometheus.DefaultRegisterer.Register(CrashSignals)
		prometheus.DefaultRegisterer.Register(CapturesResolved)
		prometheus.DefaultRegisterer.Register(UploadsTotal)
	})
}
