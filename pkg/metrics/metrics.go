// Package metrics holds the Prometheus collectors for OCPP traffic.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ocpp",
			Subsystem: "transport",
			Name:      "frames_total",
			Help:      "OCPP-J frames by direction and message type.",
		},
		[]string{"direction", "type"},
	)
	decodeFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ocpp",
			Subsystem: "transport",
			Name:      "decode_failures_total",
			Help:      "Inbound frames that could not be decoded.",
		},
		[]string{"kind"},
	)
	dispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ocpp",
			Subsystem: "dispatch",
			Name:      "calls_total",
			Help:      "Inbound calls by action and outcome error code (empty on success).",
		},
		[]string{"action", "error_code"},
	)
	dispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ocpp",
			Subsystem: "dispatch",
			Name:      "duration_seconds",
			Help:      "Inbound call handling duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"action"},
	)
	outboundTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ocpp",
			Subsystem: "calls",
			Name:      "outbound_total",
			Help:      "Calls issued to stations by action and outcome.",
		},
		[]string{"action", "outcome"},
	)
	outboundDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ocpp",
			Subsystem: "calls",
			Name:      "outbound_duration_seconds",
			Help:      "Time from issuing a call to its resolution.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"action"},
	)
	unmatchedResponses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ocpp",
			Subsystem: "calls",
			Name:      "unmatched_responses_total",
			Help:      "Responses whose correlation id had no pending call.",
		},
	)
	journalDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ocpp",
			Subsystem: "journal",
			Name:      "dropped_total",
			Help:      "Frames not journaled because the journal queue was full.",
		},
	)
	commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ocpp",
			Subsystem: "commands",
			Name:      "requests_total",
			Help:      "External command requests by action and result code (ok on success).",
		},
		[]string{"action", "code"},
	)
	connectedStations = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ocpp",
			Subsystem: "sessions",
			Name:      "connected",
			Help:      "Charging stations with an open session.",
		},
	)
)

// RegisterMetrics registers all collectors with the default registry. It is
// safe to call more than once.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			framesTotal, decodeFailures,
			dispatchTotal, dispatchDuration,
			outboundTotal, outboundDuration, unmatchedResponses,
			journalDropped, commandsTotal,
			connectedStations,
		)
	})
}

func RecordFrame(direction, msgType string) {
	RegisterMetrics()
	framesTotal.WithLabelValues(direction, msgType).Inc()
}

func RecordDecodeFailure(kind string) {
	RegisterMetrics()
	decodeFailures.WithLabelValues(kind).Inc()
}

func RecordDispatch(action, errorCode string, duration time.Duration) {
	RegisterMetrics()
	dispatchTotal.WithLabelValues(action, errorCode).Inc()
	dispatchDuration.WithLabelValues(action).Observe(duration.Seconds())
}

func RecordOutbound(action, outcome string, duration time.Duration) {
	RegisterMetrics()
	outboundTotal.WithLabelValues(action, outcome).Inc()
	outboundDuration.WithLabelValues(action).Observe(duration.Seconds())
}

func RecordUnmatchedResponse() {
	RegisterMetrics()
	unmatchedResponses.Inc()
}

func StationConnected() {
	RegisterMetrics()
	connectedStations.Inc()
}

func StationDisconnected() {
	RegisterMetrics()
	connectedStations.Dec()
}

func RecordJournalDrop() {
	RegisterMetrics()
	journalDropped.Inc()
}

func RecordCommand(action, code string) {
	RegisterMetrics()
	commandsTotal.WithLabelValues(action, code).Inc()
}
