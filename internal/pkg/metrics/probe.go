package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	probeInclusionSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "probe",
		Name:      "inclusion_seconds",
		Help:      "Time from sending a transaction until it shows up in a pending block.",
		Buckets:   []float64{0.1, 0.2, 0.4, 0.6, 0.8, 1, 1.5, 2, 3, 4, 6, 10, 20},
	}, []string{"source"})

	probeChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "probe",
		Name:      "checks_total",
		Help:      "Count of pending block checks made by the probe.",
	}, []string{"source", "status"})

	viewerClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "viewer",
		Name:      "event_clients",
		Help:      "Number of connected event stream clients.",
	})
)

// Probe tracks metrics for the inclusion probe of one source.
type Probe struct {
	source string
}

// NewProbe constructs a metrics collector for the named probe source.
func NewProbe(source string) *Probe {
	if source == "" {
		source = "unknown"
	}
	return &Probe{source: source}
}

// ObserveCheck records one pending block check.
func (m Probe) ObserveCheck(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	probeChecksTotal.WithLabelValues(m.source, status).Inc()
}

// ObserveInclusion records the latency until inclusion.
func (m Probe) ObserveInclusion(elapsed time.Duration) {
	probeInclusionSeconds.WithLabelValues(m.source).Observe(elapsed.Seconds())
}

// ViewerClientConnected tracks event stream clients.
func ViewerClientConnected() {
	viewerClients.Inc()
}

// ViewerClientDisconnected tracks event stream clients.
func ViewerClientDisconnected() {
	viewerClients.Dec()
}
