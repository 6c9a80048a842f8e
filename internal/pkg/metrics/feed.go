// Package metrics defines the prometheus collectors of the feeds, the probe and the
// viewer.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "flashcompare"

var (
	feedRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "feed",
		Name:      "records_total",
		Help:      "Count of records offered to a feed buffer by outcome.",
	}, []string{"feed", "result"})

	feedDecodeErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "feed",
		Name:      "decode_errors_total",
		Help:      "Count of feed messages discarded because they failed to decode.",
	}, []string{"feed"})

	feedConnectionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "feed",
		Name:      "connection_status_total",
		Help:      "Count of feed connection status transitions.",
	}, []string{"feed", "status"})

	feedPollTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "feed",
		Name:      "polls_total",
		Help:      "Count of feed polls by outcome.",
	}, []string{"feed", "status"})

	feedPollDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "feed",
		Name:      "poll_duration_seconds",
		Help:      "Duration of feed poll requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"feed", "status"})
)

// Record outcomes.
const (
	ResultAccepted = "accepted"
	ResultDropped  = "dropped"
)

// Feed tracks metrics for one feed.
type Feed struct {
	name string
}

// NewFeed constructs a metrics collector for the named feed.
func NewFeed(name string) *Feed {
	if name == "" {
		name = "unknown"
	}
	return &Feed{name: name}
}

// ObserveRecord records whether a record was accepted by the buffer.
func (m Feed) ObserveRecord(accepted bool) {
	result := ResultDropped
	if accepted {
		result = ResultAccepted
	}
	feedRecordsTotal.WithLabelValues(m.name, result).Inc()
}

// ObserveDecodeError records a discarded message.
func (m Feed) ObserveDecodeError() {
	feedDecodeErrorsTotal.WithLabelValues(m.name).Inc()
}

// ObserveStatus records a connection status transition.
func (m Feed) ObserveStatus(status string) {
	feedConnectionTotal.WithLabelValues(m.name, status).Inc()
}

// ObservePoll records a poll outcome and duration.
func (m Feed) ObservePoll(err error, started time.Time) {
	status := "success"
	if err != nil {
		status = "error"
	}
	feedPollTotal.WithLabelValues(m.name, status).Inc()
	feedPollDuration.WithLabelValues(m.name, status).Observe(time.Since(started).Seconds())
}

// ObservePollSkipped records a tick on which no request was sent.
func (m Feed) ObservePollSkipped() {
	feedPollTotal.WithLabelValues(m.name, "skipped").Inc()
}
