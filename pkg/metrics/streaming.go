package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StreamingMetrics records delivery metadata for media streams.
type StreamingMetrics struct {
	started   *prometheus.CounterVec
	failed    *prometheus.CounterVec
	bytesSent *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// NewStreamingMetrics registers the streaming metrics on the provided registerer.
func NewStreamingMetrics(reg prometheus.Registerer) *StreamingMetrics {
	if reg == nil {
		return &StreamingMetrics{}
	}
	started := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stream_started_total",
		Help: "Streams started, partitioned by range kind.",
	}, []string{"kind"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stream_failed_total",
		Help: "Streams that ended in an error response.",
	}, []string{"reason"})
	bytesSent := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stream_bytes_sent_total",
		Help: "Bytes written to stream responses.",
	}, []string{"kind"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stream_duration_seconds",
		Help:    "Wall time spent serving a stream.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	reg.MustRegister(started, failed, bytesSent, duration)
	return &StreamingMetrics{
		started:   started,
		failed:    failed,
		bytesSent: bytesSent,
		duration:  duration,
	}
}

// IncStarted increments the started counter for the range kind ("full" or "partial").
func (s *StreamingMetrics) IncStarted(kind string) {
	if s == nil || s.started == nil {
		return
	}
	s.started.WithLabelValues(normalizeLabel(kind)).Inc()
}

// IncFailed increments the failure counter for the named reason.
func (s *StreamingMetrics) IncFailed(reason string) {
	if s == nil || s.failed == nil {
		return
	}
	s.failed.WithLabelValues(normalizeLabel(reason)).Inc()
}

// AddBytesSent records bytes delivered for the range kind.
func (s *StreamingMetrics) AddBytesSent(kind string, n int64) {
	if s == nil || s.bytesSent == nil || n <= 0 {
		return
	}
	s.bytesSent.WithLabelValues(normalizeLabel(kind)).Add(float64(n))
}

// ObserveDuration records the wall time of a completed stream.
func (s *StreamingMetrics) ObserveDuration(kind string, d time.Duration) {
	if s == nil || s.duration == nil {
		return
	}
	s.duration.WithLabelValues(normalizeLabel(kind)).Observe(d.Seconds())
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
