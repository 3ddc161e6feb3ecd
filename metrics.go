package bodylimit

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Phase identifies where a violation was detected.
type Phase string

const (
	// PhaseHeader marks rejections from the declared-length check, before
	// any body bytes were read.
	PhaseHeader Phase = "header"
	// PhaseStream marks rejections raised mid-body by a Reader.
	PhaseStream Phase = "stream"
)

// Recorder receives enforcement outcomes. Implementations must be safe for
// concurrent use; one call is made per request body outcome.
type Recorder interface {
	// Rejected is called when a request body is refused, either up front
	// (PhaseHeader) or mid-stream (PhaseStream).
	Rejected(r *http.Request, phase Phase)
	// Completed is called when a body is read to exhaustion within the
	// limit, with the number of bytes delivered.
	Completed(r *http.Request, size int64)
}

// Metrics is a Prometheus Recorder.
type Metrics struct {
	rejected  *prometheus.CounterVec
	bodyBytes prometheus.Histogram
}

// NewMetrics registers and returns the package's Prometheus collectors.
// A nil registerer uses prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		rejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bodylimit_rejected_total",
			Help: "Total number of requests rejected for exceeding the body size limit.",
		}, []string{"phase"}),
		bodyBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "bodylimit_body_bytes",
			Help:    "Size distribution of request bodies read to completion within the limit.",
			Buckets: prometheus.ExponentialBuckets(256, 4, 10), // 256B .. 64MiB
		}),
	}
}

// Rejected counts a refusal, labeled by detection phase.
func (m *Metrics) Rejected(_ *http.Request, phase Phase) {
	m.rejected.WithLabelValues(string(phase)).Inc()
}

// Completed observes the size of a fully read, in-limit body.
func (m *Metrics) Completed(_ *http.Request, size int64) {
	m.bodyBytes.Observe(float64(size))
}
