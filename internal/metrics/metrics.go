// Package metrics holds the Prometheus instruments for capture sessions,
// voice activity detection, transcription and the observer transport.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "vadrec"

// Metrics contains all Prometheus metrics. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	// Session metrics
	SessionsStarted  prometheus.Counter
	SessionOutcomes  *prometheus.CounterVec
	SessionState     *prometheus.GaugeVec
	RecordingSeconds prometheus.Histogram
	ArtifactBytes    prometheus.Histogram

	// VAD metrics
	VADTicks        prometheus.Counter
	VADVoicedTicks  prometheus.Counter
	VADLevel        prometheus.Histogram
	SilenceTimeouts prometheus.Counter

	// Transcription metrics
	ExchangeRequests *prometheus.CounterVec
	ExchangeDuration prometheus.Histogram
	BreakerState     prometheus.Gauge

	// Observer transport metrics
	WSClients     prometheus.Gauge
	EventsDropped prometheus.Counter
	HTTPRequests  *prometheus.CounterVec
}

// New creates all metrics on a fresh registry that also carries the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := NewWith(reg)
	m.Registry = reg
	return m
}

// NewWith registers all metrics on reg.
func NewWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SessionsStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Total number of recording sessions started",
		}),
		SessionOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_outcomes_total",
			Help:      "Sessions that returned to idle, by outcome",
		}, []string{"outcome"}),
		SessionState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_state",
			Help:      "1 for the current session state, 0 otherwise",
		}, []string{"state"}),
		RecordingSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recording_duration_seconds",
			Help:      "Duration of finalized recordings",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 8), // 0.5s to ~1 minute
		}),
		ArtifactBytes: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "artifact_size_bytes",
			Help:      "Size of finalized WAV artifacts",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 8), // 1KB to ~16MB
		}),

		VADTicks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vad_ticks_total",
			Help:      "Total number of level monitor ticks",
		}),
		VADVoicedTicks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vad_voiced_ticks_total",
			Help:      "Ticks whose frame exceeded the RMS threshold",
		}),
		VADLevel: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "vad_rms",
			Help:      "RMS level per tick",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.015, 0.02, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		SilenceTimeouts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vad_silence_timeouts_total",
			Help:      "Sessions ended by the silence timeout",
		}),

		ExchangeRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exchange_requests_total",
			Help:      "Transcription requests by result",
		}, []string{"result"}),
		ExchangeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "exchange_duration_seconds",
			Help:      "Duration of transcription requests",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~50s
		}),
		BreakerState: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "exchange_breaker_state",
			Help:      "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		}),

		WSClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_clients",
			Help:      "Connected WebSocket observers",
		}),
		EventsDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Observer events dropped for slow clients",
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"route", "status"}),
	}
}

// RecordSessionStarted increments the started counter.
func (m *Metrics) RecordSessionStarted() {
	if m == nil {
		return
	}
	m.SessionsStarted.Inc()
}

// RecordOutcome counts a session returning to idle.
func (m *Metrics) RecordOutcome(outcome string) {
	if m == nil {
		return
	}
	m.SessionOutcomes.WithLabelValues(outcome).Inc()
}

// SetState marks state as current among all.
func (m *Metrics) SetState(state string, all ...string) {
	if m == nil {
		return
	}
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		m.SessionState.WithLabelValues(s).Set(v)
	}
}

// RecordTick records one level monitor tick.
func (m *Metrics) RecordTick(rms float64, speaking bool) {
	if m == nil {
		return
	}
	m.VADTicks.Inc()
	m.VADLevel.Observe(rms)
	if speaking {
		m.VADVoicedTicks.Inc()
	}
}

// RecordSilenceTimeout counts an automatic stop.
func (m *Metrics) RecordSilenceTimeout() {
	if m == nil {
		return
	}
	m.SilenceTimeouts.Inc()
}

// RecordArtifact records a finalized recording.
func (m *Metrics) RecordArtifact(durationSeconds float64, sizeBytes int) {
	if m == nil {
		return
	}
	m.RecordingSeconds.Observe(durationSeconds)
	m.ArtifactBytes.Observe(float64(sizeBytes))
}

// RecordExchange records a transcription request.
func (m *Metrics) RecordExchange(result string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.ExchangeRequests.WithLabelValues(result).Inc()
	m.ExchangeDuration.Observe(durationSeconds)
}

// SetBreakerState records the breaker state ordinal.
func (m *Metrics) SetBreakerState(state int) {
	if m == nil {
		return
	}
	m.BreakerState.Set(float64(state))
}

// SetWSClients sets the connected observer count.
func (m *Metrics) SetWSClients(n int) {
	if m == nil {
		return
	}
	m.WSClients.Set(float64(n))
}

// RecordEventDropped counts an event not delivered to a slow client.
func (m *Metrics) RecordEventDropped() {
	if m == nil {
		return
	}
	m.EventsDropped.Inc()
}

// RecordHTTPRequest counts an HTTP request.
func (m *Metrics) RecordHTTPRequest(route, status string) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, status).Inc()
}
