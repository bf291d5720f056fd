package voicelive

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	SessionsStarted  prometheus.Counter
	SessionsEnded    *prometheus.CounterVec
	ActiveSessions   prometheus.Gauge
	ConnectDuration  prometheus.Histogram
	SessionDuration  prometheus.Histogram
	ChunksSent       prometheus.Counter
	ChunksDropped    prometheus.Counter
	ChunksReceived   prometheus.Counter
	DecodeFailures   prometheus.Counter
	CaptureDropped   prometheus.Counter
	PlaybackUnderrun prometheus.Counter
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SessionsStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "voicelive_sessions_started_total",
			Help: "Total number of voice sessions started",
		}),
		SessionsEnded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voicelive_sessions_ended_total",
			Help: "Total number of voice sessions ended, by outcome",
		}, []string{"outcome"}),
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "voicelive_active_sessions",
			Help: "Current number of open voice sessions",
		}),
		ConnectDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicelive_connect_duration_seconds",
			Help:    "Time to establish the backend connection",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		SessionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicelive_session_duration_seconds",
			Help:    "Duration of voice sessions",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		ChunksSent: f.NewCounter(prometheus.CounterOpts{
			Name: "voicelive_input_chunks_sent_total",
			Help: "Total number of microphone chunks handed to the transport",
		}),
		ChunksDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "voicelive_input_chunks_dropped_total",
			Help: "Total number of microphone chunks dropped because the transport was busy",
		}),
		ChunksReceived: f.NewCounter(prometheus.CounterOpts{
			Name: "voicelive_output_chunks_received_total",
			Help: "Total number of decoded output chunks",
		}),
		DecodeFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "voicelive_decode_failures_total",
			Help: "Total number of output chunks dropped because they failed to decode",
		}),
		CaptureDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "voicelive_capture_blocks_dropped_total",
			Help: "Total number of capture blocks dropped because the session lagged",
		}),
		PlaybackUnderrun: f.NewCounter(prometheus.CounterOpts{
			Name: "voicelive_playback_underruns_total",
			Help: "Total number of playback underruns",
		}),
	}
}

func (m *Metrics) sessionStarted() {
	if m == nil {
		return
	}
	m.SessionsStarted.Inc()
	m.ActiveSessions.Inc()
}

func (m *Metrics) sessionEnded(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.SessionsEnded.WithLabelValues(outcome).Inc()
	m.ActiveSessions.Dec()
	m.SessionDuration.Observe(d.Seconds())
}

func (m *Metrics) connected(d time.Duration) {
	if m != nil {
		m.ConnectDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) chunkSent() {
	if m != nil {
		m.ChunksSent.Inc()
	}
}

func (m *Metrics) chunkDropped() {
	if m != nil {
		m.ChunksDropped.Inc()
	}
}

func (m *Metrics) chunkReceived() {
	if m != nil {
		m.ChunksReceived.Inc()
	}
}

func (m *Metrics) decodeFailed() {
	if m != nil {
		m.DecodeFailures.Inc()
	}
}

func (m *Metrics) addCaptureDropped(n int64) {
	if m != nil && n > 0 {
		m.CaptureDropped.Add(float64(n))
	}
}

func (m *Metrics) addUnderruns(n int64) {
	if m != nil && n > 0 {
		m.PlaybackUnderrun.Add(float64(n))
	}
}
