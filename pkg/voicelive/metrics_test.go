package voicelive

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// gathered returns the summed counter and gauge values of a metric family.
func gathered(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather error: %v", err)
	}
	var v float64
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			v += m.GetCounter().GetValue() + m.GetGauge().GetValue()
		}
	}
	return v
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.sessionStarted()
	m.chunkSent()
	m.chunkSent()
	m.chunkDropped()
	m.decodeFailed()
	m.addUnderruns(3)
	m.addCaptureDropped(0)

	if v := gathered(t, reg, "voicelive_active_sessions"); v != 1 {
		t.Errorf("active = %v, want 1", v)
	}
	m.sessionEnded("closed", 2*time.Second)

	tests := []struct {
		name string
		want float64
	}{
		{"voicelive_sessions_started_total", 1},
		{"voicelive_sessions_ended_total", 1},
		{"voicelive_active_sessions", 0},
		{"voicelive_input_chunks_sent_total", 2},
		{"voicelive_input_chunks_dropped_total", 1},
		{"voicelive_decode_failures_total", 1},
		{"voicelive_playback_underruns_total", 3},
		{"voicelive_capture_blocks_dropped_total", 0},
	}
	for _, tt := range tests {
		if v := gathered(t, reg, tt.name); v != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, v, tt.want)
		}
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.sessionStarted()
	m.chunkSent()
	m.addUnderruns(1)
	m.sessionEnded("closed", time.Second)
}
