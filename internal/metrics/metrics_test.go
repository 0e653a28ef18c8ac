package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsSafe(t *testing.T) {
	var m *Metrics
	m.RecordSessionStarted()
	m.RecordOutcome("success")
	m.SetState("idle", "idle", "recording")
	m.RecordTick(0.5, true)
	m.RecordSilenceTimeout()
	m.RecordArtifact(1, 1024)
	m.RecordExchange("success", 0.2)
	m.SetBreakerState(1)
	m.SetWSClients(2)
	m.RecordEventDropped()
	m.RecordHTTPRequest("/api/session", "200")
}

func TestRecordTick(t *testing.T) {
	m := NewWith(prometheus.NewRegistry())

	m.RecordTick(0.5, true)
	m.RecordTick(0.001, false)
	m.RecordTick(0.002, false)

	if got := testutil.ToFloat64(m.VADTicks); got != 3 {
		t.Errorf("ticks = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.VADVoicedTicks); got != 1 {
		t.Errorf("voiced = %v, want 1", got)
	}
}

func TestSetState(t *testing.T) {
	m := NewWith(prometheus.NewRegistry())
	all := []string{"idle", "recording", "processing"}

	m.SetState("recording", all...)
	m.SetState("processing", all...)

	tests := map[string]float64{"idle": 0, "recording": 0, "processing": 1}
	for state, want := range tests {
		if got := testutil.ToFloat64(m.SessionState.WithLabelValues(state)); got != want {
			t.Errorf("state %s = %v, want %v", state, got, want)
		}
	}
}

func TestOutcomes(t *testing.T) {
	m := NewWith(prometheus.NewRegistry())
	m.RecordOutcome("success")
	m.RecordOutcome("success")
	m.RecordOutcome("exchange_failed")

	if got := testutil.ToFloat64(m.SessionOutcomes.WithLabelValues("success")); got != 2 {
		t.Errorf("success = %v, want 2", got)
	}
	if got := testutil.CollectAndCount(m.SessionOutcomes); got != 2 {
		t.Errorf("outcome series = %d, want 2", got)
	}
}

func TestNewRegistersCollectors(t *testing.T) {
	m := New()
	if m.Registry == nil {
		t.Fatal("Registry not set")
	}
	m.RecordSessionStarted()

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := map[string]bool{}
	for _, f := range families {
		found[f.GetName()] = true
	}
	for _, name := range []string{"vadrec_sessions_started_total", "go_goroutines"} {
		if !found[name] {
			t.Errorf("metric %s not gathered", name)
		}
	}
}
