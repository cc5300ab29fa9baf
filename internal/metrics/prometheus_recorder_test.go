package metrics

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gatherCounter(t *testing.T, reg *prom.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() failed: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if matchLabels(m, labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return -1
}

func matchLabels(m *dto.Metric, want map[string]string) bool {
	got := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func TestPrometheusRecorder_Counters(t *testing.T) {
	reg := prom.NewRegistry()
	r := NewPrometheusRecorder(reg)

	r.IncStageResult("checkout", ResultSuccess)
	r.IncStageResult("checkout", ResultSuccess)
	r.IncRunOutcome("success")
	r.IncCacheLookup(true)
	r.IncCacheLookup(false)
	r.IncPublish("object_store")
	r.IncRetry("clone")

	if got := gatherCounter(t, reg, "litebuilder_stage_results_total", map[string]string{"stage": "checkout", "result": "success"}); got != 2 {
		t.Errorf("stage_results_total = %v, want 2", got)
	}
	if got := gatherCounter(t, reg, "litebuilder_run_outcomes_total", map[string]string{"outcome": "success"}); got != 1 {
		t.Errorf("run_outcomes_total = %v, want 1", got)
	}
	if got := gatherCounter(t, reg, "litebuilder_toolchain_cache_lookups_total", map[string]string{"result": "hit"}); got != 1 {
		t.Errorf("cache hit counter = %v, want 1", got)
	}
	if got := gatherCounter(t, reg, "litebuilder_toolchain_cache_lookups_total", map[string]string{"result": "miss"}); got != 1 {
		t.Errorf("cache miss counter = %v, want 1", got)
	}
	if got := gatherCounter(t, reg, "litebuilder_publishes_total", map[string]string{"target": "object_store"}); got != 1 {
		t.Errorf("publishes_total = %v, want 1", got)
	}
	if got := gatherCounter(t, reg, "litebuilder_retries_total", map[string]string{"operation": "clone"}); got != 1 {
		t.Errorf("retries_total = %v, want 1", got)
	}
}

func TestPrometheusRecorder_Histograms(t *testing.T) {
	reg := prom.NewRegistry()
	r := NewPrometheusRecorder(reg)

	r.ObserveStageDuration("assemble", 250*time.Millisecond)
	r.ObserveRunDuration(3 * time.Second)

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	seen := map[string]bool{}
	for _, mf := range families {
		seen[mf.GetName()] = true
	}
	if !seen["litebuilder_stage_duration_seconds"] {
		t.Error("stage duration histogram not registered")
	}
	if !seen["litebuilder_run_duration_seconds"] {
		t.Error("run duration histogram not registered")
	}
}

func TestNoopRecorderImplementsRecorder(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObserveStageDuration("x", time.Second)
	r.IncStageResult("x", ResultFatal)
	r.IncRunOutcome("failed")
	r.IncCacheLookup(false)
	r.IncPublish("local_dir")
	r.IncRetry("fetch")
}
