package pipeline

import (
	"testing"
	"time"

	"git.home.luguber.info/inful/litebuilder/internal/config"
)

func TestNewBuildState(t *testing.T) {
	cfg := &config.Config{}
	bs := NewBuildState(cfg, Trigger{Event: "push", Branch: "main"})

	if bs.RunID == "" {
		t.Error("run id must be assigned")
	}
	if bs.Report == nil || bs.Report.RunID != bs.RunID {
		t.Error("report must carry the run id")
	}

	other := NewBuildState(cfg, Trigger{Event: "push", Branch: "main"})
	if other.RunID == bs.RunID {
		t.Error("run ids must be unique")
	}
}

func TestRunReport_FinalizePrecedence(t *testing.T) {
	tests := []struct {
		name    string
		results map[StageName]StageResult
		want    RunOutcome
	}{
		{"all success", map[StageName]StageResult{
			StageCheckout: StageResultSuccess, StagePackage: StageResultSuccess,
		}, OutcomeSuccess},
		{"warning wins over success", map[StageName]StageResult{
			StageCheckout: StageResultSuccess, StageVerify: StageResultWarning,
		}, OutcomeWarning},
		{"failure wins over warning", map[StageName]StageResult{
			StageVerify: StageResultWarning, StagePackage: StageResultFatal,
		}, OutcomeFailed},
		{"canceled wins over everything", map[StageName]StageResult{
			StageVerify: StageResultFatal, StagePackage: StageResultCanceled,
		}, OutcomeCanceled},
		{"skipped counts as success", map[StageName]StageResult{
			StageCheckout: StageResultSuccess, StagePublish: StageResultSkipped,
		}, OutcomeSuccess},
		{"empty run", map[StageName]StageResult{}, OutcomeSuccess},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRunReport("run-1")
			for stage, res := range tt.results {
				r.RecordStage(stage, res, time.Millisecond)
			}
			if got := r.Finalize(); got != tt.want {
				t.Errorf("Finalize() = %s, want %s", got, tt.want)
			}
			if r.End.IsZero() {
				t.Error("Finalize must stamp the end time")
			}
		})
	}
}

func TestRunReport_Duration(t *testing.T) {
	r := NewRunReport("run-1")
	r.Start = time.Now().Add(-2 * time.Second)
	if d := r.Duration(); d < 2*time.Second {
		t.Errorf("unexpected duration %v", d)
	}
	r.End = r.Start.Add(5 * time.Second)
	if d := r.Duration(); d != 5*time.Second {
		t.Errorf("expected 5s, got %v", d)
	}
}
