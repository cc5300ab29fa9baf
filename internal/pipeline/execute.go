package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/litebuilder/internal/metrics"
)

// Executor runs a plan over a BuildState, fail-fast on fatal errors.
type Executor struct {
	registry *Registry
	recorder metrics.Recorder
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithRecorder injects a metrics recorder.
func WithRecorder(r metrics.Recorder) ExecutorOption {
	return func(e *Executor) {
		if r != nil {
			e.recorder = r
		}
	}
}

// NewExecutor creates an executor over the given registry.
func NewExecutor(registry *Registry, options ...ExecutorOption) *Executor {
	e := &Executor{registry: registry, recorder: metrics.NoopRecorder{}}
	for _, opt := range options {
		opt(e)
	}
	return e
}

// ExecutionResult contains the results of one pipeline run.
type ExecutionResult struct {
	Executed map[StageName]StageResult
	Plan     *ExecutionPlan
	Canceled bool
}

// IsSuccess returns true if no executed stage failed or was canceled.
func (r *ExecutionResult) IsSuccess() bool {
	if r.Canceled {
		return false
	}
	for _, result := range r.Executed {
		if result == StageResultFatal || result == StageResultCanceled {
			return false
		}
	}
	return true
}

// Execute runs the requested stages (plus dependencies) in plan order.
// A fatal stage error aborts the remaining sequence; warnings are recorded
// and execution continues.
func (e *Executor) Execute(ctx context.Context, bs *BuildState, stages ...StageName) (*ExecutionResult, error) {
	plan, err := BuildExecutionPlan(e.registry, stages)
	if err != nil {
		return nil, err
	}

	slog.Info("Executing pipeline",
		slog.String("run_id", bs.RunID),
		slog.Int("stages", len(plan.Order)),
		slog.Any("order", plan.Order))

	result := &ExecutionResult{
		Executed: make(map[StageName]StageResult, len(plan.Order)),
		Plan:     plan,
	}
	runStart := time.Now()

	for _, stageName := range plan.Order {
		select {
		case <-ctx.Done():
			e.record(bs, result, stageName, StageResultCanceled, 0)
			result.Canceled = true
			e.finishRun(bs)
			return result, NewCanceledStageError(stageName, ctx.Err())
		default:
		}

		fn, _ := e.registry.Get(stageName)

		t0 := time.Now()
		stageErr := fn(ctx, bs)
		dur := time.Since(t0)

		res := classify(stageErr)
		e.record(bs, result, stageName, res, dur)

		switch res {
		case StageResultFatal:
			slog.Error("Stage failed", slog.String("stage", string(stageName)), slog.Any("error", stageErr))
			bs.Report.Errors = append(bs.Report.Errors, stageErr)
			e.finishRun(bs)
			return result, stageErr
		case StageResultCanceled:
			slog.Warn("Stage canceled", slog.String("stage", string(stageName)))
			result.Canceled = true
			bs.Report.Errors = append(bs.Report.Errors, stageErr)
			e.finishRun(bs)
			return result, stageErr
		case StageResultWarning:
			slog.Warn("Stage completed with warnings", slog.String("stage", string(stageName)), slog.Any("error", stageErr))
			bs.Report.Warnings = append(bs.Report.Warnings, stageErr)
		case StageResultSuccess, StageResultSkipped:
			slog.Debug("Stage completed", slog.String("stage", string(stageName)), slog.Duration("duration", dur))
		}
	}

	e.finishRun(bs)
	e.recorder.ObserveRunDuration(time.Since(runStart))
	return result, nil
}

// ExecuteAll runs every registered stage.
func (e *Executor) ExecuteAll(ctx context.Context, bs *BuildState) (*ExecutionResult, error) {
	return e.Execute(ctx, bs, e.registry.List()...)
}

func (e *Executor) record(bs *BuildState, result *ExecutionResult, stage StageName, res StageResult, dur time.Duration) {
	result.Executed[stage] = res
	bs.Report.RecordStage(stage, res, dur)
	e.recorder.ObserveStageDuration(string(stage), dur)
	e.recorder.IncStageResult(string(stage), metrics.ResultLabel(res))
}

func (e *Executor) finishRun(bs *BuildState) {
	outcome := bs.Report.Finalize()
	e.recorder.IncRunOutcome(string(outcome))
}

// classify maps a stage error to a result category. Untyped errors are fatal.
func classify(err error) StageResult {
	if err == nil {
		return StageResultSuccess
	}
	var se *StageError
	if errors.As(err, &se) {
		switch se.Kind {
		case StageErrorWarning:
			return StageResultWarning
		case StageErrorCanceled:
			return StageResultCanceled
		case StageErrorFatal:
			return StageResultFatal
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return StageResultCanceled
	}
	return StageResultFatal
}
