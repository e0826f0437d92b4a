package gallery

import (
	"context"

	"go.uber.org/zap"

	"candy-gallery/internal/domain"
	"candy-gallery/internal/observability"
	"candy-gallery/internal/storage"
)

// Recorder persists refresh runs and their guard evaluations.
// Writes are best-effort: failures are logged and counted, never returned.
type Recorder struct {
	runs    storage.RefreshRunStore
	evals   storage.GuardEvaluationStore
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewRecorder creates a Recorder. Either store may be nil.
func NewRecorder(runs storage.RefreshRunStore, evals storage.GuardEvaluationStore, metrics *observability.Metrics, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{runs: runs, evals: evals, metrics: metrics, logger: logger}
}

// Record stores run and one evaluation record per guard group.
func (r *Recorder) Record(ctx context.Context, run *domain.RefreshRun, guards []domain.GuardEvaluation) {
	if r.runs != nil {
		if err := r.runs.Insert(ctx, run); err != nil {
			r.fail("refresh_runs", run.ID, err)
		}
	}

	if r.evals == nil || len(guards) == 0 {
		return
	}
	records := make([]*domain.GuardEvaluationRecord, len(guards))
	for i, g := range guards {
		records[i] = &domain.GuardEvaluationRecord{
			RunID:        run.ID,
			CandyMachine: run.CandyMachine,
			Wallet:       run.Wallet,
			Label:        g.Label,
			Allowed:      g.Allowed,
			MaxAmount:    g.MaxAmount,
			Reason:       g.Reason,
			EvaluatedAt:  run.FinishedAt,
		}
	}
	if err := r.evals.InsertBulk(ctx, records); err != nil {
		r.fail("guard_evaluations", run.ID, err)
	}
}

func (r *Recorder) fail(store, runID string, err error) {
	r.logger.Warn("record refresh run", zap.String("store", store), zap.String("run_id", runID), zap.Error(err))
	if r.metrics != nil {
		r.metrics.RecordRecorderError(store)
	}
}
