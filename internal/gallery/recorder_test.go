package gallery

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"candy-gallery/internal/domain"
	"candy-gallery/internal/observability"
	"candy-gallery/internal/storage/memory"
)

type failingRunStore struct{ *memory.RefreshRunStore }

func (failingRunStore) Insert(context.Context, *domain.RefreshRun) error {
	return errors.New("insert failed")
}

func TestRecorder_Record(t *testing.T) {
	ctx := context.Background()
	runs := memory.NewRefreshRunStore()
	evals := memory.NewGuardEvaluationStore()
	r := NewRecorder(runs, evals, nil, zaptest.NewLogger(t))

	run := &domain.RefreshRun{
		ID:           "run-1",
		CandyMachine: machineAddr.String(),
		Wallet:       walletAddr.String(),
		Outcome:      domain.RunCompleted,
		StartedAt:    1_000,
		FinishedAt:   1_500,
	}
	r.Record(ctx, run, []domain.GuardEvaluation{
		{Label: "OGs", Reason: "mint has ended"},
		{Label: "public", Allowed: true, MaxAmount: 3},
	})

	got, err := runs.GetByID(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, run.CandyMachine, got.CandyMachine)

	records, err := evals.GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, &domain.GuardEvaluationRecord{
		RunID:        "run-1",
		CandyMachine: machineAddr.String(),
		Wallet:       walletAddr.String(),
		Label:        "public",
		Allowed:      true,
		MaxAmount:    3,
		EvaluatedAt:  1_500,
	}, records[1])
}

func TestRecorder_FailuresAreCounted(t *testing.T) {
	metrics := observability.NewMetricsWith(prometheus.NewRegistry(), "test")
	evals := memory.NewGuardEvaluationStore()
	r := NewRecorder(failingRunStore{memory.NewRefreshRunStore()}, evals, metrics, zaptest.NewLogger(t))

	r.Record(context.Background(), &domain.RefreshRun{ID: "run-2", Outcome: domain.RunFailed}, []domain.GuardEvaluation{{Label: "default"}})

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.RecorderErrors.WithLabelValues("refresh_runs")))
	records, err := evals.GetByRunID(context.Background(), "run-2")
	require.NoError(t, err)
	assert.Len(t, records, 1, "evaluations are still written")
}

func TestRecorder_NilStores(t *testing.T) {
	r := NewRecorder(nil, nil, nil, nil)
	assert.NotPanics(t, func() {
		r.Record(context.Background(), &domain.RefreshRun{ID: "x"}, []domain.GuardEvaluation{{Label: "default"}})
	})
}
