package clickhouse

import (
	"context"
	"fmt"

	"candy-gallery/internal/domain"
	"candy-gallery/internal/storage"
)

// GuardEvaluationStore implements storage.GuardEvaluationStore using ClickHouse.
type GuardEvaluationStore struct {
	conn *Conn
}

// NewGuardEvaluationStore creates a new GuardEvaluationStore.
func NewGuardEvaluationStore(conn *Conn) *GuardEvaluationStore {
	return &GuardEvaluationStore{conn: conn}
}

var _ storage.GuardEvaluationStore = (*GuardEvaluationStore)(nil)

// InsertBulk adds the evaluations in one batch. The batch position is kept as seq.
func (s *GuardEvaluationStore) InsertBulk(ctx context.Context, records []*domain.GuardEvaluationRecord) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if r == nil || r.RunID == "" {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO guard_evaluations (
			run_id, candy_machine, wallet, label, allowed, max_amount, reason, evaluated_at, seq
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for i, r := range records {
		var allowed uint8
		if r.Allowed {
			allowed = 1
		}
		err = batch.Append(
			r.RunID, r.CandyMachine, r.Wallet, r.Label,
			allowed, r.MaxAmount, r.Reason, r.EvaluatedAt, uint32(i),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByRunID retrieves evaluations of a run in insertion order.
func (s *GuardEvaluationStore) GetByRunID(ctx context.Context, runID string) ([]*domain.GuardEvaluationRecord, error) {
	query := `
		SELECT run_id, candy_machine, wallet, label, allowed, max_amount, reason, evaluated_at
		FROM guard_evaluations
		WHERE run_id = ?
		ORDER BY seq ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query guard evaluations: %w", err)
	}
	defer rows.Close()

	var result []*domain.GuardEvaluationRecord
	for rows.Next() {
		var r domain.GuardEvaluationRecord
		var allowed uint8
		if err := rows.Scan(
			&r.RunID, &r.CandyMachine, &r.Wallet, &r.Label,
			&allowed, &r.MaxAmount, &r.Reason, &r.EvaluatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan guard evaluation: %w", err)
		}
		r.Allowed = allowed == 1
		result = append(result, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate guard evaluations: %w", err)
	}
	return result, nil
}
