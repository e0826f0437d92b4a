package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"candy-gallery/internal/domain"
	"candy-gallery/internal/storage"
)

// RefreshRunStore implements storage.RefreshRunStore using PostgreSQL.
type RefreshRunStore struct {
	pool *Pool
}

// NewRefreshRunStore creates a new RefreshRunStore.
func NewRefreshRunStore(pool *Pool) *RefreshRunStore {
	return &RefreshRunStore{pool: pool}
}

var _ storage.RefreshRunStore = (*RefreshRunStore)(nil)

const refreshRunColumns = `id, candy_machine, wallet, outcome, mint_allowed, guard_count, owned_tokens,
	gallery_entries, metadata_failures, chain_time, error, started_at, finished_at`

// Insert adds a new run. Returns ErrDuplicateKey if id exists.
func (s *RefreshRunStore) Insert(ctx context.Context, r *domain.RefreshRun) error {
	if r == nil || r.ID == "" || !r.Outcome.IsValid() {
		return storage.ErrInvalidInput
	}

	query := `INSERT INTO refresh_runs (` + refreshRunColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := s.pool.Exec(ctx, query,
		r.ID,
		r.CandyMachine,
		r.Wallet,
		string(r.Outcome),
		r.MintAllowed,
		r.GuardCount,
		r.OwnedTokens,
		r.GalleryEntries,
		r.MetadataFailures,
		r.ChainTime,
		r.Error,
		r.StartedAt,
		r.FinishedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert refresh run: %w", err)
	}
	return nil
}

// GetByID retrieves a run by ID. Returns ErrNotFound if not exists.
func (s *RefreshRunStore) GetByID(ctx context.Context, id string) (*domain.RefreshRun, error) {
	query := `SELECT ` + refreshRunColumns + ` FROM refresh_runs WHERE id = $1`

	r, err := scanRefreshRun(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get refresh run: %w", err)
	}
	return r, nil
}

// ListRecent retrieves up to limit runs ordered by started_at DESC.
func (s *RefreshRunStore) ListRecent(ctx context.Context, limit int) ([]*domain.RefreshRun, error) {
	if limit <= 0 {
		limit = storage.DefaultListLimit
	}

	query := `SELECT ` + refreshRunColumns + ` FROM refresh_runs
		ORDER BY started_at DESC, id
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list refresh runs: %w", err)
	}
	defer rows.Close()

	var result []*domain.RefreshRun
	for rows.Next() {
		r, err := scanRefreshRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan refresh run: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate refresh runs: %w", err)
	}
	return result, nil
}

func scanRefreshRun(row pgx.Row) (*domain.RefreshRun, error) {
	var r domain.RefreshRun
	var outcome string

	err := row.Scan(
		&r.ID,
		&r.CandyMachine,
		&r.Wallet,
		&outcome,
		&r.MintAllowed,
		&r.GuardCount,
		&r.OwnedTokens,
		&r.GalleryEntries,
		&r.MetadataFailures,
		&r.ChainTime,
		&r.Error,
		&r.StartedAt,
		&r.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Outcome = domain.RunOutcome(outcome)
	return &r, nil
}
