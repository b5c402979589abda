package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"course-receipt-verification/internal/domain"
	"course-receipt-verification/internal/domain/ports/repository"
)

var _ repository.AttemptRepository = (*attemptRepo)(nil)

type attemptRepo struct{ pool *pgxpool.Pool }

func NewAttemptRepo(pool *pgxpool.Pool) *attemptRepo {
	return &attemptRepo{pool: pool}
}

func (r *attemptRepo) Increment(ctx context.Context, tx repository.Tx, scopeKey string) (int, error) {
	const q = `
INSERT INTO attempt_counters (scope_key, count, updated_at) VALUES ($1, 1, NOW())
ON CONFLICT (scope_key) DO UPDATE SET
  count = attempt_counters.count + 1, updated_at = NOW()
RETURNING count;`
	row, err := pickRow(ctx, r.pool, tx, q, scopeKey)
	if err != nil {
		return 0, err
	}
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return count, nil
}

func (r *attemptRepo) Get(ctx context.Context, tx repository.Tx, scopeKey string) (int, error) {
	const q = `SELECT count FROM attempt_counters WHERE scope_key=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, scopeKey)
	if err != nil {
		return 0, err
	}
	var count int
	if err := row.Scan(&count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, domain.ErrReadDatabaseRow
	}
	return count, nil
}

func (r *attemptRepo) Reset(ctx context.Context, tx repository.Tx, scopeKey string) error {
	const q = `DELETE FROM attempt_counters WHERE scope_key=$1;`
	if _, err := execSQL(ctx, r.pool, tx, q, scopeKey); err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}
