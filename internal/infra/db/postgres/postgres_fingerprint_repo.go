package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"course-receipt-verification/internal/domain"
	"course-receipt-verification/internal/domain/model"
	"course-receipt-verification/internal/domain/ports/repository"
)

var _ repository.FingerprintRepository = (*fingerprintRepo)(nil)

type fingerprintRepo struct{ pool *pgxpool.Pool }

func NewFingerprintRepo(pool *pgxpool.Pool) *fingerprintRepo {
	return &fingerprintRepo{pool: pool}
}

const fingerprintCols = `id, submission_id, reference, tx_date, tx_time, amount_minor, sender_phone, status, created_at, updated_at`

// uniqueViolation is the SQLSTATE for a unique-index collision; the partial
// index on (reference) WHERE status <> 'rejected' backs the anti-replay
// invariant at the database level.
const uniqueViolation = "23505"

func (r *fingerprintRepo) Save(ctx context.Context, tx repository.Tx, fp *model.ReceiptFingerprint) error {
	const q = `
INSERT INTO receipt_fingerprints (` + fingerprintCols + `) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10
);`
	_, err := execSQL(ctx, r.pool, tx, q,
		fp.ID, fp.SubmissionID, fp.Reference, fp.TxDate, fp.TxTime,
		fp.AmountMinor, fp.SenderPhone, fp.Status, fp.CreatedAt, fp.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrAlreadyExists
		}
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func scanFingerprint(row pgx.Row) (*model.ReceiptFingerprint, error) {
	fp := &model.ReceiptFingerprint{}
	if err := row.Scan(&fp.ID, &fp.SubmissionID, &fp.Reference, &fp.TxDate, &fp.TxTime,
		&fp.AmountMinor, &fp.SenderPhone, &fp.Status, &fp.CreatedAt, &fp.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return fp, nil
}

// FindMatch implements the dedup query: a live fingerprint matches on the
// normalized reference, or on the full (date, time, amount, sender) tuple.
func (r *fingerprintRepo) FindMatch(ctx context.Context, tx repository.Tx, fp *model.ReceiptFingerprint) (*model.ReceiptFingerprint, error) {
	const q = `
SELECT ` + fingerprintCols + ` FROM receipt_fingerprints
WHERE status IN ('pending','approved')
  AND (
    ($1::text IS NOT NULL AND reference = $1)
    OR (
      $2::date IS NOT NULL AND tx_date = $2
      AND tx_time IS NOT DISTINCT FROM $3
      AND amount_minor = $4
      AND sender_phone = $5
    )
  )
LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, fp.Reference, fp.TxDate, fp.TxTime, fp.AmountMinor, fp.SenderPhone)
	if err != nil {
		return nil, err
	}
	return scanFingerprint(row)
}

func (r *fingerprintRepo) FindBySubmission(ctx context.Context, tx repository.Tx, submissionID string) (*model.ReceiptFingerprint, error) {
	const q = `SELECT ` + fingerprintCols + ` FROM receipt_fingerprints WHERE submission_id=$1 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, submissionID)
	if err != nil {
		return nil, err
	}
	return scanFingerprint(row)
}

func (r *fingerprintRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.FingerprintStatus) error {
	const q = `UPDATE receipt_fingerprints SET status=$2, updated_at=NOW() WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, status)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
