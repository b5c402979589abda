package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"course-receipt-verification/internal/domain"
	"course-receipt-verification/internal/domain/model"
	"course-receipt-verification/internal/domain/ports/repository"
)

var _ repository.SubmissionRepository = (*submissionRepo)(nil)

type submissionRepo struct{ pool *pgxpool.Pool }

func NewSubmissionRepo(pool *pgxpool.Pool) *submissionRepo {
	return &submissionRepo{pool: pool}
}

const submissionCols = `id, target_id, plan, customer_name, customer_phone, customer_email, payment_method, declared_amount, image_ref, notes, is_renewal, is_upgrade, status, reason, review_note, created_at, updated_at, resolved_at`

func (r *submissionRepo) Save(ctx context.Context, tx repository.Tx, s *model.PaymentSubmission) error {
	const q = `
INSERT INTO payment_submissions (` + submissionCols + `) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18
) ON CONFLICT (id) DO UPDATE SET
  status=$13, reason=$14, review_note=$15, updated_at=$17, resolved_at=$18;`

	_, err := execSQL(ctx, r.pool, tx, q,
		s.ID, s.TargetID, s.Plan, s.CustomerName, s.CustomerPhone, s.CustomerEmail,
		s.PaymentMethod, s.DeclaredAmount, s.ImageRef, s.Notes, s.IsRenewal, s.IsUpgrade,
		s.Status, s.Reason, s.ReviewNote, s.CreatedAt, s.UpdatedAt, s.ResolvedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func scanSubmission(row pgx.Row) (*model.PaymentSubmission, error) {
	s := &model.PaymentSubmission{}
	if err := row.Scan(&s.ID, &s.TargetID, &s.Plan, &s.CustomerName, &s.CustomerPhone,
		&s.CustomerEmail, &s.PaymentMethod, &s.DeclaredAmount, &s.ImageRef, &s.Notes,
		&s.IsRenewal, &s.IsUpgrade, &s.Status, &s.Reason, &s.ReviewNote,
		&s.CreatedAt, &s.UpdatedAt, &s.ResolvedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return s, nil
}

func (r *submissionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentSubmission, error) {
	q := `SELECT ` + submissionCols + ` FROM payment_submissions WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", id)
	if err != nil {
		return nil, err
	}
	return scanSubmission(row)
}

func (r *submissionRepo) FindByImageRef(ctx context.Context, tx repository.Tx, imageRef string, statuses []model.SubmissionStatus) (*model.PaymentSubmission, error) {
	ss := make([]string, 0, len(statuses))
	for _, s := range statuses {
		ss = append(ss, string(s))
	}
	const q = `SELECT ` + submissionCols + ` FROM payment_submissions
WHERE image_ref=$1 AND status = ANY($2) ORDER BY created_at DESC LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, imageRef, ss)
	if err != nil {
		return nil, err
	}
	return scanSubmission(row)
}

func (r *submissionRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.SubmissionStatus, reason string, resolvedAt *time.Time) error {
	const q = `UPDATE payment_submissions SET status=$2, reason=COALESCE(NULLIF($3,''), reason), resolved_at=COALESCE($4, resolved_at), updated_at=NOW() WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, status, reason, resolvedAt)
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

func (r *submissionRepo) UpdateReview(ctx context.Context, tx repository.Tx, id string, status model.SubmissionStatus, note string, resolvedAt *time.Time) error {
	const q = `UPDATE payment_submissions SET status=$2, review_note=$3, resolved_at=COALESCE($4, resolved_at), updated_at=NOW() WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, status, note, resolvedAt)
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

func (r *submissionRepo) ListByStatus(ctx context.Context, tx repository.Tx, status model.SubmissionStatus, offset, limit int) ([]*model.PaymentSubmission, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `SELECT ` + submissionCols + ` FROM payment_submissions
WHERE status=$1 ORDER BY created_at ASC OFFSET $2 LIMIT $3;`
	rows, err := queryRows(ctx, r.pool, tx, q, status, offset, limit)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.PaymentSubmission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *submissionRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	cmd, err := execSQL(ctx, r.pool, tx, `DELETE FROM payment_submissions WHERE id=$1;`, id)
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
