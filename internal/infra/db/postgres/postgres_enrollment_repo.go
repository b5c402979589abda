package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"course-receipt-verification/internal/domain"
	"course-receipt-verification/internal/domain/model"
	"course-receipt-verification/internal/domain/ports/repository"
)

var _ repository.EnrollmentRepository = (*enrollmentRepo)(nil)

type enrollmentRepo struct{ pool *pgxpool.Pool }

func NewEnrollmentRepo(pool *pgxpool.Pool) *enrollmentRepo {
	return &enrollmentRepo{pool: pool}
}

const enrollmentCols = `id, subject_phone, course_id, plan, access_start, access_end, status, submission_id, amount_minor, created_at, updated_at`

func (r *enrollmentRepo) Save(ctx context.Context, tx repository.Tx, e *model.Enrollment) error {
	const q = `
INSERT INTO enrollments (` + enrollmentCols + `) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
) ON CONFLICT (id) DO UPDATE SET
  plan=$4, access_end=$6, status=$7, submission_id=$8, amount_minor=$9, updated_at=$11;`
	_, err := execSQL(ctx, r.pool, tx, q,
		e.ID, e.SubjectPhone, e.CourseID, e.Plan, e.AccessStart, e.AccessEnd,
		e.Status, e.SubmissionID, e.AmountMinor, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func scanEnrollment(row pgx.Row) (*model.Enrollment, error) {
	e := &model.Enrollment{}
	if err := row.Scan(&e.ID, &e.SubjectPhone, &e.CourseID, &e.Plan, &e.AccessStart,
		&e.AccessEnd, &e.Status, &e.SubmissionID, &e.AmountMinor, &e.CreatedAt, &e.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return e, nil
}

func (r *enrollmentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Enrollment, error) {
	q := `SELECT ` + enrollmentCols + ` FROM enrollments WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", id)
	if err != nil {
		return nil, err
	}
	return scanEnrollment(row)
}

func (r *enrollmentRepo) FindActive(ctx context.Context, tx repository.Tx, subjectPhone, courseID string) (*model.Enrollment, error) {
	q := `SELECT ` + enrollmentCols + ` FROM enrollments
WHERE subject_phone=$1 AND course_id=$2 AND status='active'
ORDER BY created_at DESC LIMIT 1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", subjectPhone, courseID)
	if err != nil {
		return nil, err
	}
	return scanEnrollment(row)
}

func (r *enrollmentRepo) ListBySubmission(ctx context.Context, tx repository.Tx, submissionID string) ([]*model.Enrollment, error) {
	const q = `SELECT ` + enrollmentCols + ` FROM enrollments WHERE submission_id=$1 ORDER BY course_id;`
	rows, err := queryRows(ctx, r.pool, tx, q, submissionID)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ExpireDue is the sweep: active enrollments whose window has passed flip to
// expired in one statement.
func (r *enrollmentRepo) ExpireDue(ctx context.Context, tx repository.Tx) (int, error) {
	const q = `UPDATE enrollments SET status='expired', updated_at=NOW()
WHERE status='active' AND access_end IS NOT NULL AND access_end < NOW();`
	cmd, err := execSQL(ctx, r.pool, tx, q)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return 0, err
		}
		return 0, domain.ErrOperationFailed
	}
	return int(cmd.RowsAffected()), nil
}

func (r *enrollmentRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.EnrollmentStatus) error {
	const q = `UPDATE enrollments SET status=$2, updated_at=NOW() WHERE id=$1;`
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
