package usecase

import (
	"context"
	"errors"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"course-receipt-verification/internal/config"
	"course-receipt-verification/internal/domain"
	"course-receipt-verification/internal/domain/model"
	"course-receipt-verification/internal/domain/ports/repository"
)

// Compile-time check
var _ EnrollUseCase = (*enrollUC)(nil)

// ReconcileResult describes what reconciliation did for one course.
type ReconcileResult struct {
	CourseID         string
	AccessEnd        *time.Time // nil = unlimited
	Created          bool
	Extended         bool
	AlreadyUnlimited bool
	AlreadyApplied   bool // this submission was reconciled for this course before
}

type EnrollUseCase interface {
	// Reconcile turns an approved/confirmed submission into enrollment
	// writes: one per target course, additive, never shrinking. Idempotent
	// with respect to the owning submission.
	Reconcile(ctx context.Context, sub *model.PaymentSubmission) ([]ReconcileResult, error)
	// CancelForSubmission reverses the grants a submission produced; used
	// when an admin deletes a submission. Returns how many were cancelled.
	CancelForSubmission(ctx context.Context, submissionID string) (int, error)
	// ExpireDue flips past-dated active enrollments to expired.
	ExpireDue(ctx context.Context) (int, error)
}

type enrollUC struct {
	enrolls  repository.EnrollmentRepository
	courses  repository.CourseRepository
	attempts repository.AttemptRepository
	tm       repository.TransactionManager
	policy   *config.PolicyConfig
	log      *zerolog.Logger
	now      func() time.Time
}

func NewEnrollUseCase(
	enrolls repository.EnrollmentRepository,
	courses repository.CourseRepository,
	attempts repository.AttemptRepository,
	tm repository.TransactionManager,
	policy *config.PolicyConfig,
	logger *zerolog.Logger,
) *enrollUC {
	l := logger.With().Str("component", "EnrollUC").Logger()
	return &enrollUC{
		enrolls:  enrolls,
		courses:  courses,
		attempts: attempts,
		tm:       tm,
		policy:   policy,
		log:      &l,
		now:      time.Now,
	}
}

func hashToInt64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64() & ((1 << 63) - 1))
}

func (u *enrollUC) Reconcile(ctx context.Context, sub *model.PaymentSubmission) ([]ReconcileResult, error) {
	if sub == nil {
		return nil, domain.ErrInvalidArgument
	}
	// Idempotency is a status question, not an arithmetic one: a submission
	// that already granted access grants nothing more.
	switch sub.Status {
	case model.SubmissionStatusConfirmed, model.SubmissionStatusApproved:
		return u.existingResults(ctx, sub.ID)
	case model.SubmissionStatusRejected:
		return nil, domain.ErrSubmissionFinal
	}

	targets, err := u.resolveTargets(ctx, sub.TargetID)
	if err != nil {
		return nil, err
	}

	results := make([]ReconcileResult, 0, len(targets))
	for _, courseID := range targets {
		res, err := u.reconcileCourse(ctx, sub, courseID)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}

	scope := model.AttemptScopeKey(sub.CustomerPhone, sub.TargetID)
	if err := u.attempts.Reset(ctx, repository.NoTX, scope); err != nil {
		u.log.Warn().Err(err).Str("scope", scope).Msg("attempt counter reset failed")
	}
	return results, nil
}

func (u *enrollUC) resolveTargets(ctx context.Context, targetID string) ([]string, error) {
	if targetID != model.TargetAllAccess {
		return []string{targetID}, nil
	}
	live, err := u.courses.ListLive(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(live))
	for _, c := range live {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

// reconcileCourse runs the read-modify-write of one (subject, course) window
// inside a transaction guarded by an advisory lock, so two submissions
// reconciled concurrently cannot lose an extension.
func (u *enrollUC) reconcileCourse(ctx context.Context, sub *model.PaymentSubmission, courseID string) (ReconcileResult, error) {
	res := ReconcileResult{CourseID: courseID}

	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if px, ok := tx.(pgx.Tx); ok {
			if _, err := px.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", hashToInt64(sub.CustomerPhone+"|"+courseID)); err != nil {
				return err
			}
		}

		now := u.now()
		existing, err := u.enrolls.FindActive(ctx, tx, sub.CustomerPhone, courseID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		if existing != nil && existing.SubmissionID == sub.ID {
			res.AlreadyApplied = true
			res.AccessEnd = existing.AccessEnd
			return nil
		}
		if existing != nil && existing.Unlimited() {
			res.AlreadyUnlimited = true
			return nil
		}

		base := now
		if existing != nil && existing.AccessEnd != nil && existing.AccessEnd.After(now) {
			base = *existing.AccessEnd
		}

		upgrade := u.isUpgrade(sub, existing, now)
		end := accessWindowEnd(base, sub.Plan, upgrade)

		if existing == nil {
			e := &model.Enrollment{
				ID:           uuid.NewString(),
				SubjectPhone: sub.CustomerPhone,
				CourseID:     courseID,
				Plan:         sub.Plan,
				AccessStart:  now,
				AccessEnd:    end,
				Status:       model.EnrollmentStatusActive,
				SubmissionID: sub.ID,
				AmountMinor:  sub.DeclaredAmount,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := u.enrolls.Save(ctx, tx, e); err != nil {
				return err
			}
			res.Created = true
			res.AccessEnd = end
			return nil
		}

		// Extend in place; the window never shrinks.
		if end != nil && existing.AccessEnd != nil && end.Before(*existing.AccessEnd) {
			end = existing.AccessEnd
		}
		existing.AccessEnd = end
		existing.Plan = sub.Plan
		existing.Status = model.EnrollmentStatusActive
		existing.SubmissionID = sub.ID
		existing.AmountMinor = sub.DeclaredAmount
		existing.UpdatedAt = now
		if err := u.enrolls.Save(ctx, tx, existing); err != nil {
			return err
		}
		res.Extended = true
		res.AccessEnd = end
		return nil
	})
	return res, err
}

// isUpgrade detects a qualifying monthly-to-yearly upgrade: an active monthly
// enrollment plus a paid amount within tolerance of the dynamic upgrade price.
func (u *enrollUC) isUpgrade(sub *model.PaymentSubmission, existing *model.Enrollment, now time.Time) bool {
	if sub.Plan != model.PlanYearly || existing == nil {
		return false
	}
	if existing.Plan != model.PlanMonthly || !existing.Usable(now) {
		return false
	}
	yearly, ok := u.policy.ExpectedAmount(string(model.PlanYearly), existing.CourseID)
	if !ok {
		return false
	}
	want := upgradePrice(yearly, existing.AmountMinor, u.policy)
	return withinTolerance(sub.DeclaredAmount, want, u.policy.UpgradeToleranceMinor)
}

// accessWindowEnd computes the end of the paid window from its base date.
// The 11-month upgrade window exists because the subscriber already owns the
// current month; the upgrade tops it up to a full year.
func accessWindowEnd(base time.Time, plan model.PlanType, upgrade bool) *time.Time {
	var end time.Time
	switch plan {
	case model.PlanMonthly:
		end = base.AddDate(0, 1, 0)
	case model.PlanYearly:
		if upgrade {
			end = base.AddDate(0, 11, 0)
		} else {
			end = base.AddDate(1, 0, 0)
		}
	case model.PlanOnetime:
		end = base.AddDate(0, 6, 0)
	case model.PlanLifetime:
		return nil
	default:
		end = base.AddDate(0, 1, 0)
	}
	return &end
}

func (u *enrollUC) existingResults(ctx context.Context, submissionID string) ([]ReconcileResult, error) {
	enrolls, err := u.enrolls.ListBySubmission(ctx, repository.NoTX, submissionID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	out := make([]ReconcileResult, 0, len(enrolls))
	for _, e := range enrolls {
		out = append(out, ReconcileResult{
			CourseID:       e.CourseID,
			AccessEnd:      e.AccessEnd,
			AlreadyApplied: true,
		})
	}
	return out, nil
}

func (u *enrollUC) CancelForSubmission(ctx context.Context, submissionID string) (int, error) {
	enrolls, err := u.enrolls.ListBySubmission(ctx, repository.NoTX, submissionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	n := 0
	for _, e := range enrolls {
		if e.Status == model.EnrollmentStatusCancelled {
			continue
		}
		if err := u.enrolls.UpdateStatus(ctx, repository.NoTX, e.ID, model.EnrollmentStatusCancelled); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (u *enrollUC) ExpireDue(ctx context.Context) (int, error) {
	return u.enrolls.ExpireDue(ctx, repository.NoTX)
}
