package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"course-receipt-verification/internal/domain"
	"course-receipt-verification/internal/domain/model"
	"course-receipt-verification/internal/domain/ports/repository"
)

// Compile-time check
var _ ReviewUseCase = (*reviewUC)(nil)

// ReviewUseCase is the admin surface: resolving manual-review submissions and
// the explicit deletion path, which must also reverse anything the submission
// granted.
type ReviewUseCase interface {
	Review(ctx context.Context, submissionID string, approve bool, note string) (*ConfirmResult, error)
	ListPending(ctx context.Context, offset, limit int) ([]*model.PaymentSubmission, error)
	Delete(ctx context.Context, submissionID string) error
}

type reviewUC struct {
	subs     repository.SubmissionRepository
	fps      repository.FingerprintRepository
	enrollUC EnrollUseCase
	notifier notifierFunc
	log      *zerolog.Logger
	now      func() time.Time
}

// notifierFunc decouples the review flow from the notifier port; verifyUC
// already owns the async dispatch pattern.
type notifierFunc func(sub *model.PaymentSubmission)

func NewReviewUseCase(
	subs repository.SubmissionRepository,
	fps repository.FingerprintRepository,
	enrollUC EnrollUseCase,
	notify notifierFunc,
	logger *zerolog.Logger,
) *reviewUC {
	l := logger.With().Str("component", "ReviewUC").Logger()
	if notify == nil {
		notify = func(*model.PaymentSubmission) {}
	}
	return &reviewUC{
		subs:     subs,
		fps:      fps,
		enrollUC: enrollUC,
		notifier: notify,
		log:      &l,
		now:      time.Now,
	}
}

func (u *reviewUC) Review(ctx context.Context, submissionID string, approve bool, note string) (*ConfirmResult, error) {
	if submissionID == "" {
		return nil, domain.ErrInvalidArgument
	}
	sub, err := u.subs.FindByID(ctx, repository.NoTX, submissionID)
	if err != nil {
		return nil, err
	}
	if sub.Status != model.SubmissionStatusManualReview {
		return nil, domain.ErrSubmissionNotReviewable
	}
	verdict := model.SubmissionStatusApproved
	if !approve {
		verdict = model.SubmissionStatusRejected
	}
	if !sub.Status.CanTransition(verdict) {
		return nil, domain.ErrSubmissionNotReviewable
	}

	now := u.now()
	if !approve {
		if err := u.subs.UpdateReview(ctx, repository.NoTX, sub.ID, model.SubmissionStatusRejected, note, &now); err != nil {
			return nil, err
		}
		// The fingerprint goes inert; it no longer blocks new submissions.
		if fp, err := u.fps.FindBySubmission(ctx, repository.NoTX, sub.ID); err == nil && fp != nil {
			if err := u.fps.UpdateStatus(ctx, repository.NoTX, fp.ID, model.FingerprintStatusRejected); err != nil {
				u.log.Error().Err(err).Str("fingerprint_id", fp.ID).Msg("fingerprint release failed")
			}
		}
		sub.Status = model.SubmissionStatusRejected
		sub.ReviewNote = note
		u.notifier(sub)
		u.log.Info().Str("submission_id", sub.ID).Msg("manual review rejected")
		return &ConfirmResult{SubmissionID: sub.ID, Status: model.SubmissionStatusRejected, Plan: sub.Plan}, nil
	}

	results, err := u.enrollUC.Reconcile(ctx, sub)
	if err != nil {
		return nil, err
	}
	if fp, err := u.fps.FindBySubmission(ctx, repository.NoTX, sub.ID); err == nil && fp != nil {
		if err := u.fps.UpdateStatus(ctx, repository.NoTX, fp.ID, model.FingerprintStatusApproved); err != nil {
			u.log.Error().Err(err).Str("fingerprint_id", fp.ID).Msg("fingerprint promotion failed")
		}
	}
	if err := u.subs.UpdateReview(ctx, repository.NoTX, sub.ID, model.SubmissionStatusApproved, note, &now); err != nil {
		return nil, err
	}
	sub.Status = model.SubmissionStatusApproved
	sub.ReviewNote = note
	u.notifier(sub)
	u.log.Info().Str("submission_id", sub.ID).Msg("manual review approved")

	return &ConfirmResult{
		SubmissionID: sub.ID,
		Status:       model.SubmissionStatusApproved,
		Plan:         sub.Plan,
		AccessEnd:    latestAccessEnd(results),
		Results:      results,
	}, nil
}

func (u *reviewUC) ListPending(ctx context.Context, offset, limit int) ([]*model.PaymentSubmission, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	subs, err := u.subs.ListByStatus(ctx, repository.NoTX, model.SubmissionStatusManualReview, offset, limit)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	return subs, nil
}

// Delete removes a submission by explicit admin action, cancelling the
// enrollments it produced and neutralizing its fingerprint.
func (u *reviewUC) Delete(ctx context.Context, submissionID string) error {
	if submissionID == "" {
		return domain.ErrInvalidArgument
	}
	sub, err := u.subs.FindByID(ctx, repository.NoTX, submissionID)
	if err != nil {
		return err
	}
	cancelled, err := u.enrollUC.CancelForSubmission(ctx, sub.ID)
	if err != nil {
		return err
	}
	if fp, err := u.fps.FindBySubmission(ctx, repository.NoTX, sub.ID); err == nil && fp != nil {
		if err := u.fps.UpdateStatus(ctx, repository.NoTX, fp.ID, model.FingerprintStatusRejected); err != nil {
			return err
		}
	}
	if err := u.subs.Delete(ctx, repository.NoTX, sub.ID); err != nil {
		return err
	}
	u.log.Info().Str("submission_id", sub.ID).Int("enrollments_cancelled", cancelled).Msg("submission deleted")
	return nil
}
