package notify

import (
	"context"
	"errors"

	"course-receipt-verification/internal/domain/model"
	"course-receipt-verification/internal/domain/ports/adapter"
)

var _ adapter.Notifier = (*MultiNotifier)(nil)

// MultiNotifier fans a notice out to every configured channel and joins the
// failures, so one broken channel does not silence the rest.
type MultiNotifier struct {
	channels []adapter.Notifier
}

func NewMultiNotifier(channels ...adapter.Notifier) *MultiNotifier {
	return &MultiNotifier{channels: channels}
}

func (m *MultiNotifier) SubmissionDecided(ctx context.Context, sub *model.PaymentSubmission) error {
	var errs []error
	for _, c := range m.channels {
		if err := c.SubmissionDecided(ctx, sub); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiNotifier) ManualReviewQueued(ctx context.Context, sub *model.PaymentSubmission) error {
	var errs []error
	for _, c := range m.channels {
		if err := c.ManualReviewQueued(ctx, sub); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
