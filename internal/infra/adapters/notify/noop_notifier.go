package notify

import (
	"context"

	"course-receipt-verification/internal/domain/model"
	"course-receipt-verification/internal/domain/ports/adapter"
)

var _ adapter.Notifier = (*NoopNotifier)(nil)

type NoopNotifier struct{}

func NewNoopNotifier() *NoopNotifier { return &NoopNotifier{} }

func (NoopNotifier) SubmissionDecided(ctx context.Context, sub *model.PaymentSubmission) error {
	return nil
}

func (NoopNotifier) ManualReviewQueued(ctx context.Context, sub *model.PaymentSubmission) error {
	return nil
}
