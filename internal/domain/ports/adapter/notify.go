package adapter

import (
	"context"

	"course-receipt-verification/internal/domain/model"
)

// Notifier delivers lifecycle notices about a submission. All methods are
// fire-and-forget from the engine's point of view: implementations may block,
// but callers invoke them from a goroutine and only log failures.
type Notifier interface {
	// SubmissionDecided tells the submitter about an approval or rejection.
	SubmissionDecided(ctx context.Context, sub *model.PaymentSubmission) error
	// ManualReviewQueued alerts operators that a submission awaits review.
	ManualReviewQueued(ctx context.Context, sub *model.PaymentSubmission) error
}
