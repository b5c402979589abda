package repository

import (
	"context"
	"time"

	"course-receipt-verification/internal/domain/model"
)

// SubmissionRepository is the durable ledger of payment submissions.
type SubmissionRepository interface {
	Save(ctx context.Context, tx Tx, s *model.PaymentSubmission) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.PaymentSubmission, error)
	// FindByImageRef returns the newest submission for the exact image
	// reference whose status is in the given set, or ErrNotFound.
	FindByImageRef(ctx context.Context, tx Tx, imageRef string, statuses []model.SubmissionStatus) (*model.PaymentSubmission, error)
	UpdateStatus(ctx context.Context, tx Tx, id string, status model.SubmissionStatus, reason string, resolvedAt *time.Time) error
	// UpdateReview resolves a manual-review submission with an admin note.
	UpdateReview(ctx context.Context, tx Tx, id string, status model.SubmissionStatus, note string, resolvedAt *time.Time) error
	ListByStatus(ctx context.Context, tx Tx, status model.SubmissionStatus, offset, limit int) ([]*model.PaymentSubmission, error)
	Delete(ctx context.Context, tx Tx, id string) error
}
