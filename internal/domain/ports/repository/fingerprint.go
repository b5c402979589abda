package repository

import (
	"context"

	"course-receipt-verification/internal/domain/model"
)

// FingerprintRepository persists receipt fingerprints and answers the
// anti-replay question: does a non-rejected fingerprint already match?
type FingerprintRepository interface {
	// Save inserts the fingerprint. A unique-index collision on the
	// normalized reference surfaces as domain.ErrAlreadyExists.
	Save(ctx context.Context, tx Tx, fp *model.ReceiptFingerprint) error
	// FindMatch returns a fingerprint in {pending, approved} matching either
	// the reference or the full (date, time, amount, sender) tuple, or
	// ErrNotFound. Rejected fingerprints are inert and never match.
	FindMatch(ctx context.Context, tx Tx, fp *model.ReceiptFingerprint) (*model.ReceiptFingerprint, error)
	FindBySubmission(ctx context.Context, tx Tx, submissionID string) (*model.ReceiptFingerprint, error)
	UpdateStatus(ctx context.Context, tx Tx, id string, status model.FingerprintStatus) error
}
