package repository

import (
	"context"

	"course-receipt-verification/internal/domain/model"
)

// EnrollmentRepository stores access grants. FindActive returns the single
// active enrollment for a (subject, course) pair, if any.
type EnrollmentRepository interface {
	Save(ctx context.Context, tx Tx, e *model.Enrollment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Enrollment, error)
	FindActive(ctx context.Context, tx Tx, subjectPhone, courseID string) (*model.Enrollment, error)
	ListBySubmission(ctx context.Context, tx Tx, submissionID string) ([]*model.Enrollment, error)
	// ExpireDue flips active enrollments whose access end has passed to
	// expired and returns how many rows changed.
	ExpireDue(ctx context.Context, tx Tx) (int, error)
	UpdateStatus(ctx context.Context, tx Tx, id string, status model.EnrollmentStatus) error
}

// CourseRepository exposes the purchasable entitlements; the all-access
// fan-out targets ListLive.
type CourseRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.Course, error)
	ListLive(ctx context.Context, tx Tx) ([]*model.Course, error)
}
