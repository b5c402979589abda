package model

import "time"

type EnrollmentStatus string

const (
	EnrollmentStatusActive    EnrollmentStatus = "active"
	EnrollmentStatusExpired   EnrollmentStatus = "expired"
	EnrollmentStatusCancelled EnrollmentStatus = "cancelled"
)

// Enrollment is a time-bounded grant of access to one course. AccessEnd nil
// means unlimited (lifetime). For a (subject, course) pair at most one
// enrollment is active at a time; renewals extend it in place.
type Enrollment struct {
	ID           string // UUID
	SubjectPhone string // subject identity, normalized phone
	CourseID     string
	Plan         PlanType
	AccessStart  time.Time
	AccessEnd    *time.Time // nil = unlimited
	Status       EnrollmentStatus
	SubmissionID string // submission that created or last extended it
	AmountMinor  int64  // amount paid on the creating/extending submission
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Unlimited reports whether the enrollment never expires.
func (e *Enrollment) Unlimited() bool { return e.AccessEnd == nil }

// ExpiredAt treats a past-dated active enrollment as already expired even
// before the sweep has flipped its status.
func (e *Enrollment) ExpiredAt(now time.Time) bool {
	if e.Status == EnrollmentStatusExpired {
		return true
	}
	return e.AccessEnd != nil && e.AccessEnd.Before(now)
}

// Usable reports whether the enrollment currently grants access.
func (e *Enrollment) Usable(now time.Time) bool {
	return e.Status == EnrollmentStatusActive && !e.ExpiredAt(now)
}
