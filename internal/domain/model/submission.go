package model

import "time"

type SubmissionStatus string

const (
	SubmissionStatusSubmitted    SubmissionStatus = "submitted"            // created, not yet classified
	SubmissionStatusRejected     SubmissionStatus = "rejected"             // terminal
	SubmissionStatusAutoApproved SubmissionStatus = "auto_approved"        // high-confidence path passed all checks
	SubmissionStatusPendingConf  SubmissionStatus = "pending_confirmation" // valid, awaiting explicit confirm
	SubmissionStatusManualReview SubmissionStatus = "manual_review"        // escalated; awaiting admin verdict
	SubmissionStatusConfirmed    SubmissionStatus = "confirmed"            // terminal
	SubmissionStatusApproved     SubmissionStatus = "approved"             // terminal (admin-approved)
)

type PlanType string

const (
	PlanMonthly  PlanType = "monthly"
	PlanYearly   PlanType = "yearly"
	PlanOnetime  PlanType = "onetime"
	PlanLifetime PlanType = "lifetime"
)

func (p PlanType) Valid() bool {
	switch p {
	case PlanMonthly, PlanYearly, PlanOnetime, PlanLifetime:
		return true
	}
	return false
}

// TargetAllAccess is the entitlement id that fans out to every live course.
const TargetAllAccess = "all-access"

// PaymentSubmission is one user-initiated payment attempt and the unit the
// rest of the engine hangs off: fingerprints, enrollments and admin reviews
// all link back to it.
type PaymentSubmission struct {
	ID             string // ULID
	TargetID       string // course id or TargetAllAccess
	Plan           PlanType
	CustomerName   string
	CustomerPhone  string
	CustomerEmail  string // optional
	PaymentMethod  string
	DeclaredAmount int64  // minor units as declared by the submitter
	ImageRef       string // storage reference of the receipt image
	Notes          string
	IsRenewal      bool
	IsUpgrade      bool
	Status         SubmissionStatus
	Reason         string // rejection reason code, empty otherwise
	ReviewNote     string // admin note on manual review verdict
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ResolvedAt     *time.Time // set when a terminal status is reached
}

// Terminal reports whether no further transition is allowed.
func (s SubmissionStatus) Terminal() bool {
	switch s {
	case SubmissionStatusRejected, SubmissionStatusConfirmed, SubmissionStatusApproved:
		return true
	}
	return false
}

// CanTransition enforces the monotonic forward-only lifecycle. A rejected
// submission never becomes approved; terminal states accept nothing.
func (s SubmissionStatus) CanTransition(to SubmissionStatus) bool {
	if s.Terminal() {
		return false
	}
	switch s {
	case SubmissionStatusSubmitted:
		switch to {
		case SubmissionStatusRejected, SubmissionStatusAutoApproved,
			SubmissionStatusPendingConf, SubmissionStatusManualReview:
			return true
		}
	case SubmissionStatusAutoApproved, SubmissionStatusPendingConf:
		return to == SubmissionStatusConfirmed
	case SubmissionStatusManualReview:
		return to == SubmissionStatusApproved || to == SubmissionStatusRejected
	}
	return false
}

// Granted reports whether the submission reached a state that entitles the
// subject to access (the reconciler runs only for these).
func (s SubmissionStatus) Granted() bool {
	switch s {
	case SubmissionStatusAutoApproved, SubmissionStatusConfirmed, SubmissionStatusApproved:
		return true
	}
	return false
}
