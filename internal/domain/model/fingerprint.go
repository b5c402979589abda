package model

import "time"

type FingerprintStatus string

const (
	FingerprintStatusPending  FingerprintStatus = "pending"
	FingerprintStatusApproved FingerprintStatus = "approved"
	FingerprintStatusRejected FingerprintStatus = "rejected" // inert; does not block new fingerprints
)

// ReceiptFingerprint is the comparable identity of a real-world transaction,
// derived from normalized receipt fields. At most one fingerprint in
// {pending, approved} may match a given reference, or a given
// (date, time, amount, sender phone) tuple.
type ReceiptFingerprint struct {
	ID           string  // UUID
	SubmissionID string  // owning submission
	Reference    *string // normalized reference code
	TxDate       *string // ISO calendar date (YYYY-MM-DD)
	TxTime       *string // as printed on the receipt, normalized HH:MM
	AmountMinor  *int64
	SenderPhone  *string // digits only
	Status       FingerprintStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Comparable reports whether the fingerprint carries enough fields to be
// matched at all. A receipt with neither a reference nor the full tuple is
// not deduplicatable and must not be auto-approved.
func (f *ReceiptFingerprint) Comparable() bool {
	if f.Reference != nil && *f.Reference != "" {
		return true
	}
	return f.TxDate != nil && f.AmountMinor != nil && f.SenderPhone != nil
}
