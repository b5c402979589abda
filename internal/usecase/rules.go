package usecase

import (
	"strings"
	"time"

	"course-receipt-verification/internal/config"
	"course-receipt-verification/internal/domain/model"
	"course-receipt-verification/internal/domain/normalize"
	"course-receipt-verification/internal/domain/ports/adapter"
)

// checkResult is the tagged outcome of one pipeline rule. The decision
// engine folds the rules left-to-right and stops at the first rejection,
// which keeps the rule order independently testable.
type checkResult struct {
	ok     bool
	reason model.RejectReason
}

func pass() checkResult                       { return checkResult{ok: true} }
func reject(r model.RejectReason) checkResult { return checkResult{reason: r} }

// formatChecks validates that the image plausibly shows a payment receipt at
// all. Each failure carries its own reason code; order matters.
func formatChecks(f *adapter.ExtractedFields) checkResult {
	if f.LooksLikeHumanPhoto {
		return reject(model.ReasonHumanPhotoDetected)
	}
	if !f.LooksLikePaymentUI {
		return reject(model.ReasonNotAPaymentReceipt)
	}
	if !f.HasVisibleAmount {
		return reject(model.ReasonAmountNotVisible)
	}
	if !f.HasVisibleReference {
		return reject(model.ReasonReferenceNotVisible)
	}
	return pass()
}

func confidenceGate(f *adapter.ExtractedFields, min int) checkResult {
	if f.Confidence < min {
		return reject(model.ReasonLowConfidence)
	}
	return pass()
}

// freshnessCheck distinguishes future, stale and unreadable dates.
func freshnessCheck(dateText *string, today time.Time) checkResult {
	if dateText == nil {
		return reject(model.ReasonReceiptDateUnparsable)
	}
	iso, ok := normalize.Date(*dateText)
	if !ok {
		return reject(model.ReasonReceiptDateUnparsable)
	}
	fr := normalize.CheckFreshness(iso, today)
	switch {
	case fr.IsFuture:
		return reject(model.ReasonReceiptDateInFuture)
	case !fr.WithinWindow:
		return reject(model.ReasonReceiptTooOld)
	}
	return pass()
}

// recipientCheck accepts when the vision service vouched for the payee, or
// when the extracted recipient matches the configured payee descriptor
// (contains-match on the name allow-list, or exact canonical phone).
func recipientCheck(f *adapter.ExtractedFields, policy *config.PolicyConfig) checkResult {
	if f.RecipientIsValidPayee {
		return pass()
	}
	if f.RecipientName != nil && payeeNameMatches(*f.RecipientName, policy.PayeeNames) {
		return pass()
	}
	if f.RecipientName != nil && policy.PayeePhone != "" &&
		normalize.Phone(*f.RecipientName) == normalize.Phone(policy.PayeePhone) {
		return pass()
	}
	return reject(model.ReasonWrongRecipient)
}

func payeeNameMatches(name string, variants []string) bool {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return false
	}
	for _, v := range variants {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if strings.Contains(n, v) || strings.Contains(v, n) {
			return true
		}
	}
	return false
}

func withinTolerance(amount, expected, tolerance int64) bool {
	d := amount - expected
	if d < 0 {
		d = -d
	}
	return d <= tolerance
}

// upgradePrice computes what a subscriber on an active monthly plan owes to
// move to yearly: the yearly price minus what they already paid this month,
// plus a small fixed adjustment, floored at a minimum positive value.
func upgradePrice(yearlyMinor, paidMonthlyMinor int64, policy *config.PolicyConfig) int64 {
	p := yearlyMinor - paidMonthlyMinor + policy.UpgradeAdjustMinor
	if p < policy.UpgradeFloorMinor {
		p = policy.UpgradeFloorMinor
	}
	return p
}

// amountCheck accepts the normalized amount when it is within tolerance of
// the plan price. When a monthly-to-yearly upgrade applies it also accepts
// amounts within the upgrade tolerance of the computed upgrade price.
func amountCheck(amountMinor int64, expected int64, upgrade *int64, policy *config.PolicyConfig) checkResult {
	if withinTolerance(amountMinor, expected, policy.AmountToleranceMinor) {
		return pass()
	}
	if upgrade != nil && withinTolerance(amountMinor, *upgrade, policy.UpgradeToleranceMinor) {
		return pass()
	}
	return reject(model.ReasonAmountMismatch)
}

// metadataComplete reports whether the caller supplied everything the
// high-confidence auto path (and the escalation path) requires.
func metadataComplete(req *ValidateRequest) bool {
	return req.Plan.Valid() &&
		strings.TrimSpace(req.PaymentMethod) != "" &&
		strings.TrimSpace(req.CustomerName) != "" &&
		strings.TrimSpace(req.CustomerPhone) != ""
}
