package model

// RejectReason is the stable, user-facing code attached to every deterministic
// rejection. Codes are part of the API contract; messages are advisory.
type RejectReason string

const (
	ReasonDuplicateImage        RejectReason = "DuplicateImage"
	ReasonNotAPaymentReceipt    RejectReason = "NotAPaymentReceipt"
	ReasonHumanPhotoDetected    RejectReason = "HumanPhotoDetected"
	ReasonAmountNotVisible      RejectReason = "AmountNotVisible"
	ReasonReferenceNotVisible   RejectReason = "ReferenceNotVisible"
	ReasonLowConfidence         RejectReason = "LowConfidence"
	ReasonReceiptTooOld         RejectReason = "ReceiptTooOld"
	ReasonReceiptDateInFuture   RejectReason = "ReceiptDateInFuture"
	ReasonReceiptDateUnparsable RejectReason = "ReceiptDateUnparsable"
	ReasonDuplicateReceipt      RejectReason = "DuplicateReceipt"
	ReasonWrongRecipient        RejectReason = "WrongRecipient"
	ReasonAmountMismatch        RejectReason = "AmountMismatch"
	ReasonExtractionUnavailable RejectReason = "ExtractionServiceUnavailable" // transient, retryable
)

var reasonMessages = map[RejectReason]string{
	ReasonDuplicateImage:        "This exact screenshot was already submitted.",
	ReasonNotAPaymentReceipt:    "The image does not look like a payment confirmation screen.",
	ReasonHumanPhotoDetected:    "The image appears to be a photo of a person, not a receipt.",
	ReasonAmountNotVisible:      "No payment amount is visible on the receipt.",
	ReasonReferenceNotVisible:   "No transaction reference is visible on the receipt.",
	ReasonLowConfidence:         "The receipt could not be read reliably. Please upload a clearer screenshot.",
	ReasonReceiptTooOld:         "The receipt is older than 7 days. Please submit a recent payment.",
	ReasonReceiptDateInFuture:   "The receipt is dated in the future.",
	ReasonReceiptDateUnparsable: "The date on the receipt could not be read.",
	ReasonDuplicateReceipt:      "This transaction was already used for a purchase.",
	ReasonWrongRecipient:        "The payment was not sent to our payment account.",
	ReasonAmountMismatch:        "The paid amount does not match the selected plan.",
	ReasonExtractionUnavailable: "Receipt verification is temporarily unavailable. Please try again.",
}

// Message returns the human-readable explanation for a reason code.
func (r RejectReason) Message() string {
	if m, ok := reasonMessages[r]; ok {
		return m
	}
	return string(r)
}
