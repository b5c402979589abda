package adapter

import "context"

// ExtractedFields is the partially-trusted field set the vision service reads
// off a receipt image. Pointer fields are nil when the model could not see or
// would not commit to a value.
type ExtractedFields struct {
	LooksLikePaymentUI    bool
	LooksLikeHumanPhoto   bool
	HasVisibleAmount      bool
	HasVisibleReference   bool
	Confidence            int // 0..100
	AmountText            *string
	DateText              *string
	TimeText              *string
	ReferenceText         *string
	RecipientName         *string
	RecipientIsValidPayee bool
	SenderName            *string
	SenderPhoneText       *string
}

// ExtractionUsage reports token accounting for one extraction call, used for
// cost metrics. Estimated is true when the provider response carried no usage
// block and the prompt size was counted locally.
type ExtractionUsage struct {
	PromptTokens     int
	CompletionTokens int
	Estimated        bool
}

// FieldExtractor turns a receipt image into structured fields. A failed or
// timed-out call returns domain.ErrExtractionUnavailable (wrapped); callers
// treat that as transient and retryable, never as a verdict on the receipt.
type FieldExtractor interface {
	Extract(ctx context.Context, image []byte, mimeType string) (*ExtractedFields, ExtractionUsage, error)
	Name() string
}
