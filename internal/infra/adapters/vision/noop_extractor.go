package vision

import (
	"context"

	"course-receipt-verification/internal/domain/ports/adapter"
)

var _ adapter.FieldExtractor = (*NoopExtractor)(nil)

// NoopExtractor is for local/dev wiring without provider keys. It reads every
// image as a high-confidence empty receipt, which the pipeline then rejects
// for a missing amount.
type NoopExtractor struct{}

func NewNoopExtractor() *NoopExtractor { return &NoopExtractor{} }

func (NoopExtractor) Name() string { return "noop" }

func (NoopExtractor) Extract(ctx context.Context, image []byte, mimeType string) (*adapter.ExtractedFields, adapter.ExtractionUsage, error) {
	return &adapter.ExtractedFields{
		LooksLikePaymentUI: true,
		Confidence:         100,
	}, adapter.ExtractionUsage{}, nil
}
