package vision

import (
	"context"
	"time"

	"course-receipt-verification/internal/domain/ports/adapter"
	"course-receipt-verification/internal/infra/metrics"
)

var _ adapter.FieldExtractor = (*instrumentedExtractor)(nil)

// instrumentedExtractor records latency and token usage for every call on the
// wrapped provider.
type instrumentedExtractor struct {
	inner adapter.FieldExtractor
}

func NewInstrumented(inner adapter.FieldExtractor) adapter.FieldExtractor {
	return &instrumentedExtractor{inner: inner}
}

func (i *instrumentedExtractor) Name() string { return i.inner.Name() }

func (i *instrumentedExtractor) Extract(ctx context.Context, image []byte, mimeType string) (*adapter.ExtractedFields, adapter.ExtractionUsage, error) {
	start := time.Now()
	fields, usage, err := i.inner.Extract(ctx, image, mimeType)
	latency := int(time.Since(start).Milliseconds())
	metrics.ObserveExtraction(i.inner.Name(), usage.PromptTokens, usage.CompletionTokens, usage.Estimated, latency, err == nil)
	return fields, usage, err
}
