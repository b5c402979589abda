package vision

import (
	"context"
	"errors"
	"fmt"

	"course-receipt-verification/internal/domain"
	"course-receipt-verification/internal/domain/ports/adapter"
)

var _ adapter.FieldExtractor = (*MultiExtractor)(nil)

// MultiExtractor tries providers in order and returns the first successful
// reading. It only reports unavailable when every provider failed.
type MultiExtractor struct {
	providers []adapter.FieldExtractor
}

func NewMultiExtractor(providers ...adapter.FieldExtractor) *MultiExtractor {
	return &MultiExtractor{providers: providers}
}

func (m *MultiExtractor) Name() string { return "multi" }

func (m *MultiExtractor) Extract(ctx context.Context, image []byte, mimeType string) (*adapter.ExtractedFields, adapter.ExtractionUsage, error) {
	var lastErr error
	for _, p := range m.providers {
		if ctx.Err() != nil {
			break
		}
		fields, usage, err := p.Extract(ctx, image, mimeType)
		if err == nil {
			return fields, usage, nil
		}
		lastErr = err
		if !errors.Is(err, domain.ErrExtractionUnavailable) {
			return nil, adapter.ExtractionUsage{}, err
		}
	}
	if lastErr != nil {
		return nil, adapter.ExtractionUsage{}, lastErr
	}
	return nil, adapter.ExtractionUsage{}, fmt.Errorf("%w: no providers configured", domain.ErrExtractionUnavailable)
}
