package vision

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"course-receipt-verification/internal/domain"
	"course-receipt-verification/internal/domain/ports/adapter"
)

var _ adapter.FieldExtractor = (*GeminiExtractor)(nil)

type GeminiExtractor struct {
	client *genai.Client
	model  string
	prompt string
}

func NewGeminiExtractor(ctx context.Context, apiKey, baseURL, model, prompt string) (*GeminiExtractor, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	return &GeminiExtractor{client: c, model: model, prompt: prompt}, nil
}

func (g *GeminiExtractor) Name() string { return "gemini" }

func (g *GeminiExtractor) Extract(ctx context.Context, image []byte, mimeType string) (*adapter.ExtractedFields, adapter.ExtractionUsage, error) {
	contents := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{Text: g.prompt},
			{InlineData: &genai.Blob{MIMEType: mimeType, Data: image}},
		},
	}}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, adapter.ExtractionUsage{}, fmt.Errorf("%w: gemini: %v", domain.ErrExtractionUnavailable, err)
	}

	text := resp.Text()
	if text == "" {
		return nil, adapter.ExtractionUsage{}, fmt.Errorf("%w: gemini: empty response", domain.ErrExtractionUnavailable)
	}

	fields, err := parseFields(text)
	if err != nil {
		return nil, adapter.ExtractionUsage{}, err
	}

	u := adapter.ExtractionUsage{}
	if resp.UsageMetadata != nil {
		u.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		u.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return fields, u, nil
}
