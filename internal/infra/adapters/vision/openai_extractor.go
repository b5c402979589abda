package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/pkoukk/tiktoken-go"

	"course-receipt-verification/internal/domain"
	"course-receipt-verification/internal/domain/ports/adapter"
)

var _ adapter.FieldExtractor = (*OpenAIExtractor)(nil)

type OpenAIExtractor struct {
	client openai.Client
	model  string
	prompt string
}

func NewOpenAIExtractor(apiKey, baseURL, model, prompt string) (*OpenAIExtractor, error) {
	if apiKey == "" {
		return nil, errors.New("openai: empty api key")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIExtractor{
		client: openai.NewClient(opts...),
		model:  model,
		prompt: prompt,
	}, nil
}

func (o *OpenAIExtractor) Name() string { return "openai" }

func (o *OpenAIExtractor) Extract(ctx context.Context, image []byte, mimeType string) (*adapter.ExtractedFields, adapter.ExtractionUsage, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(o.prompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
			}),
		},
	})
	if err != nil {
		return nil, adapter.ExtractionUsage{}, fmt.Errorf("%w: openai: %v", domain.ErrExtractionUnavailable, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, adapter.ExtractionUsage{}, fmt.Errorf("%w: openai: empty response", domain.ErrExtractionUnavailable)
	}

	fields, err := parseFields(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, adapter.ExtractionUsage{}, err
	}

	u := adapter.ExtractionUsage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
	}
	if u.PromptTokens == 0 {
		u.PromptTokens = o.estimatePromptTokens()
		u.Estimated = true
	}
	return fields, u, nil
}

// estimatePromptTokens counts the text part of the prompt locally for cost
// metrics when the gateway strips the usage block. Image tokens are not
// estimated.
func (o *OpenAIExtractor) estimatePromptTokens() int {
	enc, err := tiktoken.EncodingForModel(o.model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return 0
		}
	}
	return len(enc.Encode(o.prompt, nil, nil))
}
