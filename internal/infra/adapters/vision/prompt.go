package vision

import (
	"encoding/json"
	"fmt"
	"strings"

	"course-receipt-verification/internal/domain"
	"course-receipt-verification/internal/domain/ports/adapter"
)

// extractionPrompt asks the model for a fixed JSON shape. Every provider
// shares it so their outputs parse through the same wire struct.
const extractionPrompt = `You are reading a photo that a customer claims is a bank or wallet payment receipt.
Return ONLY a JSON object, no prose, with exactly these keys:
{
  "looks_like_payment_ui": bool,   // true if the image shows a payment/transfer confirmation screen
  "looks_like_human_photo": bool,  // true if the image is mainly a person, selfie or unrelated photo
  "has_visible_amount": bool,
  "has_visible_reference": bool,
  "confidence": int,               // 0-100, your overall confidence in the reading
  "amount_text": string|null,      // amount exactly as printed, e.g. "1,250.00"
  "date_text": string|null,        // transaction date exactly as printed
  "time_text": string|null,        // transaction time exactly as printed
  "reference_text": string|null,   // transaction/reference/trace number exactly as printed
  "recipient_name": string|null,
  "recipient_is_valid_payee": bool,// true if the recipient matches one of: %s
  "sender_name": string|null,
  "sender_phone": string|null
}
Use null for anything you cannot read. Do not guess digits.`

// BuildPrompt renders the extraction prompt with the deployment's payee
// descriptor baked in.
func BuildPrompt(payeeNames []string, payeePhone string) string {
	payees := strings.Join(payeeNames, ", ")
	if payeePhone != "" {
		payees += " or phone " + payeePhone
	}
	return fmt.Sprintf(extractionPrompt, payees)
}

type wireFields struct {
	LooksLikePaymentUI    bool    `json:"looks_like_payment_ui"`
	LooksLikeHumanPhoto   bool    `json:"looks_like_human_photo"`
	HasVisibleAmount      bool    `json:"has_visible_amount"`
	HasVisibleReference   bool    `json:"has_visible_reference"`
	Confidence            int     `json:"confidence"`
	AmountText            *string `json:"amount_text"`
	DateText              *string `json:"date_text"`
	TimeText              *string `json:"time_text"`
	ReferenceText         *string `json:"reference_text"`
	RecipientName         *string `json:"recipient_name"`
	RecipientIsValidPayee bool    `json:"recipient_is_valid_payee"`
	SenderName            *string `json:"sender_name"`
	SenderPhone           *string `json:"sender_phone"`
}

// parseFields tolerates markdown fences and leading prose around the JSON
// object; anything beyond that fails the extraction as a whole.
func parseFields(raw string) (*adapter.ExtractedFields, error) {
	s := strings.TrimSpace(raw)
	if i := strings.Index(s, "{"); i > 0 {
		s = s[i:]
	}
	if i := strings.LastIndex(s, "}"); i >= 0 {
		s = s[:i+1]
	}
	var w wireFields
	if err := json.Unmarshal([]byte(s), &w); err != nil {
		return nil, fmt.Errorf("%w: unparsable extraction response", domain.ErrExtractionUnavailable)
	}
	if w.Confidence < 0 {
		w.Confidence = 0
	}
	if w.Confidence > 100 {
		w.Confidence = 100
	}
	return &adapter.ExtractedFields{
		LooksLikePaymentUI:    w.LooksLikePaymentUI,
		LooksLikeHumanPhoto:   w.LooksLikeHumanPhoto,
		HasVisibleAmount:      w.HasVisibleAmount,
		HasVisibleReference:   w.HasVisibleReference,
		Confidence:            w.Confidence,
		AmountText:            blankToNil(w.AmountText),
		DateText:              blankToNil(w.DateText),
		TimeText:              blankToNil(w.TimeText),
		ReferenceText:         blankToNil(w.ReferenceText),
		RecipientName:         blankToNil(w.RecipientName),
		RecipientIsValidPayee: w.RecipientIsValidPayee,
		SenderName:            blankToNil(w.SenderName),
		SenderPhoneText:       blankToNil(w.SenderPhone),
	}, nil
}

func blankToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}
