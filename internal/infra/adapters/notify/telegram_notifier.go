package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"course-receipt-verification/internal/domain/model"
	"course-receipt-verification/internal/domain/ports/adapter"
	"course-receipt-verification/internal/infra/metrics"
)

var _ adapter.Notifier = (*TelegramNotifier)(nil)

// TelegramNotifier posts operator alerts to a fixed admin chat. It is aimed
// at the review queue, not at submitters, so SubmissionDecided only reports
// terminal verdicts that came out of manual review.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegramNotifier(token string, adminChatID int64) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &TelegramNotifier{bot: bot, chatID: adminChatID}, nil
}

func (t *TelegramNotifier) SubmissionDecided(ctx context.Context, sub *model.PaymentSubmission) error {
	var text string
	switch sub.Status {
	case model.SubmissionStatusApproved:
		text = fmt.Sprintf("✅ Review approved\nSubmission %s\n%s / %s / %s", sub.ID, sub.CustomerPhone, sub.TargetID, sub.Plan)
	case model.SubmissionStatusRejected:
		text = fmt.Sprintf("❌ Rejected\nSubmission %s\n%s / %s / %s\nReason: %s", sub.ID, sub.CustomerPhone, sub.TargetID, sub.Plan, model.RejectReason(sub.Reason).Message())
	default:
		return nil
	}
	return t.send(ctx, text)
}

func (t *TelegramNotifier) ManualReviewQueued(ctx context.Context, sub *model.PaymentSubmission) error {
	text := fmt.Sprintf("🔎 Manual review needed\nSubmission %s\n%s / %s / %s\nDeclared: %d", sub.ID, sub.CustomerPhone, sub.TargetID, sub.Plan, sub.DeclaredAmount)
	return t.send(ctx, text)
}

func (t *TelegramNotifier) send(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(t.chatID, text)
	_, err := t.bot.Send(msg)
	if err != nil {
		metrics.IncNotify("telegram", "error")
		return err
	}
	metrics.IncNotify("telegram", "sent")
	return nil
}
