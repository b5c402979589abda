package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"course-receipt-verification/internal/domain/model"
	"course-receipt-verification/internal/domain/ports/adapter"
	"course-receipt-verification/internal/infra/metrics"
)

var _ adapter.Notifier = (*EmailNotifier)(nil)

// EmailNotifier mails the submitter about decisions on their submission.
// Submissions without an email address are skipped silently.
type EmailNotifier struct {
	host     string
	port     int
	from     string
	username string
	password string
}

func NewEmailNotifier(host string, port int, from, username, password string) *EmailNotifier {
	return &EmailNotifier{host: host, port: port, from: from, username: username, password: password}
}

func (e *EmailNotifier) SubmissionDecided(ctx context.Context, sub *model.PaymentSubmission) error {
	if sub.CustomerEmail == "" {
		return nil
	}
	var subject, body string
	switch {
	case sub.Status.Granted():
		subject = "Payment confirmed"
		body = fmt.Sprintf("Hi %s,\n\nYour payment for %s (%s plan) was verified and your access is active.\n", sub.CustomerName, sub.TargetID, sub.Plan)
	case sub.Status == model.SubmissionStatusRejected:
		subject = "Payment could not be verified"
		body = fmt.Sprintf("Hi %s,\n\nWe could not verify your payment for %s.\n%s\n", sub.CustomerName, sub.TargetID, model.RejectReason(sub.Reason).Message())
	default:
		return nil
	}
	return e.send(ctx, sub.CustomerEmail, subject, body)
}

func (e *EmailNotifier) ManualReviewQueued(ctx context.Context, sub *model.PaymentSubmission) error {
	if sub.CustomerEmail == "" {
		return nil
	}
	body := fmt.Sprintf("Hi %s,\n\nYour payment for %s is being checked by our team. We will get back to you shortly.\n", sub.CustomerName, sub.TargetID)
	return e.send(ctx, sub.CustomerEmail, "Payment under review", body)
}

func (e *EmailNotifier) send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := strings.Join([]string{
		"From: " + e.from,
		"To: " + to,
		"Subject: " + subject,
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", e.host, e.port)
	var auth smtp.Auth
	if e.username != "" {
		auth = smtp.PlainAuth("", e.username, e.password, e.host)
	}
	if err := smtp.SendMail(addr, auth, e.from, []string{to}, []byte(msg)); err != nil {
		metrics.IncNotify("email", "error")
		return err
	}
	metrics.IncNotify("email", "sent")
	return nil
}
