package reminder

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
)

const defaultReminderSubject = "You left something behind"

// ResendEmailDriver delivers reminders as transactional email via Resend.
type ResendEmailDriver struct {
	client    *resend.Client
	fromEmail string
	subject   string
}

func NewResendEmailDriver(apiKey, fromEmail string) *ResendEmailDriver {
	if fromEmail == "" {
		fromEmail = "onboarding@resend.dev"
	}
	return &ResendEmailDriver{
		client:    resend.NewClient(apiKey),
		fromEmail: fromEmail,
		subject:   defaultReminderSubject,
	}
}

func (d *ResendEmailDriver) Channel() Channel {
	return Email
}

func (d *ResendEmailDriver) Send(ctx context.Context, to, body string) (string, error) {
	if to == "" {
		return "", &DeliveryError{Channel: Email, Err: ErrNoDestination}
	}

	params := &resend.SendEmailRequest{
		From:    d.fromEmail,
		To:      []string{to},
		Subject: d.subject,
		Text:    body,
	}

	sent, err := d.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return "", &DeliveryError{Channel: Email, Err: fmt.Errorf("resend: %w", err)}
	}
	return sent.Id, nil
}
