package email

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mailersend/mailersend-go"
)

// MailerSendSender envia correos a traves de la API de MailerSend.
type MailerSendSender struct {
	client *mailersend.Mailersend
	from   mailersend.From
}

func NewMailerSendSender(apiKey, fromEmail, fromName string) (*MailerSendSender, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("mailersend api key is required")
	}
	if strings.TrimSpace(fromEmail) == "" {
		return nil, fmt.Errorf("mailersend from is required")
	}
	return &MailerSendSender{
		client: mailersend.NewMailersend(apiKey),
		from:   mailersend.From{Name: fromName, Email: fromEmail},
	}, nil
}

func (s *MailerSendSender) SendVerificationEmail(ctx context.Context, toEmail string, verifyURL string) error {
	return s.send(ctx, toEmail, verificationMessage(verifyURL))
}

func (s *MailerSendSender) SendPasswordResetEmail(ctx context.Context, toEmail string, resetURL string, expiresAt time.Time) error {
	return s.send(ctx, toEmail, passwordResetMessage(resetURL, expiresAt))
}

func (s *MailerSendSender) SendLoginOTP(ctx context.Context, toEmail string, code string, expiresAt time.Time) error {
	return s.send(ctx, toEmail, loginOTPMessage(code, expiresAt))
}

func (s *MailerSendSender) send(ctx context.Context, toEmail string, m message) error {
	if strings.TrimSpace(toEmail) == "" {
		return fmt.Errorf("to email is required")
	}
	msg := s.client.Email.NewMessage()
	msg.SetFrom(s.from)
	msg.SetRecipients([]mailersend.Recipient{{Email: toEmail}})
	msg.SetSubject(m.Subject)
	msg.SetText(m.Text)
	msg.SetHTML(m.HTML)

	_, err := s.client.Email.Send(ctx, msg)
	return err
}
