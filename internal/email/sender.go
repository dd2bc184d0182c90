package email

import (
	"context"
	"errors"
	"time"
)

// Sender define la interfaz para los correos del ciclo de vida de la cuenta.
type Sender interface {
	SendVerificationEmail(ctx context.Context, toEmail string, verifyURL string) error
	SendPasswordResetEmail(ctx context.Context, toEmail string, resetURL string, expiresAt time.Time) error
	SendLoginOTP(ctx context.Context, toEmail string, code string, expiresAt time.Time) error
}

type disabledSender struct {
	reason string
}

func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) err() error {
	if s.reason == "" {
		return errors.New("email sender disabled")
	}
	return errors.New(s.reason)
}

func (s *disabledSender) SendVerificationEmail(_ context.Context, _ string, _ string) error {
	return s.err()
}

func (s *disabledSender) SendPasswordResetEmail(_ context.Context, _ string, _ string, _ time.Time) error {
	return s.err()
}

func (s *disabledSender) SendLoginOTP(_ context.Context, _ string, _ string, _ time.Time) error {
	return s.err()
}
