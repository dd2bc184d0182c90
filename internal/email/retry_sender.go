package email

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// retrySender reintenta un numero acotado de veces, cada intento con su
// propio timeout.
type retrySender struct {
	next     Sender
	attempts int
	timeout  time.Duration
	backoff  time.Duration
	logger   *zap.Logger
}

// NewRetryingSender envuelve next con reintentos acotados.
func NewRetryingSender(next Sender, attempts int, timeout time.Duration, logger *zap.Logger) Sender {
	if attempts <= 0 {
		attempts = 1
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &retrySender{
		next:     next,
		attempts: attempts,
		timeout:  timeout,
		backoff:  250 * time.Millisecond,
		logger:   logger,
	}
}

func (s *retrySender) SendVerificationEmail(ctx context.Context, toEmail string, verifyURL string) error {
	return s.do(ctx, "verification", func(ctx context.Context) error {
		return s.next.SendVerificationEmail(ctx, toEmail, verifyURL)
	})
}

func (s *retrySender) SendPasswordResetEmail(ctx context.Context, toEmail string, resetURL string, expiresAt time.Time) error {
	return s.do(ctx, "password_reset", func(ctx context.Context) error {
		return s.next.SendPasswordResetEmail(ctx, toEmail, resetURL, expiresAt)
	})
}

func (s *retrySender) SendLoginOTP(ctx context.Context, toEmail string, code string, expiresAt time.Time) error {
	return s.do(ctx, "login_otp", func(ctx context.Context) error {
		return s.next.SendLoginOTP(ctx, toEmail, code, expiresAt)
	})
}

func (s *retrySender) do(ctx context.Context, kind string, send func(context.Context) error) error {
	var err error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, s.timeout)
		err = send(attemptCtx)
		cancel()
		if err == nil {
			return nil
		}
		s.logger.Warn("email send attempt failed",
			zap.String("kind", kind),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt == s.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.backoff * time.Duration(attempt)):
		}
	}
	return err
}
