package email

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// LogSender escribe los correos en el log en lugar de enviarlos. Pensado
// para desarrollo local: los links y codigos quedan visibles en consola.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) SendVerificationEmail(_ context.Context, toEmail string, verifyURL string) error {
	s.logger.Info("dev mail: verification", zap.String("to", toEmail), zap.String("verify_url", verifyURL))
	return nil
}

func (s *LogSender) SendPasswordResetEmail(_ context.Context, toEmail string, resetURL string, expiresAt time.Time) error {
	s.logger.Info("dev mail: password reset",
		zap.String("to", toEmail),
		zap.String("reset_url", resetURL),
		zap.Time("expires_at", expiresAt),
	)
	return nil
}

func (s *LogSender) SendLoginOTP(_ context.Context, toEmail string, code string, expiresAt time.Time) error {
	s.logger.Info("dev mail: login otp",
		zap.String("to", toEmail),
		zap.String("code", code),
		zap.Time("expires_at", expiresAt),
	)
	return nil
}
