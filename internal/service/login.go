package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"community-aid/internal/domain"
	"community-aid/internal/events"
	"community-aid/internal/metrics"
	"community-aid/internal/repository"
)

type LoginStatus string

const (
	// LoginOTPRequired: la contraseña es correcta y se envio un OTP por correo.
	LoginOTPRequired LoginStatus = "otp_required"
	LoginCompleted   LoginStatus = "completed"
)

type LoginInput struct {
	Email      string
	Password   string
	OTP        string
	BackupCode string
}

type LoginResult struct {
	Status       LoginStatus
	Account      domain.Account
	Tokens       TokenPair
	OTPExpiresAt *time.Time
}

// Login ejecuta las dos fases del login: contraseña y luego OTP (o codigo de
// respaldo si la cuenta tiene 2FA activado). Todas las cuentas pasan por el OTP.
func (s *AccountService) Login(ctx context.Context, input LoginInput) (LoginResult, error) {
	if s.accounts == nil {
		return LoginResult{}, errors.New("account service not configured")
	}

	emailAddr := normalizeEmail(input.Email)
	if emailAddr == "" || input.Password == "" {
		return LoginResult{}, ErrInvalidCredentials
	}

	account, err := s.accounts.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.burnPasswordCompare(input.Password)
			s.metrics.Record(ctx, metrics.LoginFailed, "unknown_email")
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	if account.AccountLocked {
		s.metrics.Record(ctx, metrics.LoginFailed, "locked")
		return LoginResult{}, ErrAccountLocked
	}

	ok, err := s.hasher.Compare(account.PasswordHash, input.Password)
	if err != nil {
		return LoginResult{}, fmt.Errorf("compare password: %w", err)
	}
	if !ok {
		return LoginResult{}, s.recordPasswordMismatch(ctx, account.ID)
	}

	switch {
	case strings.TrimSpace(input.BackupCode) != "":
		return s.completeWithBackupCode(ctx, account.ID, input.BackupCode)
	case strings.TrimSpace(input.OTP) != "":
		return s.completeWithOTP(ctx, account.ID, strings.TrimSpace(input.OTP))
	default:
		return s.issueLoginOTP(ctx, account)
	}
}

// recordPasswordMismatch incrementa el contador bajo el lock de la fila y
// bloquea la cuenta al alcanzar el umbral. El bloqueo se publica una sola vez.
func (s *AccountService) recordPasswordMismatch(ctx context.Context, accountID string) error {
	outcome := ErrInvalidCredentials
	lockedNow := false
	account, err := s.accounts.Update(ctx, repository.ByID(accountID), func(a *domain.Account) error {
		if a.AccountLocked {
			outcome = ErrAccountLocked
			return repository.ErrSkipUpdate
		}
		a.FailedLoginAttempts++
		if a.FailedLoginAttempts >= s.lockoutThreshold {
			a.AccountLocked = true
			lockedNow = true
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.Record(ctx, metrics.LoginFailed, "password")
	if lockedNow {
		s.logger.Warn("account locked after failed logins",
			zap.String("account_id", account.ID),
			zap.Int("failed_attempts", account.FailedLoginAttempts),
		)
		s.metrics.Record(ctx, metrics.AccountLocked, "")
		s.publish(ctx, events.SubjectAccountLocked, account, "failed_login_threshold")
	}
	return outcome
}

func (s *AccountService) issueLoginOTP(ctx context.Context, current domain.Account) (LoginResult, error) {
	allowed := s.limiter.Allow("login-otp:" + current.Email)

	code, hash, err := generateOTP()
	if err != nil {
		return LoginResult{}, err
	}
	expiresAt := s.now().Add(s.otpTTL)

	var outcome error
	account, err := s.accounts.Update(ctx, repository.ByID(current.ID), func(a *domain.Account) error {
		if a.AccountLocked {
			outcome = ErrAccountLocked
			return repository.ErrSkipUpdate
		}
		a.FailedLoginAttempts = 0
		if allowed {
			a.OTPCodeHash = hash
			a.OTPExpiresAt = &expiresAt
		}
		return nil
	})
	if err != nil {
		return LoginResult{}, err
	}
	if outcome != nil {
		return LoginResult{}, outcome
	}
	if !allowed {
		return LoginResult{}, ErrRateLimited
	}

	if err := s.emailSender.SendLoginOTP(ctx, account.Email, code, expiresAt); err != nil {
		s.notificationFailed(ctx, "login_otp", account, err)
		return LoginResult{}, ErrNotificationFailed
	}
	s.metrics.Record(ctx, metrics.LoginOTPIssued, "")
	return LoginResult{Status: LoginOTPRequired, Account: account, OTPExpiresAt: &expiresAt}, nil
}

// completeWithOTP consume el OTP guardado. El codigo se borra siempre, sea
// correcto, incorrecto o vencido.
func (s *AccountService) completeWithOTP(ctx context.Context, accountID, code string) (LoginResult, error) {
	now := s.now()
	var outcome error
	verifiedNow := false
	account, err := s.accounts.Update(ctx, repository.ByID(accountID), func(a *domain.Account) error {
		if a.AccountLocked {
			outcome = ErrAccountLocked
			return repository.ErrSkipUpdate
		}
		a.FailedLoginAttempts = 0
		if !a.HasPendingOTP() {
			outcome = ErrInvalidOrExpiredOtp
			return nil
		}
		valid := !now.After(*a.OTPExpiresAt) && verifyOTP(code, a.OTPCodeHash)
		a.ClearOTP()
		if !valid {
			outcome = ErrInvalidOrExpiredOtp
			return nil
		}
		if !a.EmailVerified {
			a.MarkEmailVerified()
			verifiedNow = true
		}
		a.LastLoginAt = &now
		return nil
	})
	if err != nil {
		return LoginResult{}, err
	}
	if outcome != nil {
		if errors.Is(outcome, ErrInvalidOrExpiredOtp) {
			s.metrics.Record(ctx, metrics.OTPRejected, "")
		}
		return LoginResult{}, outcome
	}
	if verifiedNow {
		s.metrics.Record(ctx, metrics.EmailVerified, "otp")
		s.publish(ctx, events.SubjectAccountVerified, account, "otp")
	}
	return s.finishLogin(ctx, account, "otp")
}

// completeWithBackupCode sustituye el OTP por un codigo de respaldo de un
// solo uso. Solo aplica a cuentas con 2FA activado.
func (s *AccountService) completeWithBackupCode(ctx context.Context, accountID, code string) (LoginResult, error) {
	now := s.now()
	var outcome error
	account, err := s.accounts.Update(ctx, repository.ByID(accountID), func(a *domain.Account) error {
		if a.AccountLocked {
			outcome = ErrAccountLocked
			return repository.ErrSkipUpdate
		}
		a.FailedLoginAttempts = 0
		idx := -1
		if a.TwoFactorEnabled {
			idx = matchBackupCode(a.TwoFactorBackupCodes, code)
		}
		if idx < 0 {
			outcome = ErrInvalidBackupCode
			return nil
		}
		remaining := make([]string, 0, len(a.TwoFactorBackupCodes)-1)
		remaining = append(remaining, a.TwoFactorBackupCodes[:idx]...)
		a.TwoFactorBackupCodes = append(remaining, a.TwoFactorBackupCodes[idx+1:]...)
		a.ClearOTP()
		a.LastLoginAt = &now
		return nil
	})
	if err != nil {
		return LoginResult{}, err
	}
	if outcome != nil {
		return LoginResult{}, outcome
	}
	s.metrics.Record(ctx, metrics.BackupCodeUsed, "")
	s.logger.Info("login completed with backup code",
		zap.String("account_id", account.ID),
		zap.Int("backup_codes_left", len(account.TwoFactorBackupCodes)),
	)
	return s.finishLogin(ctx, account, "backup_code")
}

func (s *AccountService) finishLogin(ctx context.Context, account domain.Account, method string) (LoginResult, error) {
	if s.tokens == nil {
		return LoginResult{}, errTokenIssuerMissing
	}
	tokens, err := s.tokens.GeneratePair(account)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue tokens: %w", err)
	}
	s.metrics.Record(ctx, metrics.LoginCompleted, method)
	s.publish(ctx, events.SubjectLoginCompleted, account, method)
	return LoginResult{Status: LoginCompleted, Account: account, Tokens: tokens}, nil
}

// burnPasswordCompare iguala el tiempo de respuesta cuando el email no existe.
func (s *AccountService) burnPasswordCompare(password string) {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash("community-aid-timing-guard-0")
		if err == nil {
			s.dummyHash = hash
		}
	})
	if s.dummyHash != "" {
		_, _ = s.hasher.Compare(s.dummyHash, password)
	}
}
