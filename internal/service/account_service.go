package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"community-aid/internal/domain"
	"community-aid/internal/email"
	"community-aid/internal/events"
	"community-aid/internal/metrics"
	"community-aid/internal/repository"
)

const (
	defaultLockoutThreshold = 5
	defaultOTPTTL           = 5 * time.Minute
	defaultResetTokenTTL    = time.Hour
)

// TokenIssuer emite, rota y revoca los pares de tokens de una sesion.
type TokenIssuer interface {
	GeneratePair(account domain.Account) (TokenPair, error)
	ParseRefreshToken(refreshToken string) (Claims, error)
	RotatePair(claims Claims, account domain.Account) (TokenPair, error)
	RevokeRefresh(refreshToken string) error
}

// AccountServiceOptions agrupa dependencias opcionales y limites.
// Los valores cero toman los defaults.
type AccountServiceOptions struct {
	Hasher           PasswordHasher
	Limiter          RateLimiter
	Events           events.Publisher
	Metrics          *metrics.Recorder
	LockoutThreshold int
	OTPTTL           time.Duration
	ResetTokenTTL    time.Duration
	AppBaseURL       string
	Now              func() time.Time
}

// AccountService coordina todas las transiciones del ciclo de vida de una cuenta.
type AccountService struct {
	logger      *zap.Logger
	accounts    repository.AccountRepository
	tokens      TokenIssuer
	emailSender email.Sender
	hasher      PasswordHasher
	limiter     RateLimiter
	events      events.Publisher
	metrics     *metrics.Recorder

	lockoutThreshold int
	otpTTL           time.Duration
	resetTokenTTL    time.Duration
	appBaseURL       string
	now              func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewAccountService(
	logger *zap.Logger,
	accounts repository.AccountRepository,
	tokens TokenIssuer,
	emailSender email.Sender,
	opts AccountServiceOptions,
) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if emailSender == nil {
		emailSender = email.NewDisabledSender("email sender not configured")
	}
	if opts.Hasher == nil {
		opts.Hasher = NewBcryptHasher(0)
	}
	if opts.OTPTTL <= 0 {
		opts.OTPTTL = defaultOTPTTL
	}
	if opts.ResetTokenTTL <= 0 {
		opts.ResetTokenTTL = defaultResetTokenTTL
	}
	if opts.LockoutThreshold <= 0 {
		opts.LockoutThreshold = defaultLockoutThreshold
	}
	if opts.Limiter == nil {
		opts.Limiter = NewMemoryRateLimiter(opts.OTPTTL, 3)
	}
	if opts.Events == nil {
		opts.Events = events.NewNopPublisher()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &AccountService{
		logger:           logger,
		accounts:         accounts,
		tokens:           tokens,
		emailSender:      emailSender,
		hasher:           opts.Hasher,
		limiter:          opts.Limiter,
		events:           opts.Events,
		metrics:          opts.Metrics,
		lockoutThreshold: opts.LockoutThreshold,
		otpTTL:           opts.OTPTTL,
		resetTokenTTL:    opts.ResetTokenTTL,
		appBaseURL:       strings.TrimRight(opts.AppBaseURL, "/"),
		now:              opts.Now,
	}
}

type RegisterInput struct {
	Name     string
	Email    string
	Phone    string
	Password string
	Role     string
}

// RegisterResult separa el alta (siempre confirmada) del envio del correo.
type RegisterResult struct {
	Account          domain.Account
	VerificationSent bool
}

// Register crea una cuenta sin verificar y envia el link de verificacion.
// Un fallo del envio no revierte el alta.
func (s *AccountService) Register(ctx context.Context, input RegisterInput) (RegisterResult, error) {
	role := domain.RoleCitizen
	if strings.TrimSpace(input.Role) != "" {
		parsed, ok := domain.ParseRole(input.Role)
		if !ok || parsed == domain.RoleAdmin {
			return RegisterResult{}, ErrInvalidRole
		}
		role = parsed
	}

	token, digest, err := newOpaqueToken()
	if err != nil {
		return RegisterResult{}, err
	}
	account, err := s.createAccount(ctx, input, role, func(a *domain.Account) {
		a.EmailVerificationToken = digest
	})
	if err != nil {
		return RegisterResult{}, err
	}
	s.metrics.Record(ctx, metrics.Registered, string(role))
	s.publish(ctx, events.SubjectAccountRegistered, account, "")

	result := RegisterResult{Account: account}
	if err := s.emailSender.SendVerificationEmail(ctx, account.Email, s.link("/auth/verify-email", token)); err != nil {
		s.notificationFailed(ctx, "verification", account, err)
		return result, nil
	}
	result.VerificationSent = true
	return result, nil
}

// CreateAdmin da de alta una cuenta ADMIN ya verificada, sin enviar correo.
func (s *AccountService) CreateAdmin(ctx context.Context, input RegisterInput) (domain.Account, error) {
	account, err := s.createAccount(ctx, input, domain.RoleAdmin, func(a *domain.Account) {
		a.EmailVerified = true
	})
	if err != nil {
		return domain.Account{}, err
	}
	s.publish(ctx, events.SubjectAccountRegistered, account, "admin bootstrap")
	return account, nil
}

func (s *AccountService) createAccount(ctx context.Context, input RegisterInput, role domain.Role, init func(*domain.Account)) (domain.Account, error) {
	if s.accounts == nil {
		return domain.Account{}, errors.New("account service not configured")
	}

	name := strings.TrimSpace(input.Name)
	emailAddr := normalizeEmail(input.Email)
	phone := normalizePhone(input.Phone)
	if name == "" {
		return domain.Account{}, ErrInvalidName
	}
	if !isValidEmail(emailAddr) {
		return domain.Account{}, ErrInvalidEmail
	}
	if phone == "" {
		return domain.Account{}, ErrInvalidPhone
	}
	if err := validatePassword(input.Password); err != nil {
		return domain.Account{}, err
	}

	if _, err := s.accounts.GetByEmail(ctx, emailAddr); err == nil {
		return domain.Account{}, ErrDuplicateEmail
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Account{}, err
	}
	if _, err := s.accounts.GetByPhone(ctx, phone); err == nil {
		return domain.Account{}, ErrDuplicatePhone
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Account{}, err
	}

	passwordHash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return domain.Account{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	account := domain.Account{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        emailAddr,
		Phone:        phone,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if init != nil {
		init(&account)
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateEmail):
			return domain.Account{}, ErrDuplicateEmail
		case errors.Is(err, repository.ErrDuplicatePhone):
			return domain.Account{}, ErrDuplicatePhone
		default:
			return domain.Account{}, err
		}
	}
	return account, nil
}

// VerifyEmail consume un token de verificacion. Los tokens son de un solo uso.
func (s *AccountService) VerifyEmail(ctx context.Context, token string) (domain.Account, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Account{}, ErrInvalidToken
	}
	account, err := s.accounts.Update(ctx, repository.ByVerificationToken(digestToken(token)), func(a *domain.Account) error {
		a.MarkEmailVerified()
		return nil
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, ErrInvalidToken
		}
		return domain.Account{}, err
	}
	s.metrics.Record(ctx, metrics.EmailVerified, "link")
	s.publish(ctx, events.SubjectAccountVerified, account, "link")
	return account, nil
}

// ResendVerification rota el token de verificacion y lo reenvia.
func (s *AccountService) ResendVerification(ctx context.Context, emailAddr string) error {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return ErrInvalidEmail
	}
	if !s.limiter.Allow("verify:" + emailAddr) {
		return ErrRateLimited
	}
	token, digest, err := newOpaqueToken()
	if err != nil {
		return err
	}

	var outcome error
	account, err := s.accounts.Update(ctx, repository.ByEmail(emailAddr), func(a *domain.Account) error {
		if a.EmailVerified {
			outcome = ErrAlreadyVerified
			return repository.ErrSkipUpdate
		}
		a.EmailVerificationToken = digest
		return nil
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if outcome != nil {
		return outcome
	}

	if err := s.emailSender.SendVerificationEmail(ctx, account.Email, s.link("/auth/verify-email", token)); err != nil {
		s.notificationFailed(ctx, "verification", account, err)
		return ErrNotificationFailed
	}
	return nil
}

// ForgotPassword abre una ventana de reset y envia el link. Si el envio
// falla el token queda guardado y se informa ErrNotificationFailed.
func (s *AccountService) ForgotPassword(ctx context.Context, emailAddr string) error {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return ErrInvalidEmail
	}
	if !s.limiter.Allow("reset:" + emailAddr) {
		return ErrRateLimited
	}
	token, digest, err := newOpaqueToken()
	if err != nil {
		return err
	}
	expiresAt := s.now().Add(s.resetTokenTTL)

	var outcome error
	account, err := s.accounts.Update(ctx, repository.ByEmail(emailAddr), func(a *domain.Account) error {
		if a.AccountLocked {
			outcome = ErrAccountLocked
			return repository.ErrSkipUpdate
		}
		a.PasswordResetToken = digest
		a.PasswordResetExpiresAt = &expiresAt
		return nil
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if outcome != nil {
		return outcome
	}
	s.metrics.Record(ctx, metrics.PasswordResetSent, "")

	if err := s.emailSender.SendPasswordResetEmail(ctx, account.Email, s.link("/auth/reset-password", token), expiresAt); err != nil {
		s.notificationFailed(ctx, "password_reset", account, err)
		return ErrNotificationFailed
	}
	return nil
}

// ResetPassword consume el token de reset, cambia la contraseña,
// desbloquea la cuenta y corta las sesiones abiertas.
func (s *AccountService) ResetPassword(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidToken
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	var outcome error
	account, err := s.accounts.Update(ctx, repository.ByResetToken(digestToken(token)), func(a *domain.Account) error {
		if a.PasswordResetExpiresAt == nil || now.After(*a.PasswordResetExpiresAt) {
			a.ClearPasswordReset()
			outcome = ErrExpiredToken
			return nil
		}
		a.PasswordHash = passwordHash
		a.ClearPasswordReset()
		a.ClearOTP()
		a.Unlock()
		a.RevokeSessions()
		return nil
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrInvalidToken
		}
		return err
	}
	if outcome != nil {
		return outcome
	}
	s.metrics.Record(ctx, metrics.PasswordReset, "")
	s.publish(ctx, events.SubjectPasswordReset, account, "")
	return nil
}

// EnableTwoFactor activa 2FA y devuelve los codigos de respaldo en claro.
// Solo se guardan sus digests, no se pueden recuperar despues.
func (s *AccountService) EnableTwoFactor(ctx context.Context, userID string) ([]string, error) {
	codes, digests, err := generateBackupCodes()
	if err != nil {
		return nil, err
	}
	_, err = s.accounts.Update(ctx, repository.ByID(userID), func(a *domain.Account) error {
		a.TwoFactorEnabled = true
		a.TwoFactorBackupCodes = digests
		return nil
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return codes, nil
}

// DisableTwoFactor desactiva 2FA, descarta los codigos de respaldo y
// cualquier OTP en vuelo.
func (s *AccountService) DisableTwoFactor(ctx context.Context, userID string) error {
	_, err := s.accounts.Update(ctx, repository.ByID(userID), func(a *domain.Account) error {
		a.TwoFactorEnabled = false
		a.TwoFactorBackupCodes = nil
		a.ClearOTP()
		return nil
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// AdminVerifyEmail fuerza la verificacion del email. Solo para rutas de administracion.
func (s *AccountService) AdminVerifyEmail(ctx context.Context, userID string) (domain.Account, error) {
	account, err := s.accounts.Update(ctx, repository.ByID(userID), func(a *domain.Account) error {
		a.MarkEmailVerified()
		return nil
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, ErrNotFound
		}
		return domain.Account{}, err
	}
	s.metrics.Record(ctx, metrics.EmailVerified, "admin")
	s.publish(ctx, events.SubjectAccountVerified, account, "admin")
	return account, nil
}

// AdminUnlock levanta el bloqueo. Solo para rutas de administracion.
func (s *AccountService) AdminUnlock(ctx context.Context, userID string) (domain.Account, error) {
	account, err := s.accounts.Update(ctx, repository.ByID(userID), func(a *domain.Account) error {
		a.Unlock()
		return nil
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, ErrNotFound
		}
		return domain.Account{}, err
	}
	s.publish(ctx, events.SubjectAccountUnlocked, account, "admin")
	return account, nil
}

func (s *AccountService) GetAccount(ctx context.Context, userID string) (domain.Account, error) {
	account, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, ErrNotFound
		}
		return domain.Account{}, err
	}
	return account, nil
}

func (s *AccountService) link(path, token string) string {
	return s.appBaseURL + path + "?token=" + url.QueryEscape(token)
}

func (s *AccountService) publish(ctx context.Context, subject string, account domain.Account, detail string) {
	err := s.events.Publish(ctx, subject, events.AccountEvent{
		AccountID:  account.ID,
		Email:      account.Email,
		Role:       string(account.Role),
		Detail:     detail,
		OccurredAt: s.now(),
	})
	if err != nil {
		s.logger.Warn("publish account event failed", zap.String("subject", subject), zap.Error(err))
	}
}

func (s *AccountService) notificationFailed(ctx context.Context, kind string, account domain.Account, err error) {
	s.logger.Warn("send email failed",
		zap.String("kind", kind),
		zap.String("account_id", account.ID),
		zap.String("email", account.Email),
		zap.Error(err),
	)
	s.metrics.Record(ctx, metrics.NotificationFailed, kind)
	s.publish(ctx, events.SubjectNotificationFailed, account, kind)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizePhone(phone string) string {
	return strings.Join(strings.Fields(phone), "")
}

func isValidEmail(email string) bool {
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
