package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"community-aid/internal/domain"
)

var (
	ErrDuplicateEmail = errors.New("email already registered")
	ErrDuplicatePhone = errors.New("phone already registered")
	// ErrSkipUpdate, devuelto por la funcion de Update, confirma la
	// transaccion sin escribir la fila.
	ErrSkipUpdate = errors.New("skip update")
)

// AccountRepository define el contrato de persistencia para cuentas.
// Las busquedas devuelven pgx.ErrNoRows cuando la cuenta no existe.
type AccountRepository interface {
	Create(ctx context.Context, account domain.Account) error
	GetByID(ctx context.Context, id string) (domain.Account, error)
	GetByEmail(ctx context.Context, email string) (domain.Account, error)
	GetByPhone(ctx context.Context, phone string) (domain.Account, error)
	GetByVerificationToken(ctx context.Context, token string) (domain.Account, error)
	GetByResetToken(ctx context.Context, token string) (domain.Account, error)
	// Update bloquea la fila indicada por lookup, aplica fn y persiste el
	// resultado en una sola transaccion.
	Update(ctx context.Context, lookup Lookup, fn func(*domain.Account) error) (domain.Account, error)
}

// Lookup identifica la fila sobre la que opera Update.
type Lookup struct {
	column string
	value  string
}

func ByID(id string) Lookup {
	return Lookup{column: "id", value: id}
}

func ByEmail(email string) Lookup {
	return Lookup{column: "email", value: email}
}

func ByVerificationToken(token string) Lookup {
	return Lookup{column: "email_verification_token", value: token}
}

func ByResetToken(token string) Lookup {
	return Lookup{column: "password_reset_token", value: token}
}

// PgAccountRepository implementa AccountRepository usando pgxpool.
type PgAccountRepository struct {
	pool *pgxpool.Pool
}

func NewPgAccountRepository(pool *pgxpool.Pool) *PgAccountRepository {
	return &PgAccountRepository{pool: pool}
}

const selectAccount = `
	SELECT id, name, email, phone, password_hash, role,
		email_verified, COALESCE(email_verification_token, ''),
		account_locked, failed_login_attempts,
		two_factor_enabled, COALESCE(two_factor_backup_codes, '{}'),
		COALESCE(otp_code_hash, ''), otp_expires_at,
		COALESCE(password_reset_token, ''), password_reset_expires_at,
		last_login_at, token_version, created_at, updated_at
	FROM accounts
`

func (r *PgAccountRepository) Create(ctx context.Context, a domain.Account) error {
	const query = `
		INSERT INTO accounts (
			id, name, email, phone, password_hash, role,
			email_verified, email_verification_token,
			account_locked, failed_login_attempts,
			two_factor_enabled, two_factor_backup_codes,
			otp_code_hash, otp_expires_at,
			password_reset_token, password_reset_expires_at,
			last_login_at, token_version, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, NULLIF($8, ''),
			$9, $10,
			$11, $12,
			NULLIF($13, ''), $14,
			NULLIF($15, ''), $16,
			$17, $18, $19, $20
		)
	`
	_, err := r.pool.Exec(ctx, query,
		a.ID, a.Name, a.Email, a.Phone, a.PasswordHash, string(a.Role),
		a.EmailVerified, a.EmailVerificationToken,
		a.AccountLocked, a.FailedLoginAttempts,
		a.TwoFactorEnabled, backupCodesParam(a.TwoFactorBackupCodes),
		a.OTPCodeHash, a.OTPExpiresAt,
		a.PasswordResetToken, a.PasswordResetExpiresAt,
		a.LastLoginAt, a.TokenVersion, a.CreatedAt, a.UpdatedAt,
	)
	return mapUniqueViolation(err)
}

func (r *PgAccountRepository) GetByID(ctx context.Context, id string) (domain.Account, error) {
	return r.getBy(ctx, ByID(id))
}

func (r *PgAccountRepository) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	return r.getBy(ctx, ByEmail(email))
}

func (r *PgAccountRepository) GetByPhone(ctx context.Context, phone string) (domain.Account, error) {
	return r.getBy(ctx, Lookup{column: "phone", value: phone})
}

func (r *PgAccountRepository) GetByVerificationToken(ctx context.Context, token string) (domain.Account, error) {
	return r.getBy(ctx, ByVerificationToken(token))
}

func (r *PgAccountRepository) GetByResetToken(ctx context.Context, token string) (domain.Account, error) {
	return r.getBy(ctx, ByResetToken(token))
}

func (r *PgAccountRepository) getBy(ctx context.Context, l Lookup) (domain.Account, error) {
	if l.value == "" {
		return domain.Account{}, pgx.ErrNoRows
	}
	return scanAccount(r.pool.QueryRow(ctx, selectAccount+" WHERE "+l.column+" = $1", l.value))
}

func (r *PgAccountRepository) Update(ctx context.Context, l Lookup, fn func(*domain.Account) error) (domain.Account, error) {
	if l.value == "" {
		return domain.Account{}, pgx.ErrNoRows
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Account{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	account, err := scanAccount(tx.QueryRow(ctx, selectAccount+" WHERE "+l.column+" = $1 FOR UPDATE", l.value))
	if err != nil {
		return domain.Account{}, err
	}

	if err := fn(&account); err != nil {
		if !errors.Is(err, ErrSkipUpdate) {
			return domain.Account{}, err
		}
		if err := tx.Commit(ctx); err != nil {
			return domain.Account{}, fmt.Errorf("commit: %w", err)
		}
		return account, nil
	}

	account.UpdatedAt = time.Now().UTC()
	const query = `
		UPDATE accounts SET
			name = $2,
			password_hash = $3,
			email_verified = $4,
			email_verification_token = NULLIF($5, ''),
			account_locked = $6,
			failed_login_attempts = $7,
			two_factor_enabled = $8,
			two_factor_backup_codes = $9,
			otp_code_hash = NULLIF($10, ''),
			otp_expires_at = $11,
			password_reset_token = NULLIF($12, ''),
			password_reset_expires_at = $13,
			last_login_at = $14,
			token_version = $15,
			updated_at = $16
		WHERE id = $1
	`
	_, err = tx.Exec(ctx, query,
		account.ID,
		account.Name,
		account.PasswordHash,
		account.EmailVerified,
		account.EmailVerificationToken,
		account.AccountLocked,
		account.FailedLoginAttempts,
		account.TwoFactorEnabled,
		backupCodesParam(account.TwoFactorBackupCodes),
		account.OTPCodeHash,
		account.OTPExpiresAt,
		account.PasswordResetToken,
		account.PasswordResetExpiresAt,
		account.LastLoginAt,
		account.TokenVersion,
		account.UpdatedAt,
	)
	if err != nil {
		return domain.Account{}, mapUniqueViolation(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Account{}, fmt.Errorf("commit: %w", err)
	}
	return account, nil
}

func scanAccount(row pgx.Row) (domain.Account, error) {
	var (
		a    domain.Account
		role string
	)
	err := row.Scan(
		&a.ID,
		&a.Name,
		&a.Email,
		&a.Phone,
		&a.PasswordHash,
		&role,
		&a.EmailVerified,
		&a.EmailVerificationToken,
		&a.AccountLocked,
		&a.FailedLoginAttempts,
		&a.TwoFactorEnabled,
		&a.TwoFactorBackupCodes,
		&a.OTPCodeHash,
		&a.OTPExpiresAt,
		&a.PasswordResetToken,
		&a.PasswordResetExpiresAt,
		&a.LastLoginAt,
		&a.TokenVersion,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return domain.Account{}, err
	}
	a.Role = domain.Role(role)
	return a, nil
}

func backupCodesParam(codes []string) []string {
	if codes == nil {
		return []string{}
	}
	return codes
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return err
	}
	switch pgErr.ConstraintName {
	case "accounts_email_key":
		return ErrDuplicateEmail
	case "accounts_phone_key":
		return ErrDuplicatePhone
	default:
		return err
	}
}
