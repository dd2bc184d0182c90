package domain

import (
	"strings"
	"time"
)

// Role identifica el tipo de cuenta dentro de la plataforma.
type Role string

const (
	RoleCitizen   Role = "CITIZEN"
	RoleVolunteer Role = "VOLUNTEER"
	RoleAdmin     Role = "ADMIN"
)

// ParseRole normaliza un rol recibido desde el exterior.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToUpper(strings.TrimSpace(raw))) {
	case RoleCitizen:
		return RoleCitizen, true
	case RoleVolunteer:
		return RoleVolunteer, true
	case RoleAdmin:
		return RoleAdmin, true
	default:
		return "", false
	}
}

// Account es el agregado central del ciclo de vida de autenticacion.
// Los tokens y codigos se guardan como digests, nunca en claro.
type Account struct {
	ID                     string     `json:"id"`
	Name                   string     `json:"name"`
	Email                  string     `json:"email"`
	Phone                  string     `json:"phone"`
	PasswordHash           string     `json:"-"`
	Role                   Role       `json:"role"`
	EmailVerified          bool       `json:"email_verified"`
	EmailVerificationToken string     `json:"-"`
	AccountLocked          bool       `json:"account_locked"`
	FailedLoginAttempts    int        `json:"failed_login_attempts"`
	TwoFactorEnabled       bool       `json:"two_factor_enabled"`
	TwoFactorBackupCodes   []string   `json:"-"`
	OTPCodeHash            string     `json:"-"`
	OTPExpiresAt           *time.Time `json:"-"`
	PasswordResetToken     string     `json:"-"`
	PasswordResetExpiresAt *time.Time `json:"-"`
	LastLoginAt            *time.Time `json:"last_login_at,omitempty"`
	TokenVersion           int        `json:"-"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// HasPendingOTP indica si hay un codigo de login en vuelo.
func (a Account) HasPendingOTP() bool {
	return a.OTPCodeHash != "" && a.OTPExpiresAt != nil
}

// ClearOTP borra el codigo y su expiracion juntos.
func (a *Account) ClearOTP() {
	a.OTPCodeHash = ""
	a.OTPExpiresAt = nil
}

// ClearPasswordReset borra el token de reset y su expiracion juntos.
func (a *Account) ClearPasswordReset() {
	a.PasswordResetToken = ""
	a.PasswordResetExpiresAt = nil
}

// Unlock levanta el bloqueo y reinicia el contador de fallos.
func (a *Account) Unlock() {
	a.AccountLocked = false
	a.FailedLoginAttempts = 0
}

// RevokeSessions sube TokenVersion, que viaja en cada refresh token;
// los emitidos con la version anterior dejan de renovarse.
func (a *Account) RevokeSessions() {
	a.TokenVersion++
}

// MarkEmailVerified marca el email como verificado y consume el token.
func (a *Account) MarkEmailVerified() {
	a.EmailVerified = true
	a.EmailVerificationToken = ""
}

// Clone devuelve una copia que no comparte slices ni punteros.
func (a Account) Clone() Account {
	out := a
	if a.TwoFactorBackupCodes != nil {
		out.TwoFactorBackupCodes = append([]string(nil), a.TwoFactorBackupCodes...)
	}
	out.OTPExpiresAt = copyTime(a.OTPExpiresAt)
	out.PasswordResetExpiresAt = copyTime(a.PasswordResetExpiresAt)
	out.LastLoginAt = copyTime(a.LastLoginAt)
	return out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
