package service

import "errors"

var (
	ErrDuplicateEmail      = errors.New("email already registered")
	ErrDuplicatePhone      = errors.New("phone already registered")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrAccountLocked       = errors.New("account locked")
	ErrInvalidOrExpiredOtp = errors.New("invalid or expired otp")
	ErrInvalidBackupCode   = errors.New("invalid backup code")
	ErrInvalidToken        = errors.New("invalid token")
	ErrExpiredToken        = errors.New("expired token")
	ErrAlreadyVerified     = errors.New("email already verified")
	ErrNotFound            = errors.New("account not found")
	ErrNotificationFailed  = errors.New("notification failed")
	ErrInvalidEmail        = errors.New("invalid email")
	ErrInvalidPhone        = errors.New("invalid phone")
	ErrInvalidName         = errors.New("invalid name")
	ErrInvalidRole         = errors.New("invalid role")
	ErrWeakPassword        = errors.New("password must have at least 8 characters, a letter and a digit")
	ErrRateLimited         = errors.New("rate limited")
)
