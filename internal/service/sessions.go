package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

var errTokenIssuerMissing = errors.New("token issuer not configured")

// RefreshTokens rota un refresh token contra el estado actual de la cuenta.
// Una cuenta bloqueada no renueva; un token emitido antes del ultimo reset
// de contraseña tampoco.
func (s *AccountService) RefreshTokens(ctx context.Context, refreshToken string) (TokenPair, error) {
	if s.tokens == nil {
		return TokenPair{}, errTokenIssuerMissing
	}
	claims, err := s.tokens.ParseRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, ErrInvalidToken
	}

	account, err := s.accounts.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TokenPair{}, ErrInvalidToken
		}
		return TokenPair{}, fmt.Errorf("load account: %w", err)
	}
	if account.AccountLocked {
		return TokenPair{}, ErrAccountLocked
	}
	if claims.TokenVersion != account.TokenVersion {
		if err := s.tokens.RevokeRefresh(refreshToken); err != nil {
			s.logger.Warn("revoke stale refresh token failed", zap.String("account_id", account.ID), zap.Error(err))
		}
		return TokenPair{}, ErrInvalidToken
	}

	pair, err := s.tokens.RotatePair(claims, account)
	if err != nil {
		return TokenPair{}, fmt.Errorf("rotate tokens: %w", err)
	}
	return pair, nil
}

// Logout revoca el refresh token. Un token ilegible o ya revocado
// devuelve ErrInvalidToken; cualquier otro error viene del store.
func (s *AccountService) Logout(ctx context.Context, refreshToken string) error {
	if s.tokens == nil {
		return errTokenIssuerMissing
	}
	if err := s.tokens.RevokeRefresh(refreshToken); err != nil {
		if errors.Is(err, ErrJWTInvalid) || errors.Is(err, ErrJWTExpired) {
			return ErrInvalidToken
		}
		return fmt.Errorf("revoke refresh: %w", err)
	}
	return nil
}
