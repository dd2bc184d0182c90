package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"community-aid/internal/service"
)

// AuthHandler mantiene dependencias para los endpoints de /auth.
type AuthHandler struct {
	logger      *zap.Logger
	accountServ *service.AccountService
}

// NewAuthHandler crea una instancia de AuthHandler con dependencias necesarias.
func NewAuthHandler(logger *zap.Logger, accountServ *service.AccountService) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{
		logger:      logger,
		accountServ: accountServ,
	}
}

// Register maneja POST /auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Name     string `json:"name" binding:"required"`
		Email    string `json:"email" binding:"required,email"`
		Phone    string `json:"phone" binding:"required,phone"`
		Password string `json:"password" binding:"required"`
		Role     string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid register request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	res, err := h.accountServ.Register(c.Request.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		writeServiceError(c, h.logger, "register", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"account":           res.Account,
		"verification_sent": res.VerificationSent,
	})
}

// Login maneja POST /auth/login. Sin otp ni backup_code responde 202 y
// envia el codigo por correo.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email      string `json:"email" binding:"required,email"`
		Password   string `json:"password" binding:"required"`
		OTP        string `json:"otp"`
		BackupCode string `json:"backup_code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid login request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	res, err := h.accountServ.Login(c.Request.Context(), service.LoginInput{
		Email:      req.Email,
		Password:   req.Password,
		OTP:        req.OTP,
		BackupCode: req.BackupCode,
	})
	if err != nil {
		writeServiceError(c, h.logger, "login", err)
		return
	}

	if res.Status == service.LoginOTPRequired {
		c.JSON(http.StatusAccepted, gin.H{
			"status":         res.Status,
			"otp_expires_at": res.OTPExpiresAt,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  res.Status,
		"account": res.Account,
		"tokens":  res.Tokens,
	})
}

// VerifyEmail maneja POST /auth/verify-email.
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid verify email request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	h.verifyEmail(c, req.Token)
}

// VerifyEmailLink maneja GET /auth/verify-email?token=, el link del correo.
func (h *AuthHandler) VerifyEmailLink(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	h.verifyEmail(c, token)
}

func (h *AuthHandler) verifyEmail(c *gin.Context, token string) {
	account, err := h.accountServ.VerifyEmail(c.Request.Context(), token)
	if err != nil {
		writeServiceError(c, h.logger, "verify email", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": account})
}

// ResendVerification maneja POST /auth/resend-verification.
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid resend verification request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if err := h.accountServ.ResendVerification(c.Request.Context(), req.Email); err != nil {
		writeServiceError(c, h.logger, "resend verification", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "verification_sent"})
}

// ForgotPassword maneja POST /auth/forgot-password.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid forgot password request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if err := h.accountServ.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		writeServiceError(c, h.logger, "forgot password", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reset_sent"})
}

// ResetPassword maneja POST /auth/reset-password.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req struct {
		Token    string `json:"token" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid reset password request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if err := h.accountServ.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		writeServiceError(c, h.logger, "reset password", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "password_reset"})
}

// RefreshToken maneja POST /auth/refresh.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid refresh request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	tokens, err := h.accountServ.RefreshTokens(c.Request.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, service.ErrInvalidToken) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		writeServiceError(c, h.logger, "refresh tokens", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": tokens})
}

// Logout maneja POST /auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid logout request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if err := h.accountServ.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		// Un token invalido no deja nada que revocar; el fallo del store si.
		if !errors.Is(err, service.ErrInvalidToken) {
			h.logger.Warn("logout revoke failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not logout"})
			return
		}
		h.logger.Debug("logout with invalid refresh token", zap.Error(err))
	}
	c.Status(http.StatusNoContent)
}

// Me maneja GET /auth/me.
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	account, err := h.accountServ.GetAccount(c.Request.Context(), claims.UserID)
	if err != nil {
		writeServiceError(c, h.logger, "get account", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": account})
}

// EnableTwoFactor maneja POST /auth/2fa/enable. Los codigos se muestran una sola vez.
func (h *AuthHandler) EnableTwoFactor(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	codes, err := h.accountServ.EnableTwoFactor(c.Request.Context(), claims.UserID)
	if err != nil {
		writeServiceError(c, h.logger, "enable 2fa", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"backup_codes": codes})
}

// DisableTwoFactor maneja POST /auth/2fa/disable.
func (h *AuthHandler) DisableTwoFactor(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	if err := h.accountServ.DisableTwoFactor(c.Request.Context(), claims.UserID); err != nil {
		writeServiceError(c, h.logger, "disable 2fa", err)
		return
	}
	c.Status(http.StatusNoContent)
}
