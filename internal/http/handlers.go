package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"community-aid/internal/service"
)

// errorStatus traduce los errores del servicio de cuentas a codigos HTTP.
func errorStatus(err error) (int, bool) {
	switch {
	case errors.Is(err, service.ErrDuplicateEmail),
		errors.Is(err, service.ErrDuplicatePhone),
		errors.Is(err, service.ErrAlreadyVerified):
		return http.StatusConflict, true
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidOrExpiredOtp),
		errors.Is(err, service.ErrInvalidBackupCode):
		return http.StatusUnauthorized, true
	case errors.Is(err, service.ErrAccountLocked):
		return http.StatusLocked, true
	case errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrExpiredToken),
		errors.Is(err, service.ErrWeakPassword),
		errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrInvalidPhone),
		errors.Is(err, service.ErrInvalidName),
		errors.Is(err, service.ErrInvalidRole):
		return http.StatusBadRequest, true
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, service.ErrNotificationFailed):
		return http.StatusServiceUnavailable, true
	case errors.Is(err, service.ErrRateLimited):
		return http.StatusTooManyRequests, true
	default:
		return http.StatusInternalServerError, false
	}
}

func writeServiceError(c *gin.Context, logger *zap.Logger, op string, err error) {
	status, known := errorStatus(err)
	if !known {
		logger.Error(op+" failed", zap.Error(err))
		c.JSON(status, gin.H{"error": "could not " + op})
		return
	}
	if status == http.StatusServiceUnavailable {
		logger.Warn(op+" notification failed", zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// Healthz maneja GET /healthz.
func Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
