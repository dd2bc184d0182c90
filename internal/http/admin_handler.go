package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"community-aid/internal/service"
)

// AdminHandler expone las operaciones de soporte sobre cuentas.
type AdminHandler struct {
	logger      *zap.Logger
	accountServ *service.AccountService
}

func NewAdminHandler(logger *zap.Logger, accountServ *service.AccountService) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{logger: logger, accountServ: accountServ}
}

// VerifyEmail maneja POST /admin/accounts/:id/verify-email.
func (h *AdminHandler) VerifyEmail(c *gin.Context) {
	account, err := h.accountServ.AdminVerifyEmail(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeServiceError(c, h.logger, "admin verify email", err)
		return
	}
	h.audit(c, "admin verified email", account.ID)
	c.JSON(http.StatusOK, gin.H{"account": account})
}

// Unlock maneja POST /admin/accounts/:id/unlock.
func (h *AdminHandler) Unlock(c *gin.Context) {
	account, err := h.accountServ.AdminUnlock(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeServiceError(c, h.logger, "admin unlock", err)
		return
	}
	h.audit(c, "admin unlocked account", account.ID)
	c.JSON(http.StatusOK, gin.H{"account": account})
}

func (h *AdminHandler) audit(c *gin.Context, msg, accountID string) {
	claims, _ := GetAuthClaims(c)
	h.logger.Info(msg,
		zap.String("admin_id", claims.UserID),
		zap.String("account_id", accountID),
	)
}
