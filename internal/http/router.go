package http

import (
	"net/http"
	"time"

	"github.com/didip/tollbooth/v6"
	"github.com/didip/tollbooth/v6/limiter"
	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"community-aid/internal/domain"
	"community-aid/internal/service"
)

// NewRouter configura el router de Gin con middlewares y rutas.
// authLimiter y metricsHandler son opcionales: con nil /auth no tiene
// limite por IP y /metrics no se registra.
func NewRouter(
	logger *zap.Logger,
	authH *AuthHandler,
	adminH *AdminHandler,
	jwtSvc *service.JWTService,
	authLimiter *limiter.Limiter,
	metricsHandler http.Handler,
) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := RegisterValidators(); err != nil {
		logger.Warn("register validators failed", zap.Error(err))
	}

	r := gin.New()

	// Middlewares basicos: logging, recovery y JSON content-type.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	r.GET("/healthz", Healthz)
	if metricsHandler != nil {
		r.GET("/metrics", gin.WrapH(metricsHandler))
	}

	auth := r.Group("/auth")
	if authLimiter != nil {
		auth.Use(rateLimitMiddleware(authLimiter))
	}
	auth.POST("/register", authH.Register)
	auth.POST("/login", authH.Login)
	auth.POST("/verify-email", authH.VerifyEmail)
	auth.GET("/verify-email", authH.VerifyEmailLink)
	auth.POST("/resend-verification", authH.ResendVerification)
	auth.POST("/forgot-password", authH.ForgotPassword)
	auth.POST("/reset-password", authH.ResetPassword)
	auth.POST("/refresh", authH.RefreshToken)
	auth.POST("/logout", authH.Logout)

	authed := auth.Group("", JWTAuthMiddleware(jwtSvc))
	authed.GET("/me", authH.Me)
	authed.POST("/2fa/enable", authH.EnableTwoFactor)
	authed.POST("/2fa/disable", authH.DisableTwoFactor)

	admin := r.Group("/admin", JWTAuthMiddleware(jwtSvc), RequireRole(domain.RoleAdmin))
	admin.POST("/accounts/:id/verify-email", adminH.VerifyEmail)
	admin.POST("/accounts/:id/unlock", adminH.Unlock)

	return r
}

// NewAuthRateLimiter crea el limitador por IP para /auth.
func NewAuthRateLimiter(rps float64) *limiter.Limiter {
	if rps <= 0 {
		return nil
	}
	lmt := tollbooth.NewLimiter(rps, &limiter.ExpirableOptions{DefaultExpirationTTL: time.Hour})
	lmt.SetIPLookups([]string{"X-Forwarded-For", "X-Real-IP", "RemoteAddr"})
	return lmt
}

// WithCORS envuelve el engine con la politica CORS configurada.
func WithCORS(h http.Handler, allowedOrigins []string) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	})(h)
}

func rateLimitMiddleware(lmt *limiter.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if httpErr := tollbooth.LimitByRequest(lmt, c.Writer, c.Request); httpErr != nil {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
