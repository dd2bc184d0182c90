package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"community-aid/internal/config"
	"community-aid/internal/db"
	"community-aid/internal/email"
	"community-aid/internal/events"
	apihttp "community-aid/internal/http"
	"community-aid/internal/logging"
	"community-aid/internal/metrics"
	"community-aid/internal/repository"
	"community-aid/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, err := logging.New(logging.OptionsFromConfig(cfg))
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()
	if err := db.Ping(ctx, pool); err != nil {
		logger.Fatal("db ping", zap.Error(err))
	}
	if cfg.AutoMigrate {
		if err := db.Migrate(ctx, pool); err != nil {
			logger.Fatal("db migrate", zap.Error(err))
		}
	}
	accountRepo := repository.NewPgAccountRepository(pool)

	var (
		limiter    service.RateLimiter
		tokenStore service.RefreshTokenStore
	)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using in-memory stores", zap.Error(err))
		} else {
			limiter = service.NewRedisRateLimiter(redisClient, cfg.OTPTTL(), 3)
			tokenStore = service.NewRedisRefreshTokenStore(redisClient)
		}
		cancel()
	}
	if tokenStore == nil {
		tokenStore = service.NewMemoryRefreshTokenStore()
	}

	publisher := events.NewNopPublisher()
	if cfg.NATSURL != "" {
		natsPub, err := events.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			logger.Warn("nats connect failed, events disabled", zap.Error(err))
		} else {
			publisher = natsPub
		}
	}
	defer publisher.Close()

	metricsExporter := metrics.NewExporter()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsExporter.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics shutdown", zap.Error(err))
		}
	}()
	recorder, err := metrics.NewRecorder(metricsExporter.Meter())
	if err != nil {
		logger.Warn("metrics disabled", zap.Error(err))
	}
	var metricsHandler http.Handler
	if cfg.MetricsEnabled {
		metricsHandler = metricsExporter.Handler()
	}

	hasher, err := service.NewPasswordHasher(cfg.PasswordHasher)
	if err != nil {
		logger.Fatal("password hasher", zap.Error(err))
	}

	emailSender := email.NewRetryingSender(newSender(cfg, logger), cfg.MailRetryAttempts, cfg.MailTimeout(), logger)

	jwtSvc := service.NewJWTServiceWithStore(cfg.JWTSecret, cfg.AccessTTL(), cfg.RefreshTTL(), tokenStore)
	accountSvc := service.NewAccountService(logger, accountRepo, jwtSvc, emailSender, service.AccountServiceOptions{
		Hasher:           hasher,
		Limiter:          limiter,
		Events:           publisher,
		Metrics:          recorder,
		LockoutThreshold: cfg.LockoutThreshold,
		OTPTTL:           cfg.OTPTTL(),
		ResetTokenTTL:    cfg.ResetTokenTTL(),
		AppBaseURL:       cfg.AppBaseURL,
	})

	authHandler := apihttp.NewAuthHandler(logger, accountSvc)
	adminHandler := apihttp.NewAdminHandler(logger, accountSvc)
	router := apihttp.NewRouter(logger, authHandler, adminHandler, jwtSvc, apihttp.NewAuthRateLimiter(cfg.AuthRateLimitRPS), metricsHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           apihttp.WithCORS(router, cfg.CORSAllowedOrigins),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}

// newSender elige el notificador segun MAILER. Si la configuracion esta
// incompleta queda un sender deshabilitado y cada envio falla.
func newSender(cfg *config.Config, logger *zap.Logger) email.Sender {
	switch cfg.Mailer {
	case "log":
		return email.NewLogSender(logger)
	case "mailersend":
		sender, err := email.NewMailerSendSender(cfg.MailerSendAPIKey, cfg.MailFrom, cfg.MailFromName)
		if err != nil {
			logger.Warn("mailersend sender init failed", zap.Error(err))
			return email.NewDisabledSender(err.Error())
		}
		return sender
	default:
		if cfg.SMTPHost == "" {
			logger.Warn("smtp host not configured")
			return email.NewDisabledSender("email sender not configured")
		}
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom, cfg.MailFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
			return email.NewDisabledSender(err.Error())
		}
		return sender
	}
}
