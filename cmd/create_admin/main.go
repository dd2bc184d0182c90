package main

import (
	"context"
	"flag"
	"log"
	"os"

	"community-aid/internal/config"
	"community-aid/internal/db"
	"community-aid/internal/logging"
	"community-aid/internal/repository"
	"community-aid/internal/service"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// create_admin da de alta una cuenta ADMIN verificada. El registro publico
// no acepta ese rol.
func main() {
	name := flag.String("name", "", "display name")
	emailAddr := flag.String("email", "", "admin email")
	phone := flag.String("phone", "", "admin phone")
	flag.Parse()

	password := os.Getenv("ADMIN_PASSWORD")
	if *name == "" || *emailAddr == "" || *phone == "" || password == "" {
		log.Fatal("usage: ADMIN_PASSWORD=... create_admin -name NAME -email EMAIL -phone PHONE")
	}

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(logging.OptionsFromConfig(cfg))
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		logger.Fatal("db migrate", zap.Error(err))
	}

	hasher, err := service.NewPasswordHasher(cfg.PasswordHasher)
	if err != nil {
		logger.Fatal("password hasher", zap.Error(err))
	}
	accountSvc := service.NewAccountService(logger, repository.NewPgAccountRepository(pool), nil, nil, service.AccountServiceOptions{
		Hasher: hasher,
	})

	account, err := accountSvc.CreateAdmin(ctx, service.RegisterInput{
		Name:     *name,
		Email:    *emailAddr,
		Phone:    *phone,
		Password: password,
	})
	if err != nil {
		logger.Fatal("create admin", zap.Error(err))
	}
	logger.Info("admin created", zap.String("account_id", account.ID), zap.String("email", account.Email))
}
