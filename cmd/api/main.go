package main

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/seedling/pitch-platform/internal/config"
	"github.com/seedling/pitch-platform/internal/db"
	"github.com/seedling/pitch-platform/internal/httpapi"
	"github.com/seedling/pitch-platform/internal/migrations"
	"github.com/seedling/pitch-platform/internal/payments"
	"github.com/seedling/pitch-platform/internal/storage"
)

func main() {
	_ = godotenv.Load()
	cfg := config.LoadFromEnv()
	log, err := config.NewLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Run embedded migrations (idempotent)
	migrations.Run()

	dbase := db.MustOpen()
	s3c, err := storage.New(context.Background())
	if err != nil {
		log.Fatal("storage init", zap.Error(err))
	}
	asq := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer asq.Close()
	stripe := payments.NewStripe(cfg.StripeSecretKey)

	srv := httpapi.NewServer(cfg, dbase, s3c, asq, stripe, log)
	log.Info("api listening", zap.String("addr", cfg.ListenAddr))
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal("serve", zap.Error(err))
	}
}
