package main

import (
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/seedling/pitch-platform/internal/config"
	"github.com/seedling/pitch-platform/internal/db"
	"github.com/seedling/pitch-platform/internal/mailer"
	"github.com/seedling/pitch-platform/internal/payments"
	"github.com/seedling/pitch-platform/internal/worker"
)

func main() {
	_ = godotenv.Load()
	cfg := config.LoadFromEnv()
	log, err := config.NewLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	var m mailer.Mailer
	if cfg.SendgridAPIKey != "" {
		m = mailer.NewSendgrid(cfg.SendgridAPIKey, cfg.FromEmail, cfg.FrontendURL)
	} else {
		m = &mailer.LogMailer{Log: log}
	}

	dbase := db.MustOpen()
	stripe := payments.NewStripe(cfg.StripeSecretKey)

	log.Info("worker starting", zap.String("redis", cfg.RedisAddr))
	if err := worker.Run(cfg.RedisAddr, dbase, m, stripe, log); err != nil {
		log.Fatal("worker", zap.Error(err))
	}
}
