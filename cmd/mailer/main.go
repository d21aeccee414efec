package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"visitethiopia/api/internal/cache"
	"visitethiopia/api/internal/config"
	"visitethiopia/api/internal/log"
	"visitethiopia/api/internal/mail"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	sender, err := mail.NewSMTPSender(cfg.Mail)
	if err != nil {
		logger.Fatal().Err(err).Msg("smtp sender init failed")
	}

	processor, err := mail.NewProcessor(sender, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("load mail templates failed")
	}

	consumer := mail.NewConsumer(
		client,
		cfg.Mail.Stream,
		cfg.Mail.Group,
		cfg.Mail.Consumer,
		cfg.Mail.ClaimInterval,
		logger,
		processor,
	)

	logger.Info().Str("stream", cfg.Mail.Stream).Str("group", cfg.Mail.Group).Msg("mailer started")
	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("consumer stopped unexpectedly")
		return
	}
	logger.Info().Msg("mailer exited cleanly")
}
