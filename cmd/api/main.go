package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"visitethiopia/api/internal/cache"
	"visitethiopia/api/internal/config"
	"visitethiopia/api/internal/database"
	"visitethiopia/api/internal/handlers"
	"visitethiopia/api/internal/jobs"
	"visitethiopia/api/internal/log"
	"visitethiopia/api/internal/mail"
	"visitethiopia/api/internal/repository"
	"visitethiopia/api/internal/security"
	"visitethiopia/api/internal/server"
	"visitethiopia/api/internal/service"
	"visitethiopia/api/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.LogLevel)

	ctx := context.Background()

	users, closeStore := openStore(ctx, cfg, logger)

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	codec := security.NewSessionCodec(cfg.Security.JWTSecret, cfg.Security.JWTTTL, time.Now)
	issuer := session.NewIssuer(codec, cfg.Security.CookieName, !cfg.IsDevelopment(), time.Now)
	outbox := mail.NewOutbox(redisClient, cfg.Mail.Stream, logger)
	opts := service.Options{
		PublicURL:         cfg.Mail.PublicURL,
		VerificationTTL:   cfg.Security.VerificationTTL,
		PasswordResetTTL:  cfg.Security.PasswordResetTTL,
		MinPasswordLength: cfg.Security.MinPasswordLength,
	}

	authService := service.NewAuthService(users, outbox, codec, issuer, opts, logger, time.Now)
	userService := service.NewUserService(users, outbox, opts, logger, time.Now)

	handlerSet := handlers.NewHandlerSet(logger, cfg, authService, userService, users, redisClient, issuer.CookieName())
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	scheduler := jobs.NewScheduler(users, cfg.Jobs.PurgeTokensSpec, cfg.Jobs.PurgeGrace, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, closeStore, redisClient)
}

// openStore connects the configured user store and returns a matching close
// function.
func openStore(ctx context.Context, cfg *config.AppConfig, logger zerolog.Logger) (service.UserRepository, func()) {
	switch cfg.Store.Driver {
	case config.StorePostgres:
		pool, err := database.NewPostgresPool(ctx, cfg.Postgres)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect postgres")
		}
		if err := database.RunMigrations(ctx, pool); err != nil {
			logger.Fatal().Err(err).Msg("postgres migrations failed")
		}
		return repository.NewUserRepository(pool), pool.Close

	case config.StoreMemory:
		logger.Warn().Msg("using in-memory user store; data is lost on restart")
		return repository.NewMemoryUserRepository(), func() {}

	default:
		client, err := database.NewMongoClient(ctx, cfg.Mongo)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect mongo")
		}
		repo := repository.NewMongoUserRepository(client.Database(cfg.Mongo.Database))
		if err := repo.EnsureIndexes(ctx); err != nil {
			logger.Fatal().Err(err).Msg("ensure mongo indexes failed")
		}
		return repo, func() {
			if err := database.DisconnectMongo(client); err != nil {
				logger.Error().Err(err).Msg("mongo disconnect error")
			}
		}
	}
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, closeStore func(), redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	scheduler.Stop()
	closeStore()
	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("redis close error")
	}

	logger.Info().Msg("server exited cleanly")
}
