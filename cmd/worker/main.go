package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/backend-confero/internal/app"
	"github.com/noah-isme/backend-confero/internal/common"
	"github.com/noah-isme/backend-confero/internal/config"
	"github.com/noah-isme/backend-confero/internal/events"
	"github.com/noah-isme/backend-confero/internal/lock"
	"github.com/noah-isme/backend-confero/internal/obs"
	"github.com/noah-isme/backend-confero/internal/registration"
	"github.com/noah-isme/backend-confero/internal/reminder"
	"github.com/noah-isme/backend-confero/internal/resilience"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := app.NewDatabase(ctx, cfg, "confero-worker")
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	redisClient, err := app.NewRedis(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect redis")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	taskRedis, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url for task queue")
	}

	notifiers := []events.Notifier{}
	if cfg.WebhookEnabled {
		notifiers = append(notifiers, &events.WebhookNotifier{
			URL:    cfg.WebhookURL,
			Secret: cfg.WebhookSecret,
			Doer: resilience.HTTPClient{
				Client:      events.HTTPClient(5000, false),
				Breaker:     resilience.NewBreaker(5, 0.5, 30*time.Second).WithTarget("webhook-delivery").WithLogger(logger),
				BaseBackoff: 200 * time.Millisecond,
				MaxAttempts: 3,
			},
			Enabled: true,
		})
	}
	eventBus := &events.Bus{
		Store:     events.Store{DB: pool},
		Notifiers: notifiers,
	}

	regRepo := registration.Repo{DB: pool}
	handler := &reminder.Handler{
		Registrations: regRepo,
		Email:         common.NopEmailSender{},
		Events:        eventBus,
		Logger:        logger,
	}

	taskClient := asynq.NewClient(taskRedis)
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()

	sweeper := &reminder.Sweeper{
		Regs: regRepo,
		Scheduler: &reminder.Scheduler{
			Client: taskClient,
			Delay:  cfg.ReminderDelay,
			Queue:  cfg.ReminderQueue,
		},
		Locker:   lock.Locker{R: redisClient},
		LockTTL:  30 * time.Second,
		Interval: envDuration("REMINDER_SWEEP_INTERVAL", 5*time.Minute),
		Delay:    cfg.ReminderDelay,
		Logger:   logger,
	}
	go func() {
		if err := sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("reminder sweeper stopped with error")
		}
	}()

	srv := asynq.NewServer(taskRedis, asynq.Config{
		Concurrency: envInt("WORKER_CONCURRENCY", 10),
		Queues: map[string]int{
			cfg.ReminderQueue: 1,
		},
	})

	logger.Info().Str("queue", cfg.ReminderQueue).Msg("worker starting")
	if err := srv.Start(handler.Mux()); err != nil {
		logger.Fatal().Err(err).Msg("start task server")
	}

	<-ctx.Done()
	srv.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(strings.TrimSpace(val)); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}
