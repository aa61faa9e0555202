// notifier consumes registration lifecycle events from RabbitMQ and
// appends an audit line per event to logs/registration.log.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/iliyamo/event-registration/internal/config"
	"github.com/iliyamo/event-registration/internal/logger"
	"github.com/iliyamo/event-registration/internal/queue"
)

func main() {
	config.LoadDotEnv()
	log := logger.New(os.Getenv("APP_ENV"))

	url := os.Getenv("RABBITMQ_URL")
	if url == "" {
		log.Fatal().Msg("missing required env var: RABBITMQ_URL")
	}
	logPath := os.Getenv("REGISTRATION_LOG_PATH")
	if logPath == "" {
		logPath = "logs/registration.log"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &queue.Consumer{URL: url, LogPath: logPath, Log: &log}
	log.Info().Str("queue", queue.RegistrationQueue).Str("log_path", logPath).Msg("notifier started")
	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("notifier stopped")
	}
	log.Info().Msg("notifier stopped")
}
