package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/iliyamo/event-registration/internal/access"
	"github.com/iliyamo/event-registration/internal/config"
	"github.com/iliyamo/event-registration/internal/database"
	"github.com/iliyamo/event-registration/internal/handler"
	"github.com/iliyamo/event-registration/internal/lifecycle"
	"github.com/iliyamo/event-registration/internal/logger"
	"github.com/iliyamo/event-registration/internal/middleware"
	"github.com/iliyamo/event-registration/internal/repository"
	"github.com/iliyamo/event-registration/internal/router"
	queue_publisher "github.com/iliyamo/event-registration/internal/service"
	"github.com/iliyamo/event-registration/internal/storage"
	"github.com/iliyamo/event-registration/internal/view"
)

func main() {
	config.LoadDotEnv()
	cfg := config.Load()
	log := logger.New(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()

	// Redis is optional; without it rate limiting and caching pass through.
	rdb, err := config.NewRedisClient(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable; rate limiting and caching disabled")
	} else {
		defer rdb.Close()
	}
	cacheCfg := config.LoadCacheConfig()

	regRepo := repository.NewRegistrationRepo(db)
	eventRepo := repository.NewEventRepo(db)
	profileRepo := repository.NewProfileRepo(db)
	roleRepo := repository.NewRoleRepo(db)

	signer, err := storage.NewURLSigner(cfg.AppSecret, cfg.PublicBaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("receipt signer init failed")
	}
	store, err := storage.NewLocalStore(cfg.ReceiptDir, cfg.MaxReceiptBytes, signer)
	if err != nil {
		log.Fatal().Err(err).Msg("receipt store init failed")
	}

	var notifier lifecycle.Notifier
	if cfg.RabbitURL != "" {
		notifier = queue_publisher.NewPublisher(cfg.RabbitURL, &log)
	} else {
		log.Info().Msg("RABBITMQ_URL not set; lifecycle notifications disabled")
	}

	gate := access.NewGate(cfg.AppSecret, roleRepo)
	engine := lifecycle.NewEngine(regRepo, eventRepo, store, notifier, &log)
	views := view.NewComposer(regRepo, eventRepo, profileRepo, store, cfg.ReceiptURLTTL, &log)

	e := newServer(log, cfg)
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	events := handler.NewEventHandler(eventRepo, func(ctx context.Context) error {
		return middleware.InvalidateCache(ctx, cacheCfg, rdb)
	})

	router.RegisterRoutes(e, handler.Health(db))
	router.RegisterPublic(e, events, handler.NewReceiptHandler(store), middleware.NewRedisCache(cacheCfg, rdb))
	router.RegisterUser(e, handler.NewRegistrationHandler(engine, views, cfg.MaxReceiptBytes), gate, limiter)
	router.RegisterAdmin(e, handler.NewAdminHandler(engine, views), events, gate, limiter)

	addr := ":" + cfg.Port
	go func() {
		log.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("server stopped")
}

// newServer builds the echo instance with the global middleware chain.
func newServer(log zerolog.Logger, cfg config.Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(middleware.Deadline(cfg.RequestTimeout))
	// Multipart overhead on top of the receipt itself.
	e.Use(echomw.BodyLimit(bodyLimit(cfg.MaxReceiptBytes + 1<<20)))
	return e
}

// bodyLimit formats n bytes for echo's BodyLimit, which takes sizes like "11M".
func bodyLimit(n int64) string {
	kb := (n + 1023) / 1024
	return strconv.FormatInt(kb, 10) + "K"
}
