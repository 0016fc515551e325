package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"driftchat/backend/internal/analysis"
	"driftchat/backend/internal/api/handler"
	"driftchat/backend/internal/chathub"
	"driftchat/backend/internal/complaint"
	"driftchat/backend/internal/config"
	"driftchat/backend/internal/localization"
	"driftchat/backend/internal/storage"
	"driftchat/backend/internal/telegram"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := run(); err != nil {
		logrus.WithError(err).Fatal("Server stopped with error")
	}
}

// setupDependencies connects the optional analytics backends. Either return value
// may be nil when the corresponding setting is empty.
func setupDependencies(ctx context.Context, cfg *config.Config) (*gorm.DB, *redis.Client, error) {
	var db *gorm.DB
	if cfg.DatabaseDSN != "" {
		var err error
		db, err = gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := storage.Migrate(db); err != nil {
			return nil, nil, err
		}
		logrus.Info("PostgreSQL connected, migrations complete")
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		logrus.Info("Redis connected")
	}
	return db, rdb, nil
}

// sealerFor picks the password sealer and how many workers hash off the hub.
// Plain passwords are cheap enough to check inline.
func sealerFor(cfg *config.Config) (chathub.PasswordSealer, int) {
	if cfg.PasswordMode == "argon2" {
		return chathub.DefaultArgon2(), cfg.PasswordWorkers
	}
	return chathub.PlainPasswords{}, 0
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logrus.SetLevel(cfg.LogrusLevel())
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.Info("Starting driftchat backend")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, rdb, err := setupDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}
	s := storage.NewStorageService(db, rdb)

	localizer := localization.Default()
	if cfg.LocalizationDir != "" {
		if localizer, err = localization.NewLocalizer(cfg.LocalizationDir); err != nil {
			return err
		}
	}

	recorder := analysis.NewRecorder(s, complaint.NewService(s), cfg.EventBufferSize)
	go recorder.Run(ctx)

	sealer, passwordWorkers := sealerFor(cfg)
	hub := chathub.NewManagerService(chathub.ManagerOptions{
		Engine: chathub.EngineOptions{
			ProfileRetention: cfg.ProfileRetention,
			MaxProfiles:      cfg.MaxProfiles,
			MaxQueueWait:     cfg.MaxQueueWait,
			Sealer:           sealer,
			Events:           recorder,
		},
		SweepInterval:   cfg.SweepInterval,
		PasswordWorkers: passwordWorkers,
	})
	go hub.Run(ctx)

	if rdb != nil {
		if err := hub.StartAnnouncementListener(ctx, s); err != nil {
			logrus.WithError(err).Warn("Announcements disabled")
		}
	}

	if cfg.TelegramBotToken != "" {
		bot, err := telegram.NewBotService(cfg.TelegramBotToken, hub, localizer, cfg.OutboxSize)
		if err != nil {
			return fmt.Errorf("start telegram bot: %w", err)
		}
		go bot.Run(ctx)
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	handler.NewHandler(hub, cfg.JWTSecret, cfg.OutboxSize).Register(r)

	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	errChan := make(chan error, 1)
	go func() {
		logrus.WithField("addr", cfg.HTTPAddr).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logrus.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	logrus.WithField("dropped_events", recorder.Dropped()).Info("Server stopped cleanly")
	return nil
}
