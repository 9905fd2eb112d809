package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"anonbox/internal/config"
	"anonbox/internal/replymode"
	"anonbox/internal/repository"
	"anonbox/internal/router"
	"anonbox/internal/server"
	"anonbox/internal/telegram_bot"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err) // Should not happen in development
	}
	defer func() {
		_ = logger.Sync() // Flushes buffer, if any
	}()

	_ = godotenv.Load()

	// Load configuration
	cfgPath := "configs/config.yml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}
	logger.Info("Administrators configured", zap.Int64s("admin_ids", cfg.Telegram.AdminIDs))

	// Database connection
	db, err := repository.NewSQLiteDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	repository.MigrateDB(db, cfg.Database.MigrationsPath, logger)

	// Initialize stores
	userRepo := repository.NewUserRepository(db, logger)
	blockRepo := repository.NewBlockRepository(db, cfg.Telegram.AdminIDs, logger)
	submissionRepo := repository.NewSubmissionRepository(db, cfg.Submissions.MaxEntries, logger)
	tracker := replymode.NewTracker()

	// Initialize Telegram bot; it doubles as the router's transport.
	bot, err := telegram_bot.NewBot(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Telegram bot", zap.Error(err))
	}

	r := router.NewRouter(userRepo, blockRepo, submissionRepo, tracker, bot, cfg.Telegram.AdminIDs, logger)
	bot.SetRouter(r)

	// Context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Run Telegram bot in a goroutine
	go func() {
		if err := bot.Start(ctx); err != nil {
			logger.Error("Telegram bot failed", zap.Error(err))
		}
	}()

	// Run the ops API in a goroutine
	if cfg.Server.Port != "" {
		srv := server.NewServer(r, logger)
		go func() {
			if err := srv.Run(cfg.Server.Port); err != nil {
				logger.Error("Ops API failed", zap.Error(err))
			}
		}()
	}

	<-ctx.Done()
	logger.Info("Application stopped.")
}
