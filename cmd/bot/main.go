package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/user/reddit-digest-bot/internal/bot"
	"github.com/user/reddit-digest-bot/internal/config"
	"github.com/user/reddit-digest-bot/internal/digest"
	"github.com/user/reddit-digest-bot/internal/reddit"
	"github.com/user/reddit-digest-bot/internal/scheduler"
	"github.com/user/reddit-digest-bot/internal/server"
	"github.com/user/reddit-digest-bot/internal/store"
	"github.com/user/reddit-digest-bot/internal/telegram"
)

const (
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout = 30 * time.Second
)

func main() {
	// Initialize structured JSON logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().Msg("Configuration loaded successfully")

	// Create root context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize MySQL store
	mysqlStore, err := store.NewMySQLStore(&cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	log.Info().Msg("Database connection established")

	// Initialize Reddit client
	redditClient := reddit.NewClient(&cfg.Reddit)
	log.Info().Str("baseURL", cfg.Reddit.BaseURL).Msg("Reddit client initialized")

	// Initialize Telegram client
	telegramClient, err := telegram.NewClient(cfg.Bot.Token)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Telegram client")
	}
	log.Info().Msg("Telegram client initialized")

	// Initialize digest delivery service
	digestService := digest.NewService(mysqlStore, telegramClient, redditClient)
	log.Info().Msg("Digest service initialized")

	// Initialize bot handler
	botHandler := bot.NewHandler(mysqlStore, telegramClient, redditClient, digestService, cfg.Bot.AuthorChatID)
	log.Info().Msg("Bot handler initialized")

	// Initialize scheduler
	sched := scheduler.NewScheduler(mysqlStore, digestService, &cfg.Scheduler)

	// Initialize HTTP server
	httpServer := server.NewServer(mysqlStore)

	// Setup signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Start HTTP server in goroutine
	go func() {
		if err := httpServer.Start(cfg.Server.Port); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	// Start scheduler
	sched.Start(ctx)
	log.Info().Msg("Scheduler started")

	// Start Telegram bot polling in goroutine. Updates are processed one at a
	// time, in order; a slow external call delays the next update rather than
	// interleaving with it.
	go func() {
		log.Info().Msg("Starting Telegram bot polling")
		updates := telegramClient.GetUpdates()
		for update := range updates {
			botHandler.HandleUpdate(ctx, update)
		}
	}()

	log.Info().Msg("Reddit digest bot started successfully")

	// Wait for shutdown signal
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer shutdownCancel()

	log.Info().Msg("Starting graceful shutdown...")

	// 1. Stop scheduler from triggering new deliveries
	sched.Stop()
	log.Info().Msg("Scheduler stopped")

	// 2. Stop Telegram bot polling
	telegramClient.StopReceivingUpdates()
	log.Info().Msg("Telegram bot polling stopped")

	// 3. Stop HTTP server
	if err := httpServer.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping HTTP server")
	} else {
		log.Info().Msg("HTTP server stopped")
	}

	// 4. Close database connection pool
	if err := mysqlStore.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing database connection")
	} else {
		log.Info().Msg("Database connection closed")
	}

	cancel()
	log.Info().Msg("Graceful shutdown completed")
}
