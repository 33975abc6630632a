package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"skill-exchange/internal/app"
	"skill-exchange/internal/config"
	"skill-exchange/internal/pkg/logger"

	"github.com/joho/godotenv"
)

const shutdownTimeout = 10 * time.Second

func main() {
	bootLog := logger.New(os.Stderr, "info", false)

	// Load .env file if exists (for local development)
	if err := godotenv.Load(); err != nil {
		bootLog.Debug().Msg("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}

	log := logger.New(os.Stdout, cfg.App.LogLevel, cfg.App.IsDevelopment()).
		With().Str("app", cfg.App.AppName).Logger()

	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	bootstrap, cleanup, err := app.Bootstrap(startCtx, cfg, log)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to bootstrap app")
	}
	defer func() {
		if err := cleanup(); err != nil {
			log.Error().Err(err).Msg("cleanup error")
		}
	}()

	addr, err := app.ListenAddr(cfg.App.HTTPPort)
	if err != nil {
		log.Error().Err(err).Msg("invalid HTTP port")
		return
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Str("store", cfg.Store.Driver).Str("feed", cfg.Feed.Driver).Msg("http server listening")
		errCh <- bootstrap.Fiber.Listen(addr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("server error")
		}
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := bootstrap.Fiber.ShutdownWithContext(ctx); err != nil {
			log.Error().Err(err).Msg("shutdown error")
		}
	}
}
