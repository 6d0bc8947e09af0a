package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"commitvault/internal/app"
	"commitvault/internal/config"
	"commitvault/internal/logger"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	printBuildInfo()

	cfg, err := config.Load()
	if err != nil {
		logger.NewLogger("commitvault-server", "info").Fatal().Err(err).Msg("config error")
	}
	log := logger.NewLogger("commitvault-server", cfg.Service.LogLevel)
	log.Info().
		Str("chain_mode", cfg.Chain.Mode).
		Str("auth_mode", cfg.Dispatch.AuthMode).
		Bool("relayer", cfg.Relayer.Enabled).
		Msg("configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer a.Close()

	if err := a.Run(ctx); err != nil {
		log.Error().Err(err).Msg("service stopped")
		return
	}
	log.Info().Msg("service stopped")
}

func printBuildInfo() {
	if buildVersion == "" {
		buildVersion = "N/A"
	}
	if buildDate == "" {
		buildDate = "N/A"
	}
	if buildCommit == "" {
		buildCommit = "N/A"
	}

	fmt.Printf("Build version: %s\n", buildVersion)
	fmt.Printf("Build date: %s\n", buildDate)
	fmt.Printf("Build commit: %s\n", buildCommit)
}
