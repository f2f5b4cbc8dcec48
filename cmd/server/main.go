// Ares is a portfolio optimization service: it estimates return parameters
// from daily price history, solves a constrained max-Sharpe allocation and
// serves the results (frontier, VaR, backtest, risk decomposition) over HTTP.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/aresquant/ares/internal/config"
	"github.com/aresquant/ares/internal/database"
	"github.com/aresquant/ares/internal/engine"
	"github.com/aresquant/ares/internal/marketdata"
	"github.com/aresquant/ares/internal/server"
	"github.com/aresquant/ares/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logger is not up yet.
		println("failed to load configuration:", err.Error())
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	log.Info().
		Int("port", cfg.Port).
		Str("data_dir", cfg.DataDir).
		Bool("dev_mode", cfg.DevMode).
		Msg("Starting Ares")

	db, err := database.New(database.Config{
		Path: filepath.Join(cfg.DataDir, "cache.db"),
		Name: "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer db.Close()

	client := marketdata.NewClient(log)
	cache, err := marketdata.NewPriceCache(db.Conn(), time.Duration(cfg.CacheTTLHours)*time.Hour, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize price cache")
	}
	provider := marketdata.NewProvider(client, cache, log)

	eng := engine.New(provider, engine.Config{
		RiskFreeRate:    cfg.RiskFreeRate,
		TradingDays:     cfg.TradingDays,
		BenchmarkTicker: cfg.BenchmarkTicker,
		FrontierPoints:  cfg.FrontierPoints,
		Confidence:      cfg.Confidence,
	}, log)

	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@hourly", func() {
		if _, err := cache.PruneExpired(); err != nil {
			log.Warn().Err(err).Msg("Price cache prune failed")
		}
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule cache pruning")
	}
	scheduler.Start()

	srv := server.New(server.Config{
		Port:    cfg.Port,
		Log:     log,
		Engine:  eng,
		Quoter:  client,
		DevMode: cfg.DevMode,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}

	cronCtx := scheduler.Stop()
	<-cronCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}

	log.Info().Msg("Ares stopped")
}
