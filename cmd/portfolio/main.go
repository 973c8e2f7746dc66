// Command portfolio connects the configured wallet once, refreshes its
// portfolio and logs every position.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"kaia_defi/internal/app/bootstrap"
	"kaia_defi/internal/infrastructure/configloader"
	"kaia_defi/internal/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yml", "path to the YAML configuration file")
	chainID := flag.Uint64("chain", 0, "chain to read from; 0 keeps the wallet's chain")
	account := flag.String("account", "", "account to select when several keys are loaded")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall deadline")
	flag.Parse()

	cfg, err := configloader.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: failed to load configuration %s: %v\n", *configPath, err)
		os.Exit(1)
	}
	zapLogger, err := logger.NewZap(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: failed to initialize zap logger: %v\n", err)
		os.Exit(1)
	}
	defer zapLogger.Sync() //nolint:errcheck
	logger.Init(zapLogger, cfg.Logging.Level)

	app, err := bootstrap.New(cfg, zapLogger, logger.NewSlogAdapter())
	if err != nil {
		logger.Fatal("Failed to initialize application", "error", err)
	}
	defer app.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := app.Prices.LoadAndCacheTokenPrices(ctx); err != nil {
		logger.Warn("Price load failed, using static prices", "error", err)
	}
	if *account != "" {
		if err := app.Wallet.SelectAccount(*account); err != nil {
			logger.Fatal("Unknown account", "account", *account, "error", err)
		}
	}
	if _, err := app.Sessions.Connect(ctx); err != nil {
		logger.Fatal("Failed to connect wallet", "error", err)
	}
	if *chainID != 0 {
		if _, err := app.Sessions.SwitchNetwork(ctx, *chainID); err != nil {
			logger.Fatal("Failed to switch network", "chainId", *chainID, "error", err)
		}
	}

	snapshot, err := app.Portfolio.Refresh(ctx)
	if err != nil {
		logger.Fatal("Failed to refresh portfolio", "error", err)
	}

	logger.Info("Portfolio",
		"account", snapshot.Account,
		"totalValueUsd", fmt.Sprintf("%.2f", snapshot.TotalValueUSD),
		"totalEarnings", fmt.Sprintf("%.2f", snapshot.TotalEarnings),
		"positions", len(snapshot.Positions),
	)
	for _, p := range snapshot.Positions {
		logger.Info("  Position",
			"type", p.Type,
			"asset", p.Asset,
			"amount", p.Amount,
			"valueUsd", fmt.Sprintf("%.2f", p.ValueUSD),
			"apy", p.APY,
		)
	}
	for _, tx := range snapshot.Transactions {
		logger.Info("  Transaction",
			"type", tx.Type,
			"amount", tx.Amount,
			"asset", tx.Asset,
			"hash", tx.Hash,
			"block", tx.BlockNumber,
		)
	}
	if snapshot.Error != "" {
		logger.Warn("Portfolio is partial", "error", snapshot.Error)
	}
}
