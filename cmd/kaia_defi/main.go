package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kaia_defi/internal/app/bootstrap"
	"kaia_defi/internal/infrastructure/configloader"
	"kaia_defi/internal/infrastructure/restapi"
	"kaia_defi/internal/pkg/logger"
	"kaia_defi/internal/pkg/metrics"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yml", "path to the YAML configuration file")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	appLogger := logger.NewSlogAdapter()
	appLogger.Info("Starting kaia_defi", "config", *configPath, "defaultChainId", cfg.Wallet.DefaultChainID)

	metrics.MustRegisterMetrics()

	app, err := bootstrap.New(cfg, zapLogger, appLogger)
	if err != nil {
		logger.Fatal("Failed to initialize application", "error", err)
	}
	defer app.Close()
	app.Start(ctx, true)

	router := restapi.SetupRouter(app.Handlers(), cfg.Server, logger.NewSlogAdapter("component", "restapi"))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
	}

	go func() {
		zapLogger.Info("HTTP server listening", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start HTTP server", "error", err)
		}
	}()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	<-signalChan

	appLogger.Info("Shutdown signal received, stopping HTTP server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP server shutdown failed", "error", err)
	} else {
		appLogger.Info("HTTP server stopped")
	}
	cancel()
}
