// cmd/wizard-manager/main.go
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

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"visa-portal/internal/api"
	"visa-portal/internal/backend"
	"visa-portal/internal/common/config"
	apphttp "visa-portal/internal/common/http"
	"visa-portal/internal/common/logger"
	"visa-portal/internal/common/observability"
	"visa-portal/internal/storage"
	"visa-portal/internal/wizard"
)

const readyProbeKey = "__ready__"

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting wizard manager...",
		zap.String("environment", cfg.App.Environment),
		zap.String("storage", cfg.Storage.Driver),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Storage with retry ---
	var (
		store  storage.KVStore
		closer interface{ Close() error }
	)
	err = retryWithBackoff(func() error {
		var err error
		store, closer, err = storage.Open(ctx, cfg.Storage, log)
		return err
	}, 10, 2*time.Second, zapLog, "Storage connection")
	if err != nil {
		zapLog.Fatal("storage unavailable after retries", zap.Error(err))
	}
	defer func() {
		if err := closer.Close(); err != nil {
			zapLog.Error("Error closing storage", zap.Error(err))
		}
	}()

	// --- Backend client & wizard ---
	httpClient := apphttp.NewClient(cfg.Backend.BaseURL, config.GetDuration(cfg.Backend.Timeout)).WithObserver(obs)
	backendClient := backend.NewClient(httpClient, log)
	wizards := wizard.NewService(backendClient, cfg.Wizard, obs, log)

	router := api.NewRouter(api.Deps{
		Store:     store,
		KeyPrefix: cfg.Storage.KeyPrefix,
		Backend:   backendClient,
		Wizards:   wizards,
		Logger:    log,
		Ready: func(ctx context.Context) error {
			_, err := store.Get(ctx, readyProbeKey)
			if errors.Is(err, storage.ErrNotFound) {
				return nil
			}
			return err
		},
	})
	router.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("API server listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("API server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining requests...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down API server", zap.Error(err))
	}

	zapLog.Info("Wizard manager stopped gracefully")
}
