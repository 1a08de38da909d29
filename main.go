package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"coopwatch/config"
	"coopwatch/log"
	"coopwatch/services"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:           "coopwatch",
	Short:         "Poultry house notification engine",
	Long:          `Watches house climate, water tanks, pumps and feed silos and notifies the operator without flooding them with repeats.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Consume facility events and run the daily scheduler",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func main() {
	logger := log.GetInstance()
	defer logger.Sync()

	if err := rootCmd.Execute(); err != nil {
		logger.Fatal("Command failed", zap.Error(err))
	}
}

// loadConfig loads configuration and applies the log level
func loadConfig() (*config.Config, *zap.Logger, error) {
	logger := log.GetInstance()

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := log.SetLevel(cfg.LogLevel); err != nil {
		logger.Warn("Invalid LOG_LEVEL, keeping info", zap.String("log_level", cfg.LogLevel))
	}
	return cfg, logger, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := buildApp(cfg, logger, true)
	if err != nil {
		return err
	}

	queue, err := services.NewEventQueue(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize event queue: %w", err)
	}

	// Set up graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Records keep flowing until the notifier has drained
	batchCtx, cancelBatch := context.WithCancel(context.Background())
	defer cancelBatch()
	go a.batcher.Start(batchCtx)

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = startMetrics(cfg.MetricsAddr, logger)
	}

	go a.scheduler.Start(ctx)

	consumeErr := make(chan error, 1)
	go func() {
		consumeErr <- queue.Consume(ctx, a.notifier)
	}()

	a.startupMessage(ctx)

	logger.Info("Coopwatch started",
		zap.String("store", cfg.Store),
		zap.String("timezone", cfg.Location.String()),
		zap.Duration("watchdog_duration", cfg.WatchdogDuration),
		zap.String("health_calendar_at", cfg.HealthCalendarAt),
		zap.String("water_summary_at", cfg.WaterSummaryAt),
		zap.Bool("log_only", a.gateway.LogOnly()))

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received, stopping services")
	case err := <-consumeErr:
		if err != nil {
			logger.Error("Consumer stopped", zap.Error(err))
		}
		stop()
	}

	// Perform cleanup
	if err := queue.Close(); err != nil {
		logger.Error("Error closing event queue", zap.Error(err))
	}

	a.notifier.Close()

	cancelBatch()
	if !a.batcher.WaitForShutdown(5 * time.Second) {
		logger.Warn("Alert batcher shutdown timeout")
	}
	a.close()

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error stopping metrics server", zap.Error(err))
		}
	}

	logger.Info("Coopwatch stopped")
	return nil
}

func startMetrics(addr string, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Metrics server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()
	return server
}

