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

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sanspareilsmyn/featurestream/internal/config"
	"github.com/sanspareilsmyn/featurestream/internal/logging"
	"github.com/sanspareilsmyn/featurestream/internal/stream"
)

var (
	configFile = flag.String("config", "configs/config.dev.yaml", "Path to the configuration file")
	logger     *zap.Logger
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration from %s: %v\n", *configFile, err)
		os.Exit(1)
	}

	var logErr error
	logger, logErr = logging.NewLogger(cfg.Log, zap.String("pipeline", cfg.Pipeline.Name))
	if logErr != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to initialize logger: %v\n", logErr)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync() // Flush buffered logs on exit
	}()

	sugar := logger.Sugar()
	sugar.Infow("Configuration loaded successfully",
		"path", *configFile,
		"level", cfg.Log.Level,
		"stages", len(cfg.Pipeline.Stages),
		"channels", cfg.Pipeline.Channels,
	)

	svc, err := stream.New(cfg, logger)
	if err != nil {
		sugar.Fatalw("Failed to initialize service", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsServer := startMetricsServer(cfg.Metrics, svc)

	sugar.Info("Starting feature stream service...")
	runErr := svc.Run(ctx)

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			sugar.Warnw("Metrics server shutdown failed", zap.Error(err))
		}
		cancel()
	}

	finalLogLevel := zapcore.InfoLevel
	shutdownReason := "gracefully"
	var finalErrorField = zap.Skip()

	switch {
	case runErr == nil:
		sugar.Info("Service execution completed without error.")
	case errors.Is(runErr, context.Canceled):
		sugar.Info("Service execution cancelled (expected on shutdown).")
	default:
		shutdownReason = "due to error"
		finalLogLevel = zapcore.ErrorLevel
		finalErrorField = zap.Error(runErr)
	}

	logger.Log(finalLogLevel, fmt.Sprintf("Service shutdown %s.", shutdownReason),
		zap.String("reason", shutdownReason),
		finalErrorField,
	)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		_ = logger.Sync()
		os.Exit(1)
	}
}

// startMetricsServer serves /metrics and the pipeline's /state summary in
// the background. An empty address disables it.
func startMetricsServer(cfg config.MetricsConfig, svc *stream.Service) *http.Server {
	if cfg.Address == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/state", stream.StateHandler(svc.Pipeline(), logger.Named("http")))
	server := &http.Server{
		Addr:              cfg.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Metrics server listening", zap.String("address", cfg.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()
	return server
}
