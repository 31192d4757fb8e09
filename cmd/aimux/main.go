package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"

	"github.com/martinemde/aimux/config"
	"github.com/martinemde/aimux/httpapi"
	"github.com/martinemde/aimux/logging"
	"github.com/martinemde/aimux/perfmon"
	"github.com/martinemde/aimux/router"
)

var Version = "0.1.0"

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	envPath := flag.String("env-file", ".env", "path to a .env file")
	showVersion := flag.Bool("version", false, "show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("aimux %s\n", Version)
		os.Exit(0)
	}

	if err := run(*configPath, *envPath); err != nil {
		fmt.Fprintf(os.Stderr, "aimux: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, envPath string) error {
	cfg, err := config.Load(config.WithConfigFile(configPath), config.WithEnvFile(envPath))
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logging.New(cfg.Logging()).WithFields(logging.Fields(logging.FieldService, "aimux"))
	logger := log.WithComponent("main")
	logger.Info("starting aimux", logging.Fields("version", Version, "env", cfg.Environment))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownMeter := func(context.Context) error { return nil }
	if cfg.OTLPEndpoint != "" {
		mp, err := initMeter(ctx, cfg)
		if err != nil {
			return err
		}
		shutdownMeter = mp.Shutdown
		logger.Info("meter initialized", logging.Fields(
			"endpoint", cfg.OTLPEndpoint,
			"interval", cfg.OTLPExportPeriod.String(),
		))
	}

	monitor, err := perfmon.New(
		perfmon.WithSlowThreshold(cfg.SlowThreshold()),
		perfmon.WithLogger(log),
		perfmon.WithMeter(otel.Meter("github.com/martinemde/aimux")),
	)
	if err != nil {
		return fmt.Errorf("failed to create monitor: %w", err)
	}

	retryPolicy := cfg.RetryPolicy()
	retryLog := log.WithComponent("retry")
	retryPolicy.OnRetry = func(err error, attempt int, delay time.Duration) {
		retryLog.Warn("retrying backend call", logging.Fields(
			logging.FieldError, err,
			"attempt", attempt,
			"delay", delay.String(),
		))
	}

	factory := func(b router.Backend, credential string) (router.Client, error) {
		c, err := router.NewGollmClient(b, credential,
			router.WithMaxTokens(cfg.MaxTokens),
			router.WithTemperature(cfg.Temperature),
			router.WithRetry(retryPolicy),
		)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	dispatcher := router.NewDispatcher(cfg.Credentials(), factory,
		router.WithTracker(monitor),
		router.WithLogger(log),
	)
	if len(dispatcher.Available()) == 0 {
		logger.Warn("no services configured")
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := httpapi.NewRouter(httpapi.NewService(dispatcher, monitor, log))

	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", logging.Fields("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	if cfg.MetricsLogInterval > 0 {
		go logSummaries(ctx, monitor, cfg.MetricsLogInterval)
	}

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			logger.Error("server error", logging.Fields(logging.FieldError, err))
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", logging.Fields(logging.FieldError, err))
	}
	if err := dispatcher.Close(); err != nil {
		logger.Warn("error closing services", logging.Fields(logging.FieldError, err))
	}
	monitor.LogSummary()
	if err := shutdownMeter(shutdownCtx); err != nil {
		logger.Warn("meter shutdown error", logging.Fields(logging.FieldError, err))
	}

	logger.Info("aimux stopped")
	return nil
}

// logSummaries writes the metrics summary every interval until ctx ends.
func logSummaries(ctx context.Context, m *perfmon.Monitor, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.LogSummary()
		}
	}
}
