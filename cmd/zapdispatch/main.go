package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"zapdispatch/internal/config"
	"zapdispatch/internal/constants"
	"zapdispatch/internal/database"
	"zapdispatch/internal/retry"
	"zapdispatch/internal/service"
	"zapdispatch/internal/tracing"
	"zapdispatch/pkg/transport"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	verbose    = flag.Bool("verbose", false, "Enable verbose logging (includes sensitive information)")
	configPath = flag.String("config", "config.json", "Path to configuration file")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("zapdispatch %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	// Optional .env for local development; ignored when absent
	_ = godotenv.Load()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting zapdispatch")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
		logger.Info("Verbose logging enabled - sensitive information will be logged")
	} else if cfg.LogLevel != "" {
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			logger.Warnf("Invalid log level %q, defaulting to info", cfg.LogLevel)
			logger.SetLevel(logrus.InfoLevel)
		} else {
			logger.SetLevel(level)
		}
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	tracingManager := tracing.NewManager(tracing.Config{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: Version,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		Enabled:        cfg.Tracing.Enabled,
		UseStdout:      cfg.Tracing.UseStdout,
	}, logger)

	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	// Initialize database with exponential backoff retry
	var db *database.Database
	backoff := retry.NewBackoff(retry.BackoffConfig{
		InitialDelay: constants.DefaultRetryBackoffMs * time.Millisecond,
		MaxDelay:     constants.DefaultMaxBackoffMs * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  constants.DefaultDatabaseRetryAttempts,
	})
	err = backoff.Retry(ctx, func() error {
		var dbErr error
		db, dbErr = database.New(cfg.Database.Path, cfg.Database.EncryptionSecret)
		return dbErr
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warnf("Failed to close database: %v", err)
		}
	}()

	transportClient := transport.NewClient(
		cfg.Transport.BaseURL,
		cfg.Transport.APIToken,
		transport.WithTimeout(time.Duration(cfg.Transport.TimeoutSec)*time.Second),
	)

	builder := service.NewBatchBuilder(db, cfg.Transport.Instance, logger)
	jitter := service.NewJitterScheduler(db, rand.New(rand.NewSource(time.Now().UnixNano())), logger)
	processor := service.NewDispatchProcessor(db, transportClient, service.DispatchProcessorConfig{
		MaxAttempts:       cfg.Dispatch.MaxAttempts,
		BackoffStep:       time.Duration(cfg.Dispatch.BackoffStepMs) * time.Millisecond,
		Slack:             time.Duration(cfg.Dispatch.SlackMs) * time.Millisecond,
		PerIterationLimit: cfg.Dispatch.PerIterationLimit,
		TimeBudget:        time.Duration(cfg.Dispatch.TimeBudgetMs) * time.Millisecond,
		MaxErrorLength:    constants.DefaultMaxErrorLength,
	}, logger)
	reporter := service.NewStatusReporter(db)
	window := service.NewWindowPolicy(cfg.Window.StartHour, cfg.Window.EndHour)

	dispatchService := service.NewDispatchService(
		db, builder, jitter, processor, reporter, window,
		cfg.Jitter, cfg.Window.Timezone, logger,
	)
	mediaService := service.NewMediaService(
		transportClient,
		cfg.Dispatch.MaxAttempts,
		time.Duration(cfg.Dispatch.BackoffStepMs)*time.Millisecond,
		logger,
	)

	cleanup := service.NewScheduler(db, cfg.RetentionDays, constants.DefaultCleanupIntervalHours, logger)
	go cleanup.Start(ctx)
	defer cleanup.Stop()

	server := NewServer(
		dispatchService,
		mediaService,
		cfg.Server.APIKey,
		constants.DefaultWatchPollIntervalSec*time.Second,
		logger,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(cfg.Server.Port, cfg.Server.ReadTimeoutSec, cfg.Server.WriteTimeoutSec, cfg.Server.IdleTimeoutSec); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.DefaultGracefulShutdownSec*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}
