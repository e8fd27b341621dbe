package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tweetgram/internal/config"
	"tweetgram/internal/constants"
	"tweetgram/internal/database"
	"tweetgram/internal/metrics"
	"tweetgram/internal/resilience"
	"tweetgram/internal/security"
	"tweetgram/internal/service"
	"tweetgram/internal/tracing"

	"github.com/sirupsen/logrus"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	configPath = flag.String("config", "config.json", "Path to configuration file")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("tweetgram %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting tweetgram")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	} else {
		logger.Warnf("Invalid log level %q, defaulting to info", cfg.LogLevel)
		logger.SetLevel(logrus.InfoLevel)
	}

	logger.WithFields(logrus.Fields(config.Sanitized(cfg))).Info("Configuration loaded")

	tracingManager := tracing.NewManager(cfg.Tracing, logger)
	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	store, err := openDedupStore(cfg.Dedup.Backend, cfg.Dedup.Path, cfg.Dedup.MaxAgeDays)
	if err != nil {
		return fmt.Errorf("failed to open dedup store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warnf("Failed to close dedup store: %v", err)
		}
	}()

	registry := metrics.NewRegistry()
	caller := resilience.NewCaller(cfg.RateLimit, logger, registry)

	confirmations := service.NewConfirmationRegistry(
		time.Duration(cfg.Confirmation.TimeoutSec)*time.Second,
		time.Duration(cfg.Confirmation.SweepIntervalSec)*time.Second,
		cfg.Confirmation.PostMaxLength,
		logger,
	)
	confirmations.Start(ctx)
	defer confirmations.Stop()

	// The chat and social transports are injected here. This binary ships
	// with logging transports so the core can run standalone; a deployment
	// links in real clients at this seam.
	transports := newLogTransports(logger)

	relay := service.NewRelayService(confirmations, caller, transports, cfg.AuthorizedUserID, cfg.DryRun, logger, registry)
	forwarder := service.NewForwarder(transports, logger)
	poller := service.NewInboundPoller(transports, caller, store, forwarder, cfg.Inbound, logger, registry)
	poller.Start(ctx)
	defer poller.Stop()

	server := NewServer(relay, poller, store, registry, logger)
	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(cfg.Server); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serverErr:
		return fmt.Errorf("stats server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.DefaultGracefulShutdownSec*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("Failed to shut down stats server: %v", err)
	}

	return nil
}

type closableStore interface {
	service.DedupStore
	Close() error
}

func openDedupStore(backend, path string, maxAgeDays int) (closableStore, error) {
	if err := security.ValidateStorePath(path); err != nil {
		return nil, err
	}
	switch backend {
	case "file":
		return database.NewFileStore(path, maxAgeDays)
	default:
		return database.New(path, maxAgeDays)
	}
}
