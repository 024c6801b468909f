package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/focusd/journalgate/internal/clock"
	"github.com/eliteGoblin/focusd/journalgate/internal/daemon"
	"github.com/eliteGoblin/focusd/journalgate/internal/domain"
	"github.com/eliteGoblin/focusd/journalgate/internal/infra"
	"github.com/eliteGoblin/focusd/journalgate/internal/policy"
)

func runDaemon(cmd *cobra.Command, args []string) error {
	paths := resolvePaths()
	if err := paths.Ensure(); err != nil {
		return err
	}

	logger := createLogger(paths)
	defer func() { _ = logger.Sync() }()

	pm := infra.NewProcessManager()
	registry := infra.NewFileRegistry(paths, pm)
	if entry, err := registry.Get(); err == nil && entry.PID != os.Getpid() && pm.IsRunning(entry.PID) {
		logger.Warn("daemon already running", zap.Int("pid", entry.PID))
		return fmt.Errorf("daemon already running (pid %d)", entry.PID)
	}

	c := clock.Real{}
	store, err := openStore(paths, logger.Named("store"))
	if err != nil {
		logger.Error("failed to open entry store", zap.Error(err))
		return err
	}
	defer store.Close()

	settings := infra.NewViperSettings(paths.ConfigDir, logger.Named("config"))
	spool := infra.NewSignalSpool(paths, c, logger.Named("signals"))
	clockWatcher := infra.NewClockWatcher(spool, infra.DefaultClockCheckInterval, logger.Named("clock"))

	filter := policy.NewFilter()
	table := infra.GopsutilTable{}
	notifier := infra.NewDesktopNotifier()
	usage := infra.NewUsageSampler(table, c, func(name string) bool {
		return filter.IsSelf(name) || filter.IsExempt(name)
	})

	host := daemon.Host{
		Settings:   settings,
		Entries:    store,
		Completion: store,
		Signals:    spool,
		Probe:      infra.NewLockStateProbe(paths),
		Foreground: infra.NewProcessObserver(table, infra.DefaultObserveInterval, c, logger.Named("observer")),
		Usage:      usage,
		Navigator:  infra.NewJournalNavigator(pm, notifier, settings.JournalCommand, logger.Named("navigator")),
		Reminder:   infra.NewGentleReminder(notifier),
	}

	d := domain.Daemon{
		PID:        os.Getpid(),
		StartedAt:  time.Now(),
		AppVersion: Version,
	}
	watcher := daemon.NewWatcher(daemon.DefaultGateConfig(), host, registry, d, c, logger)
	usage.Prefer(func(name string) bool {
		return watcher.Settings().Snapshot().BlockedPackages.Contains(name)
	})

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			logger.Info("received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	var wg sync.WaitGroup
	runBackground(ctx, &wg, logger, "signal spool", func(ctx context.Context) error {
		// Spooled signals are only worth draining once the daemon listens.
		waitForSubscribers(ctx, spool)
		return spool.Run(ctx)
	})
	runBackground(ctx, &wg, logger, "clock watcher", clockWatcher.Run)

	err = watcher.Run(ctx)
	cancel()
	wg.Wait()

	if clearErr := registry.Clear(); clearErr != nil {
		logger.Warn("failed to clear registry", zap.Error(clearErr))
	}
	if errors.Is(err, context.Canceled) {
		logger.Info("gate daemon stopped")
		return nil
	}
	return err
}

func waitForSubscribers(ctx context.Context, spool *infra.SignalSpool) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(5 * time.Second)
	for spool.Subscribers() == 0 {
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			return
		case <-ticker.C:
		}
	}
}

func createLogger(paths infra.Paths) *zap.Logger {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{paths.LogFile}
	config.ErrorOutputPaths = []string{paths.LogFile}
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		// Fallback to stdout if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}

// runBackground runs fn in a goroutine tracked by wg and logs any exit other
// than cancellation.
func runBackground(ctx context.Context, wg *sync.WaitGroup, logger *zap.Logger, name string, fn func(context.Context) error) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("background task stopped", zap.String("task", name), zap.Error(err))
		}
	}()
}
