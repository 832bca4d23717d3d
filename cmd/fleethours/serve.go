package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goodtune/fleethours/internal/metrics"
	"github.com/goodtune/fleethours/internal/report"
	"github.com/goodtune/fleethours/internal/scheduler"
	"github.com/goodtune/fleethours/internal/systemd"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the daily report scheduler and metrics server",
	Long: `Run fleethours as a service. When scheduler.enabled is set, the previous
day's reports are generated at scheduler.run_time and stored in Redis. Metrics
are served on server.metrics_port. SIGHUP clears the display name caches.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(os.Stdout)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.cfg
	logger := a.logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting fleethours")

	// Check for systemd socket activation
	sdListeners, err := systemd.GetListeners()
	if err != nil {
		return fmt.Errorf("failed to get systemd listeners: %w", err)
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	// Start metrics server
	metricsAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.MetricsPort)
	metricsServer := metrics.NewServer(metricsAddr, logger)
	if sdListeners.Metrics != nil {
		metricsServer.SetListener(sdListeners.Metrics)
	}
	if err := metricsServer.Start(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	// Daily report scheduler
	var reportScheduler *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		kinds := make([]report.Kind, 0, len(cfg.Scheduler.Kinds))
		for _, k := range cfg.Scheduler.Kinds {
			kind, err := report.ParseKind(k)
			if err != nil {
				return err
			}
			kinds = append(kinds, kind)
		}
		if len(cfg.Report.Locations) == 0 {
			logger.Warn().Msg("Scheduler enabled but report.locations is empty, reports will be empty")
		}

		reportScheduler, err = scheduler.New(a.generator, a.store.Reports(), scheduler.Config{
			RunTime:   cfg.Scheduler.RunTime,
			Location:  a.timezone,
			Kinds:     kinds,
			Locations: cfg.Report.Locations,
			ReportTTL: parseDuration(cfg.Storage.Redis.ReportTTL, 90*24*time.Hour),
		}, report.SystemClock(), logger)
		if err != nil {
			return fmt.Errorf("failed to create scheduler: %w", err)
		}
		reportScheduler.Start()
	} else {
		logger.Info().Msg("Report scheduler disabled")
	}

	// Notify systemd that we're ready
	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	}
	if err := systemd.NotifyStatus(fmt.Sprintf("Serving metrics on %s", metricsAddr)); err != nil {
		logger.Debug().Err(err).Msg("Failed to send systemd status")
	}

	watchdogStop := make(chan struct{})
	if enabled, err := systemd.StartWatchdog(watchdogStop); err != nil {
		logger.Warn().Err(err).Msg("Failed to start systemd watchdog")
	} else if enabled {
		logger.Info().Msg("Systemd watchdog enabled")
	}

	// Wait for signals (shutdown or cache reset)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	for sig := range sigChan {
		if sig == syscall.SIGHUP {
			logger.Info().Msg("SIGHUP received, clearing name caches")
			a.targets.Purge()
			a.locations.Purge()
			continue
		}
		logger.Info().Msg("Shutdown signal received, gracefully stopping...")
		break
	}

	// Notify systemd that we're stopping
	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}
	close(watchdogStop)

	if reportScheduler != nil {
		reportScheduler.Stop()
	}

	if err := metricsServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping Metrics Server")
	}

	logger.Info().Msg("fleethours stopped")

	return nil
}
