package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"notification_mailer/internal/domain/notification"
	"notification_mailer/internal/infra/config"
	"notification_mailer/internal/infra/logger"
	"notification_mailer/internal/infra/metrics"
	"notification_mailer/internal/infra/scheduler"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func NewRootCommand(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "mailer",
		Short:         "Sends pending backoffice notifications by email",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), out)
		},
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Check connectivity, run once, then dispatch on the configured schedule",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runServe(cmd.Context(), out)
			},
		},
		&cobra.Command{
			Use:   "once",
			Short: "Run a single dispatch pass and exit",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runOnce(cmd.Context(), out)
			},
		},
		&cobra.Command{
			Use:   "check",
			Short: "Verify database and mail transport connectivity",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runCheck(cmd.Context(), out)
			},
		},
	)
	return root
}

// setup loads configuration, builds components and runs the connectivity check.
// Any error here is a startup failure.
func setup(ctx context.Context, out io.Writer, withCommands bool) (*components, error) {
	bootLogger := logrus.New()
	bootLogger.SetOutput(out)

	cfg, err := config.Load()
	if err != nil {
		bootLogger.Errorf("FATAL: Could not load application configuration: %v", err)
		return nil, err
	}
	log := logger.New(cfg, out)
	log.Infof("Configuration loaded. LogLevel: %s, Environment: %s, Schedule: %q", cfg.LogLevel, cfg.Environment, cfg.CronSpecDispatch)

	c, err := buildComponents(cfg, log, withCommands)
	if err != nil {
		log.WithError(err).Error("FATAL: Could not initialize components")
		return nil, err
	}
	if err := c.checkConnectivity(ctx); err != nil {
		log.WithError(err).Error("✗ Startup check failed. Review the configuration.")
		c.Close()
		return nil, err
	}
	return c, nil
}

func runServe(ctx context.Context, out io.Writer) error {
	fmt.Fprintln(out, "=================================")
	fmt.Fprintln(out, "Notification Mailer")
	fmt.Fprintln(out, "=================================")

	c, err := setup(ctx, out, true)
	if err != nil {
		return err
	}
	defer c.Close()
	log := c.logger

	if c.cfg.MetricsAddr != "" {
		metricsServer := metrics.NewServer(c.cfg.MetricsAddr)
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil {
				log.WithError(err).Error("Metrics server stopped")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
		log.Infof("Serving metrics on %s/metrics", c.cfg.MetricsAddr)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	notifScheduler := scheduler.NewDispatchScheduler(c.dispatcher, log, c.cfg.CronSpecDispatch, c.cfg.RunTimeout)
	if c.admin != nil {
		c.admin.AttachTrigger(notifScheduler)
		go c.bot.Start()
		defer c.bot.Stop()
		log.Info("Telegram bot started, answering operator commands.")
	}

	started := make(chan error, 1)
	go func() { started <- notifScheduler.Start() }()

	select {
	case err := <-started:
		if err != nil {
			log.WithError(err).Error("FATAL: Could not start scheduler")
			return err
		}
		log.Info("✓ System started. Press Ctrl+C to stop.")
	case sig := <-quit:
		log.Infof("Received %s during the first run, stopping.", sig)
		notifScheduler.Stop()
		return nil
	}

	sig := <-quit // Block until a signal is received
	log.Infof("Received %s, shutting down...", sig)
	// In-flight sends are abandoned; their records stay pending for the next start.
	notifScheduler.Stop()
	log.Info("Scheduler stopped.")
	return nil
}

func runOnce(ctx context.Context, out io.Writer) error {
	c, err := setup(ctx, out, false)
	if err != nil {
		return err
	}
	defer c.Close()

	runCtx, cancel := context.WithTimeout(ctx, c.cfg.RunTimeout)
	defer cancel()
	summary := c.dispatcher.Run(runCtx)

	if summary.FetchErr != nil {
		return summary.FetchErr
	}
	fmt.Fprintf(out, "%d pending, %d sent, %d still pending\n",
		summary.Pending, summary.Count(notification.OutcomeSent), len(summary.Failed()))
	if n := len(summary.Failed()); n > 0 {
		return fmt.Errorf("%d record(s) could not be dispatched", n)
	}
	return nil
}

func runCheck(ctx context.Context, out io.Writer) error {
	c, err := setup(ctx, out, false)
	if err != nil {
		return err
	}
	c.Close()
	fmt.Fprintln(out, "OK")
	return nil
}
