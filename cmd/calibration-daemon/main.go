// Package main provides the entry point for the calibration daemon.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fightpulse/calibration/internal/config"
	"github.com/fightpulse/calibration/internal/database"
	"github.com/fightpulse/calibration/internal/health"
	"github.com/fightpulse/calibration/internal/logger"
	"github.com/fightpulse/calibration/internal/metrics"
	"github.com/fightpulse/calibration/internal/notify"
	"github.com/fightpulse/calibration/internal/repository"
	"github.com/fightpulse/calibration/internal/scheduler"
	"github.com/fightpulse/calibration/internal/service"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	// Load configuration
	configPath := os.Getenv("FIGHTPULSE_CONFIG_PATH")
	cfg, err := config.LoadWithDefaults(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Load AWS secrets if enabled
	if os.Getenv("AWS_SECRETS_ENABLED") == "true" {
		region := os.Getenv("AWS_REGION")
		secretName := os.Getenv("AWS_SECRET_NAME")
		if region == "" || secretName == "" {
			log.Fatalf("AWS_REGION and AWS_SECRET_NAME environment variables must be set when AWS_SECRETS_ENABLED is true")
		}
		if err := config.LoadSecretsFromAWS(context.Background(), cfg, region, secretName); err != nil {
			log.Fatalf("Failed to load secrets: %v", err)
		}
	}

	// Validate configuration
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Set up logging
	appLog := logger.NewLogger(cfg.App.LogLevel, cfg.App.Environment)
	appLog.WithFields(logrus.Fields{
		"environment": cfg.App.Environment,
		"log_level":   cfg.App.LogLevel,
		"version":     Version,
		"commit":      GitCommit,
		"build_date":  BuildDate,
	}).Info("FightPulse calibration daemon starting")

	metrics.InitRegistry()

	// Initialize database connection
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.Initialize(ctx, cfg)
	if err != nil {
		appLog.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	appLog.Info("Database connection established and schema verified")

	// Initialize repositories and services
	repos, err := repository.NewRepositories(db)
	if err != nil {
		appLog.WithError(err).Fatal("Failed to initialize repositories")
	}

	recalSvc := service.NewRecalibrationService(repos.Outcome, repos.Parameter, &cfg.Calibration, appLog)
	labelSvc := service.NewLabelingService(repos.Outcome, repos.WeakLabel, &cfg.Labeling, appLog)

	var notifier scheduler.Notifier
	if cfg.Notify.Enabled {
		notifier = notify.NewWebhookNotifier(&cfg.Notify, appLog)
		appLog.Info("Webhook notifications enabled")
	}

	// Schedule the recurring jobs
	sched := scheduler.NewScheduler(recalSvc, labelSvc, notifier, appLog)
	if err := sched.ScheduleRecalibration(cfg.Scheduler.RecalibrationCron); err != nil {
		appLog.WithError(err).Fatal("Failed to schedule recalibration sweep")
	}
	if err := sched.ScheduleLabeling(cfg.Scheduler.LabelingCron); err != nil {
		appLog.WithError(err).Fatal("Failed to schedule labeling batch")
	}

	// Start the health check server
	healthSrv := health.NewServer(health.Config{
		ServiceName: cfg.App.Name,
		Version:     Version,
		Commit:      GitCommit,
		Logger:      appLog,
		DB:          db,
		Schedule:    recalSvc,
		Streams:     cfg.Calibration.Streams,
	})
	if err := healthSrv.Start(ctx); err != nil {
		appLog.WithError(err).Fatal("Failed to start health server")
	}

	// Start the Prometheus metrics server
	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, metrics.Handler())
		metricsSrv = &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		go func() {
			appLog.WithFields(logrus.Fields{
				"port": cfg.Metrics.Port,
				"path": cfg.Metrics.Path,
			}).Info("Metrics server starting")
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				appLog.WithError(err).Error("Metrics server error")
			}
		}()
	}

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if err := sched.Start(); err != nil {
		appLog.WithError(err).Fatal("Failed to start scheduler")
	}
	healthSrv.SetReady(true)

	appLog.WithFields(logrus.Fields{
		"streams":            cfg.Calibration.Streams,
		"recalibration_cron": cfg.Scheduler.RecalibrationCron,
		"labeling_cron":      cfg.Scheduler.LabelingCron,
		"next_run":           sched.GetNextRun().Format(time.RFC3339),
	}).Info("Calibration daemon is running")

	// Wait for shutdown signal
	sig := <-sigChan
	appLog.WithField("signal", sig).Info("Shutdown signal received")

	// Graceful shutdown
	healthSrv.SetReady(false)
	if err := sched.Stop(); err != nil {
		appLog.WithError(err).Error("Error during scheduler shutdown")
	}

	if metricsSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			appLog.WithError(err).Error("Error during metrics server shutdown")
		}
		shutdownCancel()
	}

	// Cancel context to stop the health server
	cancel()
	time.Sleep(500 * time.Millisecond)

	appLog.Info("Calibration daemon shut down successfully")
}
