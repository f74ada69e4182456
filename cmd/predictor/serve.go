package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/race-time-predictor/internal/api"
	"github.com/yourusername/race-time-predictor/internal/health"
	"github.com/yourusername/race-time-predictor/internal/logger"
	"github.com/yourusername/race-time-predictor/internal/metrics"
	"github.com/yourusername/race-time-predictor/internal/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the prediction API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(parent context.Context) error {
	appLog.WithFields(logrus.Fields{
		"environment": cfg.App.Environment,
		"log_level":   cfg.App.LogLevel,
		"version":     Version,
	}).Info("Race time predictor starting")

	metrics.InitRegistry()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	p, err := buildPipeline(ctx, cfg, appLog)
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			appLog.WithError(err).Error("Failed to release resources")
		}
	}()

	logger.NewAuditLogger(appLog).LogStartup(
		cfg.App.Environment,
		cfg.ReferenceData.Source,
		p.registry.Backends(),
		cfg.Distance.OnUnavailable,
	)

	sched, err := newScheduler(p)
	if err != nil {
		return err
	}
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer func() {
		if err := sched.Stop(); err != nil {
			appLog.WithError(err).Error("Failed to stop scheduler")
		}
	}()

	var healthServer *health.Server
	if cfg.Health.Enabled {
		healthServer = newHealthServer(p)
		if err := healthServer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start health server: %w", err)
		}
		healthServer.SetReady(true)
	}

	handler := api.NewPredictionHandler(p.service, p.tables, p.registry, appLog)
	router := api.NewRouter(cfg, handler, appLog)
	server := api.NewServer(cfg.Server, cfg.ServerAddress(), router)

	serverErr := make(chan error, 1)
	go func() {
		appLog.WithField("address", server.Addr).Info("Prediction API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		appLog.WithField("signal", sig).Info("Shutdown signal received")
	case err, ok := <-serverErr:
		if ok {
			return fmt.Errorf("prediction API failed: %w", err)
		}
	case <-ctx.Done():
	}

	if healthServer != nil {
		healthServer.SetReady(false)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLog.WithError(err).Error("Prediction API shutdown failed")
	}

	appLog.Info("Race time predictor stopped")
	return nil
}

func newScheduler(p *pipeline) (*scheduler.Scheduler, error) {
	sched := scheduler.NewScheduler(appLog)

	if cfg.PredictionLog.Enabled && cfg.PredictionLog.PruneSchedule != "" && p.repos != nil {
		if err := sched.SchedulePredictionLogPrune(cfg.PredictionLog.PruneSchedule, p.repos.PredictionLog, cfg.PredictionLog.RetentionDays); err != nil {
			return nil, fmt.Errorf("failed to schedule prediction log prune: %w", err)
		}
	}

	if cfg.Health.ProbeSchedule != "" {
		timeout := time.Duration(cfg.Health.ProbeTimeoutSecond) * time.Second
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		if err := sched.ScheduleModelProbe(cfg.Health.ProbeSchedule, p.registry, timeout); err != nil {
			return nil, fmt.Errorf("failed to schedule model probe: %w", err)
		}
	}

	return sched, nil
}

func newHealthServer(p *pipeline) *health.Server {
	hc := health.Config{
		ServiceName: cfg.App.Name,
		Version:     Version,
		Commit:      GitCommit,
		Logger:      appLog,
		Checks: map[string]health.Check{
			"reference_data": func(ctx context.Context) error {
				if len(p.tables.EventLocations()) == 0 {
					return errors.New("no event locations loaded")
				}
				return nil
			},
			"models": func(ctx context.Context) error {
				if p.registry.Loaded() == 0 {
					return errors.New("no segment models loaded")
				}
				return nil
			},
		},
	}
	if cfg.Health.Port > 0 {
		hc.Port = strconv.Itoa(cfg.Health.Port)
	}
	if p.db != nil {
		hc.Checks["database"] = p.db.Ping
	}
	if timeout := time.Duration(cfg.Health.ProbeTimeoutSecond) * time.Second; timeout > 0 {
		hc.CheckTimeout = timeout
	}
	return health.NewServer(hc)
}
