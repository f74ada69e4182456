// Package scheduler runs the periodic maintenance jobs of the service.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/race-time-predictor/internal/logger"
	"github.com/yourusername/race-time-predictor/internal/metrics"
	"github.com/yourusername/race-time-predictor/internal/models"
)

// PredictionLogPruner deletes old prediction log rows
type PredictionLogPruner interface {
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// ModelProber health checks the remote segment models
type ModelProber interface {
	Probe(ctx context.Context, mlLogger *logger.MLLogger) map[models.Segment]error
}

// Scheduler manages scheduled maintenance jobs
type Scheduler struct {
	cron            *cron.Cron
	logger          *logrus.Entry
	baseLogger      *logrus.Logger
	mu              sync.RWMutex
	isRunning       bool
	jobIDs          []cron.EntryID
	gracefulTimeout time.Duration
	now             func() time.Time
}

const (
	jobPrune      = "prediction_log_prune"
	jobModelProbe = "model_probe"
)

// NewScheduler creates a new scheduler
func NewScheduler(log *logrus.Logger) *Scheduler {
	entry := log.WithField("component", "scheduler")
	cronLogger := cron.PrintfLogger(entry)
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		logger:          entry,
		baseLogger:      log,
		jobIDs:          make([]cron.EntryID, 0),
		gracefulTimeout: 30 * time.Second,
		now:             time.Now,
	}
}

// SchedulePredictionLogPrune schedules deletion of prediction log rows older
// than the retention period
func (s *Scheduler) SchedulePredictionLogPrune(cronExpression string, pruner PredictionLogPruner, retentionDays int) error {
	if retentionDays <= 0 {
		return fmt.Errorf("retention must be positive, got %d days", retentionDays)
	}
	audit := logger.NewAuditLogger(s.baseLogger)

	return s.addJob(cronExpression, jobPrune, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		_, err := PruneOnce(ctx, pruner, s.now(), retentionDays, audit)
		metrics.RecordJobRun(jobPrune, err)
		if err != nil {
			s.logger.WithError(err).Error("Scheduled prediction log prune failed")
		}
	})
}

// ScheduleModelProbe schedules health checks of the remote models
func (s *Scheduler) ScheduleModelProbe(cronExpression string, prober ModelProber, timeout time.Duration) error {
	mlLogger := logger.NewMLLogger(s.baseLogger)

	return s.addJob(cronExpression, jobModelProbe, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		var failed []error
		for segment, err := range prober.Probe(ctx, mlLogger) {
			if err != nil {
				failed = append(failed, fmt.Errorf("%s: %w", segment, err))
			}
		}
		metrics.RecordJobRun(jobModelProbe, errors.Join(failed...))
	})
}

// PruneOnce deletes the prediction log rows that fell out of retention
func PruneOnce(ctx context.Context, pruner PredictionLogPruner, now time.Time, retentionDays int, audit *logger.AuditLogger) (int64, error) {
	cutoff := now.UTC().Add(-time.Duration(retentionDays) * 24 * time.Hour)
	deleted, err := pruner.PruneOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	metrics.RecordPruned(deleted)
	if audit != nil {
		audit.LogPredictionLogPruned(cutoff, deleted)
	}
	return deleted, nil
}

func (s *Scheduler) addJob(cronExpression, name string, job func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cannot schedule job while scheduler is running")
	}

	entryID, err := s.cron.AddFunc(cronExpression, job)
	if err != nil {
		return fmt.Errorf("failed to add %s job: %w", name, err)
	}

	s.jobIDs = append(s.jobIDs, entryID)
	s.logger.WithFields(logrus.Fields{
		"job":      name,
		"schedule": cronExpression,
	}).Info("Scheduled job")

	return nil
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	if len(s.jobIDs) == 0 {
		s.logger.Info("No maintenance jobs scheduled")
		return nil
	}

	s.cron.Start()
	s.isRunning = true
	s.logger.WithField("jobs", len(s.jobIDs)).Info("Scheduler started")

	return nil
}

// Stop stops the scheduler, waiting for running jobs up to the graceful timeout
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	s.isRunning = false
	select {
	case <-s.cron.Stop().Done():
		s.logger.Info("Scheduler stopped")
		return nil
	case <-time.After(s.gracefulTimeout):
		return fmt.Errorf("scheduler jobs still running after %s", s.gracefulTimeout)
	}
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetNextRun returns the time of the next scheduled job run
func (s *Scheduler) GetNextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning || len(s.jobIDs) == 0 {
		return time.Time{}
	}

	nextRun := time.Time{}
	for _, jobID := range s.jobIDs {
		entry := s.cron.Entry(jobID)
		if entry.Valid() {
			nextTime := entry.Next
			if nextRun.IsZero() || nextTime.Before(nextRun) {
				nextRun = nextTime
			}
		}
	}

	return nextRun
}

// Entries returns information about scheduled entries
func (s *Scheduler) Entries() []cron.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]cron.Entry, 0, len(s.jobIDs))
	for _, jobID := range s.jobIDs {
		entry := s.cron.Entry(jobID)
		if entry.Valid() {
			entries = append(entries, entry)
		}
	}

	return entries
}
