package scheduler

import (
	"context"
	"time"

	"equb_tracker/internal/app"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const sweepTimeout = 5 * time.Minute

// ReminderScheduler runs the daily Equb reminder sweep.
type ReminderScheduler struct {
	cronEngine *cron.Cron
	sweeper    app.ReminderSweeper
	logger     *logrus.Entry
	cronSpec   string
}

func NewReminderScheduler(
	sweeper app.ReminderSweeper,
	logger *logrus.Entry,
	cronSpec string, // e.g., "0 9 * * *" (9 AM daily)
	loc *time.Location,
) *ReminderScheduler {
	if loc == nil {
		loc = time.Local
	}
	return &ReminderScheduler{
		cronEngine: cron.New(cron.WithLocation(loc)),
		sweeper:    sweeper,
		logger:     logger,
		cronSpec:   cronSpec,
	}
}

// Start registers the sweep job and starts the cron engine. It fails on an invalid cron spec.
func (s *ReminderScheduler) Start() error {
	s.logger.Info("Starting reminder scheduler...")

	if _, err := s.cronEngine.AddFunc(s.cronSpec, s.runSweep); err != nil {
		return err
	}

	s.cronEngine.Start()
	s.logger.WithField("spec", s.cronSpec).Info("Reminder scheduler started.")
	return nil
}

func (s *ReminderScheduler) runSweep() {
	s.logger.Info("Cron job triggered for Equb reminder sweep.")
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	created, err := s.sweeper.SweepAll(ctx)
	if err != nil {
		s.logger.WithError(err).WithField("created", created).Error("Equb reminder sweep finished with errors")
		return
	}
	s.logger.WithField("created", created).Info("Equb reminder sweep finished")
}

func (s *ReminderScheduler) Stop() {
	s.logger.Info("Stopping reminder scheduler...")
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()
	s.logger.Info("Reminder scheduler gracefully stopped.")
}
