package gdrive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// DefaultSchedule syncs every fifteen minutes.
const DefaultSchedule = "*/15 * * * *"

// ParseSchedule parses a standard 5-field cron expression.
func ParseSchedule(expr string) (cron.Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		expr = DefaultSchedule
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse sync schedule %q: %w", expr, err)
	}
	return sched, nil
}

// Journal resolves the local journal file for a day.
type Journal interface {
	PathFor(at time.Time) string
}

// Scheduler periodically uploads the current day's journal.
type Scheduler struct {
	syncer  *Syncer
	journal Journal
	sched   cron.Schedule
	log     *logrus.Entry

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

func NewScheduler(syncer *Syncer, journal Journal, sched cron.Schedule, log *logrus.Entry) *Scheduler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Scheduler{
		syncer:  syncer,
		journal: journal,
		sched:   sched,
		log:     log.WithField("component", "gdrive"),
		now:     time.Now,
		after:   time.After,
	}
}

// Run blocks until ctx is cancelled, syncing at every scheduled tick.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		now := s.now()
		next := s.sched.Next(now)
		wait := next.Sub(now)
		s.log.WithField("next", next.Format(time.RFC3339)).Debug("next journal sync scheduled")

		select {
		case <-ctx.Done():
			return
		case <-s.after(wait):
		}

		s.SyncNow()
	}
}

// SyncNow uploads today's journal. A day without a journal is skipped.
func (s *Scheduler) SyncNow() {
	now := s.now()
	path := s.journal.PathFor(now)
	date := now.Format("2006-01-02")

	err := s.syncer.Sync(path, date)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.log.WithField("date", date).Debug("no journal to sync")
	case err != nil:
		s.log.WithError(err).WithField("date", date).Error("journal sync failed")
	default:
		s.log.WithField("date", date).Info("journal synced to drive")
	}
}
