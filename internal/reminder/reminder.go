// Package reminder periodically reports how many cards are due.
package reminder

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/conorfennell/prepcards/internal/domain"
	"github.com/conorfennell/prepcards/internal/logger"
)

// DueCounter answers per-category due counts.
type DueCounter interface {
	CategoryStats(asOf time.Time) []domain.CategoryStats
}

// Notifier delivers a reminder. total is the number of due cards and is
// always positive.
type Notifier interface {
	Notify(total int, byCategory []domain.CategoryStats) error
}

// LogNotifier writes reminders to the application log.
type LogNotifier struct {
	Log *logger.Logger
}

func (n LogNotifier) Notify(total int, byCategory []domain.CategoryStats) error {
	kv := []interface{}{"due", total}
	for _, c := range byCategory {
		if c.Due > 0 {
			kv = append(kv, c.Category, c.Due)
		}
	}
	n.Log.Info("cards due for review", kv...)
	return nil
}

// Scheduler runs the due check on a cron schedule.
type Scheduler struct {
	scheduler *gocron.Scheduler
	cards     DueCounter
	notifier  Notifier
	log       *logger.Logger
	now       func() time.Time
}

// New creates a scheduler evaluating cron expressions in loc.
func New(cards DueCounter, notifier Notifier, loc *time.Location, log *logger.Logger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(loc),
		cards:     cards,
		notifier:  notifier,
		log:       log.With("component", "reminder"),
		now:       func() time.Time { return time.Now().In(loc) },
	}
}

// Start schedules the check with a standard five-field cron expression and
// runs it in the background.
func (s *Scheduler) Start(cronExpr string) error {
	if _, err := s.scheduler.Cron(cronExpr).Do(s.Check); err != nil {
		return fmt.Errorf("invalid reminder schedule %q: %w", cronExpr, err)
	}
	s.scheduler.StartAsync()
	s.log.Info("reminder scheduled", "cron", cronExpr)
	return nil
}

// Stop terminates all scheduled tasks.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// Check notifies when any card is due. It returns the number of due cards.
func (s *Scheduler) Check() int {
	stats := s.cards.CategoryStats(s.now())
	total := 0
	for _, c := range stats {
		total += c.Due
	}
	if total == 0 {
		s.log.Debug("no cards due")
		return 0
	}
	if err := s.notifier.Notify(total, stats); err != nil {
		s.log.Warn("failed to send reminder", "error", err)
	}
	return total
}
