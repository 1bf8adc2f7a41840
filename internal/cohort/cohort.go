// Package cohort keeps the active flag in step with the exam day: students
// created today are active, everyone created earlier is not.
package cohort

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Activator flips the active flag for a day window.
type Activator interface {
	ActivateCohort(ctx context.Context, dayStart, dayEnd time.Time) (deactivated, activated int64, err error)
}

// Result reports what a run changed.
type Result struct {
	DayStart    time.Time
	DayEnd      time.Time
	Deactivated int64
	Activated   int64
}

// DayBounds returns the start of the day containing now in loc and the
// start of the following day.
func DayBounds(now time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.Local
	}
	t := now.In(loc)
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// Run applies the activation for the day containing now.
func Run(ctx context.Context, a Activator, now time.Time, loc *time.Location) (Result, error) {
	start, end := DayBounds(now, loc)
	deactivated, activated, err := a.ActivateCohort(ctx, start, end)
	if err != nil {
		return Result{}, fmt.Errorf("activate cohort: %w", err)
	}
	res := Result{DayStart: start, DayEnd: end, Deactivated: deactivated, Activated: activated}
	slog.Info("cohort activation finished",
		"day", start.Format(time.DateOnly),
		"deactivated", deactivated,
		"activated", activated)
	return res, nil
}

// Scheduler runs the activation on a cron schedule.
type Scheduler struct {
	cron *cron.Cron
	id   cron.EntryID
}

// NewScheduler registers the job. spec is a standard five-field cron
// expression evaluated in loc.
func NewScheduler(a Activator, spec string, loc *time.Location) (*Scheduler, error) {
	if loc == nil {
		loc = time.Local
	}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
	id, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := Run(ctx, a, time.Now(), loc); err != nil {
			slog.Error("scheduled cohort activation failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	return &Scheduler{cron: c, id: id}, nil
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("cohort scheduler started", "next", s.Next())
}

// Next returns the next scheduled run, or the zero time before Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.id).Next
}

// Stop stops the scheduler and waits for a running job to finish or ctx
// to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		slog.Warn("cohort job still running at shutdown")
	}
}
