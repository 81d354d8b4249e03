// Package scheduler triggers the daily ingestion cycle on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/crystalsense/crystal/app/ingest"
)

type Scheduler struct {
	coordinator *ingest.Coordinator
	schedule    string
	cron        *cron.Cron
}

func NewScheduler(coordinator *ingest.Coordinator, schedule string) *Scheduler {
	return &Scheduler{
		coordinator: coordinator,
		schedule:    schedule,
		cron:        cron.New(),
	}
}

// Start registers the daily job and launches the cron loop. Each tick
// collects the previous calendar day.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		result, err := s.coordinator.RunYesterday(context.Background())
		if err != nil {
			if errors.Is(err, ingest.ErrCycleInProgress) {
				slog.Info("Scheduled cycle skipped, previous cycle still running")
				return
			}
			slog.Error("Scheduled ingestion cycle failed", "error", err)
			return
		}
		slog.Info("Scheduled ingestion cycle completed",
			"date", result.Date, "status", result.Status, "items", result.ItemCount)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	slog.Info("Scheduler started", "schedule", s.schedule)
	return nil
}

// Stop halts the cron loop without interrupting a cycle already in flight.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
		slog.Info("Scheduler stopped")
	}
}
