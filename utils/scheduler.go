package utils

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// TokenSweeper clears verification codes and reset tokens past expiry.
type TokenSweeper interface {
	ClearExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

type Scheduler struct {
	cron *cron.Cron
	log  *slog.Logger
}

func NewScheduler(log *slog.Logger) *Scheduler {
	return &Scheduler{cron: cron.New(), log: log}
}

// ScheduleTokenSweep registers the transient-token sweep under schedule
// (standard five-field cron or a descriptor such as @hourly).
func (s *Scheduler) ScheduleTokenSweep(schedule string, sweeper TokenSweeper) error {
	_, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		SweepExpiredTokens(ctx, sweeper, time.Now(), s.log)
	})
	if err != nil {
		return err
	}
	s.log.Info("token sweep scheduled", "schedule", schedule)
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// SweepExpiredTokens runs one sweep and returns how many rows were cleared.
func SweepExpiredTokens(ctx context.Context, sweeper TokenSweeper, now time.Time, log *slog.Logger) int64 {
	n, err := sweeper.ClearExpiredTokens(ctx, now)
	if err != nil {
		log.Error("token sweep failed", "err", err)
		return 0
	}
	if n > 0 {
		log.Info("expired tokens cleared", "rows", n)
	}
	return n
}
