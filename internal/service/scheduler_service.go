package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"task-ledger/internal/config"
)

// Job is one run of a scheduled task. ctx carries the per-run deadline.
type Job func(ctx context.Context) error

// SchedulerService runs the periodic report jobs on a cron clock.
type SchedulerService struct {
	cron *cron.Cron
	log  *slog.Logger
}

func NewSchedulerService(loc *time.Location, log *slog.Logger) *SchedulerService {
	cronLog := cron.PrintfLogger(slog.NewLogLogger(log.Handler(), slog.LevelInfo))
	return &SchedulerService{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithSeconds(),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		log: log,
	}
}

// ScheduleDaily runs job every day at clock (HH:MM). Runs stop once ctx is
// done; each run is bounded by timeout.
func (s *SchedulerService) ScheduleDaily(ctx context.Context, name, clock string, timeout time.Duration, job Job) (cron.EntryID, error) {
	spec, err := BuildDailySpec(clock)
	if err != nil {
		return 0, err
	}
	return s.cron.AddFunc(spec, func() { s.run(ctx, name, timeout, job) })
}

func (s *SchedulerService) run(ctx context.Context, name string, timeout time.Duration, job Job) {
	if ctx.Err() != nil {
		return
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	if err := job(runCtx); err != nil {
		s.log.Error("scheduled job failed", "job", name, "error", err)
		return
	}
	s.log.Info("scheduled job done", "job", name, "took", time.Since(started))
}

// Next is the next planned run of id, zero before Start.
func (s *SchedulerService) Next(id cron.EntryID) time.Time {
	return s.cron.Entry(id).Next
}

func (s *SchedulerService) Start() {
	s.cron.Start()
}

// Stop waits for running jobs to finish.
func (s *SchedulerService) Stop() {
	<-s.cron.Stop().Done()
}

// BuildDailySpec turns HH:MM into a cron spec with a seconds field.
func BuildDailySpec(clock string) (string, error) {
	at, err := time.Parse(config.ClockLayout, strings.TrimSpace(clock))
	if err != nil {
		return "", fmt.Errorf("invalid time %q, expected HH:MM", clock)
	}
	return fmt.Sprintf("0 %d %d * * *", at.Minute(), at.Hour()), nil
}
