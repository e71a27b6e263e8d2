// Package scheduler repeats pipeline runs on a cron schedule.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/PaterSantyago/agent-null-null-job/internal/model"
)

// RunFunc executes one pipeline run for a criteria.
type RunFunc func(ctx context.Context, criteria model.JobCriteria) error

// Scheduler wraps robfig/cron: each tick runs every criteria sequentially.
// A tick that fires while the previous cycle is still running is skipped.
type Scheduler struct {
	spec     string
	schedule cron.Schedule
	criteria []model.JobCriteria
	run      RunFunc
	logger   *slog.Logger
}

// New parses spec (standard five-field cron or a descriptor like "@every 2h").
func New(spec string, criteria []model.JobCriteria, run RunFunc, logger *slog.Logger) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, model.NewError(model.StageConfig, model.KindConfigInvalid, "parse schedule.cron "+spec, err)
	}
	return &Scheduler{spec: spec, schedule: schedule, criteria: criteria, run: run, logger: logger}, nil
}

// Next returns when the schedule fires after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// Run runs one immediate cycle, then one per tick. It returns nil when ctx is
// cancelled (graceful shutdown), after any in-flight cycle has finished.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New(
		cron.WithLogger(cronLogger{s.logger}),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{s.logger})),
	)
	c.Schedule(s.schedule, cron.FuncJob(func() { s.runAll(ctx) }))

	s.logger.Info("starting scheduler",
		"cron", s.spec,
		"criteria", len(s.criteria),
		"next", s.Next(time.Now()),
	)

	// Run one immediate cycle before the first tick.
	s.runAll(ctx)

	c.Start()
	<-ctx.Done()
	s.logger.Info("shutting down scheduler")
	<-c.Stop().Done()
	return nil
}

// runAll runs each criteria sequentially; one failing criteria does not stop the rest.
func (s *Scheduler) runAll(ctx context.Context) {
	for _, cr := range s.criteria {
		if ctx.Err() != nil {
			return
		}
		if err := s.run(ctx, cr); err != nil {
			s.logger.Error("scheduled run failed",
				"criteria", cr.ID,
				"error", err,
			)
		}
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
