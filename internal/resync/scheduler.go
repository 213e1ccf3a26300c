package resync

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultSchedule runs a pass every hour.
const DefaultSchedule = "@every 1h"

// Scheduler wraps robfig/cron and runs the job on a schedule. A pass still
// running when the next one is due causes that tick to be skipped.
type Scheduler struct {
	cron *cron.Cron
	job  *Job
	spec string
}

// NewScheduler creates a Scheduler. An empty spec means DefaultSchedule.
func NewScheduler(job *Job, spec string) *Scheduler {
	if spec == "" {
		spec = DefaultSchedule
	}
	logger := zapCronLogger{log: zap.L().Named("cron")}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		job:  job,
		spec: spec,
	}
}

// Start registers the job and starts the scheduler. ctx bounds every pass.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		if _, err := s.job.RunOnce(ctx); err != nil {
			zap.L().Error("resync: scheduled pass failed", zap.Error(err))
		}
	})
	if err != nil {
		return eris.Wrapf(err, "resync: schedule %q", s.spec)
	}
	s.cron.Start()
	zap.L().Info("resync: scheduler started", zap.String("spec", s.spec))
	return nil
}

// Stop stops scheduling and returns a context done once the running pass,
// if any, has finished.
func (s *Scheduler) Stop() context.Context {
	zap.L().Info("resync: scheduler stopping")
	return s.cron.Stop()
}

type zapCronLogger struct {
	log *zap.Logger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Sugar().Debugw(msg, keysAndValues...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
