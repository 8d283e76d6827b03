package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// SweepSchedule is how often each sweep fires.
type SweepSchedule struct {
	Lifecycle time.Duration // start + complete
	Scoring   time.Duration
}

type Scheduler struct {
	sched  gocron.Scheduler
	runner *SweepRunner
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// StartScheduler registers one singleton job per sweep and starts them.
func StartScheduler(clock clockwork.Clock, runner *SweepRunner, every SweepSchedule, log *zap.Logger) (*Scheduler, error) {
	log = log.Named("scheduler")
	sched, err := gocron.NewScheduler(
		gocron.WithClock(clock),
		gocron.WithLogger(gocronLogger{log.Sugar()}),
	)
	if err != nil {
		return nil, eris.Wrap(err, "create scheduler")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{sched: sched, runner: runner, log: log, ctx: ctx, cancel: cancel}

	jobs := []struct {
		name  string
		every time.Duration
	}{
		{SweepStart, every.Lifecycle},
		{SweepComplete, every.Lifecycle},
		{SweepScore, every.Scoring},
	}
	for _, j := range jobs {
		name := j.name
		_, err := sched.NewJob(
			gocron.DurationJob(j.every),
			gocron.NewTask(func() { s.run(name) }),
			gocron.WithName(name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			cancel()
			_ = sched.Shutdown()
			return nil, eris.Wrapf(err, "schedule sweep %s", name)
		}
	}

	sched.Start()
	log.Info("scheduler started",
		zap.Duration("lifecycle_every", every.Lifecycle),
		zap.Duration("scoring_every", every.Scoring),
	)
	return s, nil
}

func (s *Scheduler) run(name string) {
	if _, err := s.runner.Run(s.ctx, name); err != nil {
		if IsConflict(err) {
			s.log.Debug("sweep skipped, lock held elsewhere", zap.String("sweep", name))
			return
		}
		s.log.Error("sweep failed", zap.String("sweep", name), zap.Error(err))
	}
}

// JobNames lists the scheduled jobs.
func (s *Scheduler) JobNames() []string {
	var names []string
	for _, j := range s.sched.Jobs() {
		names = append(names, j.Name())
	}
	return names
}

func (s *Scheduler) Shutdown() error {
	s.cancel()
	return s.sched.Shutdown()
}

// gocronLogger adapts zap to gocron's key/value logger.
type gocronLogger struct {
	l *zap.SugaredLogger
}

func (g gocronLogger) Debug(msg string, args ...any) { g.l.Debugw(msg, args...) }
func (g gocronLogger) Error(msg string, args ...any) { g.l.Errorw(msg, args...) }
func (g gocronLogger) Info(msg string, args ...any)  { g.l.Infow(msg, args...) }
func (g gocronLogger) Warn(msg string, args ...any)  { g.l.Warnw(msg, args...) }
