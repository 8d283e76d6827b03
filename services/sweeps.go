package services

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
)

const (
	SweepStart    = "start"
	SweepComplete = "complete"
	SweepScore    = "score"

	DefaultSweepLockTTL = 5 * time.Minute
)

// SweepFunc runs one pass of a sweep and returns its summary.
type SweepFunc func(ctx context.Context) (any, error)

// SweepRunner runs named sweeps under a SweepLocker. It backs both the
// scheduler and the operational one-shot paths (CLI, admin endpoint).
type SweepRunner struct {
	Locker  SweepLocker
	LockTTL time.Duration
	Log     *zap.Logger

	sweeps map[string]SweepFunc
}

func NewSweepRunner(locker SweepLocker, ttl time.Duration, log *zap.Logger) *SweepRunner {
	if locker == nil {
		locker = NopLocker{}
	}
	if ttl <= 0 {
		ttl = DefaultSweepLockTTL
	}
	return &SweepRunner{Locker: locker, LockTTL: ttl, Log: log.Named("sweeps"), sweeps: map[string]SweepFunc{}}
}

// NewEngineSweeps registers the lifecycle and scoring sweeps.
func NewEngineSweeps(matches *MatchService, scorer *DeferredScorer, locker SweepLocker, ttl time.Duration, log *zap.Logger) *SweepRunner {
	r := NewSweepRunner(locker, ttl, log)
	r.Register(SweepStart, func(ctx context.Context) (any, error) {
		n, err := matches.StartDueMatches(ctx)
		return map[string]int{"started": n}, err
	})
	r.Register(SweepComplete, func(ctx context.Context) (any, error) {
		n, err := matches.CompleteDueMatches(ctx)
		return map[string]int{"completed": n}, err
	})
	r.Register(SweepScore, func(ctx context.Context) (any, error) {
		return scorer.Sweep(ctx)
	})
	return r
}

func (r *SweepRunner) Register(name string, fn SweepFunc) {
	r.sweeps[name] = fn
}

// Names lists registered sweeps in sorted order.
func (r *SweepRunner) Names() []string {
	names := make([]string, 0, len(r.sweeps))
	for name := range r.sweeps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executes one pass of the named sweep. A lock held elsewhere is a
// conflict; the caller may simply try again later.
func (r *SweepRunner) Run(ctx context.Context, name string) (any, error) {
	fn, ok := r.sweeps[name]
	if !ok {
		return nil, notFoundf("unknown sweep %q", name)
	}
	release, ok, err := r.Locker.Acquire(ctx, name, r.LockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, conflictf("sweep %s is already running", name)
	}
	defer release()

	started := time.Now()
	result, err := fn(ctx)
	if err != nil {
		return nil, err
	}
	r.Log.Debug("sweep finished", zap.String("sweep", name), zap.Duration("took", time.Since(started)))
	return result, nil
}
