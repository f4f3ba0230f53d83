package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type Job interface{ Run(ctx context.Context) }

type FuncJob func(ctx context.Context)

func (f FuncJob) Run(ctx context.Context) { f(ctx) }

// Scheduler runs jobs on fixed intervals until Stop. Jobs must be
// re-entrant: the interval ticks regardless of how long a run takes.
type Scheduler struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    *zap.Logger
}

func New(log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{ctx: ctx, cancel: cancel, log: log}
}

func (s *Scheduler) Stop() { s.cancel() }

// Every runs job immediately and then on every tick of d.
func (s *Scheduler) Every(name string, d time.Duration, job Job) {
	go s.loopEvery(name, d, job)
}

// OnceAfter runs job once after d, unless stopped first.
func (s *Scheduler) OnceAfter(d time.Duration, job Job) { go s.onceAfter(d, job) }

func (s *Scheduler) loopEvery(name string, d time.Duration, job Job) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("scheduled job panicked", zap.String("job", name), zap.Any("panic", r))
			go s.loopEvery(name, d, job)
		}
	}()

	job.Run(s.ctx)
	t := time.NewTicker(d)
	defer t.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-t.C:
			job.Run(s.ctx)
		}
	}
}

func (s *Scheduler) onceAfter(d time.Duration, job Job) {
	select {
	case <-s.ctx.Done():
		return
	case <-time.After(d):
		job.Run(s.ctx)
	}
}
