// Package scheduler triggers tracked scans on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler wraps robfig/cron. A cycle that is still running when the next
// tick fires makes that tick a no-op.
type Scheduler struct {
	cron *cron.Cron
	spec string
	run  func(ctx context.Context) error
	log  *zap.Logger

	cl     cronLogger
	job    cron.Job
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func New(spec string, run func(ctx context.Context) error, log *zap.Logger) *Scheduler {
	cl := cronLogger{log: log}
	return &Scheduler{
		cron: cron.New(cron.WithLogger(cl)),
		spec: spec,
		run:  run,
		log:  log,
		cl:   cl,
	}
}

// Start registers the cycle and starts the cron loop. It also runs one cycle
// immediately so results do not wait for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	//the immediate run goes through the same chain as ticks
	s.job = cron.NewChain(cron.Recover(s.cl), cron.SkipIfStillRunning(s.cl)).Then(cron.FuncJob(func() {
		s.cycle(ctx)
	}))

	if _, err := s.cron.AddJob(s.spec, s.job); err != nil {
		s.cancel()
		return fmt.Errorf("cron.AddJob: %w", err)
	}

	s.cron.Start()
	s.log.Info("⏰ scheduler started", zap.String("spec", s.spec))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.job.Run()
	}()
	return nil
}

// Stop halts new ticks, cancels a running cycle and waits for it.
func (s *Scheduler) Stop() {
	stopped := s.cron.Stop()
	if s.cancel != nil {
		s.cancel()
	}
	<-stopped.Done()
	s.wg.Wait()
	s.log.Info("⏰ scheduler stopped")
}

func (s *Scheduler) cycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	s.log.Info("🔄 scan cycle started")
	if err := s.run(ctx); err != nil {
		s.log.Error("scan cycle finished with errors", zap.Error(err))
		return
	}
	s.log.Info("✅ scan cycle complete")
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	log *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, zap.Any("details", keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, zap.Error(err), zap.Any("details", keysAndValues))
}
