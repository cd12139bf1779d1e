package formsync

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Scheduler re-runs the engine on a cron cadence. Before each run it
// invalidates only the most recently completed quarter, so late-filed and
// amended filings for the active quarter are picked up without
// re-downloading full history.
type Scheduler struct {
	engine *Engine
	opts   RunOpts
	cron   *cron.Cron
}

// NewScheduler creates a scheduler around the engine.
func NewScheduler(engine *Engine, opts RunOpts) *Scheduler {
	return &Scheduler{
		engine: engine,
		opts:   opts,
		cron:   cron.New(),
	}
}

// Start registers the cron spec and begins running. Jobs use the given
// context; Stop cancels pending work.
func (s *Scheduler) Start(ctx context.Context, spec string) error {
	log := zap.L().With(zap.String("component", "formsync.scheduler"))

	_, err := s.cron.AddFunc(spec, func() {
		if err := s.engine.InvalidateLatest(ctx); err != nil {
			log.Error("invalidate latest quarter failed", zap.Error(err))
			return
		}
		if err := s.engine.Run(ctx, s.opts); err != nil {
			log.Error("scheduled sync failed", zap.Error(err))
		}
	})
	if err != nil {
		return eris.Wrapf(err, "scheduler: invalid cron spec %q", spec)
	}

	s.cron.Start()
	log.Info("scheduler started", zap.String("cron", spec))
	return nil
}

// Stop halts the cron loop and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
