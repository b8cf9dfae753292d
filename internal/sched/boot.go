package sched

import (
	"context"

	"go.uber.org/zap"

	"edfoverlay/internal/kernel"
)

// System wires the lifecycle channel, the scheduler and the worker harness
// onto one kernel.
type System struct {
	Channel   *Channel
	Scheduler *Scheduler
	Harness   *Harness

	cfg  Config
	kern kernel.Kernel
	log  *zap.Logger
}

// NewSystem builds the overlay without starting anything.
func NewSystem(cfg Config, k kernel.Kernel, log *zap.Logger) *System {
	if log == nil {
		log = zap.NewNop()
	}
	ch := NewChannel(cfg.ChannelCapacity)
	return &System{
		Channel:   ch,
		Scheduler: NewScheduler(cfg, k, ch, log),
		Harness:   NewHarness(cfg, k, ch, log),
		cfg:       cfg,
		kern:      k,
		log:       log,
	}
}

// Boot spawns the scheduler task at the top priority and the initial
// workers, then runs the kernel dispatcher until ctx is done. A fatal
// scheduler error stops the dispatcher and is returned.
func (sys *System) Boot(ctx context.Context, initial ...WorkerSpec) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fatal := make(chan error, 1)
	_, err := sys.kern.Spawn("edf", func(tctx context.Context, _ kernel.Handle) {
		if err := sys.Scheduler.Run(tctx); err != nil {
			fatal <- err
			cancel()
		}
	}, sys.cfg.SchedulerPriority())
	if err != nil {
		return err
	}

	for _, w := range initial {
		if _, err := sys.Harness.Spawn(w); err != nil {
			return err
		}
	}

	sys.log.Info("overlay booted",
		zap.Int("workers", len(initial)),
		zap.Int("channel_capacity", sys.Channel.Cap()),
		zap.Int("registry_capacity", sys.cfg.RegistryCapacity))

	if err := sys.kern.Start(ctx); err != nil {
		return err
	}

	select {
	case err := <-fatal:
		return err
	default:
		return nil
	}
}
