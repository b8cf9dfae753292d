package sched

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"edfoverlay/internal/kernel"
)

// Body is the work a deadline-bearing task does between announcing itself
// and completing. It runs at whatever priority the scheduler gives it.
type Body func(ctx context.Context, self *TaskRecord) error

// WorkerSpec describes one deadline-bearing task to spawn.
type WorkerSpec struct {
	Name     string
	Deadline kernel.Tick // absolute
	Body     Body
}

// Harness spawns tasks that follow the lifecycle protocol: Created, body,
// exactly one Completed, then idle until the kernel deletes them.
type Harness struct {
	kern    kernel.Kernel
	ch      *Channel
	prio    kernel.Priority
	timeout time.Duration
	log     *zap.Logger
	dropped atomic.Int64
}

// NewHarness creates a harness that announces workers on ch.
func NewHarness(cfg Config, k kernel.Kernel, ch *Channel, log *zap.Logger) *Harness {
	if log == nil {
		log = zap.NewNop()
	}
	return &Harness{
		kern:    k,
		ch:      ch,
		prio:    cfg.NewTaskPriority(),
		timeout: cfg.SendTimeout(),
		log:     log.Named("worker"),
	}
}

// Spawn creates the kernel task for spec at the new-task priority.
func (h *Harness) Spawn(spec WorkerSpec) (kernel.Handle, error) {
	return h.kern.Spawn(spec.Name, h.entry(spec), h.prio)
}

// Dropped counts lifecycle messages that never made it onto the channel.
func (h *Harness) Dropped() int64 { return h.dropped.Load() }

func (h *Harness) entry(spec WorkerSpec) kernel.Entry {
	return func(ctx context.Context, self kernel.Handle) {
		rec := NewTaskRecord(spec.Deadline, self)
		log := h.log.With(zap.String("task", spec.Name), zap.Stringer("record", rec.ID))

		h.send(log, Message{Status: StatusCreated, Record: rec})

		if spec.Body != nil {
			if err := spec.Body(ctx, rec); err != nil {
				log.Warn("task body failed", zap.Error(err))
			}
		}

		// last message this task ever sends about rec
		h.send(log, Message{Status: StatusCompleted, Record: rec})

		<-ctx.Done()
	}
}

func (h *Harness) send(log *zap.Logger, msg Message) {
	if res := h.ch.Send(msg, h.timeout); res != Delivered {
		h.dropped.Add(1)
		log.Warn("lifecycle message dropped", zap.Stringer("status", msg.Status), zap.Stringer("result", res))
	}
}
