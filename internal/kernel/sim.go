// internal/kernel/sim.go

package kernel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/emirpasic/gods/trees/redblacktree"
	"go.uber.org/zap"
)

// ErrStopped is returned by Spawn once the dispatcher has shut down.
var ErrStopped = errors.New("kernel stopped")

// TaskInfo is a read-only view of one simulated task.
type TaskInfo struct {
	Handle   Handle
	Name     string
	Priority Priority
}

type simTask struct {
	handle Handle
	name   string
	prio   Priority
	entry  Entry
	cancel context.CancelFunc
}

// SimKernel simulates the kernel's task table on goroutines. Priorities are
// bookkeeping only: every started task runs on its own goroutine and the Go
// runtime does the actual dispatching.
type SimKernel struct {
	mu       sync.Mutex
	clock    *TickClock
	interval time.Duration
	next     Handle
	tasks    map[Handle]*simTask
	ready    *redblacktree.Tree // ordered by priority (desc) then handle
	pending  []*simTask         // spawned before Start
	root     context.Context
	started  bool
	stopped  bool
	wg       sync.WaitGroup
	log      *zap.Logger
}

// NewSim creates a simulated kernel whose clock ticks every interval once
// started. A zero interval leaves the clock to manual Advance calls.
func NewSim(interval time.Duration, log *zap.Logger) *SimKernel {
	if log == nil {
		log = zap.NewNop()
	}
	return &SimKernel{
		clock:    NewTickClock(),
		interval: interval,
		tasks:    make(map[Handle]*simTask),
		ready:    redblacktree.NewWith(cmp),
		log:      log.Named("kernel"),
	}
}

// Clock exposes the tick clock, mostly so tests can step it.
func (k *SimKernel) Clock() *TickClock { return k.clock }

// Spawn registers a task. Before Start the task is queued; afterwards its
// entry starts immediately. A nil entry registers a task with no body.
func (k *SimKernel) Spawn(name string, entry Entry, prio Priority) (Handle, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.stopped {
		return 0, fmt.Errorf("spawn %q: %w", name, ErrStopped)
	}

	k.next++
	t := &simTask{handle: k.next, name: name, prio: prio, entry: entry}
	k.tasks[t.handle] = t
	k.ready.Put(readyKey{prio: prio, handle: t.handle}, t)
	k.log.Debug("task spawned", zap.String("name", name), zap.Uint64("handle", uint64(t.handle)), zap.Int("priority", int(prio)))

	if k.started {
		k.launch(t)
	} else {
		k.pending = append(k.pending, t)
	}
	return t.handle, nil
}

// launch starts a task's goroutine. Caller holds k.mu.
func (k *SimKernel) launch(t *simTask) {
	if t.entry == nil {
		return
	}
	ctx, cancel := context.WithCancel(k.root)
	t.cancel = cancel
	k.wg.Add(1)
	go func() {
		defer k.wg.Done()
		t.entry(ctx, t.handle)
	}()
}

// Delete removes a task and cancels its context.
func (k *SimKernel) Delete(h Handle) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	t, ok := k.tasks[h]
	if !ok {
		return fmt.Errorf("delete %d: %w", h, ErrUnknownHandle)
	}
	delete(k.tasks, h)
	k.ready.Remove(readyKey{prio: t.prio, handle: h})
	if t.cancel != nil {
		t.cancel()
	}
	k.log.Debug("task deleted", zap.String("name", t.name), zap.Uint64("handle", uint64(h)))
	return nil
}

// SetPriority re-keys a task in the ready tree under its new priority.
func (k *SimKernel) SetPriority(h Handle, prio Priority) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	t, ok := k.tasks[h]
	if !ok {
		return fmt.Errorf("set priority %d: %w", h, ErrUnknownHandle)
	}
	if t.prio == prio {
		return nil
	}
	k.ready.Remove(readyKey{prio: t.prio, handle: h})
	t.prio = prio
	k.ready.Put(readyKey{prio: prio, handle: h}, t)
	return nil
}

// Priority reports a task's current priority.
func (k *SimKernel) Priority(h Handle) (Priority, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	t, ok := k.tasks[h]
	if !ok {
		return 0, false
	}
	return t.prio, true
}

// Tasks lists live tasks in dispatch order.
func (k *SimKernel) Tasks() []TaskInfo {
	k.mu.Lock()
	defer k.mu.Unlock()

	out := make([]TaskInfo, 0, k.ready.Size())
	it := k.ready.Iterator()
	for it.Next() {
		t := it.Value().(*simTask)
		out = append(out, TaskInfo{Handle: t.handle, Name: t.name, Priority: t.prio})
	}
	return out
}

// Runnable returns the handles sharing the highest priority, i.e. the set
// the kernel would time-slice between.
func (k *SimKernel) Runnable() []Handle {
	k.mu.Lock()
	defer k.mu.Unlock()

	node := k.ready.Left()
	if node == nil {
		return nil
	}
	top := node.Key.(readyKey).prio
	var out []Handle
	it := k.ready.Iterator()
	for it.Next() {
		key := it.Key().(readyKey)
		if key.prio != top {
			break
		}
		out = append(out, key.handle)
	}
	return out
}

// Now returns the current tick.
func (k *SimKernel) Now() Tick { return k.clock.Count() }

// Delay blocks for the given number of ticks.
func (k *SimKernel) Delay(ctx context.Context, ticks Tick) error {
	now := k.clock.Count()
	target := now + ticks
	if target < now {
		target = MaxTick
	}
	return k.clock.WaitUntil(ctx, target)
}

// Start launches every queued task, runs the clock and blocks until ctx is
// done. On return all tasks have been cancelled and have exited.
func (k *SimKernel) Start(ctx context.Context) error {
	k.mu.Lock()
	if k.started {
		k.mu.Unlock()
		return errors.New("kernel already started")
	}
	k.started = true
	k.root = ctx
	if k.interval > 0 {
		k.clock.Start(k.interval)
	}
	for _, t := range k.pending {
		if _, live := k.tasks[t.handle]; live {
			k.launch(t)
		}
	}
	k.pending = nil
	k.mu.Unlock()

	k.log.Info("dispatcher started", zap.Duration("tick", k.interval))
	<-ctx.Done()

	k.mu.Lock()
	k.stopped = true
	for _, t := range k.tasks {
		if t.cancel != nil {
			t.cancel()
		}
	}
	k.mu.Unlock()

	k.wg.Wait()
	k.clock.Stop()
	k.log.Info("dispatcher stopped", zap.Uint64("tick", uint64(k.clock.Count())))
	return nil
}

// readyKey is used as a key in the ready tree.
type readyKey struct {
	prio   Priority
	handle Handle
}

// cmp orders higher priorities first, then older handles.
func cmp(a, b any) int {
	ka, kb := a.(readyKey), b.(readyKey)
	switch {
	case ka.prio > kb.prio:
		return -1
	case ka.prio < kb.prio:
		return 1
	case ka.handle < kb.handle:
		return -1
	case ka.handle > kb.handle:
		return 1
	default:
		return 0
	}
}
