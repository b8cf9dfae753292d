// internal/kernel/tickclock.go

package kernel

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// TickClock counts kernel ticks atomically and wakes every waiter on each tick.
type TickClock struct {
	count atomic.Uint64
	mu    sync.Mutex
	edge  chan struct{} // closed and replaced on every tick
	stop  chan struct{}
	once  sync.Once
}

// NewTickClock creates a stopped clock at tick zero.
func NewTickClock() *TickClock {
	return &TickClock{
		edge: make(chan struct{}),
		stop: make(chan struct{}),
	}
}

// Start begins advancing the clock at the given interval.
func (c *TickClock) Start(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.Advance(1)
			case <-c.stop:
				return
			}
		}
	}()
}

// Stop halts a started clock. Safe to call more than once.
func (c *TickClock) Stop() {
	c.once.Do(func() { close(c.stop) })
}

// Advance moves the clock forward by n ticks and wakes all waiters.
func (c *TickClock) Advance(n uint64) {
	if n == 0 {
		return
	}
	c.count.Add(n)
	c.mu.Lock()
	close(c.edge)
	c.edge = make(chan struct{})
	c.mu.Unlock()
}

// Count returns the current tick count atomically.
func (c *TickClock) Count() Tick {
	return Tick(c.count.Load())
}

// WaitUntil blocks until the clock reaches t or ctx is done.
func (c *TickClock) WaitUntil(ctx context.Context, t Tick) error {
	for {
		// grab the edge before reading the count so a tick in between is not missed
		c.mu.Lock()
		edge := c.edge
		c.mu.Unlock()
		if c.Count() >= t {
			return nil
		}
		select {
		case <-edge:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
