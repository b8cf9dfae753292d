// Package kernel describes the fixed-priority preemptive kernel the EDF
// overlay runs on, and provides a goroutine-backed simulation of it.
package kernel

import (
	"context"
	"errors"
	"math"
)

// Tick is the kernel's monotonic time unit.
type Tick uint64

// MaxTick is the "no deadline" sentinel.
const MaxTick Tick = math.MaxUint64

// Handle identifies a kernel task. It is an opaque token, never a pointer
// into kernel state.
type Handle uint64

// Priority is a kernel priority; larger values preempt smaller ones.
type Priority int

// Entry is a task body. ctx is cancelled when the task is deleted or the
// kernel stops; self is the task's own handle.
type Entry func(ctx context.Context, self Handle)

// ErrUnknownHandle is returned for operations on a handle the kernel does
// not (or no longer) recognize.
var ErrUnknownHandle = errors.New("unknown task handle")

// Kernel is the set of primitives the overlay consumes.
type Kernel interface {
	// Spawn creates a task at the given priority and returns its handle.
	Spawn(name string, entry Entry, prio Priority) (Handle, error)
	// Delete removes a task. Deleting an unknown handle returns ErrUnknownHandle.
	Delete(h Handle) error
	// SetPriority changes a task's priority.
	SetPriority(h Handle, prio Priority) error
	// Now returns the current tick.
	Now() Tick
	// Delay blocks the caller for the given number of ticks.
	Delay(ctx context.Context, ticks Tick) error
	// Start runs the dispatcher. It does not return until ctx is done.
	Start(ctx context.Context) error
}
