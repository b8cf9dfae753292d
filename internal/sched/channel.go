// internal/sched/channel.go

package sched

import (
	"context"
	"time"
)

// SendResult is the outcome of a Channel.Send.
type SendResult int

const (
	Delivered      SendResult = iota
	DroppedTimeout            // queue stayed full for the whole timeout
	DroppedFull               // queue full and the caller would not wait
)

func (r SendResult) String() string {
	switch r {
	case Delivered:
		return "Delivered"
	case DroppedTimeout:
		return "DroppedTimeout"
	case DroppedFull:
		return "DroppedFull"
	default:
		return "Unknown"
	}
}

// Channel is the bounded lifecycle FIFO between workers and the scheduler.
// Any number of goroutines may Send; only the scheduler Receives.
//
// A dropped message is not retried. Losing a Created or Completed leaves
// the registry out of step with the kernel for good.
type Channel struct {
	ch chan Message
}

// NewChannel creates a channel holding at most capacity messages.
func NewChannel(capacity int) *Channel {
	if capacity <= 0 {
		capacity = DefaultChannelCapacity
	}
	return &Channel{ch: make(chan Message, capacity)}
}

// Send enqueues msg, waiting up to timeout for room.
func (c *Channel) Send(msg Message, timeout time.Duration) SendResult {
	select {
	case c.ch <- msg:
		return Delivered
	default:
	}
	if timeout <= 0 {
		return DroppedFull
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case c.ch <- msg:
		return Delivered
	case <-timer.C:
		return DroppedTimeout
	}
}

// Receive blocks until a message is available or ctx is done.
func (c *Channel) Receive(ctx context.Context) (Message, error) {
	select {
	case msg := <-c.ch:
		return msg, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

// Len reports the number of queued messages.
func (c *Channel) Len() int { return len(c.ch) }

// Cap reports the channel capacity.
func (c *Channel) Cap() int { return cap(c.ch) }
