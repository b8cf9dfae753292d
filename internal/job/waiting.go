package job

import (
	"context"

	"edfoverlay/internal/kernel"
	"edfoverlay/internal/sched"
)

// Sleep returns a body that just waits the given number of ticks.
func Sleep(k kernel.Kernel, ticks kernel.Tick) sched.Body {
	return func(ctx context.Context, _ *sched.TaskRecord) error {
		return k.Delay(ctx, ticks)
	}
}
