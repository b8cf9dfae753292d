package job

import (
	"context"
	"fmt"
	"math/rand"

	"edfoverlay/internal/kernel"
	"edfoverlay/internal/sched"
)

// DataGenConfig drives the data generator.
type DataGenConfig struct {
	Until    kernel.Tick // stop generating at this tick
	Deadline kernel.Tick // relative deadline given to each SAD task
	Every    kernel.Tick // ticks to wait between batches
	Seed     int64
	Report   func(*sched.TaskRecord, uint)
}

// DataGen returns a body that, until cfg.Until, fills a fresh pair of
// inputs and spawns a SAD task for it with deadline now+cfg.Deadline.
func DataGen(k kernel.Kernel, h *sched.Harness, cfg DataGenConfig) sched.Body {
	return func(ctx context.Context, _ *sched.TaskRecord) error {
		r := rand.New(rand.NewSource(cfg.Seed))
		for n := 0; k.Now() < cfg.Until; n++ {
			var p Pair
			p.Fill(r)

			_, err := h.Spawn(sched.WorkerSpec{
				Name:     fmt.Sprintf("sad-%d", n),
				Deadline: k.Now() + cfg.Deadline,
				Body:     SADWork(p, cfg.Report),
			})
			if err != nil {
				return fmt.Errorf("spawn sad-%d: %w", n, err)
			}

			if err := k.Delay(ctx, cfg.Every); err != nil {
				return err
			}
		}
		return nil
	}
}
