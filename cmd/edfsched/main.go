package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"edfoverlay/internal/job"
	"edfoverlay/internal/kernel"
	"edfoverlay/internal/observability"
	"edfoverlay/internal/sched"
)

func main() {
	configPath := flag.String("config", "config.yml", "Path to YAML config file")
	tracePath := flag.String("trace", "", "Write a CSV trace of handled lifecycle events to this file")
	runFor := flag.Duration("run", 10*time.Second, "How long to run before shutting down (0 = until signalled)")
	flag.Parse()

	// Read the configuration
	cfg := sched.Load(*configPath)

	logger, err := observability.SetupLogger(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	logger.Info("loaded config", zap.Any("config", cfg))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *runFor > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *runFor)
		defer cancel()
	}

	k := kernel.NewSim(cfg.Tick(), logger)
	sys := sched.NewSystem(cfg, k, logger)
	if *tracePath != "" {
		if err := sys.Scheduler.EnableCSVTrace(*tracePath); err != nil {
			logger.Fatal("open trace", zap.Error(err))
		}
	}

	report := func(rec *sched.TaskRecord, sum uint) {
		logger.Info("SAD calculation", zap.Stringer("record", rec.ID), zap.Uint("sum", sum))
	}

	now := k.Now()
	workers := []sched.WorkerSpec{
		{
			Name:     "datagen",
			Deadline: kernel.MaxTick,
			Body: job.DataGen(k, sys.Harness, job.DataGenConfig{
				Until:    20,
				Deadline: 10,
				Every:    2,
				Report:   report,
			}),
		},
		{Name: "sleep-2000", Deadline: now + 2000, Body: job.Sleep(k, 1000)},
		{Name: "sleep-4000", Deadline: now + 4000, Body: job.Sleep(k, 1500)},
	}

	if err := sys.Boot(ctx, workers...); err != nil {
		logger.Fatal("scheduler stopped", zap.Error(err))
	}
	logger.Info("shutdown", zap.Int64("dropped_messages", sys.Harness.Dropped()))
}
