package scheduler

import (
	"context"
	"log"
	"time"
)

type Task func(ctx context.Context) error

type Options struct {
	// RunImmediately runs the task once before the first tick.
	RunImmediately bool
}

// Every runs task on each tick until ctx is done. Runs never overlap: a tick
// that fires while the task is still running is dropped by the ticker.
// Task errors are logged and do not stop the loop.
func Every(ctx context.Context, interval time.Duration, name string, opts Options, task Task) {
	t := time.NewTicker(interval)
	defer t.Stop()

	run := func() {
		if err := task(ctx); err != nil {
			log.Printf("[%s] error: %v", name, err)
		}
	}

	if opts.RunImmediately && ctx.Err() == nil {
		run()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			run()
		}
	}
}
