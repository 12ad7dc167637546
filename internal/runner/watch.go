package runner

import (
	"context"
	"time"
)

// SleepFunc waits for d or until ctx is done, returning ctx.Err() in the latter
// case.
type SleepFunc func(ctx context.Context, d time.Duration) error

func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type WatchOptions struct {
	Interval time.Duration
	// Limit stops the loop after that many iterations. Zero runs until ctx is
	// cancelled.
	Limit int
	Sleep SleepFunc
}

// Watch repeats step, handing each result to emit, with Interval between
// iterations. Cancellation is observed only between iterations: step gets a
// context that is never cancelled, so a run in progress completes and is
// emitted, while a cancellation during the sleep ends the loop without another
// run. An error from emit stops the loop.
func Watch(ctx context.Context, opts WatchOptions, step func(ctx context.Context) []Outcome, emit func(iteration int, outcomes []Outcome) error) error {
	sleep := opts.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	for i := 0; ; i++ {
		if ctx.Err() != nil {
			return nil
		}
		if err := emit(i, step(context.WithoutCancel(ctx))); err != nil {
			return err
		}
		if opts.Limit > 0 && i+1 >= opts.Limit {
			return nil
		}
		if err := sleep(ctx, opts.Interval); err != nil {
			return nil
		}
	}
}
