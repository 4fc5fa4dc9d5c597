package scraper

import (
	"context"
	"math/rand"
	"time"

	"presale_scraper/config"
)

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// jitter picks a duration in [r.Min, r.Max].
func jitter(r config.DelayRange) time.Duration {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + time.Duration(rand.Int63n(int64(r.Max-r.Min)+1))
}

func humanDelay(ctx context.Context, r config.DelayRange) error {
	return sleep(ctx, jitter(r))
}
