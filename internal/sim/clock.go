package sim

import (
	"context"
	"sync"
	"time"
)

// Clock calls fn every interval on its own goroutine. Ticks never overlap;
// a tick that would fire while fn is still running is dropped, not queued.
type Clock struct {
	interval time.Duration
	fn       func(time.Time)

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewClock(interval time.Duration, fn func(time.Time)) *Clock {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Clock{interval: interval, fn: fn}
}

// Start begins ticking. It reports false if the clock was already running.
func (c *Clock) Start() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.run(ctx)
	return true
}

// Stop cancels any pending tick. Calling it on a stopped clock is a no-op.
// A tick already executing runs to completion.
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel == nil {
		return
	}
	c.cancel()
	c.cancel = nil
}

func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}

func (c *Clock) Interval() time.Duration { return c.interval }

func (c *Clock) run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			c.fn(now)
		}
	}
}
