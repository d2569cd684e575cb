package view

import (
	"context"
	"sync/atomic"
	"time"
)

// Countdown is a local estimate of how long the lobby has left. It is seeded
// once and then only its own Run loop writes it.
type Countdown struct {
	remaining atomic.Int64
	tick      time.Duration
}

func NewCountdown(tick time.Duration) *Countdown {
	if tick <= 0 {
		tick = time.Second
	}
	return &Countdown{tick: tick}
}

func (c *Countdown) Seed(seconds int64) {
	c.remaining.Store(max(seconds, 0))
}

func (c *Countdown) Remaining() int64 { return c.remaining.Load() }

func (c *Countdown) Run(ctx context.Context) error {
	t := time.NewTicker(c.tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if r := c.remaining.Load(); r > 0 {
				c.remaining.Store(r - 1)
			}
		}
	}
}
