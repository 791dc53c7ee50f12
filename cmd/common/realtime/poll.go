package realtime

import (
	"context"
	"time"
)

// DefaultPollInterval is how often the fallback poll fires.
const DefaultPollInterval = 5 * time.Second

// Poller invokes Fn on a fixed interval as an eventual-consistency backstop
// for lost push messages. It runs independently of the push channel: a closed
// channel never interrupts polling.
type Poller struct {
	// Interval between invocations. DefaultPollInterval when zero.
	Interval time.Duration
	Fn       func(ctx context.Context)
}

// Run blocks, invoking Fn every interval until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Fn(ctx)
		}
	}
}
