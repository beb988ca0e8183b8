package roof

import (
	"context"
	"time"

	"laserctl/internal/logger"
	"laserctl/internal/safety"
)

// Poller feeds the roof status cache from the limit sensor on a fixed
// interval. Single writer: nothing else updates the cache.
type Poller struct {
	limit    *LimitClient
	cache    *safety.RoofCache
	interval time.Duration
	log      *logger.Logger
}

// NewPoller builds a poller; interval defaults to 2s.
func NewPoller(limit *LimitClient, cache *safety.RoofCache, interval time.Duration, log *logger.Logger) *Poller {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Poller{limit: limit, cache: cache, interval: interval, log: log}
}

// Run polls until ctx is canceled. One fetch is always in flight at most:
// the next poll waits for the previous request to finish or time out.
func (p *Poller) Run(ctx context.Context) {
	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			state := p.limit.FetchState(ctx)
			p.cache.Update(state)
		}
	}
}
