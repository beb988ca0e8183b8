package safety

import (
	"sync"
	"time"

	"laserctl/internal/models"
)

// DefaultStaleAfter is how long a cached roof reading stays trustworthy.
const DefaultStaleAfter = 5 * time.Second

// RoofCache holds the last roof limit-sensor reading. Written only by the
// poller; read by the interlock and the API. A reading older than the
// staleness window reports UNKNOWN regardless of the stored value, so stale
// sensor data can never authorize a fire.
type RoofCache struct {
	staleAfter time.Duration
	now        func() time.Time

	mu      sync.Mutex
	state   models.RoofState
	updated time.Time
}

// NewRoofCache builds a cache; staleAfter <= 0 selects the default window.
func NewRoofCache(staleAfter time.Duration) *RoofCache {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &RoofCache{staleAfter: staleAfter, now: time.Now}
}

// Update records a fresh reading. Poller only.
func (c *RoofCache) Update(state models.RoofState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
	c.updated = c.now()
}

// Read returns the cached state, or UNKNOWN when no reading was ever
// recorded or the last one is older than the staleness window.
func (c *RoofCache) Read() models.RoofState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.updated.IsZero() || c.now().Sub(c.updated) > c.staleAfter {
		return models.RoofUnknown
	}
	if c.state == "" {
		return models.RoofUnknown
	}
	return c.state
}
