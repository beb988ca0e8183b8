package service

import (
	"sync"
	"time"

	"laserctl/internal/models"
	"laserctl/internal/safety"
)

// StateTracker holds the live laser snapshot plus the runtime-tunable device
// settings. Every mutation is broadcast to subscribers, which is what feeds
// the websocket push.
type StateTracker struct {
	cache *safety.RoofCache

	mu      sync.Mutex
	state   models.LaserState
	qsDelay int
	maxTemp float64
	subs    map[chan models.LaserState]struct{}
}

func NewStateTracker(cache *safety.RoofCache, maxTemp float64) *StateTracker {
	return &StateTracker{
		cache:   cache,
		maxTemp: maxTemp,
		subs:    make(map[chan models.LaserState]struct{}),
	}
}

// Snapshot returns the current state with the roof reading applied.
func (t *StateTracker) Snapshot() models.LaserState {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.state
	st.RoofState = t.cache.Read()
	return st
}

// Update applies fn to the state under the lock and notifies subscribers.
func (t *StateTracker) Update(fn func(*models.LaserState)) {
	t.mu.Lock()
	fn(&t.state)
	t.state.UpdatedAt = time.Now().UTC()
	st := t.state
	st.RoofState = t.cache.Read()
	for ch := range t.subs {
		select {
		case ch <- st:
		default: // slow consumer, drop
		}
	}
	t.mu.Unlock()
}

// Subscribe registers a state feed. The returned cancel must be called.
func (t *StateTracker) Subscribe() (<-chan models.LaserState, func()) {
	ch := make(chan models.LaserState, 8)
	t.mu.Lock()
	t.subs[ch] = struct{}{}
	t.mu.Unlock()
	return ch, func() {
		t.mu.Lock()
		delete(t.subs, ch)
		t.mu.Unlock()
	}
}

// SetQSDelay stores the last applied Q-switch delay.
func (t *StateTracker) SetQSDelay(us int) {
	t.mu.Lock()
	t.qsDelay = us
	t.mu.Unlock()
}

// SetMaxTemp stores the over-temperature limit; 0 disables the watchdog.
func (t *StateTracker) SetMaxTemp(v float64) {
	t.mu.Lock()
	t.maxTemp = v
	t.mu.Unlock()
}

// IsFiring, QSDelay, MaxTemp and RoofState satisfy the telemetry sampler's
// state source.

func (t *StateTracker) IsFiring() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Firing
}

func (t *StateTracker) QSDelay() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.qsDelay
}

func (t *StateTracker) MaxTemp() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.maxTemp
}

func (t *StateTracker) RoofState() models.RoofState {
	return t.cache.Read()
}
