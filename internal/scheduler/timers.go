package scheduler

import (
	"context"
	"sync"
	"time"

	"laserctl/internal/logger"
	"laserctl/internal/models"
)

// RoofControl drives the roof door and exposes the cached limit state.
type RoofControl interface {
	OpenRoof(ctx context.Context) error
	CloseRoof(ctx context.Context) error
	RoofState() models.RoofState
}

// roofTimers owns the per-program roof automation timers: the pre-fire open
// ahead of each fire phase and the post-rest close after each rest. At most
// one of each per program; rescheduling cancels the previous timer.
type roofTimers struct {
	roof RoofControl
	log  *logger.Logger
	now  func() time.Time

	mu       sync.Mutex
	prefire  map[string]*time.Timer
	postrest map[string]*time.Timer
	closer   *time.Timer
}

func newRoofTimers(roof RoofControl, log *logger.Logger) *roofTimers {
	return &roofTimers{
		roof:     roof,
		log:      log,
		now:      time.Now,
		prefire:  make(map[string]*time.Timer),
		postrest: make(map[string]*time.Timer),
	}
}

// schedulePrefire arms a roof open at startAt minus the pre-open lead, then
// runs onOpened (roof-ON wait and warning) from the timer goroutine.
func (rt *roofTimers) schedulePrefire(id string, startAt time.Time, lead time.Duration, onOpened func()) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if t := rt.prefire[id]; t != nil {
		t.Stop()
	}
	delay := startAt.Sub(rt.now()) - lead
	if delay < 0 {
		delay = 0
	}
	rt.prefire[id] = time.AfterFunc(delay, func() {
		if err := rt.roof.OpenRoof(context.Background()); err != nil {
			rt.log.Warnw("pre-fire roof open failed", "program", id, "err", err)
		}
		if onOpened != nil {
			onOpened()
		}
	})
}

// schedulePostrest arms a roof close shortly after a rest transition.
func (rt *roofTimers) schedulePostrest(id string, delay time.Duration) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if t := rt.postrest[id]; t != nil {
		t.Stop()
	}
	rt.postrest[id] = time.AfterFunc(delay, func() {
		if err := rt.roof.CloseRoof(context.Background()); err != nil {
			rt.log.Warnw("post-rest roof close failed", "program", id, "err", err)
		}
	})
}

// cancelFor stops both timers belonging to one program.
func (rt *roofTimers) cancelFor(id string) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if t := rt.prefire[id]; t != nil {
		t.Stop()
		delete(rt.prefire, id)
	}
	if t := rt.postrest[id]; t != nil {
		t.Stop()
		delete(rt.postrest, id)
	}
}

// scheduleCloseIfOpen checks the cached roof state and, when still ON, arms
// a close after the given delay. Closed or unknown roofs are left alone.
func (rt *roofTimers) scheduleCloseIfOpen(delay time.Duration, reason string) {
	state := rt.roof.RoofState()
	if state != models.RoofOn {
		rt.log.Infow("roof already closed, skipping auto close", "state", state, "reason", reason)
		return
	}
	rt.log.Infow("roof still open, scheduling close", "delay", delay, "reason", reason)
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.closer != nil {
		rt.closer.Stop()
	}
	rt.closer = time.AfterFunc(delay, func() {
		if err := rt.roof.CloseRoof(context.Background()); err != nil {
			rt.log.Warnw("delayed roof close failed", "err", err)
		}
	})
}
