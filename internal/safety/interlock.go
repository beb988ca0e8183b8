package safety

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"laserctl/internal/logger"
	"laserctl/internal/models"
)

// WarnCooldown rate-limits roof warnings so a blocked schedule does not
// flood the operator.
const WarnCooldown = 10 * time.Second

// Interlock is the single decision point gating every fire request on the
// cached roof state. It never mutates roof state, only observes it.
type Interlock struct {
	cache   *RoofCache
	log     *logger.Logger
	enabled atomic.Bool
	now     func() time.Time

	// warnFn receives rate-limited "fire blocked" notifications; nil is fine.
	warnFn func(state models.RoofState, reason string)

	mu       sync.Mutex
	lastWarn time.Time
}

// NewInterlock builds an interlock over the given cache. warnFn may be nil.
func NewInterlock(cache *RoofCache, log *logger.Logger, warnFn func(models.RoofState, string)) *Interlock {
	il := &Interlock{cache: cache, log: log, warnFn: warnFn, now: time.Now}
	il.enabled.Store(true)
	return il
}

// SetEnabled toggles safety checking. When disabled every fire passes.
func (il *Interlock) SetEnabled(on bool) { il.enabled.Store(on) }

// Enabled reports whether safety checking is active.
func (il *Interlock) Enabled() bool { return il.enabled.Load() }

// GuardFire reports whether firing is currently allowed. When blocked it
// emits a rate-limited warning as a side effect.
func (il *Interlock) GuardFire() bool {
	if !il.enabled.Load() {
		return true
	}
	state := il.cache.Read()
	if state == models.RoofOn {
		return true
	}
	il.warn(state, "fire blocked: roof not verified open")
	return false
}

// SafeFire gates send behind GuardFire. Returns false without calling send
// when blocked; otherwise returns send's success.
func (il *Interlock) SafeFire(send func() error) bool {
	if !il.GuardFire() {
		return false
	}
	if err := send(); err != nil {
		il.log.Errorw("fire command failed", "err", err)
		return false
	}
	return true
}

// WaitRoofOn polls the cache until the roof reads ON or the timeout expires.
// Used ahead of a scheduled occurrence after the pre-open command.
func (il *Interlock) WaitRoofOn(ctx context.Context, timeout, interval time.Duration) bool {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	deadline := il.now().Add(timeout)
	for il.now().Before(deadline) {
		if il.cache.Read() == models.RoofOn {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(interval):
		}
	}
	return false
}

// Monitor re-checks the cached roof state once per second while the device is
// firing. On a transition to OFF it calls standby immediately (a stop, not a
// fire, so the interlock is bypassed) and raises a rate-limited warning.
func (il *Interlock) Monitor(ctx context.Context, isFiring func() bool, standby func()) {
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if !isFiring() || !il.enabled.Load() {
				continue
			}
			if il.cache.Read() != models.RoofOff {
				continue
			}
			il.log.Warnw("roof closed while firing, forcing standby")
			standby()
			il.warn(models.RoofOff, "roof closed during fire: laser stopped")
		}
	}
}

// warn invokes warnFn at most once per cooldown window. Disabled safety
// suppresses warnings entirely.
func (il *Interlock) warn(state models.RoofState, reason string) {
	if !il.enabled.Load() {
		return
	}
	il.mu.Lock()
	if il.now().Sub(il.lastWarn) < WarnCooldown {
		il.mu.Unlock()
		return
	}
	il.lastWarn = il.now()
	il.mu.Unlock()

	il.log.Warnw("safety warning", "roof", state, "reason", reason)
	if il.warnFn != nil {
		il.warnFn(state, reason)
	}
}
