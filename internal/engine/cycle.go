package engine

import (
	"context"
	"time"

	"laserctl/internal/logger"
)

// DefaultTick is the granularity at which the engine re-evaluates phase
// boundaries. Fire and rest durations are multiples of whole seconds in
// practice, so 200ms keeps phase edges within a fraction of a cycle.
const DefaultTick = 200 * time.Millisecond

// Callbacks receive phase transitions from a running engine. Any callback
// may be nil. Callbacks run on the engine goroutine; a panic inside one is
// recovered and logged so a misbehaving observer cannot kill the cycle loop.
type Callbacks struct {
	// OnFire is invoked at the start of every fire phase. Returning false
	// means the fire was refused (safety block); the engine still consumes
	// the phase's time slot but does not count the cycle.
	OnFire func() bool
	// OnRest is invoked when a fire phase ends. final is true exactly once,
	// for the transition that ends the window (or a cancellation).
	OnRest func(final bool)
	// OnTick fires once per engine tick with the current time.
	OnTick func(now time.Time)
	// OnDone is invoked after the final rest, once, when Run returns
	// normally or via cancellation.
	OnDone func(fired, blocked int)
}

// Engine drives one scheduled occurrence: alternating fire and rest phases
// between a start and end instant.
type Engine struct {
	start  time.Time
	end    time.Time
	fireTD time.Duration
	restTD time.Duration
	tick   time.Duration
	now    func() time.Time
	log    *logger.Logger
	cb     Callbacks
}

// New builds an engine for one occurrence window. tick <= 0 selects
// DefaultTick.
func New(start, end time.Time, fireTD, restTD, tick time.Duration, log *logger.Logger, cb Callbacks) *Engine {
	if tick <= 0 {
		tick = DefaultTick
	}
	return &Engine{
		start:  start,
		end:    end,
		fireTD: fireTD,
		restTD: restTD,
		tick:   tick,
		now:    time.Now,
		log:    log,
		cb:     cb,
	}
}

// WithClock overrides the engine's time source. The default is time.Now.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	if now != nil {
		e.now = now
	}
	return e
}

// Run executes the occurrence until the window ends or ctx is cancelled.
// Phases that have already elapsed when the engine reaches them (a program
// joining its window mid-way) are skipped without device commands: a fire
// phase only fires while its end still lies in the future. The final rest
// transition (OnRest(true)) and OnDone are delivered exactly once on every
// exit path. Returns the number of fire phases that actually fired.
func (e *Engine) Run(ctx context.Context) int {
	fired, blocked := 0, 0
	finalized := false
	finish := func() {
		if finalized {
			return
		}
		finalized = true
		e.safeRest(true)
		if e.cb.OnDone != nil {
			e.safeDone(fired, blocked)
		}
	}
	defer finish()

	// Wait out the lead time before the window opens.
	if !e.sleepUntil(ctx, e.start) {
		return fired
	}

	cur := e.start
	for cur.Before(e.end) {
		if ctx.Err() != nil {
			return fired
		}
		fireUntil := cur.Add(e.fireTD)
		if fireUntil.After(e.end) {
			// The tail of the window cannot hold a full fire phase.
			break
		}
		if fireUntil.After(e.now()) {
			if e.safeFire() {
				fired++
			} else {
				blocked++
			}
			if !e.sleepUntil(ctx, fireUntil) {
				return fired
			}
			if !fireUntil.Before(e.end) {
				break
			}
			e.safeRest(false)
		}
		restUntil := minTime(fireUntil.Add(e.restTD), e.end)
		if restUntil.After(e.now()) {
			if !e.sleepUntil(ctx, restUntil) {
				return fired
			}
		}
		cur = restUntil
	}
	return fired
}

// sleepUntil ticks toward t, delivering OnTick along the way. Returns false
// on cancellation.
func (e *Engine) sleepUntil(ctx context.Context, t time.Time) bool {
	for {
		now := e.now()
		if e.cb.OnTick != nil {
			e.safeTick(now)
		}
		remain := t.Sub(now)
		if remain <= 0 {
			return true
		}
		d := e.tick
		if remain < d {
			d = remain
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(d):
		}
	}
}

func (e *Engine) safeFire() (ok bool) {
	defer e.recoverCallback("fire")
	if e.cb.OnFire == nil {
		return true
	}
	return e.cb.OnFire()
}

func (e *Engine) safeRest(final bool) {
	defer e.recoverCallback("rest")
	if e.cb.OnRest != nil {
		e.cb.OnRest(final)
	}
}

func (e *Engine) safeTick(now time.Time) {
	defer e.recoverCallback("tick")
	e.cb.OnTick(now)
}

func (e *Engine) safeDone(fired, blocked int) {
	defer e.recoverCallback("done")
	e.cb.OnDone(fired, blocked)
}

func (e *Engine) recoverCallback(name string) {
	if r := recover(); r != nil {
		e.log.Errorw("engine callback panicked", "callback", name, "panic", r)
	}
}

// CountFireCycles returns how many fire phases fit in a window of the given
// length: one per full fire+rest period, plus one more if the leftover tail
// still holds a full fire phase.
func CountFireCycles(window, fireTD, restTD time.Duration) int {
	if window <= 0 || fireTD <= 0 || restTD < 0 {
		return 0
	}
	period := fireTD + restTD
	full := int(window / period)
	if window%period >= fireTD {
		full++
	}
	return full
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
