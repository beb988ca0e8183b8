package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"laserctl/internal/engine"
	"laserctl/internal/logger"
	"laserctl/internal/models"
	"laserctl/internal/safety"
)

var (
	ErrNotConnected = errors.New("laser not connected")
	ErrDisabled     = errors.New("program is disabled")
	ErrNotRunning   = errors.New("program is not running")
)

// Laser issues control commands to the device.
type Laser interface {
	Fire() error
	Standby() error
	Connected() bool
}

// Telemetry owns per-occurrence recording sessions.
type Telemetry interface {
	StartSession(owner string, startedAt time.Time)
	StopSession(owner string)
	Pause(d time.Duration)
}

// EventSink receives audit log entries from the scheduler.
type EventSink func(eventType, description string)

// Options carries the scheduler's timing knobs. Zero values select the
// defaults used in production.
type Options struct {
	Lead             time.Duration // claim slot and start telemetry this far before start
	PreOpenLead      time.Duration // open the roof this far before each fire phase
	RoofWait         time.Duration // how long to wait for roof ON after a pre-open
	RoofWaitTick     time.Duration
	PostClose        time.Duration // close the roof this long after each rest
	CloseIfOpenDelay time.Duration // delayed close when a schedule or stop leaves the roof open
	RetryDelay       time.Duration // back-off between blocked slot claims
	TelemetryPause   time.Duration // telemetry quiet window after each control command
	Tick             time.Duration // engine tick
	AutoRoof         bool          // automate pre-fire open and post-rest close
	AutoClose        bool          // automate close-if-open after stop or schedule end
	Location         *time.Location
}

func (o Options) withDefaults() Options {
	def := func(d *time.Duration, v time.Duration) {
		if *d <= 0 {
			*d = v
		}
	}
	def(&o.Lead, 20*time.Second)
	def(&o.PreOpenLead, 15*time.Second)
	def(&o.RoofWait, 12*time.Second)
	def(&o.RoofWaitTick, 500*time.Millisecond)
	def(&o.PostClose, 3*time.Second)
	def(&o.CloseIfOpenDelay, 5*time.Second)
	def(&o.RetryDelay, time.Second)
	def(&o.TelemetryPause, 1500*time.Millisecond)
	def(&o.Tick, engine.DefaultTick)
	if o.Location == nil {
		o.Location = time.Local
	}
	return o
}

// Manager runs program schedules. Each started program gets a manager
// goroutine that computes occurrences, claims the active-program slot, and
// drives an engine over each window. At most one program fires at a time.
type Manager struct {
	laser     Laser
	interlock *safety.Interlock
	telemetry Telemetry
	timers    *roofTimers
	events    EventSink
	opts      Options
	log       *logger.Logger
	now       func() time.Time

	slot ActiveSlot

	mu   sync.Mutex
	runs map[string]*programRun
}

// programRun is one started program's goroutine and live status.
type programRun struct {
	prog   models.Program
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	paused    bool
	occCancel context.CancelFunc
	status    models.ProgramStatus
}

// setOccCancel publishes the live occurrence's cancel func so Pause can
// interrupt the engine mid-window. nil between occurrences.
func (r *programRun) setOccCancel(c context.CancelFunc) {
	r.mu.Lock()
	r.occCancel = c
	r.mu.Unlock()
}

func (r *programRun) setStatus(done, total int, state string) {
	r.mu.Lock()
	r.status.Done = done
	r.status.Total = total
	r.status.State = state
	r.mu.Unlock()
}

func (r *programRun) setState(state string) {
	r.mu.Lock()
	r.status.State = state
	r.mu.Unlock()
}

func (r *programRun) isPaused() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.paused
}

// New builds a manager. events may be nil.
func New(laser Laser, roof RoofControl, interlock *safety.Interlock, telemetry Telemetry,
	events EventSink, opts Options, log *logger.Logger) *Manager {
	if events == nil {
		events = func(string, string) {}
	}
	return &Manager{
		laser:     laser,
		interlock: interlock,
		telemetry: telemetry,
		timers:    newRoofTimers(roof, log),
		events:    events,
		opts:      opts.withDefaults(),
		log:       log,
		now:       time.Now,
		runs:      make(map[string]*programRun),
	}
}

// ActiveProgram returns the ID of the program holding the fire slot, or "".
func (m *Manager) ActiveProgram() string { return m.slot.Owner() }

// Running reports whether the program has a live manager goroutine.
func (m *Manager) Running(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.runs[id]
	return ok
}

// Status returns the live status for a started program.
func (m *Manager) Status(id string) (models.ProgramStatus, bool) {
	m.mu.Lock()
	run, ok := m.runs[id]
	m.mu.Unlock()
	if !ok {
		return models.ProgramStatus{ID: id}, false
	}
	run.mu.Lock()
	st := run.status
	st.Paused = run.paused
	run.mu.Unlock()
	st.Running = true
	select {
	case <-run.done:
		st.Running = false
	default:
	}
	st.Active = m.slot.Owner() == id
	return st, true
}

// Start launches the program's manager goroutine. A running instance of the
// same program is stopped first.
func (m *Manager) Start(p models.Program) error {
	if !m.laser.Connected() {
		m.log.Warnw("start blocked, laser not connected", "program", p.ID)
		return ErrNotConnected
	}
	if !p.Enabled {
		return ErrDisabled
	}
	m.Stop(p.ID)

	ctx, cancel := context.WithCancel(context.Background())
	run := &programRun{
		prog:   p,
		cancel: cancel,
		done:   make(chan struct{}),
		status: models.ProgramStatus{ID: p.ID, State: "Starting"},
	}
	m.mu.Lock()
	m.runs[p.ID] = run
	m.mu.Unlock()

	m.log.Infow("manager start", "program", p.ID, "name", p.Name, "mode", p.Mode)
	m.events(models.EventSchedule, fmt.Sprintf("program %s started", p.Name))
	go m.runner(ctx, run)
	return nil
}

// Stop halts a running program. Stopping a program that is not running is a
// no-op: no STANDBY is sent and no error returned.
func (m *Manager) Stop(id string) {
	m.stop(id, true)
}

func (m *Manager) stop(id string, closeRoof bool) {
	m.mu.Lock()
	run, ok := m.runs[id]
	if ok {
		delete(m.runs, id)
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	run.cancel()
	select {
	case <-run.done:
	case <-time.After(2 * time.Second):
		m.log.Warnw("manager goroutine slow to exit", "program", id)
	}
	m.timers.cancelFor(id)

	if err := m.laser.Standby(); err != nil {
		m.log.Errorw("force standby failed", "program", id, "err", err)
	} else {
		m.events(models.EventStop, fmt.Sprintf("program %s stopped", id))
	}
	m.telemetry.StopSession(id)
	m.slot.Release(id)
	run.setState("Stopped")

	if closeRoof && m.opts.AutoClose {
		m.timers.scheduleCloseIfOpen(m.opts.CloseIfOpenDelay, "stop program")
	}
	m.log.Infow("manager stop", "program", id)
}

// StopAll halts every running program, then performs a single roof
// close-if-open check instead of one per program.
func (m *Manager) StopAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.runs))
	for id := range m.runs {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.stop(id, false)
	}
	m.slot.ForceRelease()
	if m.opts.AutoClose {
		m.timers.scheduleCloseIfOpen(m.opts.CloseIfOpenDelay, "stop all")
	}
}

// Pause suspends a running program immediately. The current occurrence's
// engine is cancelled, the program's roof timers are dropped, the laser is
// forced to STANDBY and its telemetry session ends. The manager goroutine
// stays alive and parks until Resume.
func (m *Manager) Pause(id string) error {
	m.mu.Lock()
	run, ok := m.runs[id]
	m.mu.Unlock()
	if !ok {
		return ErrNotRunning
	}
	run.mu.Lock()
	run.paused = true
	cancel := run.occCancel
	run.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.timers.cancelFor(id)
	if err := m.laser.Standby(); err != nil {
		m.log.Errorw("pause standby failed", "program", id, "err", err)
	}
	m.telemetry.StopSession(id)
	m.events(models.EventSchedule, fmt.Sprintf("program %s paused", id))
	m.log.Infow("manager pause", "program", id)
	return nil
}

// Resume lifts a pause. The next occurrence is computed from the current
// time, so a program resumed inside its window rejoins the remaining phases
// rather than restarting the window.
func (m *Manager) Resume(id string) error {
	m.mu.Lock()
	run, ok := m.runs[id]
	m.mu.Unlock()
	if !ok {
		return ErrNotRunning
	}
	run.mu.Lock()
	run.paused = false
	run.mu.Unlock()
	m.events(models.EventSchedule, fmt.Sprintf("program %s resumed", id))
	return nil
}

// runner is one program's manager loop: one iteration per occurrence.
func (m *Manager) runner(ctx context.Context, run *programRun) {
	defer close(run.done)
	id := run.prog.ID

	for ctx.Err() == nil {
		if !m.waitWhilePaused(ctx, run) {
			return
		}

		start, end, ok := NextOccurrence(run.prog, m.now(), m.opts.Location)
		if !ok {
			run.setState("Done")
			m.log.Infow("no further occurrences", "program", id)
			return
		}

		if m.opts.AutoRoof {
			m.timers.schedulePrefire(id, start, m.opts.PreOpenLead, m.prefireOpened(id))
		}

		total := engine.CountFireCycles(end.Sub(start), run.prog.FireDuration(), run.prog.RestDuration())
		run.setStatus(0, total, fmt.Sprintf("Waiting %s", start.Format("2006-01-02 15:04:05")))

		// Claim the slot only close to the real start, so a long wait never
		// starves other programs.
		if !m.waitUntil(ctx, run, start.Add(-m.opts.Lead)) {
			return
		}
		if !m.slot.TryClaim(id) {
			owner := m.slot.Owner()
			m.log.Warnw("blocked, slot held by another program", "program", id, "active", owner)
			m.events(models.EventSchedule, fmt.Sprintf("program %s blocked: active program %s", id, owner))
			run.setStatus(0, total, fmt.Sprintf("Blocked (Active=%s)", owner))
			if !sleepCtx(ctx, m.opts.RetryDelay) {
				return
			}
			continue
		}

		m.telemetry.StartSession(id, start)
		occCtx, occCancel := context.WithCancel(ctx)
		run.setOccCancel(occCancel)
		if run.isPaused() {
			// Pause arrived between the slot claim and the cancel handoff.
			occCancel()
		}
		done := m.runOccurrence(occCtx, run, start, end, total)
		run.setOccCancel(nil)
		occCancel()

		m.timers.cancelFor(id)
		m.telemetry.StopSession(id)
		m.slot.Release(id)

		if ctx.Err() != nil {
			return
		}
		if run.isPaused() {
			// Interrupted occurrence: park and rejoin the schedule on resume.
			run.setStatus(done, total, "Paused")
			continue
		}
		if run.prog.Mode == models.ModeOnce {
			run.setStatus(done, total, "Done")
			return
		}
		next, _, ok := NextOccurrence(run.prog, m.now(), m.opts.Location)
		if !ok {
			run.setStatus(done, total, "Done")
			return
		}
		run.setStatus(done, total, fmt.Sprintf("Done (next %s)", next.Format("2006-01-02 15:04")))
	}
}

// runOccurrence drives one engine window and returns completed fire cycles.
func (m *Manager) runOccurrence(ctx context.Context, run *programRun, start, end time.Time, total int) int {
	id := run.prog.ID
	done := 0
	rest := run.prog.RestDuration()

	cb := engine.Callbacks{
		OnFire: func() bool {
			m.telemetry.Pause(m.opts.TelemetryPause)
			if !m.interlock.SafeFire(m.laser.Fire) {
				run.setStatus(done, total, fmt.Sprintf("Blocked (Roof Closed) (%d/%d)", done, total))
				m.events(models.EventBlocked, fmt.Sprintf("program %s fire blocked by roof interlock", id))
				return false
			}
			done++
			run.setStatus(done, total, fmt.Sprintf("Firing (%d/%d)", done, total))
			m.events(models.EventFire, fmt.Sprintf("program %s fire %d/%d", id, done, total))
			return true
		},
		OnRest: func(final bool) {
			m.telemetry.Pause(m.opts.TelemetryPause)
			if err := m.laser.Standby(); err != nil {
				m.log.Errorw("standby failed", "program", id, "err", err)
			}
			if m.opts.AutoRoof {
				m.timers.schedulePostrest(id, m.opts.PostClose)
			}
			if final {
				run.setStatus(done, total, fmt.Sprintf("Resting FINAL (%d/%d)", done, total))
				if m.opts.AutoClose {
					m.timers.scheduleCloseIfOpen(m.opts.CloseIfOpenDelay, "schedule end")
				}
				return
			}
			run.setStatus(done, total, fmt.Sprintf("Resting (%d/%d)", done, total))
			nextFire := m.now().Add(rest)
			if m.opts.AutoRoof && nextFire.Before(end) {
				m.timers.schedulePrefire(id, nextFire, m.opts.PreOpenLead, m.prefireOpened(id))
			}
		},
	}

	eng := engine.New(start, end, run.prog.FireDuration(), rest, m.opts.Tick, m.log, cb).WithClock(m.now)
	return eng.Run(ctx)
}

// prefireOpened is called from the prefire timer after the open command. It
// waits for the limit switch to confirm ON and raises a warning otherwise.
func (m *Manager) prefireOpened(id string) func() {
	return func() {
		if !m.interlock.Enabled() {
			return
		}
		if !m.interlock.WaitRoofOn(context.Background(), m.opts.RoofWait, m.opts.RoofWaitTick) {
			m.log.Warnw("roof did not confirm open before scheduled fire", "program", id)
			m.events(models.EventRoofWarning, fmt.Sprintf("program %s: roof not open at scheduled fire time", id))
		}
	}
}

// waitWhilePaused blocks while the run is paused. False on cancellation.
func (m *Manager) waitWhilePaused(ctx context.Context, run *programRun) bool {
	for run.isPaused() {
		run.setState("Paused")
		if !sleepCtx(ctx, 200*time.Millisecond) {
			return false
		}
	}
	return ctx.Err() == nil
}

// waitUntil blocks until t, honoring pause and cancellation.
func (m *Manager) waitUntil(ctx context.Context, run *programRun, t time.Time) bool {
	for {
		if !m.waitWhilePaused(ctx, run) {
			return false
		}
		remain := t.Sub(m.now())
		if remain <= 0 {
			return true
		}
		step := 200 * time.Millisecond
		if remain < step {
			step = remain
		}
		if !sleepCtx(ctx, step) {
			return false
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
