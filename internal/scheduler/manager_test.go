package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"laserctl/internal/logger"
	"laserctl/internal/models"
	"laserctl/internal/safety"
)

type fakeLaser struct {
	connected atomic.Bool

	fires     atomic.Int32
	standbys  atomic.Int32
	inFire    atomic.Int32
	overlap   atomic.Bool
	fireDelay time.Duration
}

func (l *fakeLaser) Fire() error {
	if l.inFire.Add(1) > 1 {
		l.overlap.Store(true)
	}
	defer l.inFire.Add(-1)
	if l.fireDelay > 0 {
		time.Sleep(l.fireDelay)
	}
	l.fires.Add(1)
	return nil
}

func (l *fakeLaser) Standby() error  { l.standbys.Add(1); return nil }
func (l *fakeLaser) Connected() bool { return l.connected.Load() }

type fakeTelemetry struct {
	mu     sync.Mutex
	owners []string
	stops  []string
}

func (f *fakeTelemetry) StartSession(owner string, _ time.Time) {
	f.mu.Lock()
	f.owners = append(f.owners, owner)
	f.mu.Unlock()
}

func (f *fakeTelemetry) StopSession(owner string) {
	f.mu.Lock()
	f.stops = append(f.stops, owner)
	f.mu.Unlock()
}

func (f *fakeTelemetry) Pause(time.Duration) {}

func (f *fakeTelemetry) stopped(owner string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.stops {
		if s == owner {
			return true
		}
	}
	return false
}

type fakeRoof struct{}

func (fakeRoof) OpenRoof(context.Context) error  { return nil }
func (fakeRoof) CloseRoof(context.Context) error { return nil }
func (fakeRoof) RoofState() models.RoofState     { return models.RoofOn }

// tickClock is a fake time source that advances a fixed step on every read,
// so minute-scale windows complete in milliseconds of real time while every
// component still observes a monotonically advancing clock.
type tickClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func newTickClock(at time.Time, step time.Duration) *tickClock {
	return &tickClock{t: at, step: step}
}

func (c *tickClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(c.step)
	return c.t
}

// openInterlock returns an interlock whose cached roof state reads ON.
func openInterlock() *safety.Interlock {
	cache := safety.NewRoofCache(time.Hour)
	cache.Update(models.RoofOn)
	return safety.NewInterlock(cache, logger.Get(logger.ErrorLevel), nil)
}

func fastOptions() Options {
	return Options{
		RetryDelay: 10 * time.Millisecond,
		Tick:       time.Millisecond,
		Location:   time.UTC,
	}
}

func testManager(laser *fakeLaser, tel Telemetry) *Manager {
	if tel == nil {
		tel = &fakeTelemetry{}
	}
	return New(laser, fakeRoof{}, openInterlock(), tel, nil,
		fastOptions(), logger.Get(logger.ErrorLevel))
}

// midWindowProgram builds a once program whose 60s window already contains
// clock (12:00:30), so a started manager joins immediately: the occurrence
// starts at 12:00 and every phase that has already elapsed is skipped. Only
// the second half of the window produces fires.
func midWindowProgram(id string, fireMs, restMs int) (models.Program, time.Time) {
	clock := time.Date(2020, 1, 1, 12, 0, 30, 0, time.UTC)
	return models.Program{
		ID: id, Name: id, Enabled: true,
		Mode: models.ModeOnce, OnceDate: "2020-01-01",
		Start: "12:00", End: "12:01",
		FireMs: fireMs, RestMs: restMs,
	}, clock
}

func waitDone(t *testing.T, m *Manager, id string) models.ProgramStatus {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if st, ok := m.Status(id); ok && !st.Running {
			return st
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("program %s did not finish", id)
	return models.ProgramStatus{}
}

func TestStart_NotConnected(t *testing.T) {
	laser := &fakeLaser{}
	m := testManager(laser, nil)
	p, clock := midWindowProgram("p1", 1000, 1000)
	m.now = newTickClock(clock, 50*time.Millisecond).Now

	err := m.Start(p)
	require.ErrorIs(t, err, ErrNotConnected)
	assert.False(t, m.Running("p1"))
}

func TestStart_Disabled(t *testing.T) {
	laser := &fakeLaser{}
	laser.connected.Store(true)
	m := testManager(laser, nil)
	p, clock := midWindowProgram("p1", 1000, 1000)
	p.Enabled = false
	m.now = newTickClock(clock, 50*time.Millisecond).Now

	require.ErrorIs(t, m.Start(p), ErrDisabled)
}

func TestRun_OnceCompletes(t *testing.T) {
	laser := &fakeLaser{}
	laser.connected.Store(true)
	m := testManager(laser, nil)
	p, clock := midWindowProgram("p1", 5000, 5000)
	m.now = newTickClock(clock, 50*time.Millisecond).Now

	require.NoError(t, m.Start(p))
	st := waitDone(t, m, "p1")

	// Joined at 12:00:30 in a 60s window of 5s/5s cycles: the three fires at
	// :00, :10 and :20 have elapsed and are skipped; :30, :40 and :50 fire.
	assert.Equal(t, int32(3), laser.fires.Load())
	assert.Equal(t, 3, st.Done)
	assert.Equal(t, 6, st.Total, "the window as a whole holds six cycles")
	assert.Equal(t, "Done", st.State)
	assert.Empty(t, m.ActiveProgram(), "slot released after the occurrence")
}

func TestStop_Idempotent(t *testing.T) {
	laser := &fakeLaser{}
	laser.connected.Store(true)
	m := testManager(laser, nil)

	// Window far in the future: the runner parks in its pre-start wait.
	p := models.Program{
		ID: "p1", Name: "p1", Enabled: true,
		Mode: models.ModeOnce, OnceDate: "2020-01-02",
		Start: "12:00", End: "12:30", FireMs: 1000, RestMs: 1000,
	}
	m.now = func() time.Time { return time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC) }

	require.NoError(t, m.Start(p))
	require.True(t, m.Running("p1"))

	m.Stop("p1")
	assert.False(t, m.Running("p1"))
	assert.Equal(t, int32(1), laser.standbys.Load())

	// Second stop on an already-stopped program: no extra STANDBY, no panic.
	m.Stop("p1")
	m.Stop("p1")
	assert.Equal(t, int32(1), laser.standbys.Load())
}

func TestBlockedClaim_RetriesUntilSlotFree(t *testing.T) {
	laser := &fakeLaser{}
	laser.connected.Store(true)
	m := testManager(laser, nil)
	p, clock := midWindowProgram("p1", 10000, 10000)
	m.now = newTickClock(clock, 50*time.Millisecond).Now

	// Another holder occupies the slot before the program starts.
	require.True(t, m.slot.TryClaim("intruder"))
	require.NoError(t, m.Start(p))

	// The runner must observe the occupied slot and back off without firing.
	require.Eventually(t, func() bool {
		st, ok := m.Status("p1")
		return ok && st.State == "Blocked (Active=intruder)"
	}, 2*time.Second, 5*time.Millisecond)
	assert.Zero(t, laser.fires.Load(), "no fire may happen while blocked")

	m.slot.Release("intruder")
	st := waitDone(t, m, "p1")
	// 10s/10s cycles joined past 12:00:30: only the :40 fire is still ahead.
	assert.Equal(t, int32(1), laser.fires.Load())
	assert.Equal(t, 1, st.Done)
	assert.Equal(t, 3, st.Total)
}

func TestAtMostOneActiveProgram(t *testing.T) {
	laser := &fakeLaser{fireDelay: 2 * time.Millisecond}
	laser.connected.Store(true)
	m := testManager(laser, nil)

	a, clock := midWindowProgram("a", 5000, 5000)
	b, _ := midWindowProgram("b", 5000, 5000)
	m.now = newTickClock(clock, 50*time.Millisecond).Now

	require.NoError(t, m.Start(a))
	require.NoError(t, m.Start(b))
	waitDone(t, m, "a")
	waitDone(t, m, "b")

	assert.False(t, laser.overlap.Load(), "two programs may never fire concurrently")
	// Whichever program wins the slot keeps it for the rest of the window,
	// so only its three remaining cycles fire; the loser gets nothing.
	assert.Equal(t, int32(3), laser.fires.Load())
	assert.Empty(t, m.ActiveProgram())
}

func TestPause_HaltsFiringImmediately(t *testing.T) {
	laser := &fakeLaser{}
	laser.connected.Store(true)
	tel := &fakeTelemetry{}
	m := testManager(laser, tel)
	p, clock := midWindowProgram("p1", 5000, 5000)
	m.now = newTickClock(clock, 50*time.Millisecond).Now

	require.NoError(t, m.Start(p))
	require.Eventually(t, func() bool { return laser.fires.Load() > 0 },
		2*time.Second, time.Millisecond)

	standbysBefore := laser.standbys.Load()
	require.NoError(t, m.Pause("p1"))

	// The pause must force a STANDBY right away, not at the window end.
	assert.Greater(t, laser.standbys.Load(), standbysBefore)

	// Once the slot is back the cancelled engine has fully unwound; from
	// here the fire count must freeze.
	require.Eventually(t, func() bool { return m.ActiveProgram() == "" },
		time.Second, time.Millisecond, "paused program must not hold the fire slot")
	firesAtPause := laser.fires.Load()
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, firesAtPause, laser.fires.Load(), "laser kept firing after pause")

	st, ok := m.Status("p1")
	require.True(t, ok)
	assert.True(t, st.Paused)
	assert.True(t, tel.stopped("p1"), "telemetry session must end on pause")
}

func TestResume_RejoinsRemainingWindow(t *testing.T) {
	laser := &fakeLaser{}
	laser.connected.Store(true)
	m := testManager(laser, nil)
	p, clock := midWindowProgram("p1", 5000, 5000)
	m.now = newTickClock(clock, 50*time.Millisecond).Now

	require.NoError(t, m.Start(p))
	require.Eventually(t, func() bool { return laser.fires.Load() > 0 },
		2*time.Second, time.Millisecond)
	require.NoError(t, m.Pause("p1"))
	time.Sleep(250 * time.Millisecond)
	firesAtPause := laser.fires.Load()

	require.NoError(t, m.Resume("p1"))
	st := waitDone(t, m, "p1")

	assert.Greater(t, laser.fires.Load(), firesAtPause, "resume must pick the window back up")
	assert.Equal(t, "Done", st.State)
	assert.Empty(t, m.ActiveProgram())
}

func TestPauseResume_NotRunning(t *testing.T) {
	m := testManager(&fakeLaser{}, nil)
	require.ErrorIs(t, m.Pause("ghost"), ErrNotRunning)
	require.ErrorIs(t, m.Resume("ghost"), ErrNotRunning)
}
