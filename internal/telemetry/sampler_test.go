package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"

	"laserctl/internal/device"
	"laserctl/internal/logger"
	"laserctl/internal/models"
)

type fakeDevice struct {
	mu   sync.Mutex
	vals map[string]float64
	busy bool
	conn bool
}

func (f *fakeDevice) QueryFloat(cmd string, _ time.Duration) (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy {
		return 0, false
	}
	v, ok := f.vals[cmd]
	return v, ok
}

func (f *fakeDevice) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conn
}

func (f *fakeDevice) set(busy bool, vals map[string]float64) {
	f.mu.Lock()
	f.busy = busy
	f.vals = vals
	f.mu.Unlock()
}

type fakeStore struct {
	mu   sync.Mutex
	rows []models.TelemetryRecord
}

func (f *fakeStore) AppendTelemetry(_ context.Context, rec models.TelemetryRecord) error {
	f.mu.Lock()
	f.rows = append(f.rows, rec)
	f.mu.Unlock()
	return nil
}

func (f *fakeStore) snapshot() []models.TelemetryRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.TelemetryRecord(nil), f.rows...)
}

type fakeState struct {
	firing  bool
	maxTemp float64
}

func (f *fakeState) IsFiring() bool              { return f.firing }
func (f *fakeState) QSDelay() int                { return 150 }
func (f *fakeState) MaxTemp() float64            { return f.maxTemp }
func (f *fakeState) RoofState() models.RoofState { return models.RoofOn }

func newTestSampler(dev *fakeDevice, store *fakeStore, state *fakeState) *Sampler {
	return New(dev, store, state, 10*time.Millisecond, logger.Get(logger.ErrorLevel))
}

func waitRows(t *testing.T, store *fakeStore, n int) []models.TelemetryRecord {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if rows := store.snapshot(); len(rows) >= n {
			return rows
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("wanted %d telemetry rows, got %d", n, len(store.snapshot()))
	return nil
}

func TestSampler_RecordsRows(t *testing.T) {
	dev := &fakeDevice{conn: true}
	dev.set(false, map[string]float64{
		device.CmdDTEMFQuery: 21.5,
		device.CmdLTEMFQuery: 33.2,
	})
	store := &fakeStore{}
	s := newTestSampler(dev, store, &fakeState{firing: true, maxTemp: 40})

	s.StartSession("p1", time.Now())
	defer s.StopSession("p1")

	rows := waitRows(t, store, 2)
	r := rows[0]
	if r.Owner != "p1" {
		t.Errorf("Owner = %q, want p1", r.Owner)
	}
	if r.Status != 1 {
		t.Errorf("Status = %d, want 1 while firing", r.Status)
	}
	if r.DTEMF == nil || *r.DTEMF != 21.5 {
		t.Errorf("DTEMF = %v, want 21.5", r.DTEMF)
	}
	if r.LTEMF == nil || *r.LTEMF != 33.2 {
		t.Errorf("LTEMF = %v, want 33.2", r.LTEMF)
	}
	if r.Overload {
		t.Error("Overload = true below the limit")
	}
	if r.RoofState != models.RoofOn {
		t.Errorf("RoofState = %q, want ON", r.RoofState)
	}
	if r.QSDelay != 150 {
		t.Errorf("QSDelay = %d, want 150", r.QSDelay)
	}
}

func TestSampler_BusyKeepsLastValue(t *testing.T) {
	dev := &fakeDevice{conn: true}
	dev.set(false, map[string]float64{
		device.CmdDTEMFQuery: 20.0,
		device.CmdLTEMFQuery: 30.0,
	})
	store := &fakeStore{}
	s := newTestSampler(dev, store, &fakeState{maxTemp: 40})

	s.StartSession("p1", time.Now())
	defer s.StopSession("p1")
	waitRows(t, store, 1)

	// Channel goes busy: rows keep appearing with the last known values.
	dev.set(true, nil)
	before := len(store.snapshot())
	rows := waitRows(t, store, before+2)
	last := rows[len(rows)-1]
	if last.LTEMF == nil || *last.LTEMF != 30.0 {
		t.Errorf("LTEMF = %v after busy reads, want retained 30.0", last.LTEMF)
	}
}

func TestSampler_Overload(t *testing.T) {
	dev := &fakeDevice{conn: true}
	dev.set(false, map[string]float64{device.CmdLTEMFQuery: 45.1})
	store := &fakeStore{}
	s := newTestSampler(dev, store, &fakeState{maxTemp: 45})

	s.StartSession("p1", time.Now())
	defer s.StopSession("p1")

	rows := waitRows(t, store, 1)
	if !rows[0].Overload {
		t.Error("Overload = false with LTEMF above the limit")
	}
}

func TestSampler_SessionOwnership(t *testing.T) {
	dev := &fakeDevice{conn: true}
	store := &fakeStore{}
	s := newTestSampler(dev, store, &fakeState{})

	s.StartSession("a", time.Now())
	if got := s.Owner(); got != "a" {
		t.Fatalf("Owner = %q, want a", got)
	}

	// A new owner replaces the session.
	s.StartSession("b", time.Now())
	if got := s.Owner(); got != "b" {
		t.Fatalf("Owner = %q, want b", got)
	}

	// A stale stop from the old owner must not kill b's session.
	s.StopSession("a")
	if got := s.Owner(); got != "b" {
		t.Errorf("Owner = %q after stale stop, want b", got)
	}

	s.StopSession("b")
	if got := s.Owner(); got != "" {
		t.Errorf("Owner = %q after stop, want empty", got)
	}
}

func TestSampler_PauseSuppressesSampling(t *testing.T) {
	dev := &fakeDevice{conn: true}
	dev.set(false, map[string]float64{device.CmdLTEMFQuery: 30})
	store := &fakeStore{}
	s := newTestSampler(dev, store, &fakeState{})

	s.Pause(time.Hour)
	s.StartSession("p1", time.Now())
	defer s.StopSession("p1")

	time.Sleep(60 * time.Millisecond)
	if n := len(store.snapshot()); n != 0 {
		t.Errorf("got %d rows while paused, want 0", n)
	}
}
