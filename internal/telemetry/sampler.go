package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"laserctl/internal/device"
	"laserctl/internal/logger"
	"laserctl/internal/metrics"
	"laserctl/internal/models"
)

// DefaultInterval is the sampling cadence while a session is live.
const DefaultInterval = 2 * time.Second

// queryTimeout keeps telemetry reads short so they never starve a control
// command waiting for the channel.
const queryTimeout = 600 * time.Millisecond

// Querier is the device surface the sampler needs: non-blocking numeric
// reads that report busy as a miss.
type Querier interface {
	QueryFloat(cmd string, timeout time.Duration) (float64, bool)
	Connected() bool
}

// Store persists sampled rows. Failures are logged, never fatal.
type Store interface {
	AppendTelemetry(ctx context.Context, rec models.TelemetryRecord) error
}

// StateSource supplies the contextual fields of each row.
type StateSource interface {
	IsFiring() bool
	QSDelay() int
	MaxTemp() float64
	RoofState() models.RoofState
}

// Sampler records device telemetry at a fixed cadence while exactly one
// owner (a scheduled program or "manual") holds the recording session.
// Reads go through the non-blocking channel path: a busy channel means the
// sample is skipped and the last known value carries forward.
type Sampler struct {
	dev      Querier
	store    Store
	state    StateSource
	log      *logger.Logger
	interval time.Duration
	now      func() time.Time

	mu         sync.Mutex
	owner      string
	cancel     context.CancelFunc
	pauseUntil time.Time
	lastDTEMF  *float64
	lastLTEMF  *float64
}

// New builds a sampler. interval <= 0 selects DefaultInterval.
func New(dev Querier, store Store, state StateSource, interval time.Duration, log *logger.Logger) *Sampler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sampler{
		dev:      dev,
		store:    store,
		state:    state,
		log:      log,
		interval: interval,
		now:      time.Now,
	}
}

// Owner returns the current session owner, or "" when idle.
func (s *Sampler) Owner() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner
}

// LastTemps returns the last known DTEMF and LTEMF readings.
func (s *Sampler) LastTemps() (dtemf, ltemf *float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastDTEMF, s.lastLTEMF
}

// Pause suppresses sampling for d from now. Called after every control
// command so telemetry reads never race the command's response.
func (s *Sampler) Pause(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	until := s.now().Add(d)
	if until.After(s.pauseUntil) {
		s.pauseUntil = until
	}
}

func (s *Sampler) paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now().Before(s.pauseUntil)
}

// StartSession begins recording for owner, replacing any live session.
func (s *Sampler) StartSession(owner string, startedAt time.Time) {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.owner = owner
	s.cancel = cancel
	s.mu.Unlock()

	s.log.Infow("telemetry session start", "owner", owner, "scheduled_for", startedAt)
	go s.run(ctx, owner)
}

// StopSession ends the session if owner still holds it. A stale stop from a
// previous owner is a no-op.
func (s *Sampler) StopSession(owner string) {
	s.mu.Lock()
	if s.owner != owner || s.cancel == nil {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.owner = ""
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.log.Infow("telemetry session stop", "owner", owner)
}

func (s *Sampler) run(ctx context.Context, owner string) {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if s.paused() || !s.dev.Connected() {
				continue
			}
			s.sample(ctx, owner)
		}
	}
}

// sample reads one row and appends it. Busy reads keep last known values.
func (s *Sampler) sample(ctx context.Context, owner string) {
	d, dok := s.dev.QueryFloat(device.CmdDTEMFQuery, queryTimeout)
	l, lok := s.dev.QueryFloat(device.CmdLTEMFQuery, queryTimeout)
	if !dok || !lok {
		metrics.BusySkipsTotal.Inc()
	}

	s.mu.Lock()
	if dok {
		v := d
		s.lastDTEMF = &v
	}
	if lok {
		v := l
		s.lastLTEMF = &v
	}
	dtemf, ltemf := s.lastDTEMF, s.lastLTEMF
	s.mu.Unlock()

	status := 0
	if s.state.IsFiring() {
		status = 1
	}
	maxTemp := s.state.MaxTemp()
	overload := ltemf != nil && maxTemp > 0 && *ltemf > maxTemp

	rec := models.TelemetryRecord{
		ID:         uuid.NewString(),
		RecordedAt: s.now(),
		Owner:      owner,
		Status:     status,
		QSDelay:    s.state.QSDelay(),
		DTEMF:      dtemf,
		LTEMF:      ltemf,
		Overload:   overload,
		RoofState:  s.state.RoofState(),
	}
	if err := s.store.AppendTelemetry(ctx, rec); err != nil {
		s.log.Errorw("telemetry append failed", "err", err)
	}
}
