package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"laserctl/internal/device"
	"laserctl/internal/logger"
	"laserctl/internal/metrics"
	"laserctl/internal/models"
	"laserctl/internal/safety"
	"laserctl/internal/scheduler"
	"laserctl/internal/telemetry"
)

// manualOwner marks operator-initiated telemetry sessions.
const manualOwner = "manual"

// tempHysteresis keeps the over-temperature alarm from flapping around the
// limit.
const tempHysteresis = 0.3

var (
	ErrFireBlocked  = errors.New("fire blocked: roof not verified open")
	ErrQSDelayRange = errors.New("qsdelay out of range: want 0..400 µs")
	ErrFreqRange    = errors.New("frequency out of range: want 1..22 Hz")
	ErrBadFreq      = errors.New("invalid frequency: want a number with optional k/M suffix")
)

var freqRe = regexp.MustCompile(`^(?i)\s*([0-9]+(?:\.\d+)?)\s*([kKmM]?)\s*$`)

type LaserService struct {
	dev       *device.Client
	interlock *safety.Interlock
	sampler   *telemetry.Sampler
	tracker   *StateTracker
	events    *EventLogService
	log       *logger.Logger
	loginUser string
	pause     time.Duration
	manager   *scheduler.Manager // set by NewService after the manager exists

	alarm bool // over-temperature alarm latched
}

func NewLaserService(d Deps, events *EventLogService) *LaserService {
	pause := d.SchedulerOpt.TelemetryPause
	if pause <= 0 {
		pause = 1500 * time.Millisecond
	}
	return &LaserService{
		dev:       d.Device,
		interlock: d.Interlock,
		sampler:   d.Sampler,
		tracker:   d.Tracker,
		events:    events,
		log:       d.Log.Named("laser"),
		loginUser: d.LoginUser,
		pause:     pause,
	}
}

// Connect opens the control channel and logs in.
func (s *LaserService) Connect(ctx context.Context) error {
	if err := s.dev.Connect(); err != nil {
		s.events.Record(models.EventError, fmt.Sprintf("connect failed: %v", err))
		s.tracker.Update(func(st *models.LaserState) { st.Connected = false })
		return err
	}
	if s.loginUser != "" {
		if _, err := s.dev.Send(device.LoginCmd(s.loginUser)); err != nil {
			s.dev.Close()
			s.events.Record(models.EventError, fmt.Sprintf("login failed: %v", err))
			s.tracker.Update(func(st *models.LaserState) { st.Connected = false })
			return fmt.Errorf("login: %w", err)
		}
	}
	s.tracker.Update(func(st *models.LaserState) { st.Connected = true })
	s.events.Record(models.EventConnect, "laser connected")
	s.log.Infow("connected", "user", s.loginUser)
	return nil
}

// Disconnect stops all schedules and telemetry, then closes the channel.
func (s *LaserService) Disconnect(ctx context.Context) error {
	if s.manager != nil {
		s.manager.StopAll()
	}
	s.sampler.StopSession(s.sampler.Owner())
	s.dev.Close()
	s.tracker.Update(func(st *models.LaserState) {
		st.Connected = false
		st.Firing = false
	})
	s.events.Record(models.EventDisconnect, "laser disconnected")
	return nil
}

// Fire sends a manual $FIRE through the interlock. A recording session for
// the manual owner is started when no program owns telemetry.
func (s *LaserService) Fire(ctx context.Context) error {
	if !s.dev.Connected() {
		return device.ErrNotConnected
	}
	s.sampler.Pause(s.pause)
	if !s.interlock.SafeFire(func() error { return s.fireRaw("manual") }) {
		s.tracker.Update(func(st *models.LaserState) { st.Firing = false })
		s.events.Record(models.EventBlocked, "manual fire blocked by roof interlock")
		return ErrFireBlocked
	}
	if s.sampler.Owner() == "" {
		s.sampler.StartSession(manualOwner, time.Now())
	}
	return nil
}

// Standby sends $STANDBY and ends a manual telemetry session.
func (s *LaserService) Standby(ctx context.Context) error {
	s.sampler.Pause(s.pause)
	if err := s.standbyRaw(); err != nil {
		return err
	}
	s.events.Record(models.EventStandby, "manual standby")
	if s.sampler.Owner() == manualOwner {
		s.sampler.StopSession(manualOwner)
	}
	return nil
}

// Stop is the emergency stop: halt recording whoever owns it, then $STOP.
func (s *LaserService) Stop(ctx context.Context) error {
	s.tracker.Update(func(st *models.LaserState) { st.Firing = false })
	if owner := s.sampler.Owner(); owner != "" {
		s.sampler.StopSession(owner)
	}
	if _, err := s.dev.Send(device.CmdStop); err != nil {
		s.events.Record(models.EventError, fmt.Sprintf("stop failed: %v", err))
		return err
	}
	s.events.Record(models.EventStop, "emergency stop")
	return nil
}

// SetQSDelay validates and applies a Q-switch delay in microseconds.
func (s *LaserService) SetQSDelay(ctx context.Context, us int) error {
	if us < 0 || us > 400 {
		return ErrQSDelayRange
	}
	if _, err := s.dev.Send(device.QSDelayCmd(us)); err != nil {
		return err
	}
	s.tracker.SetQSDelay(us)
	s.log.Infow("qsdelay applied", "us", us)
	return nil
}

// SetFrequency parses a raw value like "20", "1k" or "0.00002M", converts to
// Hz, validates and applies it. Returns the Hz actually sent.
func (s *LaserService) SetFrequency(ctx context.Context, raw string) (int, error) {
	m := freqRe.FindStringSubmatch(raw)
	if m == nil {
		return 0, ErrBadFreq
	}
	val, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, ErrBadFreq
	}
	switch strings.ToLower(m[2]) {
	case "k":
		val *= 1e3
	case "m":
		val *= 1e6
	}
	hz := int(val)
	if hz < 1 || hz > 22 {
		return 0, ErrFreqRange
	}
	if _, err := s.dev.Send(device.DFreqCmd(hz)); err != nil {
		return 0, err
	}
	s.log.Infow("frequency applied", "hz", hz)
	return hz, nil
}

// SetMaxTemp updates the over-temperature limit; 0 disables the watchdog.
func (s *LaserService) SetMaxTemp(v float64) { s.tracker.SetMaxTemp(v) }

// SetSafety toggles the roof interlock.
func (s *LaserService) SetSafety(enabled bool) {
	s.interlock.SetEnabled(enabled)
	s.log.Infow("safety checking toggled", "enabled", enabled)
}

// RunTempWatchdog forces STANDBY when LTEMF exceeds the limit, once per
// excursion: the alarm re-arms only after the reading drops below the limit
// minus the hysteresis band.
func (s *LaserService) RunTempWatchdog(ctx context.Context) {
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			maxTemp := s.tracker.MaxTemp()
			if maxTemp <= 0 || !s.dev.Connected() {
				continue
			}
			_, ltemf := s.sampler.LastTemps()
			if ltemf == nil {
				if v, ok := s.dev.QueryFloat(device.CmdLTEMFQuery, 350*time.Millisecond); ok {
					ltemf = &v
				} else {
					continue
				}
			}
			switch {
			case *ltemf > maxTemp && !s.alarm:
				s.alarm = true
				s.log.Warnw("over temperature, forcing standby", "ltemf", *ltemf, "max", maxTemp)
				if err := s.standbyRaw(); err != nil {
					s.log.Errorw("watchdog standby failed", "err", err)
				}
				s.events.Record(models.EventOverTemp,
					fmt.Sprintf("LTEMF %.1f exceeded limit %.1f, laser set to standby", *ltemf, maxTemp))
			case *ltemf < maxTemp-tempHysteresis && s.alarm:
				s.alarm = false
				s.log.Infow("temperature recovered", "ltemf", *ltemf)
			}
		}
	}
}

// Gateway returns the raw control surface the scheduler drives. The
// scheduler applies the interlock itself, so these sends are unguarded.
func (s *LaserService) Gateway() scheduler.Laser { return gateway{s} }

type gateway struct{ s *LaserService }

func (g gateway) Fire() error     { return g.s.fireRaw("schedule") }
func (g gateway) Standby() error  { return g.s.standbyRaw() }
func (g gateway) Connected() bool { return g.s.dev.Connected() }

func (s *LaserService) fireRaw(origin string) error {
	started := time.Now()
	if _, err := s.dev.Send(device.CmdFire); err != nil {
		return err
	}
	metrics.CommandDuration.Observe(time.Since(started).Seconds())
	metrics.FiresTotal.WithLabelValues(origin).Inc()
	s.tracker.Update(func(st *models.LaserState) {
		st.Firing = true
		st.Mode = models.LaserModeFire
	})
	return nil
}

func (s *LaserService) standbyRaw() error {
	s.sampler.Pause(s.pause)
	if _, err := s.dev.Send(device.CmdStandby); err != nil {
		return err
	}
	s.tracker.Update(func(st *models.LaserState) {
		st.Firing = false
		st.Mode = models.LaserModeStandby
	})
	return nil
}
