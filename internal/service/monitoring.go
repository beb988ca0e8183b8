package service

import (
	"context"
	"time"

	"laserctl/internal/device"
	"laserctl/internal/logger"
	"laserctl/internal/models"
	"laserctl/internal/scheduler"
	"laserctl/internal/telemetry"
)

// DefaultStatusPoll is how often the device $STATUS register is polled.
const DefaultStatusPoll = 5 * time.Second

type MonitoringService struct {
	dev     *device.Client
	tracker *StateTracker
	sampler *telemetry.Sampler
	manager *scheduler.Manager
	log     *logger.Logger
	poll    time.Duration
}

func NewMonitoringService(dev *device.Client, tracker *StateTracker,
	sampler *telemetry.Sampler, manager *scheduler.Manager, log *logger.Logger) *MonitoringService {
	return &MonitoringService{
		dev:     dev,
		tracker: tracker,
		sampler: sampler,
		manager: manager,
		log:     log.Named("monitoring"),
		poll:    DefaultStatusPoll,
	}
}

// GetState returns the current snapshot with the latest temperature readings
// and the program holding the active slot folded in.
func (s *MonitoringService) GetState(ctx context.Context) (models.LaserState, error) {
	st := s.tracker.Snapshot()
	st.DTEMF, st.LTEMF = s.sampler.LastTemps()
	st.ActiveProgram = s.manager.ActiveProgram()
	return st, nil
}

// Subscribe returns a channel of state snapshots and a cancel func that
// releases it.
func (s *MonitoringService) Subscribe() (<-chan models.LaserState, func()) {
	return s.tracker.Subscribe()
}

// Run polls the device status register until ctx is done. Busy skips are
// normal while another command holds the channel.
func (s *MonitoringService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if !s.dev.Connected() {
			s.tracker.Update(func(st *models.LaserState) { st.Connected = false })
			continue
		}
		status, ok := s.dev.QueryStatus()
		if !ok {
			continue
		}
		s.tracker.Update(func(st *models.LaserState) {
			st.Connected = true
			st.Mode = status.Mode
			st.Ready = status.Ready
			st.Firing = status.Mode == models.LaserModeFire
		})
	}
}
