package service

import (
	"context"
	"time"

	"laserctl/internal/device"
	"laserctl/internal/logger"
	"laserctl/internal/models"
	"laserctl/internal/repository"
	"laserctl/internal/safety"
	"laserctl/internal/scheduler"
	"laserctl/internal/telemetry"
)

type Authorization interface {
	SignUp(username, password string) (int, error)
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Laser exposes the manual control surface: connection lifecycle, direct
// fire/standby/stop and device parameter changes.
type Laser interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Fire(ctx context.Context) error
	Standby(ctx context.Context) error
	Stop(ctx context.Context) error
	SetQSDelay(ctx context.Context, us int) error
	SetFrequency(ctx context.Context, raw string) (int, error)
	SetMaxTemp(v float64)
	SetSafety(enabled bool)
	RunTempWatchdog(ctx context.Context)
}

// Programs exposes schedule CRUD plus the run lifecycle.
type Programs interface {
	Save(ctx context.Context, p models.Program) (models.Program, error)
	Get(ctx context.Context, id string) (models.Program, error)
	List(ctx context.Context) ([]models.Program, error)
	Delete(ctx context.Context, id string) error
	Duplicate(ctx context.Context, id string) (models.Program, error)
	RemoveAll(ctx context.Context) error

	Start(ctx context.Context, id string) error
	Stop(id string)
	StartAll(ctx context.Context) error
	StopAll()
	Pause(id string) error
	Resume(id string) error
	Status(ctx context.Context, id string) (models.ProgramStatus, error)
	StatusAll(ctx context.Context) ([]models.ProgramStatus, error)

	PreviewCycles(ctx context.Context, id string) (int, error)
	PreviewFireTimes(ctx context.Context, id string, max int) ([]time.Time, error)
}

// Monitoring exposes the live snapshot and its push feed.
type Monitoring interface {
	GetState(ctx context.Context) (models.LaserState, error)
	Subscribe() (<-chan models.LaserState, func())
	Run(ctx context.Context)
}

// EventLog exposes the append-only audit log with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.Event, error)
	Record(eventType, description string)
}

// Telemetry exposes recorded telemetry rows.
type Telemetry interface {
	ListTelemetry(ctx context.Context, f TelemetryFilter) ([]models.TelemetryRecord, error)
}

type Service struct {
	Laser
	Programs
	Monitoring
	EventLog
	Telemetry
	Authorization
}

// Deps carries the already-wired infrastructure the services sit on.
type Deps struct {
	Device    *device.Client
	Roof      scheduler.RoofControl
	Cache     *safety.RoofCache
	Interlock *safety.Interlock
	Sampler   *telemetry.Sampler
	Tracker   *StateTracker
	Repos     *repository.Repository
	Log       *logger.Logger

	LoginUser    string
	SchedulerOpt scheduler.Options
}

// NewService wires the sub-services and the program scheduler together.
func NewService(d Deps) *Service {
	events := NewEventLogService(d.Repos.Events, d.Log)
	laser := NewLaserService(d, events)
	manager := scheduler.New(laser.Gateway(), d.Roof, d.Interlock, d.Sampler,
		events.Record, d.SchedulerOpt, d.Log.Named("scheduler"))
	laser.manager = manager

	return &Service{
		Laser:         laser,
		Programs:      NewProgramService(d.Repos.Programs, manager, d.SchedulerOpt.Location, d.Log),
		Monitoring:    NewMonitoringService(d.Device, d.Tracker, d.Sampler, manager, d.Log),
		EventLog:      events,
		Telemetry:     NewTelemetryService(d.Repos.Telemetry),
		Authorization: NewAuthService(d.Repos.Auth),
	}
}
