package repository

import (
	"context"
	"database/sql"
	"time"

	"laserctl/internal/models"
)

type Authorization interface {
	Create(username, hash string) (int, error)
	GetByUsername(username string) (*models.User, error)
}

type ProgramRepo interface {
	Save(ctx context.Context, p models.Program) error
	Get(ctx context.Context, id string) (models.Program, error)
	List(ctx context.Context) ([]models.Program, error)
	Delete(ctx context.Context, id string) error
}

type EventRepo interface {
	Append(ctx context.Context, e models.Event) error
	List(ctx context.Context, from, to time.Time, typ string) ([]models.Event, error)
}

type TelemetryRepo interface {
	AppendTelemetry(ctx context.Context, rec models.TelemetryRecord) error
	ListTelemetry(ctx context.Context, from, to time.Time, owner string, limit int) ([]models.TelemetryRecord, error)
}

type Repository struct {
	Programs  ProgramRepo
	Events    EventRepo
	Telemetry TelemetryRepo
	Auth      Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Programs:  NewProgramSQLite(db),
		Events:    NewEventSQLite(db),
		Telemetry: NewTelemetrySQLite(db),
		Auth:      NewUserRepository(db),
	}
}
