package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"laserctl/internal/models"
)

// ErrProgramNotFound is returned when the requested program id is absent.
var ErrProgramNotFound = errors.New("program not found")

type ProgramSQLite struct {
	db *sql.DB
}

func NewProgramSQLite(db *sql.DB) *ProgramSQLite { return &ProgramSQLite{db: db} }

var _ ProgramRepo = (*ProgramSQLite)(nil)

const (
	upsertProgramSQL = `
		INSERT INTO programs (id, name, enabled, mode, start_hhmm, end_hhmm, fire_ms, rest_ms, once_date, dates)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			enabled = excluded.enabled,
			mode = excluded.mode,
			start_hhmm = excluded.start_hhmm,
			end_hhmm = excluded.end_hhmm,
			fire_ms = excluded.fire_ms,
			rest_ms = excluded.rest_ms,
			once_date = excluded.once_date,
			dates = excluded.dates`
	selectProgramSQL  = `SELECT id, name, enabled, mode, start_hhmm, end_hhmm, fire_ms, rest_ms, once_date, dates FROM programs WHERE id = ?`
	selectProgramsSQL = `SELECT id, name, enabled, mode, start_hhmm, end_hhmm, fire_ms, rest_ms, once_date, dates FROM programs ORDER BY name ASC`
	deleteProgramSQL  = `DELETE FROM programs WHERE id = ?`
)

// Save inserts or updates a program. A missing ID gets one assigned.
func (r *ProgramSQLite) Save(ctx context.Context, p models.Program) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	var dates *string
	if len(p.Dates) > 0 {
		b, err := json.Marshal(p.Dates)
		if err != nil {
			return fmt.Errorf("marshal program dates: %w", err)
		}
		s := string(b)
		dates = &s
	}
	_, err := r.db.ExecContext(ctx, upsertProgramSQL,
		p.ID, p.Name, p.Enabled, p.Mode, p.Start, p.End, p.FireMs, p.RestMs,
		nullable(p.OnceDate), dates,
	)
	if err != nil {
		return fmt.Errorf("save program %q: %w", p.ID, err)
	}
	return nil
}

// Get loads one program by id.
func (r *ProgramSQLite) Get(ctx context.Context, id string) (models.Program, error) {
	row := r.db.QueryRowContext(ctx, selectProgramSQL, id)
	p, err := scanProgram(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Program{}, ErrProgramNotFound
	}
	if err != nil {
		return models.Program{}, fmt.Errorf("select program %q: %w", id, err)
	}
	return p, nil
}

// List returns every stored program ordered by name.
func (r *ProgramSQLite) List(ctx context.Context) ([]models.Program, error) {
	rows, err := r.db.QueryContext(ctx, selectProgramsSQL)
	if err != nil {
		return nil, fmt.Errorf("list programs: %w", err)
	}
	defer rows.Close()

	out := make([]models.Program, 0, 8)
	for rows.Next() {
		p, err := scanProgram(rows)
		if err != nil {
			return nil, fmt.Errorf("scan program: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a program. Unknown ids report ErrProgramNotFound.
func (r *ProgramSQLite) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, deleteProgramSQL, id)
	if err != nil {
		return fmt.Errorf("delete program %q: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrProgramNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProgram(row rowScanner) (models.Program, error) {
	var (
		p        models.Program
		onceDate sql.NullString
		dates    sql.NullString
	)
	err := row.Scan(&p.ID, &p.Name, &p.Enabled, &p.Mode, &p.Start, &p.End,
		&p.FireMs, &p.RestMs, &onceDate, &dates)
	if err != nil {
		return models.Program{}, err
	}
	p.OnceDate = onceDate.String
	if dates.Valid && dates.String != "" {
		if err := json.Unmarshal([]byte(dates.String), &p.Dates); err != nil {
			return models.Program{}, fmt.Errorf("decode program dates: %w", err)
		}
	}
	return p, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
