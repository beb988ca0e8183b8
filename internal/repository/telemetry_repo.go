package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"laserctl/internal/models"
)

type TelemetrySQLite struct {
	db *sql.DB
}

func NewTelemetrySQLite(db *sql.DB) *TelemetrySQLite { return &TelemetrySQLite{db: db} }

var _ TelemetryRepo = (*TelemetrySQLite)(nil)

const insertTelemetrySQL = `
	INSERT INTO telemetry (id, recorded_at, owner, status, qsdelay_us, dtemf, ltemf, overload, roof_state)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

// AppendTelemetry inserts one sampled row.
func (r *TelemetrySQLite) AppendTelemetry(ctx context.Context, rec models.TelemetryRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	} else {
		rec.RecordedAt = rec.RecordedAt.UTC()
	}

	_, err := r.db.ExecContext(ctx, insertTelemetrySQL,
		rec.ID,
		rec.RecordedAt.Format("2006-01-02 15:04:05"),
		rec.Owner,
		rec.Status,
		rec.QSDelay,
		rec.DTEMF,
		rec.LTEMF,
		rec.Overload,
		string(rec.RoofState),
	)
	if err != nil {
		return fmt.Errorf("insert telemetry row: %w", err)
	}
	return nil
}

// ListTelemetry returns rows filtered by [from, to] and/or owner, newest
// first, capped at limit (default 1000).
func (r *TelemetrySQLite) ListTelemetry(ctx context.Context, from, to time.Time, owner string, limit int) ([]models.TelemetryRecord, error) {
	if limit <= 0 {
		limit = 1000
	}

	var (
		conds []string
		args  []any
	)
	if !from.IsZero() {
		conds = append(conds, "recorded_at >= ?")
		args = append(args, from.UTC())
	}
	if !to.IsZero() {
		conds = append(conds, "recorded_at <= ?")
		args = append(args, to.UTC())
	}
	if owner = strings.TrimSpace(owner); owner != "" {
		conds = append(conds, "owner = ?")
		args = append(args, owner)
	}

	q := `SELECT id, recorded_at, owner, status, qsdelay_us, dtemf, ltemf, overload, roof_state FROM telemetry`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY recorded_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.TelemetryRecord, 0, 64)
	for rows.Next() {
		var (
			rec   models.TelemetryRecord
			dtemf sql.NullFloat64
			ltemf sql.NullFloat64
			roof  string
		)
		if err := rows.Scan(&rec.ID, &rec.RecordedAt, &rec.Owner, &rec.Status,
			&rec.QSDelay, &dtemf, &ltemf, &rec.Overload, &roof); err != nil {
			return nil, err
		}
		rec.RecordedAt = rec.RecordedAt.UTC()
		if dtemf.Valid {
			v := dtemf.Float64
			rec.DTEMF = &v
		}
		if ltemf.Valid {
			v := ltemf.Float64
			rec.LTEMF = &v
		}
		rec.RoofState = models.RoofState(roof)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
