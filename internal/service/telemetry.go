package service

import (
	"context"
	"strings"

	"laserctl/internal/models"
	"laserctl/internal/repository"
)

const defaultTelemetryLimit = 1000

type TelemetryService struct {
	repo repository.TelemetryRepo
}

func NewTelemetryService(repo repository.TelemetryRepo) *TelemetryService {
	return &TelemetryService{repo: repo}
}

// ListTelemetry returns recorded samples, newest first.
func (s *TelemetryService) ListTelemetry(ctx context.Context, f TelemetryFilter) ([]models.TelemetryRecord, error) {
	from := normalizeToUTC(f.From)
	to := normalizeToUTC(f.To)
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return nil, errInvalidTimeRange
	}
	limit := f.Limit
	if limit <= 0 || limit > defaultTelemetryLimit {
		limit = defaultTelemetryLimit
	}
	return s.repo.ListTelemetry(ctx, from, to, strings.TrimSpace(f.Owner), limit)
}
