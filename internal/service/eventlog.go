package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"laserctl/internal/logger"
	"laserctl/internal/metrics"
	"laserctl/internal/models"
	"laserctl/internal/repository"
)

const recordTimeout = 2 * time.Second

type EventLogService struct {
	eventRepo repository.EventRepo
	log       *logger.Logger
}

func NewEventLogService(eventRepo repository.EventRepo, log *logger.Logger) *EventLogService {
	return &EventLogService{eventRepo: eventRepo, log: log.Named("events")}
}

var (
	errInvalidTimeRange = errors.New("invalid time range: From must be <= To")
)

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// normalizeEventType trims spaces and uppercases the event type filter.
func normalizeEventType(s string) string {
	return strings.TrimSpace(strings.ToUpper(s))
}

// normalizeAndValidateFilter prepares query parameters and validates the time range.
func normalizeAndValidateFilter(f LogFilter) (time.Time, time.Time, string, error) {
	from := normalizeToUTC(f.From)
	to := normalizeToUTC(f.To)

	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return time.Time{}, time.Time{}, "", errInvalidTimeRange
	}

	eventType := normalizeEventType(f.Type)
	return from, to, eventType, nil
}

func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.Event, error) {
	from, to, typ, err := normalizeAndValidateFilter(f)
	if err != nil {
		return nil, err
	}
	return s.eventRepo.List(ctx, from, to, typ)
}

// Record appends an audit event. Storage failures are logged but never
// surfaced: an audit write must not take down a control path.
func (s *EventLogService) Record(eventType, description string) {
	switch eventType {
	case models.EventBlocked:
		metrics.FiresBlockedTotal.Inc()
	case models.EventRoofWarning:
		metrics.RoofWarningsTotal.Inc()
	}
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	err := s.eventRepo.Append(ctx, models.Event{Type: eventType, Description: description})
	if err != nil {
		s.log.Errorf("append event %s: %v", eventType, err)
	}
}
