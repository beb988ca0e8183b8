package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"laserctl/internal/engine"
	"laserctl/internal/logger"
	"laserctl/internal/models"
	"laserctl/internal/repository"
	"laserctl/internal/scheduler"
)

// MaxFireTimesPreview caps the fire-time preview so a long window cannot
// produce an unbounded response.
const MaxFireTimesPreview = 500

var (
	errBadMode       = errors.New("invalid mode: want everyday, weekdays, selectday or once")
	errBadWindow     = errors.New("invalid window: start and end must be HH:MM")
	errBadDurations  = errors.New("invalid durations: fire_ms must be > 0 and rest_ms >= 0")
	errOnceNeedsDate = errors.New("mode once requires once_date (YYYY-MM-DD)")
	errSelectNeeds   = errors.New("mode selectday requires at least one date")
	errRunningEdit   = errors.New("program is running: stop it before editing")
)

type ProgramService struct {
	repo    repository.ProgramRepo
	manager *scheduler.Manager
	loc     *time.Location
	log     *logger.Logger
}

func NewProgramService(repo repository.ProgramRepo, manager *scheduler.Manager,
	loc *time.Location, log *logger.Logger) *ProgramService {
	if loc == nil {
		loc = time.Local
	}
	return &ProgramService{repo: repo, manager: manager, loc: loc, log: log.Named("programs")}
}

// Save validates and persists a program. Running programs are locked: they
// must be stopped before edits.
func (s *ProgramService) Save(ctx context.Context, p models.Program) (models.Program, error) {
	if p.ID != "" && s.manager.Running(p.ID) {
		return models.Program{}, errRunningEdit
	}
	if err := validateProgram(p); err != nil {
		return models.Program{}, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if err := s.repo.Save(ctx, p); err != nil {
		return models.Program{}, err
	}
	return p, nil
}

func (s *ProgramService) Get(ctx context.Context, id string) (models.Program, error) {
	return s.repo.Get(ctx, id)
}

func (s *ProgramService) List(ctx context.Context) ([]models.Program, error) {
	return s.repo.List(ctx)
}

// Delete stops a running instance first, then removes the program.
func (s *ProgramService) Delete(ctx context.Context, id string) error {
	s.manager.Stop(id)
	return s.repo.Delete(ctx, id)
}

// Duplicate persists a copy of an existing program under a fresh id.
func (s *ProgramService) Duplicate(ctx context.Context, id string) (models.Program, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return models.Program{}, err
	}
	p.ID = uuid.NewString()
	p.Name = p.Name + " (copy)"
	if err := s.repo.Save(ctx, p); err != nil {
		return models.Program{}, err
	}
	return p, nil
}

// RemoveAll stops everything and deletes every stored program.
func (s *ProgramService) RemoveAll(ctx context.Context) error {
	s.manager.StopAll()
	list, err := s.repo.List(ctx)
	if err != nil {
		return err
	}
	for _, p := range list {
		if err := s.repo.Delete(ctx, p.ID); err != nil && !errors.Is(err, repository.ErrProgramNotFound) {
			return err
		}
	}
	return nil
}

// Start launches a stored program's schedule.
func (s *ProgramService) Start(ctx context.Context, id string) error {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.manager.Start(p)
}

// Stop halts a running program; stopping a stopped program is a no-op.
func (s *ProgramService) Stop(id string) { s.manager.Stop(id) }

// StartAll launches every enabled stored program, skipping ones already
// running.
func (s *ProgramService) StartAll(ctx context.Context) error {
	list, err := s.repo.List(ctx)
	if err != nil {
		return err
	}
	var firstErr error
	for _, p := range list {
		if !p.Enabled || s.manager.Running(p.ID) {
			continue
		}
		if err := s.manager.Start(p); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("start %s: %w", p.Name, err)
		}
	}
	return firstErr
}

// StopAll halts every running program with a single roof close check.
func (s *ProgramService) StopAll() { s.manager.StopAll() }

func (s *ProgramService) Pause(id string) error  { return s.manager.Pause(id) }
func (s *ProgramService) Resume(id string) error { return s.manager.Resume(id) }

// Status merges the stored program with its live run state.
func (s *ProgramService) Status(ctx context.Context, id string) (models.ProgramStatus, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return models.ProgramStatus{}, err
	}
	st, ok := s.manager.Status(id)
	if !ok {
		return models.ProgramStatus{ID: id, State: "Stopped"}, nil
	}
	return st, nil
}

func (s *ProgramService) StatusAll(ctx context.Context) ([]models.ProgramStatus, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.ProgramStatus, 0, len(list))
	for _, p := range list {
		st, ok := s.manager.Status(p.ID)
		if !ok {
			st = models.ProgramStatus{ID: p.ID, State: "Stopped"}
		}
		out = append(out, st)
	}
	return out, nil
}

// PreviewCycles returns how many fire cycles the next occurrence holds.
func (s *ProgramService) PreviewCycles(ctx context.Context, id string) (int, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	start, end, ok := scheduler.NextOccurrence(p, time.Now(), s.loc)
	if !ok {
		return 0, nil
	}
	return engine.CountFireCycles(end.Sub(start), p.FireDuration(), p.RestDuration()), nil
}

// PreviewFireTimes lists the fire phase start instants of the next
// occurrence, capped at max (default MaxFireTimesPreview).
func (s *ProgramService) PreviewFireTimes(ctx context.Context, id string, max int) ([]time.Time, error) {
	if max <= 0 || max > MaxFireTimesPreview {
		max = MaxFireTimesPreview
	}
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	start, end, ok := scheduler.NextOccurrence(p, time.Now(), s.loc)
	if !ok {
		return nil, nil
	}
	period := p.FireDuration() + p.RestDuration()
	if period <= 0 {
		return nil, errBadDurations
	}
	out := make([]time.Time, 0, max)
	for cur := start; len(out) < max; cur = cur.Add(period) {
		if cur.Add(p.FireDuration()).After(end) {
			break
		}
		out = append(out, cur)
	}
	return out, nil
}

func validateProgram(p models.Program) error {
	switch p.Mode {
	case models.ModeEveryday, models.ModeWeekdays, models.ModeSelectDay, models.ModeOnce:
	default:
		return errBadMode
	}
	for _, hhmm := range []string{p.Start, p.End} {
		if _, err := time.Parse("15:04", hhmm); err != nil {
			return errBadWindow
		}
	}
	if p.FireMs <= 0 || p.RestMs < 0 {
		return errBadDurations
	}
	if p.Mode == models.ModeOnce {
		if _, err := time.Parse("2006-01-02", p.OnceDate); err != nil {
			return errOnceNeedsDate
		}
	}
	if p.Mode == models.ModeSelectDay {
		if len(p.Dates) == 0 {
			return errSelectNeeds
		}
		for _, d := range p.Dates {
			if _, err := time.Parse("2006-01-02", d); err != nil {
				return fmt.Errorf("invalid date %q: want YYYY-MM-DD", d)
			}
		}
	}
	return nil
}
