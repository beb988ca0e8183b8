package scheduler

import (
	"fmt"
	"sort"
	"time"

	"laserctl/internal/models"
)

// parseHHMM anchors a "HH:MM" time of day onto the given date in loc.
func parseHHMM(day time.Time, hhmm string, loc *time.Location) (time.Time, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad time of day %q: %w", hhmm, err)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, loc), nil
}

// windowOn builds the program's window anchored on day. An end at or before
// the start spans midnight into the next day.
func windowOn(p models.Program, day time.Time, loc *time.Location) (time.Time, time.Time, error) {
	s, err := parseHHMM(day, p.Start, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	e, err := parseHHMM(day, p.End, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !e.After(s) {
		e = e.AddDate(0, 0, 1)
	}
	return s, e, nil
}

// joinNow is the start instant used when now already falls inside a window:
// the current time truncated to the minute.
func joinNow(now time.Time, loc *time.Location) time.Time {
	n := now.In(loc)
	return time.Date(n.Year(), n.Month(), n.Day(), n.Hour(), n.Minute(), 0, 0, loc)
}

// NextOccurrence computes the next concrete (start, end) window for p at or
// after now. ok is false when the program has no further occurrences (a
// finished once program, or a selectday program whose dates are exhausted).
// When now is already inside a window the occurrence starts immediately,
// truncated to the minute, and keeps the window's original end.
func NextOccurrence(p models.Program, now time.Time, loc *time.Location) (start, end time.Time, ok bool) {
	if loc == nil {
		loc = now.Location()
	}
	now = now.In(loc)

	switch p.Mode {
	case models.ModeEveryday:
		s, e, err := windowOn(p, now, loc)
		if err != nil {
			return time.Time{}, time.Time{}, false
		}
		switch {
		case now.Before(s):
			return s, e, true
		case now.Before(e):
			return joinNow(now, loc), e, true
		default:
			s, e, err = windowOn(p, now.AddDate(0, 0, 1), loc)
			if err != nil {
				return time.Time{}, time.Time{}, false
			}
			return s, e, true
		}

	case models.ModeWeekdays:
		day := now
		for isWeekend(day) {
			day = day.AddDate(0, 0, 1)
		}
		s, e, err := windowOn(p, day, loc)
		if err != nil {
			return time.Time{}, time.Time{}, false
		}
		switch {
		case now.Before(s):
			return s, e, true
		case now.Before(e):
			return joinNow(now, loc), e, true
		default:
			day = day.AddDate(0, 0, 1)
			for isWeekend(day) {
				day = day.AddDate(0, 0, 1)
			}
			s, e, err = windowOn(p, day, loc)
			if err != nil {
				return time.Time{}, time.Time{}, false
			}
			return s, e, true
		}

	case models.ModeOnce:
		day, err := time.ParseInLocation("2006-01-02", p.OnceDate, loc)
		if err != nil {
			return time.Time{}, time.Time{}, false
		}
		s, e, err := windowOn(p, day, loc)
		if err != nil {
			return time.Time{}, time.Time{}, false
		}
		switch {
		case now.Before(s):
			return s, e, true
		case now.Before(e):
			return joinNow(now, loc), e, true
		default:
			return time.Time{}, time.Time{}, false
		}

	case models.ModeSelectDay:
		if len(p.Dates) == 0 {
			return time.Time{}, time.Time{}, false
		}
		dates := append([]string(nil), p.Dates...)
		sort.Strings(dates)
		today := now.Format("2006-01-02")
		for _, ds := range dates {
			if ds != today {
				continue
			}
			day, err := time.ParseInLocation("2006-01-02", ds, loc)
			if err != nil {
				continue
			}
			s, e, err := windowOn(p, day, loc)
			if err != nil {
				continue
			}
			if !now.Before(s) && now.Before(e) {
				return joinNow(now, loc), e, true
			}
		}
		for _, ds := range dates {
			day, err := time.ParseInLocation("2006-01-02", ds, loc)
			if err != nil {
				continue
			}
			s, e, err := windowOn(p, day, loc)
			if err != nil {
				continue
			}
			if s.After(now) {
				return s, e, true
			}
		}
		return time.Time{}, time.Time{}, false
	}
	return time.Time{}, time.Time{}, false
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
