package models

import "time"

// Recurrence modes for a scheduled program.
const (
	ModeEveryday  = "everyday"
	ModeWeekdays  = "weekdays"
	ModeSelectDay = "selectday"
	ModeOnce      = "once"
)

// Program is a persisted FIRE/REST schedule definition. Start/End are local
// times of day ("HH:MM"); when End <= Start the window crosses midnight into
// the following day.
type Program struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Enabled  bool     `json:"enabled"`
	Mode     string   `json:"mode"`  // everyday | weekdays | selectday | once
	Start    string   `json:"start"` // "HH:MM"
	End      string   `json:"end"`   // "HH:MM"
	FireMs   int      `json:"fire_ms"`
	RestMs   int      `json:"rest_ms"`
	OnceDate string   `json:"once_date,omitempty"` // "2006-01-02", mode=once
	Dates    []string `json:"dates,omitempty"`     // sorted ISO dates, mode=selectday
}

// FireDuration returns the fire phase length.
func (p Program) FireDuration() time.Duration {
	return time.Duration(p.FireMs) * time.Millisecond
}

// RestDuration returns the rest phase length.
func (p Program) RestDuration() time.Duration {
	return time.Duration(p.RestMs) * time.Millisecond
}

// ProgramStatus is the runtime view of one program.
type ProgramStatus struct {
	ID      string `json:"id"`
	Running bool   `json:"running"`
	Paused  bool   `json:"paused"`
	Active  bool   `json:"active"` // holds the active-program slot
	Done    int    `json:"done"`   // fire cycles completed this occurrence
	Total   int    `json:"total"`  // planned fire cycles this occurrence
	State   string `json:"state"`  // human-readable phase text
}
