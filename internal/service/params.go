package service

import "time"

// LogFilter supports event history filtering by time range and type.
type LogFilter struct {
	From time.Time // inclusive; zero means no lower bound
	To   time.Time // inclusive; zero means no upper bound
	Type string    // "", "FIRE", "STANDBY", "STOP", "SAFETY_BLOCKED", ...
}

// TelemetryFilter selects sampled rows.
type TelemetryFilter struct {
	From  time.Time
	To    time.Time
	Owner string // program id or "manual"; "" means all owners
	Limit int    // 0 selects the repository default
}
