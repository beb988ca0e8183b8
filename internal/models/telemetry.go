package models

import "time"

// TelemetryRecord is one sampled row, appended at a fixed cadence while a
// recording session is live. Owner is the program id the session belongs to,
// or "manual" for operator-initiated recording.
type TelemetryRecord struct {
	ID         string    `json:"id"`
	RecordedAt time.Time `json:"recorded_at"`
	Owner      string    `json:"owner"`
	Status     int       `json:"status"` // 1 = firing, 0 = resting
	QSDelay    int       `json:"qsdelay_us"`
	DTEMF      *float64  `json:"dtemf,omitempty"`
	LTEMF      *float64  `json:"ltemf,omitempty"`
	Overload   bool      `json:"overload"`
	RoofState  RoofState `json:"roof_state"`
}
