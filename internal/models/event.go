package models

import "time"

// Event types appended to the audit log.
const (
	EventConnect     = "CONNECT"
	EventDisconnect  = "DISCONNECT"
	EventFire        = "FIRE"
	EventStandby     = "STANDBY"
	EventStop        = "STOP"
	EventBlocked     = "SAFETY_BLOCKED"
	EventRoofWarning = "ROOF_WARNING"
	EventOverTemp    = "OVER_TEMP"
	EventSchedule    = "SCHEDULE"
	EventError       = "ERROR"
)

// Event is a single audit log entry.
type Event struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Metadata    any       `json:"metadata,omitempty"`
}
