package models

import "time"

// Laser head modes decoded from the $STATUS bit flags.
const (
	LaserModeFire    = "FIRE"
	LaserModeStandby = "STANDBY"
	LaserModeStop    = "STOP"
)

// LaserStatus is one decoded $STATUS response.
type LaserStatus struct {
	Mode  string `json:"mode"` // FIRE | STANDBY | STOP
	Ready bool   `json:"ready"`
}

// LaserState is the snapshot served to clients: connection, device status,
// roof state and the last telemetry readings.
type LaserState struct {
	Connected     bool      `json:"connected"`
	Firing        bool      `json:"is_firing"`
	Mode          string    `json:"mode,omitempty"`  // FIRE | STANDBY | STOP
	Ready         bool      `json:"ready,omitempty"`
	RoofState     RoofState `json:"roof_state"`
	DTEMF         *float64  `json:"dtemf,omitempty"`
	LTEMF         *float64  `json:"ltemf,omitempty"`
	ActiveProgram string    `json:"active_program,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}
