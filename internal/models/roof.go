package models

// RoofState is the sliding-roof limit sensor reading.
type RoofState string

const (
	RoofOn      RoofState = "ON"      // roof fully open, firing allowed
	RoofOff     RoofState = "OFF"     // roof closed
	RoofUnknown RoofState = "UNKNOWN" // sensor unreachable or reading stale
)
