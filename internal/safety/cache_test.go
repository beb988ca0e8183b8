package safety

import (
	"testing"
	"time"

	"laserctl/internal/models"
)

func TestRoofCache_NeverUpdated(t *testing.T) {
	c := NewRoofCache(0)
	if got := c.Read(); got != models.RoofUnknown {
		t.Errorf("Read() = %q, want UNKNOWN before first update", got)
	}
}

func TestRoofCache_Staleness(t *testing.T) {
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewRoofCache(5 * time.Second)
	c.now = func() time.Time { return clock }

	c.Update(models.RoofOn)
	if got := c.Read(); got != models.RoofOn {
		t.Fatalf("fresh Read() = %q, want ON", got)
	}

	clock = clock.Add(5 * time.Second)
	if got := c.Read(); got != models.RoofOn {
		t.Errorf("Read() at exactly the window = %q, want ON", got)
	}

	clock = clock.Add(time.Millisecond)
	if got := c.Read(); got != models.RoofUnknown {
		t.Errorf("Read() past the window = %q, want UNKNOWN", got)
	}

	// A new reading resets the clock.
	c.Update(models.RoofOff)
	if got := c.Read(); got != models.RoofOff {
		t.Errorf("Read() after re-update = %q, want OFF", got)
	}
}

func TestRoofCache_EmptyState(t *testing.T) {
	c := NewRoofCache(0)
	c.Update("")
	if got := c.Read(); got != models.RoofUnknown {
		t.Errorf("Read() with empty state = %q, want UNKNOWN", got)
	}
}
