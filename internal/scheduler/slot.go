package scheduler

import "sync"

// ActiveSlot enforces the single-active-program invariant. Only one program
// may drive the laser at a time; everyone else blocks on the slot.
type ActiveSlot struct {
	mu    sync.Mutex
	owner string
}

// TryClaim attempts to take the slot for id. Re-claiming by the current
// owner succeeds. Returns false when another program holds it.
func (s *ActiveSlot) TryClaim(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.owner == "" || s.owner == id {
		s.owner = id
		return true
	}
	return false
}

// Release frees the slot if id holds it. Releasing a slot owned by someone
// else is a no-op.
func (s *ActiveSlot) Release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.owner == id {
		s.owner = ""
	}
}

// ForceRelease clears the slot regardless of owner. Used by batch stop.
func (s *ActiveSlot) ForceRelease() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owner = ""
}

// Owner returns the current holder, or "" when free.
func (s *ActiveSlot) Owner() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner
}
