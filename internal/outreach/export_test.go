package outreach

import "time"

// SetClock pins the service and its registry to now.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
	s.registry.now = now
}

var Backoff = backoff
