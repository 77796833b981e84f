package storefront

import "time"

// Store holds live sessions. Nothing survives a restart.
type Store interface {
	Put(s *Session)
	Get(id string) (*Session, bool)
	Delete(id string) bool
	// Sweep drops sessions that expired by now or were not seen within idle,
	// and reports how many were removed.
	Sweep(now time.Time, idle time.Duration) int
	Len() int
}
