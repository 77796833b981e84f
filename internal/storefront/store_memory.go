package storefront

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type MemStore struct {
	mu sync.RWMutex
	m  map[string]*Session
}

func NewMemStore() *MemStore {
	return &MemStore{m: map[string]*Session{}}
}

func NewStore() Store {
	return NewMemStore()
}

func (s *MemStore) Put(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[sess.ID] = sess
}

func (s *MemStore) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.m[id]
	return sess, ok
}

func (s *MemStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.m[id]
	delete(s.m, id)
	return ok
}

func (s *MemStore) Sweep(now time.Time, idle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-idle)
	n := 0
	for id, sess := range s.m {
		if sess.expired(now) || sess.idleSince().Before(cutoff) {
			delete(s.m, id)
			n++
		}
	}
	return n
}

func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

// RunSweeper evicts expired sessions and sessions idle for longer than ttl
// every interval until ctx is done.
func RunSweeper(ctx context.Context, store Store, ttl, interval time.Duration, m *Metrics, log *zap.Logger) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := store.Sweep(now, ttl); n > 0 {
				log.Info("evicted sessions", zap.Int("count", n))
			}
			m.setSessions(store.Len())
		}
	}
}
