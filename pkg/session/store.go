package session

import (
	"sync"
	"time"

	"github.com/decoynet/honeypot/pkg/extract"
)

// Store is the thread-safe in-memory session registry with TTL-based
// eviction. Sessions live in one process; the only durable artifact in
// the system is the callback retry queue.
type Store struct {
	sessions map[string]*Session
	mu       sync.RWMutex

	maxAge          time.Duration
	cleanupInterval time.Duration

	stopCleanup chan struct{}
	cleanupOnce sync.Once
}

// StoreOption is a functional option for configuring the store.
type StoreOption func(*Store)

// WithMaxAge sets how long an inactive session survives before eviction.
func WithMaxAge(d time.Duration) StoreOption {
	return func(s *Store) {
		s.maxAge = d
	}
}

// WithCleanupInterval sets how often the eviction routine runs.
func WithCleanupInterval(d time.Duration) StoreOption {
	return func(s *Store) {
		s.cleanupInterval = d
	}
}

// NewStore creates a session store and starts its background eviction loop.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		sessions:        make(map[string]*Session),
		maxAge:          30 * time.Minute,
		cleanupInterval: 5 * time.Minute,
		stopCleanup:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.cleanupLoop()
	return s
}

// Get returns a session or nil when unknown.
func (s *Store) Get(id string) *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id]
}

// GetOrCreate returns the existing session or registers a fresh one.
func (s *Store) GetOrCreate(id string, now time.Time) *Session {
	s.mu.RLock()
	sess := s.sessions[id]
	s.mu.RUnlock()
	if sess != nil {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess = s.sessions[id]; sess != nil {
		return sess
	}
	sess = newSession(id, now)
	s.sessions[id] = sess
	return sess
}

// Delete removes a session.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// ForEach calls fn with every live session. fn must not hold the session
// lock when calling back into the store.
func (s *Store) ForEach(fn func(*Session)) {
	s.mu.RLock()
	snapshot := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		snapshot = append(snapshot, sess)
	}
	s.mu.RUnlock()

	for _, sess := range snapshot {
		fn(sess)
	}
}

// Close stops the eviction goroutine.
func (s *Store) Close() {
	s.cleanupOnce.Do(func() {
		close(s.stopCleanup)
	})
}

func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.evictStale(time.Now())
		case <-s.stopCleanup:
			return
		}
	}
}

// evictStale drops sessions inactive beyond maxAge. Finalized sessions are
// evicted too; their report already left through the dispatcher.
func (s *Store) evictStale(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sess := range s.sessions {
		sess.mu.Lock()
		stale := now.Sub(sess.LastActivityAt) > s.maxAge
		sess.mu.Unlock()
		if stale {
			delete(s.sessions, id)
		}
	}
}

// Stats is the aggregate snapshot served by the stats endpoint.
type Stats struct {
	Sessions      int                  `json:"sessions"`
	ScamsDetected int                  `json:"scamsDetected"`
	Finalized     int                  `json:"finalized"`
	TotalMessages int                  `json:"totalMessages"`
	States        map[string]int       `json:"states"`
	IntelCounts   map[extract.Kind]int `json:"intelCounts"`
}

// Stats aggregates counters across all live sessions.
func (s *Store) Stats() Stats {
	stats := Stats{
		States:      make(map[string]int),
		IntelCounts: make(map[extract.Kind]int),
	}

	s.ForEach(func(sess *Session) {
		sess.mu.Lock()
		defer sess.mu.Unlock()

		stats.Sessions++
		stats.TotalMessages += sess.MessageCount
		stats.States[sess.State.String()]++
		if sess.IsScam {
			stats.ScamsDetected++
		}
		if sess.State == StateFinalized {
			stats.Finalized++
		}
		for kind, items := range sess.Intel {
			if kind == extract.KindKeyword {
				continue
			}
			stats.IntelCounts[kind] += len(items)
		}
	})
	return stats
}
