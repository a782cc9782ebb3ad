// Package pending tracks the files watchpdf renamed itself, so the watcher
// does not process them a second time.
package pending

import (
	"sync"
	"time"
)

// DefaultTTL bounds how long a rename waits for its own Create event.
const DefaultTTL = 10 * time.Second

// Set remembers paths produced by our own renames so the watcher can skip
// the Create event each rename triggers. Entries expire after the TTL.
type Set struct {
	ttl     time.Duration
	entries map[string]time.Time
	mu      sync.Mutex
	now     func() time.Time
}

// New returns an empty Set. A ttl <= 0 means DefaultTTL.
func New(ttl time.Duration) *Set {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Set{
		ttl:     ttl,
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Add records path as self-produced.
func (s *Set) Add(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.prune(now)
	s.entries[path] = now.Add(s.ttl)
}

// Consume reports whether path was recorded and has not expired, removing it
// either way.
func (s *Set) Consume(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	deadline, ok := s.entries[path]
	if !ok {
		return false
	}
	delete(s.entries, path)
	return s.now().Before(deadline)
}

// Len returns the number of live entries.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prune(s.now())
	return len(s.entries)
}

func (s *Set) prune(now time.Time) {
	for path, deadline := range s.entries {
		if !now.Before(deadline) {
			delete(s.entries, path)
		}
	}
}
