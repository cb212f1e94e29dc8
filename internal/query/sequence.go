package query

import (
	"sync"

	"schoolhub/internal/metrics"
)

// Ticket tags one in-flight request for a query key.
type Ticket struct {
	Key string
	Seq uint64
}

// Sequencer hands out increasing tickets per key so a response that arrives
// after a newer request was issued can be recognised and dropped.
type Sequencer struct {
	mu     sync.Mutex
	latest map[string]uint64
}

func NewSequencer() *Sequencer {
	return &Sequencer{latest: map[string]uint64{}}
}

// Begin registers a new request for key, superseding earlier ones.
func (s *Sequencer) Begin(key string) Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest[key]++
	return Ticket{Key: key, Seq: s.latest[key]}
}

// Commit reports whether t is still the newest request for its key.
func (s *Sequencer) Commit(t Ticket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest[t.Key] != t.Seq {
		metrics.StaleResponses.Inc()
		return false
	}
	return true
}
