package scene

import (
	"sync"
	"time"
)

const historyCapacity = 600

// Stats tracks per-step timing, fed through the manager's auxiliary epoch
// hooks so it observes exactly the step window.
type Stats struct {
	mu        sync.Mutex
	start     time.Time
	durations []time.Duration
	steps     int
}

func newStats() *Stats {
	return &Stats{durations: make([]time.Duration, 0, historyCapacity)}
}

func (s *Stats) beginEpoch() {
	s.mu.Lock()
	s.start = time.Now()
	s.mu.Unlock()
}

func (s *Stats) endEpoch() {
	s.mu.Lock()
	d := time.Since(s.start)
	if len(s.durations) == historyCapacity {
		copy(s.durations, s.durations[1:])
		s.durations = s.durations[:historyCapacity-1]
	}
	s.durations = append(s.durations, d)
	s.steps++
	s.mu.Unlock()
}

// Steps returns the number of completed steps.
func (s *Stats) Steps() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.steps
}

// Last returns the most recent step duration.
func (s *Stats) Last() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.durations) == 0 {
		return 0
	}
	return s.durations[len(s.durations)-1]
}

// History returns recent step durations in milliseconds, oldest first.
func (s *Stats) History() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]float64, len(s.durations))
	for i, d := range s.durations {
		out[i] = float64(d.Microseconds()) / 1000.0
	}
	return out
}
