package gate

import (
	"sync"

	"github.com/ravik-dev/kinetiq/internal/goid"
)

// Sentinel detects concurrent unguarded access to a scene. API entry
// points that bypass the gate wrap themselves in Begin/End pairs; when
// diagnostics are off every call is a no-op, matching the production
// builds' "assume correct usage" posture.
type Sentinel struct {
	enabled bool

	mu      sync.Mutex
	readers map[int64]int
	writer  int64
	nwrites int
}

func NewSentinel(enabled bool) *Sentinel {
	return &Sentinel{enabled: enabled, readers: make(map[int64]int)}
}

// BeginRead flags a read-scoped API call. Fails if another goroutine is
// mid-write.
func (s *Sentinel) BeginRead() error {
	if !s.enabled {
		return nil
	}
	gid := goid.ID()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writer != 0 && s.writer != gid {
		return ErrCrossThreadAccess
	}
	s.readers[gid]++
	return nil
}

func (s *Sentinel) EndRead() {
	if !s.enabled {
		return
	}
	gid := goid.ID()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readers[gid] > 0 {
		s.readers[gid]--
		if s.readers[gid] == 0 {
			delete(s.readers, gid)
		}
	}
}

// BeginWrite flags a write-scoped API call. Fails if any other goroutine
// is mid-read or mid-write.
func (s *Sentinel) BeginWrite() error {
	if !s.enabled {
		return nil
	}
	gid := goid.ID()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writer != 0 && s.writer != gid {
		return ErrCrossThreadAccess
	}
	for r, n := range s.readers {
		if r != gid && n > 0 {
			return ErrCrossThreadAccess
		}
	}
	s.writer = gid
	s.nwrites++
	return nil
}

func (s *Sentinel) EndWrite() {
	if !s.enabled {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nwrites > 0 {
		s.nwrites--
		if s.nwrites == 0 {
			s.writer = 0
		}
	}
}
