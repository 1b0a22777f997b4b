package dispatch

import (
	"sync"

	"github.com/ravik-dev/kinetiq/internal/sched"
)

// Serial is a single-goroutine dispatch port. Units still execute off the
// submitting thread (the contract forbids inline execution), but strictly
// one at a time in submission order, which makes scheduling tests
// deterministic.
type Serial struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []sched.Unit
	closed bool
	done   chan struct{}
}

func NewSerial() *Serial {
	s := &Serial{done: make(chan struct{})}
	s.cond = sync.NewCond(&s.mu)
	go s.run()
	return s
}

func (s *Serial) SubmitTask(u sched.Unit) {
	s.mu.Lock()
	s.queue = append(s.queue, u)
	s.cond.Signal()
	s.mu.Unlock()
}

// Close stops the goroutine after the queue drains.
func (s *Serial) Close() {
	s.mu.Lock()
	s.closed = true
	s.cond.Signal()
	s.mu.Unlock()
	<-s.done
}

func (s *Serial) run() {
	defer close(s.done)
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 && s.closed {
			s.mu.Unlock()
			return
		}
		u := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()

		u.Run()
		u.Release()
	}
}
