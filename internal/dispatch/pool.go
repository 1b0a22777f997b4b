package dispatch

import (
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/ravik-dev/kinetiq/internal/goid"
	"github.com/ravik-dev/kinetiq/internal/sched"
)

// Pool is the default dispatch port: a fixed set of worker goroutines with
// work stealing. It favors a simple, provably quiescent design over
// lock-free queues; the deque discipline (own front, steal back) is what
// matters for continuation locality.
type Pool struct {
	workers []*worker

	gmu   sync.RWMutex
	byGID map[int64]*worker

	mu     sync.Mutex
	cond   *sync.Cond
	inject []sched.Unit
	queued int
	idle   int
	closed bool

	wg       sync.WaitGroup
	executed atomic.Int64
}

type worker struct {
	pool *Pool
	idx  int
	dq   deque
}

// NewPool starts n workers; n <= 0 selects GOMAXPROCS.
func NewPool(n int) *Pool {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	p := &Pool{byGID: make(map[int64]*worker, n)}
	p.cond = sync.NewCond(&p.mu)
	p.workers = make([]*worker, n)
	for i := range p.workers {
		w := &worker{pool: p, idx: i}
		p.workers[i] = w
		p.wg.Add(1)
		go w.run()
	}
	return p
}

// SubmitTask queues u for execution. Called from a worker it lands on the
// front of that worker's own deque; from any other goroutine it goes to
// the shared inject queue. The unit is never executed inline.
func (p *Pool) SubmitTask(u sched.Unit) {
	p.gmu.RLock()
	w := p.byGID[goid.ID()]
	p.gmu.RUnlock()
	if w != nil {
		w.dq.push(u)
		p.noteEnqueue()
		return
	}
	p.mu.Lock()
	p.inject = append(p.inject, u)
	p.queued++
	if p.idle > 0 {
		p.cond.Signal()
	}
	p.mu.Unlock()
}

// Close wakes the workers and waits for them to exit once the queues
// drain. Callers should finish stepping before closing.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()
	p.wg.Wait()
}

// Workers returns the pool size.
func (p *Pool) Workers() int { return len(p.workers) }

// Executed returns the number of units run since the pool started.
func (p *Pool) Executed() int64 { return p.executed.Load() }

// QueueDepth reports currently queued, unclaimed units.
func (p *Pool) QueueDepth() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queued
}

func (p *Pool) noteEnqueue() {
	p.mu.Lock()
	p.queued++
	if p.idle > 0 {
		p.cond.Signal()
	}
	p.mu.Unlock()
}

func (p *Pool) noteDequeue() {
	p.mu.Lock()
	p.queued--
	p.mu.Unlock()
}

func (p *Pool) popInject() sched.Unit {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.inject) == 0 {
		return nil
	}
	u := p.inject[0]
	p.inject[0] = nil
	p.inject = p.inject[1:]
	p.queued--
	return u
}

// steal scans the other workers from a random start, taking the oldest
// unit of the first non-empty victim.
func (p *Pool) steal(self *worker) sched.Unit {
	n := len(p.workers)
	if n <= 1 {
		return nil
	}
	start := rand.Intn(n)
	for i := 0; i < n; i++ {
		v := p.workers[(start+i)%n]
		if v == self {
			continue
		}
		if u := v.dq.steal(); u != nil {
			p.noteDequeue()
			return u
		}
	}
	return nil
}

func (w *worker) run() {
	p := w.pool
	defer p.wg.Done()

	p.gmu.Lock()
	p.byGID[goid.ID()] = w
	p.gmu.Unlock()

	for {
		u := w.dq.pop()
		if u != nil {
			p.noteDequeue()
		}
		if u == nil {
			u = p.popInject()
		}
		if u == nil {
			u = p.steal(w)
		}
		if u != nil {
			u.Run()
			u.Release()
			p.executed.Add(1)
			continue
		}

		p.mu.Lock()
		for p.queued == 0 && !p.closed {
			p.idle++
			p.cond.Wait()
			p.idle--
		}
		done := p.closed && p.queued == 0
		p.mu.Unlock()
		if done {
			return
		}
	}
}
