// Package gate implements the scene-level multi-reader/single-writer lock.
//
// The gate is reentrant per goroutine, gives blocked writers priority over
// newly arriving readers, and guards all mutable state of one simulation
// context. Diagnostic mode turns lock-order violations into errors at the
// call site; production mode keeps the documented blocking behavior.
package gate

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/ravik-dev/kinetiq/internal/goid"
)

var (
	// ErrLockUpgrade indicates a goroutine holding a read lock requested
	// the write lock. In production mode this deadlocks instead.
	ErrLockUpgrade = errors.New("gate: write lock requested while holding read lock")

	// ErrUnbalancedUnlock indicates an unlock without a matching hold.
	ErrUnbalancedUnlock = errors.New("gate: unlock without matching lock")

	// ErrCrossThreadAccess indicates concurrent unguarded access to the
	// same scene from different goroutines.
	ErrCrossThreadAccess = errors.New("gate: concurrent scene access outside lock")
)

// Gate is the serialization point for one scene's mutable state.
type Gate struct {
	diagnostics bool

	mu   sync.Mutex
	cond *sync.Cond

	readers map[int64]int // goroutine id -> recursive read holds
	nreads  int           // total read holds by non-writer goroutines

	writerID    int64 // 0 when no writer
	writerHolds int
	writerReads int // read holds taken by the writer goroutine (scoped no-ops)

	// FIFO of blocked writers; head acquires first.
	writeQueue []*struct{}
}

func New(diagnostics bool) *Gate {
	g := &Gate{
		diagnostics: diagnostics,
		readers:     make(map[int64]int),
	}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// LockRead blocks the calling goroutine until read access is granted.
// Reentrant; a goroutine holding the write lock is granted immediately.
// Readers arriving after a writer blocked wait behind that writer.
func (g *Gate) LockRead() {
	gid := goid.ID()
	g.mu.Lock()
	if g.writerID == gid {
		g.writerReads++
		g.mu.Unlock()
		return
	}
	for {
		if g.readers[gid] > 0 {
			break // reentrant read holds are always granted
		}
		if g.writerID == 0 && len(g.writeQueue) == 0 {
			break
		}
		g.cond.Wait()
	}
	g.readers[gid]++
	g.nreads++
	g.mu.Unlock()
}

// UnlockRead releases one read hold.
func (g *Gate) UnlockRead() error {
	gid := goid.ID()
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.writerID == gid {
		if g.writerReads == 0 {
			return ErrUnbalancedUnlock
		}
		g.writerReads--
		return nil
	}
	if g.readers[gid] == 0 {
		return ErrUnbalancedUnlock
	}
	g.readers[gid]--
	if g.readers[gid] == 0 {
		delete(g.readers, gid)
	}
	g.nreads--
	if g.nreads == 0 {
		g.cond.Broadcast()
	}
	return nil
}

// LockWrite blocks until exclusive access is granted. Reentrant for the
// holding goroutine. A goroutine that holds a read lock must not upgrade:
// diagnostic mode reports ErrLockUpgrade, production mode deadlocks as
// documented.
func (g *Gate) LockWrite() error {
	return g.lockWrite(1)
}

func (g *Gate) lockWrite(skip int) error {
	gid := goid.ID()
	g.mu.Lock()
	if g.writerID == gid {
		g.writerHolds++
		g.mu.Unlock()
		return nil
	}
	if g.readers[gid] > 0 && g.diagnostics {
		g.mu.Unlock()
		if _, file, line, ok := runtime.Caller(skip + 1); ok {
			return fmt.Errorf("%w (at %s:%d)", ErrLockUpgrade, file, line)
		}
		return ErrLockUpgrade
	}

	w := &struct{}{}
	g.writeQueue = append(g.writeQueue, w)
	for !(g.writerID == 0 && g.nreads == 0 && g.writeQueue[0] == w) {
		g.cond.Wait()
	}
	g.writeQueue = g.writeQueue[1:]
	g.writerID = gid
	g.writerHolds = 1
	g.mu.Unlock()
	return nil
}

// UnlockWrite releases one write hold; dropping the last hold returns the
// gate to idle and wakes waiters.
func (g *Gate) UnlockWrite() error {
	gid := goid.ID()
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.writerID != gid || g.writerHolds == 0 {
		return ErrUnbalancedUnlock
	}
	if g.writerHolds == 1 && g.writerReads > 0 && g.diagnostics {
		// Stack discipline: reads taken under the write hold must be
		// released first.
		return fmt.Errorf("%w: %d read holds still open under write lock", ErrUnbalancedUnlock, g.writerReads)
	}
	g.writerHolds--
	if g.writerHolds == 0 {
		g.writerID = 0
		g.cond.Broadcast()
	}
	return nil
}

// TryLockWrite acquires the write lock only if it is immediately free and
// no writer is queued.
func (g *Gate) TryLockWrite() bool {
	gid := goid.ID()
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.writerID == gid {
		g.writerHolds++
		return true
	}
	if g.writerID != 0 || g.nreads > 0 || len(g.writeQueue) > 0 || g.readers[gid] > 0 {
		return false
	}
	g.writerID = gid
	g.writerHolds = 1
	return true
}

// WriteHeldByMe reports whether the calling goroutine holds the write lock.
func (g *Gate) WriteHeldByMe() bool {
	gid := goid.ID()
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.writerID == gid
}

// ReadHeldByMe reports whether the calling goroutine holds read permission,
// either directly or through the write lock.
func (g *Gate) ReadHeldByMe() bool {
	gid := goid.ID()
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.readers[gid] > 0 || g.writerID == gid
}

// Held reports current holder counts, for diagnostics and tests.
func (g *Gate) Held() (readers, writers int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	w := 0
	if g.writerID != 0 {
		w = g.writerHolds
	}
	return g.nreads, w
}

// WaitingWriters reports how many writers are blocked.
func (g *Gate) WaitingWriters() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.writeQueue)
}
