package gate

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadersShareWriterExcludes(t *testing.T) {
	g := New(false)

	const readers = 8
	var concurrent, peak atomic.Int32
	var wg sync.WaitGroup
	wg.Add(readers)
	for i := 0; i < readers; i++ {
		go func() {
			defer wg.Done()
			g.WithRead(func() {
				c := concurrent.Add(1)
				for {
					p := peak.Load()
					if c <= p || peak.CompareAndSwap(p, c) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				concurrent.Add(-1)
			})
		}()
	}
	wg.Wait()
	assert.Greater(t, peak.Load(), int32(1), "readers never overlapped")

	// Writer sees no concurrent reader.
	var inWrite atomic.Bool
	var violated atomic.Bool
	wg.Add(2)
	go func() {
		defer wg.Done()
		err := g.WithWrite(func() error {
			inWrite.Store(true)
			time.Sleep(10 * time.Millisecond)
			inWrite.Store(false)
			return nil
		})
		assert.NoError(t, err)
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			g.WithRead(func() {
				if inWrite.Load() {
					violated.Store(true)
				}
			})
		}
	}()
	wg.Wait()
	assert.False(t, violated.Load(), "read overlapped an active write")
}

func TestWriteReentrant(t *testing.T) {
	g := New(true)
	require.NoError(t, g.LockWrite())
	require.NoError(t, g.LockWrite())
	// The writer may also take scoped reads.
	g.LockRead()
	require.NoError(t, g.UnlockRead())
	require.NoError(t, g.UnlockWrite())
	require.NoError(t, g.UnlockWrite())

	readers, writers := g.Held()
	assert.Zero(t, readers)
	assert.Zero(t, writers)
}

func TestReadReentrant(t *testing.T) {
	g := New(true)
	g.LockRead()
	g.LockRead()
	require.NoError(t, g.UnlockRead())
	require.NoError(t, g.UnlockRead())
	assert.ErrorIs(t, g.UnlockRead(), ErrUnbalancedUnlock)
}

func TestWriterPriority(t *testing.T) {
	g := New(false)
	g.LockRead()

	writerIn := make(chan struct{})
	go func() {
		g.LockWrite()
		close(writerIn)
		g.UnlockWrite()
	}()

	// Wait for the writer to block behind our read hold.
	for g.WaitingWriters() == 0 {
		runtime.Gosched()
	}

	// A new reader on another goroutine must now queue behind the writer.
	readerIn := make(chan struct{})
	go func() {
		g.LockRead()
		close(readerIn)
		g.UnlockRead()
	}()

	select {
	case <-readerIn:
		t.Fatal("reader overtook a waiting writer")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, g.UnlockRead())
	<-writerIn
	<-readerIn
}

func TestUpgradeDiagnostics(t *testing.T) {
	g := New(true)
	g.LockRead()
	defer g.UnlockRead()

	err := g.LockWrite()
	require.ErrorIs(t, err, ErrLockUpgrade)
	// The diagnostic names the offending call site.
	assert.Contains(t, err.Error(), "gate_test.go")

	assert.ErrorIs(t, g.WithWrite(func() error { return nil }), ErrLockUpgrade)
}

func TestTryLockWrite(t *testing.T) {
	g := New(false)
	require.True(t, g.TryLockWrite())
	require.True(t, g.TryLockWrite()) // reentrant
	require.NoError(t, g.UnlockWrite())
	require.NoError(t, g.UnlockWrite())

	g.LockRead()
	assert.False(t, g.TryLockWrite(), "try-lock must fail under a read hold")
	require.NoError(t, g.UnlockRead())

	done := make(chan struct{})
	g.LockRead()
	go func() {
		defer close(done)
		assert.False(t, g.TryLockWrite(), "try-lock must fail with a foreign reader active")
	}()
	<-done
	require.NoError(t, g.UnlockRead())
}

func TestUnbalancedUnlocks(t *testing.T) {
	g := New(true)
	assert.ErrorIs(t, g.UnlockRead(), ErrUnbalancedUnlock)
	assert.ErrorIs(t, g.UnlockWrite(), ErrUnbalancedUnlock)

	// Scoped reads under the write lock must close before the write hold.
	require.NoError(t, g.LockWrite())
	g.LockRead()
	assert.ErrorIs(t, g.UnlockWrite(), ErrUnbalancedUnlock)
	require.NoError(t, g.UnlockRead())
	require.NoError(t, g.UnlockWrite())
}

func TestWithWritePropagatesError(t *testing.T) {
	g := New(false)
	sentinel := errors.New("boom")
	err := g.WithWrite(func() error { return sentinel })
	assert.ErrorIs(t, err, sentinel)

	// The hold was released despite the error.
	assert.True(t, g.TryLockWrite())
	require.NoError(t, g.UnlockWrite())
}

func TestSentinelDetectsOverlap(t *testing.T) {
	s := NewSentinel(true)

	require.NoError(t, s.BeginWrite())
	errc := make(chan error, 1)
	go func() {
		errc <- s.BeginRead()
	}()
	assert.ErrorIs(t, <-errc, ErrCrossThreadAccess)
	s.EndWrite()

	// Foreign reader blocks a writer.
	go func() {
		errc <- s.BeginRead()
	}()
	require.NoError(t, <-errc)
	assert.ErrorIs(t, s.BeginWrite(), ErrCrossThreadAccess)

	// Same-goroutine nesting is fine.
	require.NoError(t, s.BeginRead())
	s.EndRead()
}

func TestSentinelDisabledIsNoop(t *testing.T) {
	s := NewSentinel(false)
	require.NoError(t, s.BeginWrite())
	require.NoError(t, s.BeginRead())
	s.EndRead()
	s.EndWrite()
}
