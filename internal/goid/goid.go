// Package goid resolves the identity of the calling goroutine.
//
// OS threads are not stable under the Go scheduler, so reentrant lock
// ownership and worker-local queues key off goroutine ids instead. The id
// comes from the runtime.Stack header, the same approach reentrant lock
// packages in the ecosystem rely on.
package goid

import (
	"bytes"
	"runtime"
	"strconv"
)

// ID returns the current goroutine's id.
func ID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	// Header shape: "goroutine 123 [running]:"
	s := buf[len("goroutine "):n]
	i := bytes.IndexByte(s, ' ')
	if i < 0 {
		return 0
	}
	id, err := strconv.ParseInt(string(s[:i]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
