// Package dispatch provides reference implementations of the dispatch
// port the graph manager requires.
//
//   - [Pool]: fixed set of worker goroutines with per-worker deques; a
//     worker pushes and pops the front of its own queue (LIFO, keeping
//     chained continuations cache-warm) while idle workers steal from the
//     back of a victim's queue (FIFO, away from the victim's hot end)
//   - [Serial]: single-goroutine port for deterministic tests
//   - [AuxFuncs]: adapter for auxiliary epoch hooks
//
// The engine core never creates threads of its own; any implementation of
// sched.Dispatcher may replace these.
package dispatch
