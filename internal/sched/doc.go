// Package sched implements the dependency-driven task graph at the heart
// of the engine's simulation step.
//
// The package defines the schedulable unit and the per-context manager
// that releases units to an application-owned dispatch port:
//
//   - [Unit]: anything the dispatch port can execute (Run then Release)
//   - [Task]: heavy unit handle supporting names and late dependency edges
//   - [LightTask]: minimal fixed-continuation unit for pipeline stages
//   - [Manager]: owns the graph for one step, tracks reference counts,
//     and forwards ready units to the [Dispatcher]
//
// A unit is created with a reference count of one and is dispatched exactly
// once, at the moment an atomic decrement moves its count from one to zero.
// Completion of a unit decrements the counts of its continuations inline on
// the executing worker; there is no separate ready-queue scan.
//
// # Thread Safety
//
// Manager methods are safe for concurrent use from worker threads and from
// the thread driving the step lifecycle. Unit bodies must not block; all
// ordering is expressed through dependency edges.
package sched
