package sched

import (
	"errors"
	"fmt"
	"strings"
)

// Contract violations surfaced by the graph manager.
var (
	// ErrAlreadyDispatched indicates a submission resolved against a unit
	// that has already been released for execution this step.
	ErrAlreadyDispatched = errors.New("sched: unit already dispatched")

	// ErrInvalidDependency indicates a dependency edge targeting a unit
	// whose reference count previously reached zero.
	ErrInvalidDependency = errors.New("sched: dependency on dispatched unit")

	// ErrCyclicDependency indicates the submitted graph contains a cycle
	// and the units on it would starve.
	ErrCyclicDependency = errors.New("sched: cyclic dependency")

	// ErrStepActive indicates StartStep was called twice without StopStep.
	ErrStepActive = errors.New("sched: step already active")

	// ErrStepNotActive indicates a step lifecycle call outside a step.
	ErrStepNotActive = errors.New("sched: no active step")

	// ErrUnknownTask indicates a task identity from another step or context.
	ErrUnknownTask = errors.New("sched: unknown task id")
)

// CycleError reports which units participate in a dependency cycle.
type CycleError struct {
	Tasks []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("sched: cyclic dependency among [%s]", strings.Join(e.Tasks, ", "))
}

func (e *CycleError) Unwrap() error {
	return ErrCyclicDependency
}
