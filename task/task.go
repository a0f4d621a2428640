// Package task implements a cooperative scheduler that runs periodic behaviors while guaranteeing
// that every resource (usually an actuator subsystem) has at most one owning task, along with
// sequential and parallel composition of tasks.
//
// Nothing in this package blocks. A task waits by reporting IsFinished false across many ticks.
package task

import (
	"context"
	"strings"
)

// A Resource is something at most one task may drive at a time. Resources are compared by
// identity, so implementations are normally pointers.
type Resource interface {
	Name() string
}

// A Task is a behavior the Scheduler runs once per tick between Initialize and End. Tasks are
// compared by identity, so implementations are normally pointers.
type Task interface {
	// Name is used in logs.
	Name() string

	// Requirements are the resources the task needs exclusively. They must not change.
	Requirements() []Resource

	// Initialize is called once when the task is admitted.
	Initialize(ctx context.Context)

	// Execute is called once per tick while the task is running.
	Execute(ctx context.Context)

	// IsFinished is checked after every Execute.
	IsFinished() bool

	// End is called exactly once per admission. interrupted is true when the task was cancelled
	// or displaced by a conflicting task.
	End(ctx context.Context, interrupted bool)
}

// State is where a task is in its lifecycle.
type State int

const (
	// StateIdle means not scheduled.
	StateIdle State = iota
	// StateInitializing is the tick a task was admitted in.
	StateInitializing
	// StateRunning means executed every tick.
	StateRunning
	// StateEnding is the tick a task ended in.
	StateEnding
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateEnding:
		return "ending"
	}
	return "unknown"
}

// active reports whether a task in this state owns its resources.
func (s State) active() bool {
	return s == StateInitializing || s == StateRunning
}

// requirementNames is for logging.
func requirementNames(reqs []Resource) string {
	names := make([]string, 0, len(reqs))
	for _, r := range reqs {
		names = append(names, r.Name())
	}
	return strings.Join(names, ",")
}

// dedupe returns the resources with duplicates removed, keeping first occurrences in order.
func dedupe(reqs []Resource) []Resource {
	seen := make(map[Resource]struct{}, len(reqs))
	out := make([]Resource, 0, len(reqs))
	for _, r := range reqs {
		if r == nil {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
