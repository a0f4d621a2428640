package task

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"go.viam.com/mechctl/logging"
	"go.viam.com/mechctl/telemetry"
)

// ErrReentrant is returned by Run when called while a pass is already in progress, for example
// from inside a task callback.
var ErrReentrant = errors.New("scheduler pass already in progress")

type entry struct {
	id      uuid.UUID
	task    Task
	reqs    []Resource
	members []Task
	state   State
}

type requestKind int

const (
	requestSchedule requestKind = iota
	requestCancel
	requestCancelAll
)

type request struct {
	kind requestKind
	task Task
}

// Scheduler arbitrates resources between tasks. Run performs one pass per tick: queued requests
// are processed in arrival order, then every running task is executed in admission order.
//
// A task admitted during a pass is initialized in that pass and first executed in the next one.
// A conflicting owner always gets End(true) before the newcomer's Initialize, so each resource has
// at most one owner at every tick boundary.
type Scheduler struct {
	logger logging.Logger

	mu      sync.Mutex
	busy    bool
	queue   []request
	entries map[Task]*entry
	order   []*entry
	owners  map[Resource]*entry
	// parents maps each task driven by an active composite to the composite's entry.
	parents map[Task]*entry
}

// NewScheduler returns an empty scheduler.
func NewScheduler(logger logging.Logger) *Scheduler {
	return &Scheduler{
		logger:  logger,
		entries: map[Task]*entry{},
		owners:  map[Resource]*entry{},
		parents: map[Task]*entry{},
	}
}

// Schedule queues tasks for admission at the next pass. Scheduling a task that is already active,
// or one currently driven by an active composite, is ignored.
func (s *Scheduler) Schedule(tasks ...Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range tasks {
		if t == nil {
			s.logger.Warn("ignoring nil task")
			continue
		}
		s.queue = append(s.queue, request{kind: requestSchedule, task: t})
	}
}

// Cancel interrupts the given tasks with End(true). Outside of a pass this happens before Cancel
// returns; from within a pass the cancellation is deferred to the next pass's admissions.
func (s *Scheduler) Cancel(ctx context.Context, tasks ...Task) {
	reqs := make([]request, 0, len(tasks))
	for _, t := range tasks {
		if t != nil {
			reqs = append(reqs, request{kind: requestCancel, task: t})
		}
	}
	s.cancel(ctx, reqs)
}

// CancelAll interrupts every active task, with the same timing as Cancel.
func (s *Scheduler) CancelAll(ctx context.Context) {
	s.cancel(ctx, []request{{kind: requestCancelAll}})
}

func (s *Scheduler) cancel(ctx context.Context, reqs []request) {
	s.mu.Lock()
	if s.busy {
		s.queue = append(s.queue, reqs...)
		s.mu.Unlock()
		return
	}
	s.busy = true
	s.mu.Unlock()
	defer s.release()

	for _, r := range reqs {
		s.process(ctx, r)
	}
}

// Run performs one scheduler pass.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return ErrReentrant
	}
	s.busy = true
	queue := s.queue
	s.queue = nil
	s.mu.Unlock()
	defer s.release()

	for _, r := range queue {
		s.process(ctx, r)
	}

	s.mu.Lock()
	order := append([]*entry(nil), s.order...)
	s.mu.Unlock()
	for _, e := range order {
		if e.state != StateRunning {
			continue
		}
		e.task.Execute(ctx)
		if e.task.IsFinished() {
			e.task.End(ctx, false)
			s.setEnding(e)
			s.logger.Debugw("task finished", "task", e.task.Name(), "id", e.id)
		}
	}

	s.endPass()
	return nil
}

func (s *Scheduler) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
}

// process handles one request. Only the holder of the busy flag calls it.
func (s *Scheduler) process(ctx context.Context, r request) {
	switch r.kind {
	case requestCancelAll:
		s.mu.Lock()
		order := append([]*entry(nil), s.order...)
		s.mu.Unlock()
		for _, e := range order {
			if e.state.active() {
				s.interrupt(ctx, e, "")
			}
		}
	case requestCancel:
		if e := s.lookup(r.task); e != nil && e.state.active() {
			s.interrupt(ctx, e, "")
		}
	case requestSchedule:
		s.admit(ctx, r.task)
	}
}

func (s *Scheduler) admit(ctx context.Context, t Task) {
	if e := s.lookup(t); e != nil && e.state.active() {
		return
	}
	if p := s.parentOf(t); p != nil {
		s.logger.Warnw("cannot schedule a task driven by a running composite",
			"task", t.Name(), "composite", p.task.Name(), "id", p.id)
		return
	}
	reqs := dedupe(t.Requirements())
	ms := members(t)

	for _, owner := range s.conflicts(reqs, ms) {
		s.interrupt(ctx, owner, t.Name())
	}

	e := &entry{id: uuid.New(), task: t, reqs: reqs, members: ms, state: StateInitializing}
	s.mu.Lock()
	s.entries[t] = e
	s.order = append(s.order, e)
	for _, r := range reqs {
		s.owners[r] = e
	}
	for _, m := range ms {
		s.parents[m] = e
	}
	s.mu.Unlock()

	s.logger.Debugw("task admitted", "task", t.Name(), "id", e.id, "requires", requirementNames(reqs))
	t.Initialize(ctx)
}

func (s *Scheduler) parentOf(t Task) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.parents[t]; ok && p.state.active() {
		return p
	}
	return nil
}

// conflicts returns, in admission order, the owners of any of reqs together with the active
// entries already driving one of ms, either directly or through another composite.
func (s *Scheduler) conflicts(reqs []Resource, ms []Task) []*entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	found := map[*entry]struct{}{}
	for _, r := range reqs {
		if owner, ok := s.owners[r]; ok {
			found[owner] = struct{}{}
		}
	}
	for _, m := range ms {
		if e, ok := s.entries[m]; ok && e.state.active() {
			found[e] = struct{}{}
		}
		if p, ok := s.parents[m]; ok && p.state.active() {
			found[p] = struct{}{}
		}
	}
	var out []*entry
	for _, e := range s.order {
		if _, ok := found[e]; ok {
			out = append(out, e)
		}
	}
	return out
}

func (s *Scheduler) interrupt(ctx context.Context, e *entry, by string) {
	e.task.End(ctx, true)
	s.setEnding(e)
	if by == "" {
		s.logger.Infow("task cancelled", "task", e.task.Name(), "id", e.id)
		return
	}
	s.logger.Infow("task interrupted", "task", e.task.Name(), "id", e.id, "by", by)
}

// setEnding releases the entry's resources.
func (s *Scheduler) setEnding(e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.state = StateEnding
	for _, r := range e.reqs {
		if s.owners[r] == e {
			delete(s.owners, r)
		}
	}
}

// endPass moves tasks admitted this pass to running and forgets tasks that ended.
func (s *Scheduler) endPass() {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.order[:0]
	for _, e := range s.order {
		switch e.state {
		case StateInitializing:
			e.state = StateRunning
		case StateEnding:
			if s.entries[e.task] == e {
				delete(s.entries, e.task)
			}
			for _, m := range e.members {
				if s.parents[m] == e {
					delete(s.parents, m)
				}
			}
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(s.order); i++ {
		s.order[i] = nil
	}
	s.order = kept
}

func (s *Scheduler) lookup(t Task) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[t]
}

// IsScheduled reports whether the task currently owns its resources.
func (s *Scheduler) IsScheduled(t Task) bool {
	return s.StateOf(t).active()
}

// StateOf returns the lifecycle state of the task.
func (s *Scheduler) StateOf(t Task) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[t]
	if !ok {
		return StateIdle
	}
	return e.state
}

// ID returns the identifier assigned to the task when it was admitted. Every admission gets a
// fresh one, so a task scheduled again after it ended is told apart in logs and telemetry.
func (s *Scheduler) ID(t Task) (uuid.UUID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[t]
	if !ok {
		return uuid.Nil, false
	}
	return e.id, true
}

// Owner returns the task owning r, or nil.
func (s *Scheduler) Owner(r Resource) Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.owners[r]; ok {
		return e.task
	}
	return nil
}

// Active returns the tasks owning resources, in admission order.
func (s *Scheduler) Active() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Task
	for _, e := range s.order {
		if e.state.active() {
			out = append(out, e.task)
		}
	}
	return out
}

// Publish records the names and admission ids of the active tasks.
func (s *Scheduler) Publish(pub telemetry.Publisher) {
	s.mu.Lock()
	var names, ids []string
	for _, e := range s.order {
		if e.state.active() {
			names = append(names, e.task.Name())
			ids = append(ids, e.id.String())
		}
	}
	s.mu.Unlock()
	pub.RecordNumber("Scheduler/ActiveCount", float64(len(names)))
	pub.RecordString("Scheduler/Active", strings.Join(names, ","))
	pub.RecordString("Scheduler/ActiveIDs", strings.Join(ids, ","))
}
