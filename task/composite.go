package task

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

// composite is a task that drives other tasks.
type composite interface {
	Task
	children() []Task
}

// members returns every task t drives, directly or through nested composites, in tree order.
func members(t Task) []Task {
	c, ok := t.(composite)
	if !ok {
		return nil
	}
	var out []Task
	for _, child := range c.children() {
		out = append(out, child)
		out = append(out, members(child)...)
	}
	return out
}

// checkChildren rejects an empty list, nil children, and any task that would appear twice in the
// resulting tree.
func checkChildren(kind string, children []Task) error {
	if len(children) == 0 {
		return errors.Errorf("%s needs at least one task", kind)
	}
	seen := map[Task]struct{}{}
	for i, child := range children {
		if child == nil {
			return errors.Errorf("%s task %d is nil", kind, i)
		}
		for _, t := range append([]Task{child}, members(child)...) {
			if _, ok := seen[t]; ok {
				return errors.Errorf("%s contains %q more than once", kind, t.Name())
			}
			seen[t] = struct{}{}
		}
	}
	return nil
}

func childNames(kind string, children []Task) string {
	names := make([]string, 0, len(children))
	for _, c := range children {
		names = append(names, c.Name())
	}
	return kind + "(" + strings.Join(names, ", ") + ")"
}

// SequentialTask runs its children one after another. When a child finishes the next one is
// initialized in the same tick and executed from the following tick on. It requires the union of
// its children's resources for its whole lifetime.
type SequentialTask struct {
	name    string
	steps   []Task
	reqs    []Resource
	current int
}

// Sequential builds a sequential composite.
func Sequential(children ...Task) (*SequentialTask, error) {
	if err := checkChildren("sequential", children); err != nil {
		return nil, err
	}
	var reqs []Resource
	for _, c := range children {
		reqs = append(reqs, c.Requirements()...)
	}
	return &SequentialTask{
		name:    childNames("Sequential", children),
		steps:   children,
		reqs:    dedupe(reqs),
		current: -1,
	}, nil
}

// Named replaces the generated name.
func (s *SequentialTask) Named(name string) *SequentialTask {
	s.name = name
	return s
}

// Name returns the name of the composite.
func (s *SequentialTask) Name() string {
	return s.name
}

// Requirements returns the union of the children's requirements.
func (s *SequentialTask) Requirements() []Resource {
	return s.reqs
}

func (s *SequentialTask) children() []Task {
	return s.steps
}

// Initialize starts the first child.
func (s *SequentialTask) Initialize(ctx context.Context) {
	s.current = 0
	s.steps[0].Initialize(ctx)
}

// Execute runs the current child and advances when it finishes.
func (s *SequentialTask) Execute(ctx context.Context) {
	if s.current < 0 || s.current >= len(s.steps) {
		return
	}
	child := s.steps[s.current]
	child.Execute(ctx)
	if !child.IsFinished() {
		return
	}
	child.End(ctx, false)
	s.current++
	if s.current < len(s.steps) {
		s.steps[s.current].Initialize(ctx)
	}
}

// IsFinished reports whether every child has finished.
func (s *SequentialTask) IsFinished() bool {
	return s.current >= len(s.steps)
}

// End interrupts the current child if there is one.
func (s *SequentialTask) End(ctx context.Context, interrupted bool) {
	if interrupted && s.current >= 0 && s.current < len(s.steps) {
		s.steps[s.current].End(ctx, true)
	}
	s.current = -1
}

// ParallelTask runs its children together in the same tick and finishes once all have finished.
type ParallelTask struct {
	name     string
	branches []Task
	reqs     []Resource
	running  []bool
}

// Parallel builds a parallel composite. Children may not share resources.
func Parallel(children ...Task) (*ParallelTask, error) {
	if err := checkChildren("parallel", children); err != nil {
		return nil, err
	}
	var reqs []Resource
	claimedBy := map[Resource]Task{}
	for _, c := range children {
		for _, r := range dedupe(c.Requirements()) {
			if other, ok := claimedBy[r]; ok {
				return nil, errors.Errorf("parallel tasks %q and %q both require %q", other.Name(), c.Name(), r.Name())
			}
			claimedBy[r] = c
			reqs = append(reqs, r)
		}
	}
	return &ParallelTask{
		name:     childNames("Parallel", children),
		branches: children,
		reqs:     reqs,
		running:  make([]bool, len(children)),
	}, nil
}

// Named replaces the generated name.
func (p *ParallelTask) Named(name string) *ParallelTask {
	p.name = name
	return p
}

// Name returns the name of the composite.
func (p *ParallelTask) Name() string {
	return p.name
}

// Requirements returns the union of the children's requirements.
func (p *ParallelTask) Requirements() []Resource {
	return p.reqs
}

func (p *ParallelTask) children() []Task {
	return p.branches
}

// Initialize starts every child.
func (p *ParallelTask) Initialize(ctx context.Context) {
	for i, c := range p.branches {
		c.Initialize(ctx)
		p.running[i] = true
	}
}

// Execute runs every unfinished child once.
func (p *ParallelTask) Execute(ctx context.Context) {
	for i, c := range p.branches {
		if !p.running[i] {
			continue
		}
		c.Execute(ctx)
		if c.IsFinished() {
			c.End(ctx, false)
			p.running[i] = false
		}
	}
}

// IsFinished reports whether every child has finished.
func (p *ParallelTask) IsFinished() bool {
	for _, r := range p.running {
		if r {
			return false
		}
	}
	return true
}

// End interrupts the children still running.
func (p *ParallelTask) End(ctx context.Context, interrupted bool) {
	for i, c := range p.branches {
		if p.running[i] {
			c.End(ctx, true)
			p.running[i] = false
		}
	}
}
