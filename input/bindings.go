package input

import (
	"context"
	"sync"

	"github.com/benbjohnson/clock"

	"go.viam.com/mechctl/logging"
	"go.viam.com/mechctl/task"
)

// Scheduler is the part of task.Scheduler bindings need.
type Scheduler interface {
	Schedule(tasks ...task.Task)
	Cancel(ctx context.Context, tasks ...task.Task)
	IsScheduled(t task.Task) bool
}

// Bindings maps the controls of one source to tasks. Poll samples the source once and evaluates
// every trigger against that sample.
type Bindings struct {
	name      string
	source    Source
	scheduler Scheduler
	clk       clock.Clock
	logger    logging.Logger

	mu       sync.Mutex
	current  Sample
	triggers []*Trigger
	failing  bool
}

// NewBindings returns bindings for source with no triggers.
func NewBindings(name string, source Source, scheduler Scheduler, clk clock.Clock, logger logging.Logger) *Bindings {
	return &Bindings{
		name:      name,
		source:    source,
		scheduler: scheduler,
		clk:       clk,
		logger:    logger.Sublogger("input").With("controller", name),
	}
}

// Poll samples the source and fires triggers on edges. A failed sample is treated as every control
// released, so held tasks are cancelled. It returns the changes since the previous sample.
func (b *Bindings) Poll(ctx context.Context) []Event {
	s, err := b.source.Sample(ctx)
	b.mu.Lock()
	if err != nil {
		if !b.failing {
			b.logger.Warnw("cannot sample controller, releasing all controls", "error", err)
		}
		b.failing = true
		s = Sample{}
	} else if b.failing {
		b.failing = false
		b.logger.Info("controller sampling recovered")
	}
	prev := b.current
	b.current = s
	triggers := append([]*Trigger(nil), b.triggers...)
	b.mu.Unlock()

	events := s.Events(prev, b.clk.Now())
	for _, ev := range events {
		if ev.Event != PositionChangeAbs {
			b.logger.Debugw("button", "code", ev.Code, "event", ev.Event)
		}
	}
	for _, t := range triggers {
		t.evaluate(ctx, s)
	}
	return events
}

// Current returns the last sample taken.
func (b *Bindings) Current() Sample {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// Axis returns a reader of an axis in the last sample taken, for tasks that follow a stick.
func (b *Bindings) Axis(code ControlCode) func() float64 {
	return func() float64 {
		return b.Current().Axis(code)
	}
}

// When returns a trigger active while cond holds.
func (b *Bindings) When(cond func(Sample) bool) *Trigger {
	t := &Trigger{bindings: b, cond: cond}
	b.mu.Lock()
	b.triggers = append(b.triggers, t)
	b.mu.Unlock()
	return t
}

// Button returns a trigger active while the button is held.
func (b *Bindings) Button(code ControlCode) *Trigger {
	return b.When(func(s Sample) bool { return s.Button(code) })
}

// AxisAbove returns a trigger active while the axis is past threshold.
func (b *Bindings) AxisAbove(code ControlCode, threshold float64) *Trigger {
	return b.When(func(s Sample) bool { return s.Axis(code) > threshold })
}

type binding func(ctx context.Context, s Scheduler, rising bool)

// Trigger is a boolean condition on the controls whose edges schedule or cancel tasks.
type Trigger struct {
	bindings *Bindings
	cond     func(Sample) bool
	active   bool
	actions  []binding
}

// WhileHeld schedules the tasks when the trigger activates and cancels them when it releases.
func (t *Trigger) WhileHeld(tasks ...task.Task) *Trigger {
	t.actions = append(t.actions, func(ctx context.Context, s Scheduler, rising bool) {
		if rising {
			s.Schedule(tasks...)
			return
		}
		s.Cancel(ctx, tasks...)
	})
	return t
}

// OnPress schedules the tasks when the trigger activates.
func (t *Trigger) OnPress(tasks ...task.Task) *Trigger {
	t.actions = append(t.actions, func(ctx context.Context, s Scheduler, rising bool) {
		if rising {
			s.Schedule(tasks...)
		}
	})
	return t
}

// Toggle cancels each task that is scheduled and schedules each one that is not, whenever the
// trigger activates.
func (t *Trigger) Toggle(tasks ...task.Task) *Trigger {
	t.actions = append(t.actions, func(ctx context.Context, s Scheduler, rising bool) {
		if !rising {
			return
		}
		for _, tk := range tasks {
			if s.IsScheduled(tk) {
				s.Cancel(ctx, tk)
			} else {
				s.Schedule(tk)
			}
		}
	})
	return t
}

func (t *Trigger) evaluate(ctx context.Context, s Sample) {
	now := t.cond(s)
	if now == t.active {
		return
	}
	t.active = now
	for _, a := range t.actions {
		a(ctx, t.bindings.scheduler, now)
	}
}
