package task

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
)

// FuncTask is a task assembled from callbacks. Nil callbacks do nothing, and a nil IsDone never
// finishes.
type FuncTask struct {
	TaskName  string
	Resources []Resource
	OnInit    func(ctx context.Context)
	OnExecute func(ctx context.Context)
	OnEnd     func(ctx context.Context, interrupted bool)
	IsDone    func() bool
}

// Name returns TaskName.
func (f *FuncTask) Name() string {
	return f.TaskName
}

// Requirements returns Resources.
func (f *FuncTask) Requirements() []Resource {
	return f.Resources
}

// Initialize calls OnInit.
func (f *FuncTask) Initialize(ctx context.Context) {
	if f.OnInit != nil {
		f.OnInit(ctx)
	}
}

// Execute calls OnExecute.
func (f *FuncTask) Execute(ctx context.Context) {
	if f.OnExecute != nil {
		f.OnExecute(ctx)
	}
}

// IsFinished calls IsDone.
func (f *FuncTask) IsFinished() bool {
	if f.IsDone == nil {
		return false
	}
	return f.IsDone()
}

// End calls OnEnd.
func (f *FuncTask) End(ctx context.Context, interrupted bool) {
	if f.OnEnd != nil {
		f.OnEnd(ctx, interrupted)
	}
}

func always() bool { return true }

// RunOnce runs fn when initialized and finishes on its first execution.
func RunOnce(name string, fn func(ctx context.Context), reqs ...Resource) *FuncTask {
	return &FuncTask{TaskName: name, Resources: reqs, OnInit: fn, IsDone: always}
}

// Run calls fn every tick until interrupted.
func Run(name string, fn func(ctx context.Context), reqs ...Resource) *FuncTask {
	return &FuncTask{TaskName: name, Resources: reqs, OnExecute: fn}
}

// StartEnd calls start when initialized and end when interrupted. It never finishes on its own.
func StartEnd(name string, start, end func(ctx context.Context), reqs ...Resource) *FuncTask {
	f := &FuncTask{TaskName: name, Resources: reqs, OnInit: start}
	if end != nil {
		f.OnEnd = func(ctx context.Context, _ bool) { end(ctx) }
	}
	return f
}

// WaitTask requires nothing and finishes once its duration has elapsed since it was initialized.
type WaitTask struct {
	clk      clock.Clock
	duration time.Duration
	start    time.Time
}

// Wait returns a timed wait measured on clk.
func Wait(clk clock.Clock, d time.Duration) *WaitTask {
	return &WaitTask{clk: clk, duration: d}
}

// Name includes the duration.
func (w *WaitTask) Name() string {
	return "Wait(" + w.duration.String() + ")"
}

// Requirements is empty.
func (w *WaitTask) Requirements() []Resource {
	return nil
}

// Initialize starts the timer.
func (w *WaitTask) Initialize(ctx context.Context) {
	w.start = w.clk.Now()
}

// Execute does nothing.
func (w *WaitTask) Execute(ctx context.Context) {}

// IsFinished reports whether the duration has elapsed.
func (w *WaitTask) IsFinished() bool {
	return w.clk.Since(w.start) >= w.duration
}

// End does nothing.
func (w *WaitTask) End(ctx context.Context, interrupted bool) {}
