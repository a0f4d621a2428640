package task

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.viam.com/test"

	"go.viam.com/mechctl/logging"
	"go.viam.com/mechctl/telemetry"
)

type testResource struct {
	name string
}

func (r *testResource) Name() string { return r.name }

// recorder collects lifecycle callbacks of many tasks in call order.
type recorder struct {
	events []string
}

type recordingTask struct {
	name       string
	reqs       []Resource
	rec        *recorder
	finishAt   int
	executes   int
	inits      int
	ends       int
	onExecute  func(ctx context.Context)
	lastInterr bool
}

func newRecordingTask(rec *recorder, name string, reqs ...Resource) *recordingTask {
	return &recordingTask{name: name, reqs: reqs, rec: rec}
}

func (r *recordingTask) Name() string             { return r.name }
func (r *recordingTask) Requirements() []Resource { return r.reqs }

func (r *recordingTask) Initialize(ctx context.Context) {
	r.inits++
	r.executes = 0
	r.rec.events = append(r.rec.events, r.name+".init")
}

func (r *recordingTask) Execute(ctx context.Context) {
	r.executes++
	r.rec.events = append(r.rec.events, r.name+".exec")
	if r.onExecute != nil {
		r.onExecute(ctx)
	}
}

func (r *recordingTask) IsFinished() bool {
	return r.finishAt > 0 && r.executes >= r.finishAt
}

func (r *recordingTask) End(ctx context.Context, interrupted bool) {
	r.ends++
	r.lastInterr = interrupted
	r.rec.events = append(r.rec.events, fmt.Sprintf("%s.end(%v)", r.name, interrupted))
}

func TestAdmissionTiming(t *testing.T) {
	ctx := context.Background()
	s := NewScheduler(logging.NewTestLogger(t))
	rec := &recorder{}
	a := &testResource{"a"}
	task := newRecordingTask(rec, "T", a)

	var stateDuringInit State
	task2 := &FuncTask{
		TaskName: "probe",
		OnInit:   func(context.Context) { stateDuringInit = s.StateOf(task) },
	}

	s.Schedule(task)
	test.That(t, s.StateOf(task), test.ShouldEqual, StateIdle)
	test.That(t, s.Run(ctx), test.ShouldBeNil)
	test.That(t, rec.events, test.ShouldResemble, []string{"T.init"})
	test.That(t, s.StateOf(task), test.ShouldEqual, StateRunning)
	test.That(t, s.IsScheduled(task), test.ShouldBeTrue)
	test.That(t, s.Owner(a), test.ShouldEqual, task)

	s.Schedule(task2)
	test.That(t, s.Run(ctx), test.ShouldBeNil)
	test.That(t, rec.events, test.ShouldResemble, []string{"T.init", "T.exec"})
	test.That(t, stateDuringInit, test.ShouldEqual, StateRunning)
	test.That(t, s.Active(), test.ShouldResemble, []Task{task, task2})
}

func TestStateDuringInitialize(t *testing.T) {
	ctx := context.Background()
	s := NewScheduler(logging.NewTestLogger(t))
	var self *FuncTask
	var seen State
	self = &FuncTask{TaskName: "self", OnInit: func(context.Context) { seen = s.StateOf(self) }}
	s.Schedule(self)
	test.That(t, s.Run(ctx), test.ShouldBeNil)
	test.That(t, seen, test.ShouldEqual, StateInitializing)
}

func TestConflictInterruptsBeforeInitialize(t *testing.T) {
	ctx := context.Background()
	logger, logs := logging.NewObservedTestLogger(t)
	s := NewScheduler(logger)
	rec := &recorder{}
	a := &testResource{"climber"}
	u := newRecordingTask(rec, "U", a)
	tk := newRecordingTask(rec, "T", a)

	s.Schedule(u)
	test.That(t, s.Run(ctx), test.ShouldBeNil)
	test.That(t, s.Run(ctx), test.ShouldBeNil)

	var duringPass State
	tk.onExecute = func(context.Context) { duringPass = s.StateOf(u) }
	s.Schedule(tk)
	test.That(t, s.Run(ctx), test.ShouldBeNil)
	test.That(t, rec.events, test.ShouldResemble, []string{"U.init", "U.exec", "U.end(true)", "T.init"})
	test.That(t, u.ends, test.ShouldEqual, 1)
	test.That(t, u.lastInterr, test.ShouldBeTrue)
	test.That(t, s.Owner(a), test.ShouldEqual, tk)
	test.That(t, s.StateOf(u), test.ShouldEqual, StateIdle)
	test.That(t, logs.FilterMessage("task interrupted").FilterField(zap.String("by", "T")).Len(), test.ShouldEqual, 1)

	test.That(t, s.Run(ctx), test.ShouldBeNil)
	test.That(t, duringPass, test.ShouldEqual, StateIdle)
	test.That(t, u.ends, test.ShouldEqual, 1)
}

func TestFinishReleasesSameTick(t *testing.T) {
	ctx := context.Background()
	s := NewScheduler(logging.NewTestLogger(t))
	rec := &recorder{}
	a := &testResource{"indexer"}
	task := newRecordingTask(rec, "T", a)
	task.finishAt = 2

	s.Schedule(task)
	for i := 0; i < 2; i++ {
		test.That(t, s.Run(ctx), test.ShouldBeNil)
	}
	test.That(t, s.Owner(a), test.ShouldEqual, task)
	test.That(t, s.Run(ctx), test.ShouldBeNil)
	test.That(t, s.Owner(a), test.ShouldBeNil)
	test.That(t, task.ends, test.ShouldEqual, 1)
	test.That(t, task.lastInterr, test.ShouldBeFalse)
	test.That(t, s.StateOf(task), test.ShouldEqual, StateIdle)

	// a finished task can be scheduled again
	s.Schedule(task)
	test.That(t, s.Run(ctx), test.ShouldBeNil)
	test.That(t, task.inits, test.ShouldEqual, 2)
}

func TestSimultaneousAdmissionsUseArrivalOrder(t *testing.T) {
	ctx := context.Background()
	s := NewScheduler(logging.NewTestLogger(t))
	rec := &recorder{}
	a, b := &testResource{"a"}, &testResource{"b"}
	t1 := newRecordingTask(rec, "T1", a)
	t2 := newRecordingTask(rec, "T2", a, b)
	t3 := newRecordingTask(rec, "T3", b)

	s.Schedule(t1, t2, t3)
	test.That(t, s.Run(ctx), test.ShouldBeNil)
	test.That(t, rec.events, test.ShouldResemble, []string{
		"T1.init", "T1.end(true)", "T2.init", "T2.end(true)", "T3.init",
	})
	test.That(t, s.Owner(a), test.ShouldBeNil)
	test.That(t, s.Owner(b), test.ShouldEqual, t3)
	test.That(t, s.Active(), test.ShouldResemble, []Task{t3})
}

func TestScheduleActiveIsNoop(t *testing.T) {
	ctx := context.Background()
	s := NewScheduler(logging.NewTestLogger(t))
	rec := &recorder{}
	task := newRecordingTask(rec, "T", &testResource{"a"})
	s.Schedule(task, task)
	test.That(t, s.Run(ctx), test.ShouldBeNil)
	s.Schedule(task)
	test.That(t, s.Run(ctx), test.ShouldBeNil)
	test.That(t, task.inits, test.ShouldEqual, 1)
	test.That(t, task.ends, test.ShouldEqual, 0)
}

func TestCancelOutsidePassIsSynchronous(t *testing.T) {
	ctx := context.Background()
	s := NewScheduler(logging.NewTestLogger(t))
	rec := &recorder{}
	a := &testResource{"a"}
	task := newRecordingTask(rec, "T", a)
	idle := newRecordingTask(rec, "idle")

	s.Schedule(task)
	test.That(t, s.Run(ctx), test.ShouldBeNil)
	s.Cancel(ctx, task, idle, nil)
	test.That(t, task.ends, test.ShouldEqual, 1)
	test.That(t, task.lastInterr, test.ShouldBeTrue)
	test.That(t, idle.ends, test.ShouldEqual, 0)
	test.That(t, s.StateOf(task), test.ShouldEqual, StateEnding)
	test.That(t, s.Owner(a), test.ShouldBeNil)

	test.That(t, s.Run(ctx), test.ShouldBeNil)
	test.That(t, s.StateOf(task), test.ShouldEqual, StateIdle)
	test.That(t, rec.events, test.ShouldResemble, []string{"T.init", "T.end(true)"})
}

func TestCancelAll(t *testing.T) {
	ctx := context.Background()
	s := NewScheduler(logging.NewTestLogger(t))
	rec := &recorder{}
	t1 := newRecordingTask(rec, "T1", &testResource{"a"})
	t2 := newRecordingTask(rec, "T2", &testResource{"b"})
	s.Schedule(t1, t2)
	test.That(t, s.Run(ctx), test.ShouldBeNil)
	s.CancelAll(ctx)
	test.That(t, rec.events, test.ShouldResemble, []string{"T1.init", "T2.init", "T1.end(true)", "T2.end(true)"})
	test.That(t, s.Active(), test.ShouldBeEmpty)
}

func TestSchedulerIsNotReentrant(t *testing.T) {
	ctx := context.Background()
	s := NewScheduler(logging.NewTestLogger(t))
	rec := &recorder{}
	victim := newRecordingTask(rec, "victim", &testResource{"a"})
	later := newRecordingTask(rec, "later")
	caller := newRecordingTask(rec, "caller", &testResource{"b"})

	var runErr error
	calls := 0
	caller.onExecute = func(ctx context.Context) {
		calls++
		if calls > 1 {
			return
		}
		runErr = s.Run(ctx)
		s.Cancel(ctx, victim)
		s.Schedule(later)
	}

	s.Schedule(victim, caller)
	test.That(t, s.Run(ctx), test.ShouldBeNil)
	test.That(t, s.Run(ctx), test.ShouldBeNil)
	test.That(t, runErr, test.ShouldEqual, ErrReentrant)
	// deferred to the next pass
	test.That(t, victim.ends, test.ShouldEqual, 0)
	test.That(t, later.inits, test.ShouldEqual, 0)

	test.That(t, s.Run(ctx), test.ShouldBeNil)
	test.That(t, victim.ends, test.ShouldEqual, 1)
	test.That(t, later.inits, test.ShouldEqual, 1)
}

func TestComposedTaskCannotBeScheduled(t *testing.T) {
	ctx := context.Background()
	logger, logs := logging.NewObservedTestLogger(t)
	s := NewScheduler(logger)
	rec := &recorder{}
	child := newRecordingTask(rec, "child")
	seq, err := Sequential(child)
	test.That(t, err, test.ShouldBeNil)

	// on its own while the composite is idle
	s.Schedule(child)
	test.That(t, s.Run(ctx), test.ShouldBeNil)
	test.That(t, child.inits, test.ShouldEqual, 1)
	test.That(t, s.IsScheduled(child), test.ShouldBeTrue)

	// the composite takes its child over even without shared resources
	s.Schedule(seq)
	test.That(t, s.Run(ctx), test.ShouldBeNil)
	test.That(t, child.ends, test.ShouldEqual, 1)
	test.That(t, child.lastInterr, test.ShouldBeTrue)
	test.That(t, child.inits, test.ShouldEqual, 2)
	test.That(t, s.IsScheduled(child), test.ShouldBeFalse)
	test.That(t, s.IsScheduled(seq), test.ShouldBeTrue)

	s.Schedule(child)
	test.That(t, s.Run(ctx), test.ShouldBeNil)
	test.That(t, child.inits, test.ShouldEqual, 2)
	test.That(t, s.IsScheduled(child), test.ShouldBeFalse)
	test.That(t, s.IsScheduled(seq), test.ShouldBeTrue)
	test.That(t, logs.FilterMessage("cannot schedule a task driven by a running composite").Len(), test.ShouldEqual, 1)

	s.Cancel(ctx, seq)
	test.That(t, child.ends, test.ShouldEqual, 2)
	s.Schedule(child)
	test.That(t, s.Run(ctx), test.ShouldBeNil)
	test.That(t, child.inits, test.ShouldEqual, 3)
	test.That(t, s.IsScheduled(child), test.ShouldBeTrue)
}

func TestCompositesSharingATask(t *testing.T) {
	ctx := context.Background()
	s := NewScheduler(logging.NewTestLogger(t))
	rec := &recorder{}
	shared := newRecordingTask(rec, "shared")
	first, err := Sequential(shared)
	test.That(t, err, test.ShouldBeNil)
	second, err := Parallel(shared)
	test.That(t, err, test.ShouldBeNil)

	s.Schedule(first)
	test.That(t, s.Run(ctx), test.ShouldBeNil)
	s.Schedule(second)
	test.That(t, s.Run(ctx), test.ShouldBeNil)
	test.That(t, s.IsScheduled(first), test.ShouldBeFalse)
	test.That(t, s.IsScheduled(second), test.ShouldBeTrue)
	test.That(t, shared.ends, test.ShouldEqual, 1)
	test.That(t, shared.lastInterr, test.ShouldBeTrue)
	test.That(t, shared.inits, test.ShouldEqual, 2)
}

func TestExclusivityUnderRandomAdmissions(t *testing.T) {
	ctx := context.Background()
	s := NewScheduler(logging.NewBlankLogger("random"))
	rng := rand.New(rand.NewSource(42))
	rec := &recorder{}

	resources := make([]Resource, 6)
	for i := range resources {
		resources[i] = &testResource{fmt.Sprintf("r%d", i)}
	}
	tasks := make([]*recordingTask, 25)
	for i := range tasks {
		var reqs []Resource
		for _, r := range resources {
			if rng.Intn(3) == 0 {
				reqs = append(reqs, r)
			}
		}
		tasks[i] = newRecordingTask(rec, fmt.Sprintf("T%d", i), reqs...)
		tasks[i].finishAt = rng.Intn(8)
	}

	for tick := 0; tick < 500; tick++ {
		for n := rng.Intn(4); n > 0; n-- {
			s.Schedule(tasks[rng.Intn(len(tasks))])
		}
		if rng.Intn(10) == 0 {
			s.Cancel(ctx, tasks[rng.Intn(len(tasks))])
		}
		test.That(t, s.Run(ctx), test.ShouldBeNil)

		owned := map[Resource]Task{}
		for _, active := range s.Active() {
			for _, r := range active.Requirements() {
				prev, taken := owned[r]
				test.That(t, taken, test.ShouldBeFalse)
				if taken {
					t.Fatalf("tick %d: %s and %s both own %s", tick, prev.Name(), active.Name(), r.Name())
				}
				owned[r] = active
				test.That(t, s.Owner(r), test.ShouldEqual, active)
			}
		}
		for _, task := range tasks {
			// every admission ends exactly once
			diff := task.inits - task.ends
			if s.IsScheduled(task) {
				test.That(t, diff, test.ShouldEqual, 1)
			} else {
				test.That(t, diff, test.ShouldEqual, 0)
			}
		}
	}
}

func TestSchedulerPublish(t *testing.T) {
	ctx := context.Background()
	s := NewScheduler(logging.NewTestLogger(t))
	rec := &recorder{}
	s.Schedule(newRecordingTask(rec, "T1"), newRecordingTask(rec, "T2"))
	test.That(t, s.Run(ctx), test.ShouldBeNil)
	table := telemetry.NewTable()
	s.Publish(table)
	names, _ := table.String("Scheduler/Active")
	test.That(t, names, test.ShouldEqual, "T1,T2")
	count, _ := table.Number("Scheduler/ActiveCount")
	test.That(t, count, test.ShouldEqual, 2.0)
	ids, _ := table.String("Scheduler/ActiveIDs")
	test.That(t, strings.Split(ids, ","), test.ShouldHaveLength, 2)
}

func TestSchedulerIDs(t *testing.T) {
	ctx := context.Background()
	s := NewScheduler(logging.NewTestLogger(t))
	rec := &recorder{}
	task := newRecordingTask(rec, "T")
	task.finishAt = 1

	_, ok := s.ID(task)
	test.That(t, ok, test.ShouldBeFalse)

	s.Schedule(task)
	test.That(t, s.Run(ctx), test.ShouldBeNil)
	first, ok := s.ID(task)
	test.That(t, ok, test.ShouldBeTrue)
	table := telemetry.NewTable()
	s.Publish(table)
	ids, _ := table.String("Scheduler/ActiveIDs")
	test.That(t, ids, test.ShouldEqual, first.String())

	test.That(t, s.Run(ctx), test.ShouldBeNil)
	test.That(t, s.IsScheduled(task), test.ShouldBeFalse)
	_, ok = s.ID(task)
	test.That(t, ok, test.ShouldBeFalse)

	s.Schedule(task)
	test.That(t, s.Run(ctx), test.ShouldBeNil)
	second, ok := s.ID(task)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, second, test.ShouldNotEqual, first)
}
