package input

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/mechctl/logging"
	"go.viam.com/mechctl/task"
)

type resource string

func (r resource) Name() string { return string(r) }

func setup(t *testing.T) (*Manual, *Bindings, *task.Scheduler) {
	t.Helper()
	logger := logging.NewTestLogger(t)
	src := NewManual()
	s := task.NewScheduler(logger)
	return src, NewBindings("operator", src, s, clock.NewMock(), logger), s
}

func step(t *testing.T, b *Bindings, s *task.Scheduler) {
	t.Helper()
	b.Poll(context.Background())
	test.That(t, s.Run(context.Background()), test.ShouldBeNil)
}

func TestSampleEvents(t *testing.T) {
	now := time.Unix(10, 0)
	prev := Sample{Buttons: map[ControlCode]bool{ButtonSouth: true}}
	cur := Sample{
		Axes:    map[ControlCode]float64{AbsoluteY: -0.5},
		Buttons: map[ControlCode]bool{ButtonEast: true},
	}
	test.That(t, cur.Events(prev, now), test.ShouldResemble, []Event{
		{Time: now, Event: ButtonUp, Code: ButtonSouth, Value: 0},
		{Time: now, Event: ButtonDown, Code: ButtonEast, Value: 1},
		{Time: now, Event: PositionChangeAbs, Code: AbsoluteY, Value: -0.5},
	})
	test.That(t, cur.Events(cur, now), test.ShouldBeEmpty)
	test.That(t, Sample{}.Axis(AbsoluteX), test.ShouldEqual, 0.0)
	test.That(t, Sample{}.Button(ButtonNorth), test.ShouldBeFalse)
}

func TestManualClampsAxes(t *testing.T) {
	src := NewManual()
	src.SetAxis(AbsoluteRY, 3)
	s, err := src.Sample(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.Axis(AbsoluteRY), test.ShouldEqual, 1.0)
}

func TestWhileHeld(t *testing.T) {
	src, b, s := setup(t)
	ended := 0
	tk := task.StartEnd("flywheel", nil, func(context.Context) { ended++ }, resource("shooter"))
	b.Button(ButtonRT).WhileHeld(tk)

	step(t, b, s)
	test.That(t, s.IsScheduled(tk), test.ShouldBeFalse)

	src.SetButton(ButtonRT, true)
	step(t, b, s)
	test.That(t, s.IsScheduled(tk), test.ShouldBeTrue)
	step(t, b, s)
	test.That(t, s.IsScheduled(tk), test.ShouldBeTrue)

	src.SetButton(ButtonRT, false)
	b.Poll(context.Background())
	test.That(t, ended, test.ShouldEqual, 1)
	test.That(t, s.IsScheduled(tk), test.ShouldBeFalse)
}

func TestOnPressAndToggle(t *testing.T) {
	src, b, s := setup(t)
	pressed := 0
	once := task.RunOnce("reset pose", func(context.Context) { pressed++ })
	manual := task.Run("manual climb", nil, resource("climber"))
	b.Button(DPadUp).OnPress(once)
	b.Button(ButtonWest).Toggle(manual)

	src.SetButton(DPadUp, true)
	src.SetButton(ButtonWest, true)
	step(t, b, s)
	step(t, b, s)
	test.That(t, pressed, test.ShouldEqual, 1)
	test.That(t, s.IsScheduled(manual), test.ShouldBeTrue)

	// release and press again
	src.SetButton(ButtonWest, false)
	step(t, b, s)
	test.That(t, s.IsScheduled(manual), test.ShouldBeTrue)
	src.SetButton(ButtonWest, true)
	step(t, b, s)
	test.That(t, s.IsScheduled(manual), test.ShouldBeFalse)
}

func TestSampleFailureReleasesEverything(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	src := NewManual()
	s := task.NewScheduler(logger)
	b := NewBindings("driver", src, s, clock.NewMock(), logger)
	tk := task.Run("held", nil, resource("indexer"))
	b.Button(ButtonSouth).WhileHeld(tk)
	src.SetAxis(AbsoluteY, 0.7)
	reader := b.Axis(AbsoluteY)

	src.SetButton(ButtonSouth, true)
	step(t, b, s)
	test.That(t, s.IsScheduled(tk), test.ShouldBeTrue)
	test.That(t, reader(), test.ShouldEqual, 0.7)

	src.SetError(errors.New("usb disconnected"))
	step(t, b, s)
	step(t, b, s)
	test.That(t, s.IsScheduled(tk), test.ShouldBeFalse)
	test.That(t, reader(), test.ShouldEqual, 0.0)
	test.That(t, logs.FilterMessage("cannot sample controller, releasing all controls").Len(), test.ShouldEqual, 1)

	src.SetError(nil)
	step(t, b, s)
	test.That(t, s.IsScheduled(tk), test.ShouldBeTrue)
}

func TestAxisAbove(t *testing.T) {
	src, b, s := setup(t)
	tk := task.Run("amp", nil, resource("shooter"))
	b.AxisAbove(AbsoluteRZ, 0.05).WhileHeld(tk)
	src.SetAxis(AbsoluteRZ, 0.04)
	step(t, b, s)
	test.That(t, s.IsScheduled(tk), test.ShouldBeFalse)
	src.SetAxis(AbsoluteRZ, 0.5)
	events := b.Poll(context.Background())
	test.That(t, events, test.ShouldHaveLength, 1)
	test.That(t, s.Run(context.Background()), test.ShouldBeNil)
	test.That(t, s.IsScheduled(tk), test.ShouldBeTrue)
}
