package fake

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/mechctl/actuator"
	"go.viam.com/mechctl/actuator/sim"
)

func TestControllerRecordsCommands(t *testing.T) {
	c := NewController()
	test.That(t, c.SetVelocity(3, 0.5), test.ShouldBeNil)
	test.That(t, c.SetPosition(1, 0), test.ShouldBeNil)
	test.That(t, c.Stop(), test.ShouldBeNil)
	test.That(t, c.Commands(), test.ShouldResemble, []actuator.Setpoint{
		actuator.VelocitySetpoint(3, 0.5),
		actuator.PositionSetpoint(1, 0),
		actuator.StopSetpoint(),
	})
	test.That(t, c.LastCommand(), test.ShouldResemble, actuator.StopSetpoint())
}

func TestControllerFault(t *testing.T) {
	c := NewController()
	c.SetState(actuator.State{PositionRad: 2})
	st, err := c.Refresh(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, st.PositionRad, test.ShouldEqual, 2.0)

	c.SetFault(errors.New("bus off"))
	_, err = c.Refresh(context.Background())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, c.SetVoltage(1), test.ShouldNotBeNil)
	test.That(t, c.ConfigurePID(actuator.Gains{KP: 1}), test.ShouldNotBeNil)
	test.That(t, c.ConfigureCount(), test.ShouldEqual, 0)

	c.SetFault(nil)
	test.That(t, c.ConfigurePID(actuator.Gains{KP: 1}), test.ShouldBeNil)
	test.That(t, c.ConfigureCount(), test.ShouldEqual, 1)
	test.That(t, c.Gains(), test.ShouldResemble, actuator.Gains{KP: 1})
}

func TestControllerTracksVelocityOnPlant(t *testing.T) {
	period := 20 * time.Millisecond
	plant, err := sim.NewPlant(sim.Config{Motor: sim.NEO(1), Gearing: 1, MOIKgM2: 0.001, Period: period})
	test.That(t, err, test.ShouldBeNil)
	c := NewControllerWithPlant(plant, period)
	test.That(t, c.ConfigurePID(actuator.Gains{KP: 0.05}), test.ShouldBeNil)
	test.That(t, c.SetVelocity(100, 0), test.ShouldBeNil)

	var st actuator.State
	for i := 0; i < 100; i++ {
		st, err = c.Refresh(context.Background())
		test.That(t, err, test.ShouldBeNil)
	}
	test.That(t, st.VelocityRadPerSec, test.ShouldBeGreaterThan, 60)
	test.That(t, st.VelocityRadPerSec, test.ShouldBeLessThan, 100)
}
