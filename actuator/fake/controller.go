// Package fake implements a fake smart motor controller that closes its own loop, for running
// hardware mode without a bus and for tests.
package fake

import (
	"context"
	"sync"
	"time"

	"go.viam.com/mechctl/actuator"
	"go.viam.com/mechctl/actuator/sim"
	"go.viam.com/mechctl/control"
)

// Controller is a fake closed loop motor controller. With a plant attached it runs its onboard PID
// against the plant on every Refresh; without one it reports whatever state was last set.
type Controller struct {
	mu     sync.Mutex
	plant  *sim.Plant
	period time.Duration
	pid    *control.PID

	state     actuator.State
	last      actuator.Setpoint
	commands  []actuator.Setpoint
	gains     actuator.Gains
	configure int
	fault     error
}

var _ actuator.ClosedLoopBackend = (*Controller)(nil)

// NewController returns a controller with no plant attached.
func NewController() *Controller {
	return &Controller{pid: control.NewPID(0, 0, 0)}
}

// NewControllerWithPlant returns a controller driving a simulated mechanism. period must match
// the plant's period.
func NewControllerWithPlant(plant *sim.Plant, period time.Duration) *Controller {
	c := NewController()
	c.plant = plant
	c.period = period
	return c
}

// Refresh returns the current measurement, or the injected fault.
func (c *Controller) Refresh(ctx context.Context) (actuator.State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fault != nil {
		return actuator.State{}, c.fault
	}
	if c.plant == nil {
		return c.state.Clone(), nil
	}
	if err := c.drivePlant(); err != nil {
		return actuator.State{}, err
	}
	st, err := c.plant.Refresh(ctx)
	if err != nil {
		return actuator.State{}, err
	}
	c.state = st
	return st.Clone(), nil
}

// SetVoltage records an open loop command.
func (c *Controller) SetVoltage(volts float64) error {
	return c.record(actuator.VoltageSetpoint(volts))
}

// Stop records a stop command.
func (c *Controller) Stop() error {
	return c.record(actuator.StopSetpoint())
}

// SetVelocity records a closed loop velocity command.
func (c *Controller) SetVelocity(velocityRadPerSec, ffVolts float64) error {
	return c.record(actuator.VelocitySetpoint(velocityRadPerSec, ffVolts))
}

// SetPosition records a closed loop position command.
func (c *Controller) SetPosition(positionRad, ffVolts float64) error {
	return c.record(actuator.PositionSetpoint(positionRad, ffVolts))
}

// ConfigurePID stores gains in the onboard controller.
func (c *Controller) ConfigurePID(g actuator.Gains) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fault != nil {
		return c.fault
	}
	c.gains = g
	c.configure++
	c.pid.SetGains(g.KP, g.KI, g.KD)
	return nil
}

// SetFault makes every call fail with err until it is cleared with nil.
func (c *Controller) SetFault(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fault = err
}

// SetState sets the reported measurement. With a plant attached the plant is moved instead.
func (c *Controller) SetState(st actuator.State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.plant != nil {
		c.plant.SetState(st.PositionRad, st.VelocityRadPerSec)
	}
	c.state = st.Clone()
}

// Commands returns every command received so far, oldest first.
func (c *Controller) Commands() []actuator.Setpoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]actuator.Setpoint(nil), c.commands...)
}

// LastCommand returns the command the controller is holding.
func (c *Controller) LastCommand() actuator.Setpoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Gains returns the gains last pushed to the controller.
func (c *Controller) Gains() actuator.Gains {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gains
}

// ConfigureCount is the number of successful ConfigurePID calls.
func (c *Controller) ConfigureCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.configure
}

func (c *Controller) record(sp actuator.Setpoint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fault != nil {
		return c.fault
	}
	if sp.Kind != c.last.Kind {
		c.pid.Reset()
	}
	c.last = sp
	c.commands = append(c.commands, sp)
	if c.plant == nil {
		c.state.AppliedVolts = sp.Volts + sp.FeedforwardVolts
	}
	return nil
}

// drivePlant runs the onboard loop for one period. Must hold mu.
func (c *Controller) drivePlant() error {
	sp := c.last
	switch sp.Kind {
	case actuator.KindStop:
		return c.plant.Stop()
	case actuator.KindVoltage:
		return c.plant.SetVoltage(sp.Volts)
	case actuator.KindVelocity:
		out := c.pid.Next(sp.VelocityRadPerSec, c.state.VelocityRadPerSec, c.period)
		return c.plant.SetVoltage(control.Clamp(out+sp.FeedforwardVolts, actuator.MaxVolts))
	default:
		out := c.pid.Next(sp.PositionRad, c.state.PositionRad, c.period)
		return c.plant.SetVoltage(control.Clamp(out+sp.FeedforwardVolts, actuator.MaxVolts))
	}
}
