package subsystem

import (
	"context"
	"time"

	"go.viam.com/mechctl/actuator"
	"go.viam.com/mechctl/actuator/sim"
	"go.viam.com/mechctl/control"
	"go.viam.com/mechctl/logging"
	"go.viam.com/mechctl/telemetry"
	"go.viam.com/mechctl/tuning"
)

// Climber actuator names.
const (
	ClimberLeft  = "Climber/Left"
	ClimberRight = "Climber/Right"
)

// DefaultClimberForwardLimit is the upper travel limit in output radians.
const DefaultClimberForwardLimit = 25.0

// ClimberSpecs returns the left and right arm specs for a loop period.
func ClimberSpecs(period time.Duration) (left, right ActuatorSpec) {
	spec := ActuatorSpec{
		HardwareGains: actuator.Gains{KP: 0.1},
		SimGains:      actuator.Gains{KP: 0.3},
		Plant:         sim.Config{Motor: sim.Falcon500(1), Gearing: 9, MOIKgM2: 0.05, Period: period},
	}
	left, right = spec, spec
	left.Name = ClimberLeft
	right.Name = ClimberRight
	return left, right
}

// Climber is a pair of arms that extend and retract independently. Each arm carries soft limits
// that are only enforced while enabled.
type Climber struct {
	base
	left  *actuator.Actuator
	right *actuator.Actuator
	ff    control.SimpleFeedforward

	forwardLimit *tuning.Number
}

var _ Subsystem = (*Climber)(nil)

// NewClimber builds the climber for a mode. The forward limit is the tunable Climber/ForwardLimit.
func NewClimber(
	mode actuator.Mode,
	period time.Duration,
	left, right actuator.Backend,
	tunables *tuning.Registry,
	logger logging.Logger,
) (*Climber, error) {
	c := &Climber{base: newBase("Climber", logger)}
	if mode == actuator.ModeSimulated {
		c.ff = control.SimpleFeedforward{KV: 0.16}
	}
	limit := DefaultClimberForwardLimit
	if tunables != nil {
		c.forwardLimit = tunables.Number("Climber/ForwardLimit", DefaultClimberForwardLimit)
		limit = c.forwardLimit.Get()
	}
	limits := &actuator.Limits{Forward: limit, Reverse: 0}
	leftSpec, rightSpec := ClimberSpecs(period)
	var err error
	if c.left, err = c.add(mode, leftSpec, left, limits, tunables); err != nil {
		return nil, err
	}
	if c.right, err = c.add(mode, rightSpec, right, limits, tunables); err != nil {
		return nil, err
	}
	return c, nil
}

// Left returns the left arm.
func (c *Climber) Left() *actuator.Actuator {
	return c.left
}

// Right returns the right arm.
func (c *Climber) Right() *actuator.Actuator {
	return c.right
}

// Side picks one climber arm.
type Side int

// Climber arms.
const (
	SideLeft Side = iota
	SideRight
)

func (c *Climber) arm(side Side) *actuator.Actuator {
	if side == SideRight {
		return c.right
	}
	return c.left
}

// RunVelocity drives each arm at its own velocity in output radians per second.
func (c *Climber) RunVelocity(left, right float64) {
	c.RunArm(SideLeft, left)
	c.RunArm(SideRight, right)
}

// RunArm drives one arm at a velocity in output radians per second.
func (c *Climber) RunArm(side Side, velocity float64) {
	c.arm(side).Drive(actuator.VelocitySetpoint(velocity, c.ff.Calculate(velocity)))
}

// Stop stops both arms.
func (c *Climber) Stop() {
	c.left.Stop()
	c.right.Stop()
}

// StopArm stops one arm.
func (c *Climber) StopArm(side Side) {
	c.arm(side).Stop()
}

// SetSoftLimitEnabled toggles soft limit enforcement on both arms.
func (c *Climber) SetSoftLimitEnabled(enabled bool) {
	c.left.SetSoftLimitEnabled(enabled)
	c.right.SetSoftLimitEnabled(enabled)
}

// SetForwardLimit moves the upper travel limit of both arms.
func (c *Climber) SetForwardLimit(rad float64) error {
	for _, a := range []*actuator.Actuator{c.left, c.right} {
		l := a.SoftLimits()
		l.Forward = rad
		if err := a.SetSoftLimits(l); err != nil {
			return err
		}
	}
	return nil
}

// Update measures both arms and follows the forward limit tunable.
func (c *Climber) Update(ctx context.Context) {
	c.base.Update(ctx)
	if c.forwardLimit == nil || !c.forwardLimit.HasChanged() {
		return
	}
	if err := c.SetForwardLimit(c.forwardLimit.Get()); err != nil {
		c.logger.Warnw("ignoring climber forward limit", "value", c.forwardLimit.Get(), "error", err)
	}
}

// Publish records both arms and the limit state.
func (c *Climber) Publish(pub telemetry.Publisher) {
	c.base.Publish(pub)
	pub.RecordBool("Climber/SoftLimitEnabled", c.left.SoftLimitEnabled())
	pub.RecordNumber("Climber/ForwardLimit", c.left.SoftLimits().Forward)
}
