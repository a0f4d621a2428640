// Package tasks holds the concrete behaviors of the robot, built on the subsystems.
package tasks

import (
	"context"
	"math"

	"go.viam.com/mechctl/subsystem"
	"go.viam.com/mechctl/task"
)

// DeadBand is the stick deflection under which an input reads as zero.
const DeadBand = 0.05

// Climber is what climber tasks drive.
type Climber interface {
	task.Resource
	RunVelocity(left, right float64)
	RunArm(side subsystem.Side, velocity float64)
	Stop()
	StopArm(side subsystem.Side)
	SetSoftLimitEnabled(enabled bool)
}

var _ Climber = (*subsystem.Climber)(nil)

func inDeadBand(x float64) bool {
	return math.Abs(x) <= DeadBand
}

// Climb drives both arms at the same velocity with soft limits enforced. It never finishes.
type Climb struct {
	climber  Climber
	velocity func() float64
	reversed bool
}

// NewClimb returns a synchronized climb. reversed negates the velocity, which is read every tick.
func NewClimb(c Climber, velocity func() float64, reversed bool) *Climb {
	return &Climb{climber: c, velocity: velocity, reversed: reversed}
}

// Name describes the direction.
func (c *Climb) Name() string {
	if c.reversed {
		return "ClimbDown"
	}
	return "ClimbUp"
}

// Requirements is the climber.
func (c *Climb) Requirements() []task.Resource {
	return []task.Resource{c.climber}
}

// Initialize stops the arms and enables soft limits.
func (c *Climb) Initialize(ctx context.Context) {
	c.climber.Stop()
	c.climber.SetSoftLimitEnabled(true)
}

// Execute drives both arms.
func (c *Climb) Execute(ctx context.Context) {
	v := c.velocity()
	if c.reversed {
		v = -v
	}
	c.climber.RunVelocity(v, v)
}

// IsFinished is always false.
func (c *Climb) IsFinished() bool {
	return false
}

// End stops the arms and disables soft limits.
func (c *Climb) End(ctx context.Context, interrupted bool) {
	c.climber.Stop()
	c.climber.SetSoftLimitEnabled(false)
}

// ClimbWithInput follows one stick with both arms. Each arm holds at a stop once past its limit in
// the direction of travel and moves again when the stick reverses.
type ClimbWithInput struct {
	climber     Climber
	maxVelocity func() float64
	input       func() float64
}

// NewClimbWithInput returns a stick driven climb. maxVelocity is read every tick so it can be tuned.
func NewClimbWithInput(c Climber, maxVelocity, input func() float64) *ClimbWithInput {
	return &ClimbWithInput{climber: c, maxVelocity: maxVelocity, input: input}
}

// Name returns ClimbWithInput.
func (c *ClimbWithInput) Name() string {
	return "ClimbWithInput"
}

// Requirements is the climber.
func (c *ClimbWithInput) Requirements() []task.Resource {
	return []task.Resource{c.climber}
}

// Initialize stops the arms and enables soft limits.
func (c *ClimbWithInput) Initialize(ctx context.Context) {
	c.climber.Stop()
	c.climber.SetSoftLimitEnabled(true)
}

// Execute drives both arms from the stick.
func (c *ClimbWithInput) Execute(ctx context.Context) {
	x := c.input()
	if inDeadBand(x) {
		c.climber.Stop()
		return
	}
	v := x * c.maxVelocity()
	c.climber.RunVelocity(v, v)
}

// IsFinished is always false.
func (c *ClimbWithInput) IsFinished() bool {
	return false
}

// End stops the arms and disables soft limits.
func (c *ClimbWithInput) End(ctx context.Context, interrupted bool) {
	c.climber.Stop()
	c.climber.SetSoftLimitEnabled(false)
}

// ClimbManual drives each arm from its own stick and leaves soft limits alone, for recovering arms
// that ended up out of range.
type ClimbManual struct {
	climber     Climber
	maxVelocity func() float64
	left        func() float64
	right       func() float64
}

// NewClimbManual returns an independent climb.
func NewClimbManual(c Climber, maxVelocity, left, right func() float64) *ClimbManual {
	return &ClimbManual{climber: c, maxVelocity: maxVelocity, left: left, right: right}
}

// Name returns ClimbManual.
func (c *ClimbManual) Name() string {
	return "ClimbManual"
}

// Requirements is the climber.
func (c *ClimbManual) Requirements() []task.Resource {
	return []task.Resource{c.climber}
}

// Initialize stops the arms.
func (c *ClimbManual) Initialize(ctx context.Context) {
	c.climber.Stop()
}

// Execute drives each arm from its stick. An arm whose stick is centered is stopped.
func (c *ClimbManual) Execute(ctx context.Context) {
	maxV := c.maxVelocity()
	c.drive(subsystem.SideLeft, c.left(), maxV)
	c.drive(subsystem.SideRight, c.right(), maxV)
}

func (c *ClimbManual) drive(side subsystem.Side, x, maxV float64) {
	if inDeadBand(x) {
		c.climber.StopArm(side)
		return
	}
	c.climber.RunArm(side, x*maxV)
}

// IsFinished is always false.
func (c *ClimbManual) IsFinished() bool {
	return false
}

// End stops the arms.
func (c *ClimbManual) End(ctx context.Context, interrupted bool) {
	c.climber.Stop()
}
