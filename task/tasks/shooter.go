package tasks

import (
	"context"

	"go.viam.com/mechctl/subsystem"
	"go.viam.com/mechctl/task"
)

// Amp shot wheel speeds per unit of trigger.
const (
	AmpTopRPMPerUnit    = 50.0
	AmpBottomRPMPerUnit = 2250.0
)

// Shooter is what shooter tasks drive.
type Shooter interface {
	task.Resource
	RunVelocity(topRPM, bottomRPM float64)
	Stop()
}

var _ Shooter = (*subsystem.Shooter)(nil)

// AmpShoot spins the wheels in proportion to a trigger. The bottom wheel does most of the work
// so the note lobs into the amp.
type AmpShoot struct {
	shooter Shooter
	trigger func() float64
}

// NewAmpShoot returns an amp shot following trigger.
func NewAmpShoot(s Shooter, trigger func() float64) *AmpShoot {
	return &AmpShoot{shooter: s, trigger: trigger}
}

// Name returns AmpShoot.
func (a *AmpShoot) Name() string {
	return "AmpShoot"
}

// Requirements is the shooter.
func (a *AmpShoot) Requirements() []task.Resource {
	return []task.Resource{a.shooter}
}

// Initialize stops the wheels.
func (a *AmpShoot) Initialize(ctx context.Context) {
	a.shooter.Stop()
}

// Execute follows the trigger.
func (a *AmpShoot) Execute(ctx context.Context) {
	x := a.trigger()
	a.shooter.RunVelocity(x*AmpTopRPMPerUnit, x*AmpBottomRPMPerUnit)
}

// IsFinished is always false.
func (a *AmpShoot) IsFinished() bool {
	return false
}

// End stops the wheels.
func (a *AmpShoot) End(ctx context.Context, interrupted bool) {
	a.shooter.Stop()
}

// SpinUp runs both wheels at the speeds read when started and stops them on end.
func SpinUp(name string, s Shooter, topRPM, bottomRPM func() float64) *task.FuncTask {
	return task.StartEnd(name,
		func(context.Context) { s.RunVelocity(topRPM(), bottomRPM()) },
		func(context.Context) { s.Stop() },
		s)
}
