// Package subsystem groups actuators into the mechanisms tasks claim: the shooter, the climber,
// the indexer and the drive. Each subsystem is a task.Resource.
package subsystem

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"

	"go.viam.com/mechctl/actuator"
	"go.viam.com/mechctl/actuator/sim"
	"go.viam.com/mechctl/logging"
	"go.viam.com/mechctl/task"
	"go.viam.com/mechctl/telemetry"
	"go.viam.com/mechctl/tuning"
)

// A Subsystem is a mechanism made of one or more actuators.
type Subsystem interface {
	task.Resource

	// Update takes this tick's measurements. It runs before any task.
	Update(ctx context.Context)

	// Apply flushes the commands buffered this tick. It runs after every task.
	Apply(dt time.Duration)

	// Actuators lists the actuators of the subsystem.
	Actuators() []*actuator.Actuator

	// Publish records the subsystem's telemetry.
	Publish(pub telemetry.Publisher)
}

// RPMToRadPerSec converts revolutions per minute to radians per second.
func RPMToRadPerSec(rpm float64) float64 {
	return rpm * 2 * math.Pi / 60
}

// RadPerSecToRPM converts radians per second to revolutions per minute.
func RadPerSecToRPM(radPerSec float64) float64 {
	return radPerSec * 60 / (2 * math.Pi)
}

// ActuatorSpec describes one actuator of a subsystem: its name, its gains per mode and the plant
// simulating it.
type ActuatorSpec struct {
	Name          string
	HardwareGains actuator.Gains
	SimGains      actuator.Gains
	Plant         sim.Config
}

// Gains returns the gains used in the given mode. Replay runs with the hardware gains.
func (s ActuatorSpec) Gains(mode actuator.Mode) actuator.Gains {
	if mode == actuator.ModeSimulated {
		return s.SimGains
	}
	return s.HardwareGains
}

// base holds what every subsystem shares.
type base struct {
	name      string
	logger    logging.Logger
	actuators []*actuator.Actuator
	tuned     []*tunedGains
}

func newBase(name string, logger logging.Logger) base {
	return base{name: name, logger: logger.Sublogger(name)}
}

// add builds an actuator from its spec and registers its gains as tunables. Gains already set in
// the registry win over the spec's.
func (b *base) add(
	mode actuator.Mode,
	spec ActuatorSpec,
	backend actuator.Backend,
	limits *actuator.Limits,
	tunables *tuning.Registry,
) (*actuator.Actuator, error) {
	gains := spec.Gains(mode)
	var tuned *tunedGains
	if tunables != nil {
		tuned = newTunedGains(tunables, spec.Name, gains)
		gains = tuned.take()
	}
	a, err := actuator.New(actuator.Config{
		Name:   spec.Name,
		Mode:   mode,
		Gains:  gains,
		Limits: limits,
	}, backend, b.logger)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot build %s", b.name)
	}
	b.actuators = append(b.actuators, a)
	if tuned != nil {
		tuned.act = a
		b.tuned = append(b.tuned, tuned)
	}
	return a, nil
}

// Name returns the name of the subsystem.
func (b *base) Name() string {
	return b.name
}

// Actuators returns every actuator of the subsystem.
func (b *base) Actuators() []*actuator.Actuator {
	return b.actuators
}

// Update measures every actuator and pushes retuned gains.
func (b *base) Update(ctx context.Context) {
	for _, a := range b.actuators {
		a.Update(ctx)
	}
	for _, t := range b.tuned {
		t.apply()
	}
}

// Apply flushes every actuator.
func (b *base) Apply(dt time.Duration) {
	for _, a := range b.actuators {
		a.Apply(dt)
	}
}

// Publish records every actuator.
func (b *base) Publish(pub telemetry.Publisher) {
	for _, a := range b.actuators {
		a.Publish(pub)
	}
}

// tunedGains exposes an actuator's gains as tunables named <actuator>/kP and so on.
type tunedGains struct {
	act        *actuator.Actuator
	kp, ki, kd *tuning.Number
}

func newTunedGains(reg *tuning.Registry, prefix string, def actuator.Gains) *tunedGains {
	return &tunedGains{
		kp: reg.Number(prefix+"/kP", def.KP),
		ki: reg.Number(prefix+"/kI", def.KI),
		kd: reg.Number(prefix+"/kD", def.KD),
	}
}

// changed clears every change flag and reports whether any was set.
func (t *tunedGains) changed() bool {
	c := t.kp.HasChanged()
	c = t.ki.HasChanged() || c
	c = t.kd.HasChanged() || c
	return c
}

// take returns the current values and marks them as applied.
func (t *tunedGains) take() actuator.Gains {
	t.changed()
	return actuator.Gains{KP: t.kp.Get(), KI: t.ki.Get(), KD: t.kd.Get()}
}

func (t *tunedGains) apply() {
	if t.changed() {
		t.act.ConfigurePID(t.take())
	}
}
