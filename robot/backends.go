package robot

import (
	"time"

	"github.com/pkg/errors"

	"go.viam.com/mechctl/actuator"
	"go.viam.com/mechctl/actuator/fake"
	"go.viam.com/mechctl/actuator/replay"
	"go.viam.com/mechctl/actuator/sim"
	"go.viam.com/mechctl/logging"
	"go.viam.com/mechctl/sensor"
	"go.viam.com/mechctl/subsystem"
)

// Backends are the devices behind every actuator and sensor of the robot.
type Backends struct {
	ShooterTop    actuator.Backend
	ShooterBottom actuator.Backend
	ClimberLeft   actuator.Backend
	ClimberRight  actuator.Backend
	IndexerRoller actuator.Backend
	DriveLeft     actuator.Backend
	DriveRight    actuator.Backend
	BeamBreak     sensor.Binary
}

// Validate ensures every device is present.
func (b *Backends) Validate() error {
	for name, be := range map[string]actuator.Backend{
		subsystem.ShooterTop:    b.ShooterTop,
		subsystem.ShooterBottom: b.ShooterBottom,
		subsystem.ClimberLeft:   b.ClimberLeft,
		subsystem.ClimberRight:  b.ClimberRight,
		subsystem.IndexerRoller: b.IndexerRoller,
		subsystem.DriveLeft:     b.DriveLeft,
		subsystem.DriveRight:    b.DriveRight,
	} {
		if be == nil {
			return errors.Errorf("no backend for %s", name)
		}
	}
	if b.BeamBreak == nil {
		return errors.Errorf("no sensor for %s", subsystem.IndexerBeamBreak)
	}
	return nil
}

type plantSpec struct {
	dst  *actuator.Backend
	spec subsystem.ActuatorSpec
}

func (b *Backends) specs(period time.Duration) []plantSpec {
	top, bottom := subsystem.ShooterSpecs(period)
	cl, cr := subsystem.ClimberSpecs(period)
	dl, dr := subsystem.DriveSpecs(period)
	return []plantSpec{
		{&b.ShooterTop, top},
		{&b.ShooterBottom, bottom},
		{&b.ClimberLeft, cl},
		{&b.ClimberRight, cr},
		{&b.IndexerRoller, subsystem.IndexerSpec(period)},
		{&b.DriveLeft, dl},
		{&b.DriveRight, dr},
	}
}

// SimulatedBackends models every mechanism with a physics plant. The beam break is a switch that
// nothing trips, so the operator feeds the indexer by hand.
func SimulatedBackends(period time.Duration) (*Backends, error) {
	b := &Backends{BeamBreak: sensor.NewSwitch(subsystem.IndexerBeamBreak)}
	for _, ps := range b.specs(period) {
		p, err := sim.NewPlant(ps.spec.Plant)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot model %s", ps.spec.Name)
		}
		*ps.dst = p
	}
	return b, nil
}

// BenchBackends stands in onboard closed loop controllers for real motor controllers, each spinning
// a plant model. It exercises the hardware control path without a robot attached.
func BenchBackends(period time.Duration) (*Backends, error) {
	b := &Backends{BeamBreak: sensor.NewSwitch(subsystem.IndexerBeamBreak)}
	for _, ps := range b.specs(period) {
		p, err := sim.NewPlant(ps.spec.Plant)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot model %s", ps.spec.Name)
		}
		*ps.dst = fake.NewControllerWithPlant(p, period)
	}
	return b, nil
}

// ReplayBackends reads every measurement from a recorded log.
func ReplayBackends(log *replay.Log) *Backends {
	b := &Backends{BeamBreak: log.Sensor(subsystem.IndexerBeamBreak)}
	for _, ps := range b.specs(0) {
		*ps.dst = log.Backend(ps.spec.Name)
	}
	return b
}

// backendsFor builds the devices of a mode.
func backendsFor(mode actuator.Mode, period time.Duration, log *replay.Log, logger logging.Logger) (*Backends, error) {
	switch mode {
	case actuator.ModeSimulated:
		return SimulatedBackends(period)
	case actuator.ModeReplay:
		if log == nil {
			return nil, errors.New("replay mode needs a log")
		}
		return ReplayBackends(log), nil
	case actuator.ModeHardware:
		logger.Warn("no motor controller drivers are linked in, running against bench controllers")
		return BenchBackends(period)
	}
	return nil, errors.Errorf("unknown execution mode %v", mode)
}
