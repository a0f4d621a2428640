package subsystem

import (
	"time"

	"go.viam.com/mechctl/actuator"
	"go.viam.com/mechctl/actuator/sim"
	"go.viam.com/mechctl/control"
	"go.viam.com/mechctl/logging"
	"go.viam.com/mechctl/telemetry"
	"go.viam.com/mechctl/tuning"
)

// Shooter actuator names.
const (
	ShooterTop    = "Shooter/Top"
	ShooterBottom = "Shooter/Bottom"
)

// ShooterSpecs returns the top and bottom flywheel specs for a loop period.
func ShooterSpecs(period time.Duration) (top, bottom ActuatorSpec) {
	plant := sim.Config{Motor: sim.NEO(1), Gearing: 1.5, MOIKgM2: 0.008, Period: period}
	top = ActuatorSpec{
		Name:          ShooterTop,
		HardwareGains: actuator.Gains{KP: 0.1},
		SimGains:      actuator.Gains{KP: 0.5},
		Plant:         plant,
	}
	bottom = ActuatorSpec{
		Name:          ShooterBottom,
		HardwareGains: actuator.Gains{KP: 0.0003},
		SimGains:      actuator.Gains{KP: 1.0},
		Plant:         plant,
	}
	return top, bottom
}

// ShooterFeedforward returns the flywheel feedforward model of a mode. The simulator is tuned as a
// separate robot.
func ShooterFeedforward(mode actuator.Mode) control.SimpleFeedforward {
	if mode == actuator.ModeSimulated {
		return control.SimpleFeedforward{KS: 0, KV: 0.03}
	}
	return control.SimpleFeedforward{KS: 0.3, KV: 0.019}
}

// Shooter is a pair of flywheels spinning independently.
type Shooter struct {
	base
	top    *actuator.Actuator
	bottom *actuator.Actuator
	ff     control.SimpleFeedforward

	topSetpointRPM    float64
	bottomSetpointRPM float64
}

var _ Subsystem = (*Shooter)(nil)

// NewShooter builds the shooter for a mode.
func NewShooter(
	mode actuator.Mode,
	period time.Duration,
	top, bottom actuator.Backend,
	tunables *tuning.Registry,
	logger logging.Logger,
) (*Shooter, error) {
	s := &Shooter{base: newBase("Shooter", logger), ff: ShooterFeedforward(mode)}
	topSpec, bottomSpec := ShooterSpecs(period)
	var err error
	if s.top, err = s.add(mode, topSpec, top, nil, tunables); err != nil {
		return nil, err
	}
	if s.bottom, err = s.add(mode, bottomSpec, bottom, nil, tunables); err != nil {
		return nil, err
	}
	return s, nil
}

// RunVelocity runs both flywheels closed loop.
func (s *Shooter) RunVelocity(topRPM, bottomRPM float64) {
	top := RPMToRadPerSec(topRPM)
	bottom := RPMToRadPerSec(bottomRPM)
	s.top.Drive(actuator.VelocitySetpoint(top, s.ff.Calculate(top)))
	s.bottom.Drive(actuator.VelocitySetpoint(bottom, s.ff.Calculate(bottom)))
	s.topSetpointRPM = topRPM
	s.bottomSetpointRPM = bottomRPM
}

// RunVolts runs both flywheels open loop.
func (s *Shooter) RunVolts(topVolts, bottomVolts float64) {
	s.top.Drive(actuator.VoltageSetpoint(topVolts))
	s.bottom.Drive(actuator.VoltageSetpoint(bottomVolts))
	s.topSetpointRPM = 0
	s.bottomSetpointRPM = 0
}

// Stop stops both flywheels.
func (s *Shooter) Stop() {
	s.top.Stop()
	s.bottom.Stop()
	s.topSetpointRPM = 0
	s.bottomSetpointRPM = 0
}

// TopRPM is the measured top flywheel speed.
func (s *Shooter) TopRPM() float64 {
	return RadPerSecToRPM(s.top.Measure().VelocityRadPerSec)
}

// BottomRPM is the measured bottom flywheel speed.
func (s *Shooter) BottomRPM() float64 {
	return RadPerSecToRPM(s.bottom.Measure().VelocityRadPerSec)
}

// Publish records setpoints and measured speeds.
func (s *Shooter) Publish(pub telemetry.Publisher) {
	s.base.Publish(pub)
	pub.RecordNumber("Shooter/TopSetpointRPM", s.topSetpointRPM)
	pub.RecordNumber("Shooter/BottomSetpointRPM", s.bottomSetpointRPM)
	pub.RecordNumber("Shooter/TopRPM", s.TopRPM())
	pub.RecordNumber("Shooter/BottomRPM", s.BottomRPM())
}
