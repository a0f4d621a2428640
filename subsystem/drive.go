package subsystem

import (
	"math"
	"time"

	"go.viam.com/mechctl/actuator"
	"go.viam.com/mechctl/actuator/sim"
	"go.viam.com/mechctl/control"
	"go.viam.com/mechctl/logging"
	"go.viam.com/mechctl/telemetry"
	"go.viam.com/mechctl/tuning"
)

// Drive actuator names.
const (
	DriveLeft  = "Drive/Left"
	DriveRight = "Drive/Right"
)

// Drive geometry.
const (
	WheelRadiusMeters   = 0.0508
	TrackWidthMeters    = 0.55
	MaxLinearSpeedMPS   = 4.5
	driveGearing        = 6.75
	driveMOIKgM2AtWheel = 0.1
)

// DriveSpecs returns the left and right side specs for a loop period.
func DriveSpecs(period time.Duration) (left, right ActuatorSpec) {
	spec := ActuatorSpec{
		HardwareGains: actuator.Gains{KP: 0.05},
		SimGains:      actuator.Gains{KP: 0.3},
		Plant: sim.Config{
			Motor:   sim.NEO(2),
			Gearing: driveGearing,
			MOIKgM2: driveMOIKgM2AtWheel,
			Period:  period,
		},
	}
	left, right = spec, spec
	left.Name = DriveLeft
	right.Name = DriveRight
	return left, right
}

// Drive is a differential drive base with one actuator per side, measured at the wheels.
type Drive struct {
	base
	left  *actuator.Actuator
	right *actuator.Actuator
	ff    control.SimpleFeedforward

	vx, omega float64
}

var _ Subsystem = (*Drive)(nil)

// NewDrive builds the drive base for a mode.
func NewDrive(
	mode actuator.Mode,
	period time.Duration,
	left, right actuator.Backend,
	tunables *tuning.Registry,
	logger logging.Logger,
) (*Drive, error) {
	d := &Drive{base: newBase("Drive", logger)}
	if mode == actuator.ModeSimulated {
		d.ff = control.SimpleFeedforward{KV: 0.134}
	} else {
		d.ff = control.SimpleFeedforward{KS: 0.1, KV: 0.13}
	}
	leftSpec, rightSpec := DriveSpecs(period)
	var err error
	if d.left, err = d.add(mode, leftSpec, left, nil, tunables); err != nil {
		return nil, err
	}
	if d.right, err = d.add(mode, rightSpec, right, nil, tunables); err != nil {
		return nil, err
	}
	return d, nil
}

// WheelSpeeds converts a chassis speed to wheel angular velocities, scaled down together so
// neither side exceeds the maximum speed.
func WheelSpeeds(vx, omega float64) (left, right float64) {
	l := vx - omega*TrackWidthMeters/2
	r := vx + omega*TrackWidthMeters/2
	if m := math.Max(math.Abs(l), math.Abs(r)); m > MaxLinearSpeedMPS {
		l *= MaxLinearSpeedMPS / m
		r *= MaxLinearSpeedMPS / m
	}
	return l / WheelRadiusMeters, r / WheelRadiusMeters
}

// RunVelocity drives at vx meters per second forward while turning at omega radians per second
// counterclockwise.
func (d *Drive) RunVelocity(vx, omega float64) {
	l, r := WheelSpeeds(vx, omega)
	d.left.Drive(actuator.VelocitySetpoint(l, d.ff.Calculate(l)))
	d.right.Drive(actuator.VelocitySetpoint(r, d.ff.Calculate(r)))
	d.vx, d.omega = vx, omega
}

// Stop stops both sides.
func (d *Drive) Stop() {
	d.left.Stop()
	d.right.Stop()
	d.vx, d.omega = 0, 0
}

// DistanceMeters is the mean distance both sides travelled.
func (d *Drive) DistanceMeters() float64 {
	return (d.left.Measure().PositionRad + d.right.Measure().PositionRad) / 2 * WheelRadiusMeters
}

// Publish records both sides and the commanded chassis speed.
func (d *Drive) Publish(pub telemetry.Publisher) {
	d.base.Publish(pub)
	pub.RecordNumber("Drive/CommandedVX", d.vx)
	pub.RecordNumber("Drive/CommandedOmega", d.omega)
	pub.RecordNumber("Drive/DistanceMeters", d.DistanceMeters())
}
