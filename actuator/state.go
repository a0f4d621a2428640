package actuator

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// State is the measurement snapshot of one actuator for one tick.
type State struct {
	PositionRad       float64   `json:"position_rad"`
	VelocityRadPerSec float64   `json:"velocity_rad_per_sec"`
	AppliedVolts      float64   `json:"applied_volts"`
	CurrentAmps       []float64 `json:"current_amps,omitempty"`
}

// Clone returns a deep copy so callers cannot mutate a snapshot held elsewhere.
func (s State) Clone() State {
	if s.CurrentAmps != nil {
		s.CurrentAmps = append([]float64(nil), s.CurrentAmps...)
	}
	return s
}

// Kind tags the active variant of a Setpoint.
type Kind int

const (
	// KindStop is the zero value so an unset Setpoint means stopped.
	KindStop Kind = iota
	// KindVoltage is open loop drive.
	KindVoltage
	// KindVelocity is closed loop velocity.
	KindVelocity
	// KindPosition is closed loop position.
	KindPosition
)

func (k Kind) String() string {
	switch k {
	case KindStop:
		return "stop"
	case KindVoltage:
		return "voltage"
	case KindVelocity:
		return "velocity"
	case KindPosition:
		return "position"
	}
	return "unknown"
}

// Setpoint is a command for one actuator. Only the fields of the active Kind are meaningful.
type Setpoint struct {
	Kind              Kind
	Volts             float64
	VelocityRadPerSec float64
	PositionRad       float64
	FeedforwardVolts  float64
}

// VoltageSetpoint drives the actuator open loop.
func VoltageSetpoint(volts float64) Setpoint {
	return Setpoint{Kind: KindVoltage, Volts: volts}
}

// VelocitySetpoint runs the actuator closed loop at a velocity.
func VelocitySetpoint(velocityRadPerSec, ffVolts float64) Setpoint {
	return Setpoint{Kind: KindVelocity, VelocityRadPerSec: velocityRadPerSec, FeedforwardVolts: ffVolts}
}

// PositionSetpoint runs the actuator closed loop to a position.
func PositionSetpoint(positionRad, ffVolts float64) Setpoint {
	return Setpoint{Kind: KindPosition, PositionRad: positionRad, FeedforwardVolts: ffVolts}
}

// StopSetpoint stops the actuator.
func StopSetpoint() Setpoint {
	return Setpoint{}
}

// ClosedLoop reports whether the setpoint is tracked by a feedback controller.
func (sp Setpoint) ClosedLoop() bool {
	return sp.Kind == KindVelocity || sp.Kind == KindPosition
}

// direction returns the sign of the motion the setpoint asks for from the measured position.
func (sp Setpoint) direction(positionRad float64) int {
	var v float64
	switch sp.Kind {
	case KindVoltage:
		v = sp.Volts
	case KindVelocity:
		v = sp.VelocityRadPerSec
	case KindPosition:
		v = sp.PositionRad - positionRad
	default:
		return 0
	}
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func (sp Setpoint) String() string {
	switch sp.Kind {
	case KindVoltage:
		return fmt.Sprintf("voltage(%.3fV)", sp.Volts)
	case KindVelocity:
		return fmt.Sprintf("velocity(%.3frad/s ff=%.3fV)", sp.VelocityRadPerSec, sp.FeedforwardVolts)
	case KindPosition:
		return fmt.Sprintf("position(%.3frad ff=%.3fV)", sp.PositionRad, sp.FeedforwardVolts)
	}
	return "stop"
}

// Gains are the feedback gains of one actuator's closed loop.
type Gains struct {
	KP float64 `json:"kp"`
	KI float64 `json:"ki"`
	KD float64 `json:"kd"`
}

// Limits are soft travel limits on the measured position. They are only enforced while the
// actuator's soft limit flag is enabled.
type Limits struct {
	Forward float64
	Reverse float64
}

// NoLimits returns limits that never gate motion.
func NoLimits() Limits {
	return Limits{Forward: math.Inf(1), Reverse: math.Inf(-1)}
}

// Validate ensures the limits describe a non-empty range.
func (l Limits) Validate() error {
	if math.IsNaN(l.Forward) || math.IsNaN(l.Reverse) {
		return errors.New("soft limits cannot be NaN")
	}
	if l.Forward < l.Reverse {
		return errors.Errorf("forward soft limit %f is below reverse soft limit %f", l.Forward, l.Reverse)
	}
	return nil
}
