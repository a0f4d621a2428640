package actuator

import (
	"time"

	"github.com/pkg/errors"

	"go.viam.com/mechctl/control"
)

// MaxVolts is the bus voltage software control laws are clamped to.
const MaxVolts = 12.0

// LawKind selects how a setpoint reaches the backend.
type LawKind int

const (
	// LawHardware forwards setpoints to a controller that closes the loop itself.
	LawHardware LawKind = iota
	// LawSimulated closes the loop in software and applies the resulting voltage.
	LawSimulated
	// LawDisabled accepts setpoints and actuates nothing.
	LawDisabled
)

func (k LawKind) String() string {
	switch k {
	case LawHardware:
		return "hardware"
	case LawSimulated:
		return "simulated"
	case LawDisabled:
		return "disabled"
	}
	return "unknown"
}

// LawForMode returns the control law used by actuators of the given mode.
func LawForMode(m Mode) LawKind {
	switch m {
	case ModeHardware:
		return LawHardware
	case ModeSimulated:
		return LawSimulated
	default:
		return LawDisabled
	}
}

// Law maps a setpoint and a measurement to a backend command. Only LawSimulated carries state.
type Law struct {
	kind LawKind
	pid  *control.PID
}

func newLaw(kind LawKind, gains Gains) *Law {
	l := &Law{kind: kind}
	if kind == LawSimulated {
		l.pid = control.NewPID(gains.KP, gains.KI, gains.KD)
	}
	return l
}

// Kind returns the variant of the law.
func (l *Law) Kind() LawKind {
	return l.kind
}

func (l *Law) reset() {
	if l.pid != nil {
		l.pid.Reset()
	}
}

func (l *Law) setGains(g Gains) {
	if l.pid != nil {
		l.pid.SetGains(g.KP, g.KI, g.KD)
	}
}

// voltsFor is the software control law: PID on the tracked quantity plus feedforward, clamped to
// the bus voltage.
func (l *Law) voltsFor(sp Setpoint, measured State, dt time.Duration) float64 {
	switch sp.Kind {
	case KindVoltage:
		return control.Clamp(sp.Volts, MaxVolts)
	case KindVelocity:
		out := l.pid.Next(sp.VelocityRadPerSec, measured.VelocityRadPerSec, dt)
		return control.Clamp(out+sp.FeedforwardVolts, MaxVolts)
	case KindPosition:
		out := l.pid.Next(sp.PositionRad, measured.PositionRad, dt)
		return control.Clamp(out+sp.FeedforwardVolts, MaxVolts)
	}
	return 0
}

func (l *Law) apply(backend Backend, sp Setpoint, measured State, dt time.Duration) error {
	switch l.kind {
	case LawDisabled:
		return nil
	case LawSimulated:
		if sp.Kind == KindStop {
			return backend.Stop()
		}
		return backend.SetVoltage(l.voltsFor(sp, measured, dt))
	case LawHardware:
		cl, ok := backend.(ClosedLoopBackend)
		if !ok {
			return errors.Errorf("hardware law needs a closed loop backend, got %T", backend)
		}
		switch sp.Kind {
		case KindVoltage:
			return cl.SetVoltage(sp.Volts)
		case KindVelocity:
			return cl.SetVelocity(sp.VelocityRadPerSec, sp.FeedforwardVolts)
		case KindPosition:
			return cl.SetPosition(sp.PositionRad, sp.FeedforwardVolts)
		default:
			return cl.Stop()
		}
	}
	return errors.Errorf("unknown control law %d", l.kind)
}
