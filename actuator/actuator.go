// Package actuator defines a single controllable mechanism (motor plus sensor) whose control law
// is chosen by execution mode: hardware, simulated or replay.
//
// An actuator is driven in two phases every tick. Update reads a measurement snapshot from the
// backend before any task runs; tasks then call Drive, which only buffers the setpoint; Apply
// pushes the last buffered setpoint through the control law once all tasks have run.
package actuator

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"go.viam.com/mechctl/logging"
	"go.viam.com/mechctl/telemetry"
)

// Config describes the construction parameters of an actuator.
type Config struct {
	Name  string
	Mode  Mode
	Gains Gains
	// Limits are the soft travel limits, nil means unlimited.
	Limits *Limits
}

// Actuator wraps one physical, simulated or replayed motor.
type Actuator struct {
	mu      sync.Mutex
	name    string
	mode    Mode
	logger  logging.Logger
	backend Backend
	law     *Law
	gains   Gains

	state      State
	command    Setpoint
	pending    Setpoint
	hasPending bool
	faulted    bool

	softLimitEnabled bool
	limits           Limits
}

// New returns an actuator for the given mode. Hardware mode requires a ClosedLoopBackend and
// pushes the configured gains to it once.
func New(cfg Config, backend Backend, logger logging.Logger) (*Actuator, error) {
	if cfg.Name == "" {
		return nil, errors.New("actuator needs a name")
	}
	if backend == nil {
		return nil, errors.Errorf("actuator %s needs a backend", cfg.Name)
	}
	limits := NoLimits()
	if cfg.Limits != nil {
		if err := cfg.Limits.Validate(); err != nil {
			return nil, errors.Wrapf(err, "actuator %s", cfg.Name)
		}
		limits = *cfg.Limits
	}
	kind := LawForMode(cfg.Mode)
	a := &Actuator{
		name:    cfg.Name,
		mode:    cfg.Mode,
		logger:  logger.With("actuator", cfg.Name),
		backend: backend,
		law:     newLaw(kind, cfg.Gains),
		gains:   cfg.Gains,
		limits:  limits,
	}
	if kind == LawHardware {
		cl, ok := backend.(ClosedLoopBackend)
		if !ok {
			return nil, errors.Errorf("actuator %s in hardware mode needs a closed loop backend, got %T", cfg.Name, backend)
		}
		if err := cl.ConfigurePID(cfg.Gains); err != nil {
			a.markFaulted(err)
		}
	}
	return a, nil
}

// Name returns the name of the actuator.
func (a *Actuator) Name() string {
	return a.name
}

// Mode returns the execution mode the actuator was built for.
func (a *Actuator) Mode() Mode {
	return a.mode
}

// Law returns the control law variant in use.
func (a *Actuator) Law() LawKind {
	return a.law.Kind()
}

// Measure returns this tick's measurement snapshot. It has no side effects.
func (a *Actuator) Measure() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Clone()
}

// Command returns the setpoint currently in effect, including one buffered this tick.
func (a *Actuator) Command() Setpoint {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.hasPending {
		return a.pending
	}
	return a.command
}

// Faulted reports whether the backend is currently unreachable.
func (a *Actuator) Faulted() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.faulted
}

// Gains returns the gains in use.
func (a *Actuator) Gains() Gains {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gains
}

// Drive buffers a setpoint to be applied at the end of the tick. A later call in the same tick
// replaces an earlier one. Drive never blocks and is dropped while the backend is faulted.
func (a *Actuator) Drive(sp Setpoint) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.faulted {
		return
	}
	a.pending = a.gate(sp)
	a.hasPending = true
}

// Stop is Drive(StopSetpoint()).
func (a *Actuator) Stop() {
	a.Drive(StopSetpoint())
}

// Update refreshes the measurement snapshot from the backend. On error the last known state is
// kept and the actuator rejects commands until a refresh succeeds.
func (a *Actuator) Update(ctx context.Context) {
	st, err := a.backend.Refresh(ctx)
	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		a.markFaulted(err)
		return
	}
	if a.faulted {
		a.faulted = false
		// the controller may still hold its pre-fault command, so the stop has to go out
		a.pending = StopSetpoint()
		a.hasPending = true
		a.law.reset()
		a.logger.Info("backend recovered")
	}
	a.state = st.Clone()
}

// Apply pushes the setpoint in effect through the control law. Hardware backends only receive a
// command when it changed, since the controller holds its last command. The software law runs
// every tick.
func (a *Actuator) Apply(dt time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.faulted {
		a.hasPending = false
		return
	}
	sp := a.command
	fresh := a.hasPending
	if fresh {
		sp = a.pending
		a.hasPending = false
	}
	gated := a.gate(sp)
	if !fresh && gated == a.command && a.law.Kind() != LawSimulated {
		return
	}
	if gated.ClosedLoop() && gated.Kind != a.command.Kind {
		// clears integral windup carried over from a stop or from the other loop
		a.law.reset()
	}
	a.command = gated
	if err := a.law.apply(a.backend, gated, a.state, dt); err != nil {
		a.markFaulted(err)
	}
}

// ConfigurePID replaces the gains. Hardware controllers get the new gains pushed immediately.
func (a *Actuator) ConfigurePID(g Gains) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.gains = g
	a.law.setGains(g)
	if a.law.Kind() != LawHardware {
		return
	}
	//nolint:forcetypeassert
	if err := a.backend.(ClosedLoopBackend).ConfigurePID(g); err != nil {
		a.markFaulted(err)
	}
}

// SetSoftLimitEnabled toggles soft limit gating.
func (a *Actuator) SetSoftLimitEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.softLimitEnabled = enabled
}

// SoftLimitEnabled reports whether soft limit gating is on.
func (a *Actuator) SoftLimitEnabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.softLimitEnabled
}

// SetSoftLimits replaces the soft limits. It takes effect on the next Drive or Apply.
func (a *Actuator) SetSoftLimits(l Limits) error {
	if err := l.Validate(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.limits = l
	return nil
}

// SoftLimits returns the configured soft limits.
func (a *Actuator) SoftLimits() Limits {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.limits
}

// Publish records the measurement and command under the actuator's name.
func (a *Actuator) Publish(pub telemetry.Publisher) {
	a.mu.Lock()
	st := a.state
	cmd := a.command
	faulted := a.faulted
	a.mu.Unlock()

	pub.RecordNumber(a.name+"/PositionRad", st.PositionRad)
	pub.RecordNumber(a.name+"/VelocityRadPerSec", st.VelocityRadPerSec)
	pub.RecordNumber(a.name+"/AppliedVolts", st.AppliedVolts)
	var amps float64
	for _, c := range st.CurrentAmps {
		amps += c
	}
	pub.RecordNumber(a.name+"/CurrentAmps", amps)
	pub.RecordString(a.name+"/Command", cmd.String())
	pub.RecordBool(a.name+"/Faulted", faulted)
}

// gate converts a setpoint that pushes further past a crossed soft limit into a stop. Must hold mu.
func (a *Actuator) gate(sp Setpoint) Setpoint {
	if !a.softLimitEnabled {
		return sp
	}
	pos := a.state.PositionRad
	switch dir := sp.direction(pos); {
	case dir > 0 && pos >= a.limits.Forward:
		return StopSetpoint()
	case dir < 0 && pos <= a.limits.Reverse:
		return StopSetpoint()
	}
	return sp
}

// markFaulted must hold mu.
func (a *Actuator) markFaulted(err error) {
	if !a.faulted {
		a.logger.Warnw("backend fault, holding last known state", "error", err)
	}
	a.faulted = true
	a.hasPending = false
}
