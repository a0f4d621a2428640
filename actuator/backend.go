package actuator

import "context"

// A Backend is whatever sits under an actuator: a motor controller on the bus, a physics model, or
// a recorded log. Refresh is called once per tick before any task runs.
type Backend interface {
	// Refresh reads a new measurement snapshot.
	Refresh(ctx context.Context) (State, error)

	// SetVoltage applies an open loop voltage.
	SetVoltage(volts float64) error

	// Stop removes drive from the mechanism.
	Stop() error
}

// A ClosedLoopBackend runs velocity and position control itself, like a smart motor controller
// with a hardware-resident PID.
type ClosedLoopBackend interface {
	Backend

	// SetVelocity runs the controller's velocity loop with an additional feedforward voltage.
	SetVelocity(velocityRadPerSec, ffVolts float64) error

	// SetPosition runs the controller's position loop with an additional feedforward voltage.
	SetPosition(positionRad, ffVolts float64) error

	// ConfigurePID pushes gains to the controller.
	ConfigurePID(gains Gains) error
}
