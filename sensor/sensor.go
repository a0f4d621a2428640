// Package sensor defines the binary sensors subsystems read once per tick, such as beam breaks
// and limit switches.
package sensor

import (
	"context"
	"sync"
)

// A Binary sensor reports a single on/off reading.
type Binary interface {
	// Name identifies the sensor in telemetry and replay logs.
	Name() string

	// Get returns the current reading.
	Get(ctx context.Context) (bool, error)
}

// Switch is a Binary sensor whose reading is set in software. It stands in for a digital input
// in simulation and tests.
type Switch struct {
	mu    sync.Mutex
	name  string
	value bool
	err   error
}

var _ Binary = (*Switch)(nil)

// NewSwitch returns a switch that reads false.
func NewSwitch(name string) *Switch {
	return &Switch{name: name}
}

// Name returns the name of the switch.
func (s *Switch) Name() string {
	return s.name
}

// Get returns the last value set, or the injected error.
func (s *Switch) Get(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	return s.value, nil
}

// Set changes the reading.
func (s *Switch) Set(value bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = value
}

// SetError makes Get fail with err until it is cleared with nil.
func (s *Switch) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Inverted reads the negation of another sensor, for normally closed wiring.
type Inverted struct {
	Binary
}

// Get returns the negated reading.
func (i Inverted) Get(ctx context.Context) (bool, error) {
	v, err := i.Binary.Get(ctx)
	if err != nil {
		return false, err
	}
	return !v, nil
}
