// Package control implements the software control primitives used by simulated actuators.
package control

import (
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// PID is the standard implementation of a discrete PID controller. The zero value is a controller
// with all gains at zero.
type PID struct {
	mu    sync.Mutex
	kp    float64
	ki    float64
	kd    float64
	error float64
	int   float64
	// intLimit bounds the magnitude of the accumulated integral term, 0 means unbounded.
	intLimit float64
	primed   bool
}

// NewPID returns a PID controller with the given gains.
func NewPID(kp, ki, kd float64) *PID {
	return &PID{kp: kp, ki: ki, kd: kd}
}

// SetGains replaces the gains. The integrator is left untouched.
func (p *PID) SetGains(kp, ki, kd float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.kp, p.ki, p.kd = kp, ki, kd
}

// Gains returns the current gains.
func (p *PID) Gains() (kp, ki, kd float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.kp, p.ki, p.kd
}

// SetIntegralLimit bounds the integral contribution to [-limit, limit].
func (p *PID) SetIntegralLimit(limit float64) error {
	if limit < 0 {
		return errors.Errorf("integral limit must be positive got %f", limit)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.intLimit = limit
	return nil
}

// Next returns the controller output for one step of length dt. The derivative term is zero on the
// first step after a Reset so a setpoint change does not produce a derivative kick.
func (p *PID) Next(setpoint, measured float64, dt time.Duration) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	dtS := dt.Seconds()
	err := setpoint - measured
	if dtS <= 0 {
		return p.kp*err + p.int
	}
	p.int += p.ki * err * dtS
	if p.intLimit > 0 {
		p.int = math.Max(-p.intLimit, math.Min(p.intLimit, p.int))
	}
	var deriv float64
	if p.primed {
		deriv = (err - p.error) / dtS
	}
	p.error = err
	p.primed = true
	return p.kp*err + p.int + p.kd*deriv
}

// Integral returns the accumulated integral contribution.
func (p *PID) Integral() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.int
}

// Reset clears the integrator and derivative history.
func (p *PID) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.int = 0
	p.error = 0
	p.primed = false
}
