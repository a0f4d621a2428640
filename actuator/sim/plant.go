package sim

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/mechctl/actuator"
)

// substeps is how many Euler steps one loop period is split into.
const substeps = 10

// Config describes a mechanism driven through a gearbox.
type Config struct {
	Motor Motor
	// Gearing is motor revolutions per output revolution.
	Gearing float64
	// MOIKgM2 is the moment of inertia seen at the output.
	MOIKgM2 float64
	// Period is the time the plant advances on every Refresh.
	Period time.Duration
}

// Plant is a linear state space model x' = Ax + Bu of a geared DC motor with state
// x = [position, velocity] at the output shaft and input u = applied volts.
type Plant struct {
	mu      sync.Mutex
	cfg     Config
	a       *mat.Dense
	b       *mat.VecDense
	x       *mat.VecDense
	volts   float64
	amps    float64
	stopped bool
}

var _ actuator.Backend = (*Plant)(nil)

// NewPlant builds the state space model of the mechanism.
func NewPlant(cfg Config) (*Plant, error) {
	if err := cfg.Motor.Validate(); err != nil {
		return nil, err
	}
	if cfg.Gearing <= 0 {
		return nil, errors.Errorf("gearing must be positive got %f", cfg.Gearing)
	}
	if cfg.MOIKgM2 <= 0 {
		return nil, errors.Errorf("moment of inertia must be positive got %f", cfg.MOIKgM2)
	}
	if cfg.Period <= 0 {
		return nil, errors.New("plant period must be positive")
	}
	m := cfg.Motor
	g := cfg.Gearing
	r := m.ResistanceOhms()
	kt := m.KtNmPerAmp() * float64(m.Count)
	kv := m.KvRadPerSecPerVolt()
	return &Plant{
		cfg: cfg,
		a: mat.NewDense(2, 2, []float64{
			0, 1,
			0, -g * g * kt / (kv * r * cfg.MOIKgM2),
		}),
		b:       mat.NewVecDense(2, []float64{0, g * kt / (r * cfg.MOIKgM2)}),
		x:       mat.NewVecDense(2, nil),
		stopped: true,
	}, nil
}

// Refresh advances the model by one period with the last applied voltage and returns the new state.
func (p *Plant) Refresh(ctx context.Context) (actuator.State, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.step(p.cfg.Period)
	return p.state(), nil
}

// SetVoltage applies a voltage, clamped to the motor's nominal voltage.
func (p *Plant) SetVoltage(volts float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	nominal := p.cfg.Motor.NominalVolts
	p.volts = math.Max(-nominal, math.Min(nominal, volts))
	p.stopped = false
	return nil
}

// Stop removes the applied voltage; the mechanism coasts.
func (p *Plant) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volts = 0
	p.stopped = true
	return nil
}

// SetState overrides position and velocity, for resetting a scenario.
func (p *Plant) SetState(positionRad, velocityRadPerSec float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.x.SetVec(0, positionRad)
	p.x.SetVec(1, velocityRadPerSec)
}

func (p *Plant) step(d time.Duration) {
	h := d.Seconds() / substeps
	xdot := mat.NewVecDense(2, nil)
	for i := 0; i < substeps; i++ {
		xdot.MulVec(p.a, p.x)
		xdot.AddScaledVec(xdot, p.volts, p.b)
		p.x.AddScaledVec(p.x, h, xdot)
	}
	m := p.cfg.Motor
	motorSpeed := p.x.AtVec(1) * p.cfg.Gearing
	p.amps = math.Abs((p.volts - motorSpeed/m.KvRadPerSecPerVolt()) / m.ResistanceOhms())
	if p.stopped {
		p.amps = 0
	}
}

func (p *Plant) state() actuator.State {
	return actuator.State{
		PositionRad:       p.x.AtVec(0),
		VelocityRadPerSec: p.x.AtVec(1),
		AppliedVolts:      p.volts,
		CurrentAmps:       []float64{p.amps},
	}
}
