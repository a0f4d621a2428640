package subsystem

import (
	"context"
	"time"

	"go.viam.com/mechctl/actuator"
	"go.viam.com/mechctl/actuator/sim"
	"go.viam.com/mechctl/control"
	"go.viam.com/mechctl/logging"
	"go.viam.com/mechctl/sensor"
	"go.viam.com/mechctl/telemetry"
	"go.viam.com/mechctl/tuning"
)

// Indexer device names.
const (
	IndexerRoller    = "Indexer/Roller"
	IndexerBeamBreak = "Indexer/BeamBreak"
)

// IndexerSpec returns the roller spec for a loop period.
func IndexerSpec(period time.Duration) ActuatorSpec {
	return ActuatorSpec{
		Name:          IndexerRoller,
		HardwareGains: actuator.Gains{KP: 0.0005},
		SimGains:      actuator.Gains{KP: 0.05},
		Plant:         sim.Config{Motor: sim.NEO(1), Gearing: 3, MOIKgM2: 0.002, Period: period},
	}
}

// Indexer feeds game pieces to the shooter. A beam break reports when a piece is loaded.
type Indexer struct {
	base
	roller *actuator.Actuator
	beam   sensor.Binary
	ff     control.SimpleFeedforward

	broken        bool
	setpointRPM   float64
	sensorFaulted bool
}

var _ Subsystem = (*Indexer)(nil)

// NewIndexer builds the indexer for a mode.
func NewIndexer(
	mode actuator.Mode,
	period time.Duration,
	roller actuator.Backend,
	beam sensor.Binary,
	tunables *tuning.Registry,
	logger logging.Logger,
) (*Indexer, error) {
	i := &Indexer{base: newBase("Indexer", logger), beam: beam}
	if mode == actuator.ModeSimulated {
		i.ff = control.SimpleFeedforward{KV: 0.06}
	} else {
		i.ff = control.SimpleFeedforward{KS: 0.2, KV: 0.06}
	}
	var err error
	if i.roller, err = i.add(mode, IndexerSpec(period), roller, nil, tunables); err != nil {
		return nil, err
	}
	return i, nil
}

// RunVelocity runs the roller closed loop.
func (i *Indexer) RunVelocity(rpm float64) {
	v := RPMToRadPerSec(rpm)
	i.roller.Drive(actuator.VelocitySetpoint(v, i.ff.Calculate(v)))
	i.setpointRPM = rpm
}

// Stop stops the roller.
func (i *Indexer) Stop() {
	i.roller.Stop()
	i.setpointRPM = 0
}

// BeamBroken returns the beam break reading taken this tick.
func (i *Indexer) BeamBroken() bool {
	return i.broken
}

// Update measures the roller and samples the beam break. A failed read counts as no piece.
func (i *Indexer) Update(ctx context.Context) {
	i.base.Update(ctx)
	if i.beam == nil {
		i.broken = false
		return
	}
	broken, err := i.beam.Get(ctx)
	if err != nil {
		if !i.sensorFaulted {
			i.logger.Warnw("cannot read beam break", "sensor", i.beam.Name(), "error", err)
		}
		i.sensorFaulted = true
		i.broken = false
		return
	}
	i.sensorFaulted = false
	i.broken = broken
}

// Publish records the roller and the beam break.
func (i *Indexer) Publish(pub telemetry.Publisher) {
	i.base.Publish(pub)
	pub.RecordNumber("Indexer/SetpointRPM", i.setpointRPM)
	pub.RecordBool(IndexerBeamBreak, i.broken)
}
