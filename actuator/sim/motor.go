// Package sim implements a physics model of a geared DC motor mechanism used as the backend of
// simulated actuators.
package sim

import "github.com/pkg/errors"

// Motor holds the datasheet constants of a DC motor gearbox input, for Count identical motors
// sharing one shaft.
type Motor struct {
	NominalVolts       float64
	StallTorqueNm      float64
	StallCurrentAmps   float64
	FreeCurrentAmps    float64
	FreeSpeedRadPerSec float64
	Count              int
}

// NEO returns the constants of a REV NEO brushless motor.
func NEO(count int) Motor {
	return Motor{
		NominalVolts:       12,
		StallTorqueNm:      2.6,
		StallCurrentAmps:   105,
		FreeCurrentAmps:    1.8,
		FreeSpeedRadPerSec: 5676 * 2 * 3.141592653589793 / 60,
		Count:              count,
	}
}

// Falcon500 returns the constants of a Falcon 500 motor.
func Falcon500(count int) Motor {
	return Motor{
		NominalVolts:       12,
		StallTorqueNm:      4.69,
		StallCurrentAmps:   257,
		FreeCurrentAmps:    1.5,
		FreeSpeedRadPerSec: 6380 * 2 * 3.141592653589793 / 60,
		Count:              count,
	}
}

// Validate ensures the constants describe a physical motor.
func (m Motor) Validate() error {
	switch {
	case m.Count <= 0:
		return errors.Errorf("motor count must be positive got %d", m.Count)
	case m.NominalVolts <= 0, m.StallTorqueNm <= 0, m.StallCurrentAmps <= 0, m.FreeSpeedRadPerSec <= 0:
		return errors.New("motor constants must be positive")
	case m.FreeCurrentAmps < 0 || m.FreeCurrentAmps >= m.StallCurrentAmps:
		return errors.Errorf("free current %f must be in [0, stall current)", m.FreeCurrentAmps)
	}
	return nil
}

// ResistanceOhms is the winding resistance of the motor group.
func (m Motor) ResistanceOhms() float64 {
	return m.NominalVolts / (m.StallCurrentAmps * float64(m.Count))
}

// KvRadPerSecPerVolt is the velocity constant.
func (m Motor) KvRadPerSecPerVolt() float64 {
	return m.FreeSpeedRadPerSec / (m.NominalVolts - m.ResistanceOhms()*m.FreeCurrentAmps*float64(m.Count))
}

// KtNmPerAmp is the torque constant.
func (m Motor) KtNmPerAmp() float64 {
	return m.StallTorqueNm / m.StallCurrentAmps
}
