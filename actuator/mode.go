package actuator

import (
	"strings"

	"github.com/pkg/errors"
)

// Mode is the execution environment an actuator runs in. It is chosen once at process start and
// never changes afterwards.
type Mode int

const (
	// ModeHardware drives real motor controllers that run their own closed loop.
	ModeHardware Mode = iota
	// ModeSimulated runs a software PID against a physics model.
	ModeSimulated
	// ModeReplay reproduces recorded measurements and never actuates.
	ModeReplay
)

func (m Mode) String() string {
	switch m {
	case ModeHardware:
		return "hardware"
	case ModeSimulated:
		return "sim"
	case ModeReplay:
		return "replay"
	}
	return "unknown"
}

// ParseMode parses the config representation of a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "hardware", "real":
		return ModeHardware, nil
	case "sim", "simulated", "simulation":
		return ModeSimulated, nil
	case "replay":
		return ModeReplay, nil
	}
	return ModeHardware, errors.Errorf("unknown execution mode %q", s)
}
