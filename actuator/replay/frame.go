// Package replay records every tick's measurements to a JSON lines log and plays such a log back
// as the backend of replay mode actuators and sensors.
package replay

import "go.viam.com/mechctl/actuator"

// Frame is everything measured and commanded during one tick.
type Frame struct {
	Tick     int64                     `json:"tick"`
	States   map[string]actuator.State `json:"states,omitempty"`
	Sensors  map[string]bool           `json:"sensors,omitempty"`
	Commands map[string]string         `json:"commands,omitempty"`
}
