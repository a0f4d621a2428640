// Package input samples operator controllers once per tick and turns button edges into scheduler
// requests.
package input

import (
	"context"
	"sort"
	"sync"
	"time"
)

// A Source is a logical controller: a gamepad, or a collection of digital and analog inputs.
type Source interface {
	// Sample returns the state of every control right now.
	Sample(ctx context.Context) (Sample, error)
}

// EventType is the kind of change between two samples.
type EventType uint8

// Event types.
const (
	ButtonDown EventType = iota + 1
	ButtonUp
	PositionChangeAbs
)

func (e EventType) String() string {
	switch e {
	case ButtonDown:
		return "ButtonDown"
	case ButtonUp:
		return "ButtonUp"
	case PositionChangeAbs:
		return "PositionChangeAbs"
	}
	return "Unknown"
}

// ControlCode identifies an axis or a button.
type ControlCode uint32

// Control codes of an Xbox style gamepad.
const (
	// Axes
	AbsoluteX  ControlCode = 1000
	AbsoluteY  ControlCode = 1001
	AbsoluteZ  ControlCode = 1002
	AbsoluteRX ControlCode = 1003
	AbsoluteRY ControlCode = 1004
	AbsoluteRZ ControlCode = 1005

	// Buttons
	ButtonSouth  ControlCode = 2000
	ButtonEast   ControlCode = 2001
	ButtonWest   ControlCode = 2002
	ButtonNorth  ControlCode = 2003
	ButtonLT     ControlCode = 2004
	ButtonRT     ControlCode = 2005
	ButtonLThumb ControlCode = 2006
	ButtonRThumb ControlCode = 2007
	ButtonSelect ControlCode = 2008
	ButtonStart  ControlCode = 2009
	ButtonMenu   ControlCode = 2010
	DPadUp       ControlCode = 2011
	DPadDown     ControlCode = 2012
	DPadLeft     ControlCode = 2013
	DPadRight    ControlCode = 2014
)

// Event is one change between two samples.
type Event struct {
	Time  time.Time
	Event EventType
	Code  ControlCode
	// Value is 0 or 1 for buttons, -1.0 to +1.0 for axes.
	Value float64
}

// Sample is the state of a controller at one instant. Missing controls read as released or
// centered.
type Sample struct {
	Axes    map[ControlCode]float64
	Buttons map[ControlCode]bool
}

// Axis returns the position of an axis.
func (s Sample) Axis(code ControlCode) float64 {
	return s.Axes[code]
}

// Button reports whether a button is held.
func (s Sample) Button(code ControlCode) bool {
	return s.Buttons[code]
}

// Events lists the changes from prev to s, ordered by control code.
func (s Sample) Events(prev Sample, now time.Time) []Event {
	var events []Event
	for _, code := range codes(s.Buttons, prev.Buttons) {
		cur, was := s.Buttons[code], prev.Buttons[code]
		switch {
		case cur && !was:
			events = append(events, Event{Time: now, Event: ButtonDown, Code: code, Value: 1})
		case !cur && was:
			events = append(events, Event{Time: now, Event: ButtonUp, Code: code, Value: 0})
		}
	}
	for _, code := range codes(s.Axes, prev.Axes) {
		if cur := s.Axes[code]; cur != prev.Axes[code] {
			events = append(events, Event{Time: now, Event: PositionChangeAbs, Code: code, Value: cur})
		}
	}
	return events
}

func codes[V any](a, b map[ControlCode]V) []ControlCode {
	seen := map[ControlCode]struct{}{}
	var out []ControlCode
	for _, m := range []map[ControlCode]V{a, b} {
		for c := range m {
			if _, ok := seen[c]; !ok {
				seen[c] = struct{}{}
				out = append(out, c)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Manual is a Source whose controls are set in software, for simulation and tests.
type Manual struct {
	mu      sync.Mutex
	axes    map[ControlCode]float64
	buttons map[ControlCode]bool
	err     error
}

var _ Source = (*Manual)(nil)

// NewManual returns a source with every control released.
func NewManual() *Manual {
	return &Manual{axes: map[ControlCode]float64{}, buttons: map[ControlCode]bool{}}
}

// Sample returns a copy of the current controls.
func (m *Manual) Sample(ctx context.Context) (Sample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return Sample{}, m.err
	}
	s := Sample{
		Axes:    make(map[ControlCode]float64, len(m.axes)),
		Buttons: make(map[ControlCode]bool, len(m.buttons)),
	}
	for k, v := range m.axes {
		s.Axes[k] = v
	}
	for k, v := range m.buttons {
		s.Buttons[k] = v
	}
	return s, nil
}

// SetAxis moves an axis, clamped to [-1, 1].
func (m *Manual) SetAxis(code ControlCode, value float64) {
	if value > 1 {
		value = 1
	} else if value < -1 {
		value = -1
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.axes[code] = value
}

// SetButton presses or releases a button.
func (m *Manual) SetButton(code ControlCode, held bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buttons[code] = held
}

// SetError makes Sample fail until cleared with nil.
func (m *Manual) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}
