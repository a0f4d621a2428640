package robot

import (
	"sync"

	"github.com/pkg/errors"

	"go.viam.com/mechctl/task"
	"go.viam.com/mechctl/telemetry"
)

// DoNothing is the routine name that schedules nothing.
const DoNothing = "Do Nothing"

// Chooser holds the named autonomous routines and the one selected to run.
type Chooser struct {
	mu       sync.Mutex
	names    []string
	routines map[string]task.Task
	selected string
}

// NewChooser returns a chooser offering only DoNothing, which is selected.
func NewChooser() *Chooser {
	return &Chooser{
		names:    []string{DoNothing},
		routines: map[string]task.Task{DoNothing: nil},
		selected: DoNothing,
	}
}

// Add offers a routine under name.
func (c *Chooser) Add(name string, routine task.Task) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.routines[name]; ok {
		return errors.Errorf("routine %q already added", name)
	}
	c.names = append(c.names, name)
	c.routines[name] = routine
	return nil
}

// Select chooses the routine to run next.
func (c *Chooser) Select(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.routines[name]; !ok {
		return errors.Errorf("no routine named %q, options are %q", name, c.names)
	}
	c.selected = name
	return nil
}

// Selected returns the selected name and routine. The routine is nil for DoNothing.
func (c *Chooser) Selected() (string, task.Task) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected, c.routines[c.selected]
}

// Options lists routine names in the order they were added.
func (c *Chooser) Options() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.names...)
}

// Publish records the selection.
func (c *Chooser) Publish(pub telemetry.Publisher) {
	name, _ := c.Selected()
	pub.RecordString("Auto Choices/selected", name)
}
