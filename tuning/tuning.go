// Package tuning holds named numbers that can be changed while the robot runs. Updates are queued
// from any goroutine and take effect when the control loop calls Poll, once per tick.
package tuning

import (
	"sort"
	"sync"

	"go.viam.com/mechctl/logging"
	"go.viam.com/mechctl/telemetry"
)

// DefaultBufferSize is the number of updates that can be queued between two polls.
const DefaultBufferSize = 64

// Update sets the tunable Key to Value.
type Update struct {
	Key   string
	Value float64
}

// Registry owns every tunable number of a robot.
type Registry struct {
	logger  logging.Logger
	updates chan Update

	mu      sync.Mutex
	numbers map[string]*Number
}

// NewRegistry returns an empty registry queueing up to bufferSize updates between polls.
func NewRegistry(logger logging.Logger, bufferSize int) *Registry {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Registry{
		logger:  logger,
		updates: make(chan Update, bufferSize),
		numbers: map[string]*Number{},
	}
}

// Number returns the tunable registered under key, registering it with def when it does not exist
// yet. The default of an existing tunable is left alone.
func (r *Registry) Number(key string, def float64) *Number {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n, ok := r.numbers[key]; ok {
		return n
	}
	n := &Number{key: key, value: def, def: def}
	r.numbers[key] = n
	return n
}

// Set queues an update for the next Poll. It never blocks; when the queue is full the update is
// dropped and false is returned.
func (r *Registry) Set(key string, value float64) bool {
	select {
	case r.updates <- Update{Key: key, Value: value}:
		return true
	default:
		r.logger.Warnw("tunable update queue full, dropping update", "key", key, "value", value)
		return false
	}
}

// Poll applies every queued update and returns how many changed a value. Updates for keys nobody
// registered create the tunable so a later Number call sees the value.
func (r *Registry) Poll() int {
	changed := 0
	for {
		select {
		case u := <-r.updates:
			n := r.Number(u.Key, u.Value)
			if n.set(u.Value) {
				changed++
				r.logger.Debugw("tunable changed", "key", u.Key, "value", u.Value)
			}
		default:
			return changed
		}
	}
}

// Keys returns the registered keys in sorted order.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.numbers))
	for k := range r.numbers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Publish records every tunable under Tuning/.
func (r *Registry) Publish(pub telemetry.Publisher) {
	for _, k := range r.Keys() {
		pub.RecordNumber("Tuning/"+k, r.Number(k, 0).Get())
	}
}

// Number is one tunable value.
type Number struct {
	key string
	def float64

	mu      sync.Mutex
	value   float64
	changed bool
}

// Key returns the name of the tunable.
func (n *Number) Key() string {
	return n.key
}

// Default returns the value the tunable was registered with.
func (n *Number) Default() float64 {
	return n.def
}

// Get returns the current value.
func (n *Number) Get() float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.value
}

// HasChanged reports whether the value changed since the last call.
func (n *Number) HasChanged() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := n.changed
	n.changed = false
	return c
}

func (n *Number) set(v float64) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if v == n.value {
		return false
	}
	n.value = v
	n.changed = true
	return true
}
