// Package telemetry is the publication boundary: actuators, subsystems and tasks record named values
// once per tick and whatever dashboard is attached reads them.
package telemetry

import (
	"sort"
	"sync"
)

// Publisher accepts named values. Implementations must not block.
type Publisher interface {
	RecordNumber(key string, value float64)
	RecordString(key, value string)
	RecordBool(key string, value bool)
}

// Discard is a Publisher that drops everything.
var Discard Publisher = discard{}

type discard struct{}

func (discard) RecordNumber(string, float64) {}
func (discard) RecordString(string, string)  {}
func (discard) RecordBool(string, bool)      {}

// Table is an in-memory Publisher holding the latest value of every key.
type Table struct {
	mu      sync.Mutex
	numbers map[string]float64
	strs    map[string]string
	bools   map[string]bool
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{
		numbers: map[string]float64{},
		strs:    map[string]string{},
		bools:   map[string]bool{},
	}
}

// RecordNumber stores a number.
func (t *Table) RecordNumber(key string, value float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.numbers[key] = value
}

// RecordString stores a string.
func (t *Table) RecordString(key, value string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.strs[key] = value
}

// RecordBool stores a boolean.
func (t *Table) RecordBool(key string, value bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bools[key] = value
}

// Number returns the latest number recorded under key.
func (t *Table) Number(key string) (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.numbers[key]
	return v, ok
}

// String returns the latest string recorded under key.
func (t *Table) String(key string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.strs[key]
	return v, ok
}

// Bool returns the latest boolean recorded under key.
func (t *Table) Bool(key string) (bool, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.bools[key]
	return v, ok
}

// Keys returns every key recorded so far, sorted.
func (t *Table) Keys() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	keys := make([]string, 0, len(t.numbers)+len(t.strs)+len(t.bools))
	for k := range t.numbers {
		keys = append(keys, k)
	}
	for k := range t.strs {
		keys = append(keys, k)
	}
	for k := range t.bools {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
