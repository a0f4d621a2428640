package replay

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/mechctl/actuator"
	"go.viam.com/mechctl/sensor"
)

const maxLineBytes = 4 * 1024 * 1024

// Log plays recorded frames back one per tick. Once exhausted the last frame keeps repeating; an
// empty log reports zero states.
type Log struct {
	mu      sync.Mutex
	frames  []Frame
	next    int
	current Frame
}

// Read decodes a JSON lines log. Blank lines are skipped.
func Read(r io.Reader) (*Log, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	var frames []Frame
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var f Frame
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, errors.Wrapf(err, "replay log line %d", line)
		}
		frames = append(frames, f)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "cannot read replay log")
	}
	return &Log{frames: frames}, nil
}

// Open reads the log at path.
func Open(path string) (*Log, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open replay log %q", path)
	}
	defer goutils.UncheckedErrorFunc(f.Close)
	return Read(f)
}

// Len is the number of frames in the log.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.frames)
}

// Advance moves to the next frame. It reports false once the log is exhausted, in which case the
// current frame is left in place.
func (l *Log) Advance() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.next >= len(l.frames) {
		return false
	}
	l.current = l.frames[l.next]
	l.next++
	return true
}

// Current returns the frame being played.
func (l *Log) Current() Frame {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

func (l *Log) state(name string) actuator.State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current.States[name].Clone()
}

func (l *Log) sensor(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current.Sensors[name]
}

// Backend returns an actuator backend reporting the recorded state of the named actuator.
func (l *Log) Backend(name string) actuator.Backend {
	return &backend{log: l, name: name}
}

// Sensor returns a binary sensor reporting the recorded reading of the named sensor.
func (l *Log) Sensor(name string) sensor.Binary {
	return &binary{log: l, name: name}
}

type backend struct {
	log  *Log
	name string
}

func (b *backend) Refresh(ctx context.Context) (actuator.State, error) {
	return b.log.state(b.name), nil
}

func (b *backend) SetVoltage(float64) error { return nil }

func (b *backend) Stop() error { return nil }

type binary struct {
	log  *Log
	name string
}

func (s *binary) Name() string {
	return s.name
}

func (s *binary) Get(ctx context.Context) (bool, error) {
	return s.log.sensor(s.name), nil
}
