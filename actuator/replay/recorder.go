package replay

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Recorder appends frames to a JSON lines log, one frame per line.
type Recorder struct {
	mu     sync.Mutex
	w      *bufio.Writer
	closer io.Closer
	tick   int64
	closed bool
}

// NewRecorder returns a recorder writing to w. The caller keeps ownership of w.
func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{w: bufio.NewWriter(w)}
}

// CreateRecorder truncates or creates the file at path and records into it.
func CreateRecorder(path string) (*Recorder, error) {
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot create replay log %q", path)
	}
	r := NewRecorder(f)
	r.closer = f
	return r, nil
}

// Record writes the frame. Frames with a zero Tick are numbered sequentially from 1.
func (r *Recorder) Record(f Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errors.New("replay recorder is closed")
	}
	r.tick++
	if f.Tick == 0 {
		f.Tick = r.tick
	}
	line, err := json.Marshal(f)
	if err != nil {
		return errors.Wrapf(err, "cannot encode frame %d", f.Tick)
	}
	if _, err := r.w.Write(line); err != nil {
		return errors.Wrapf(err, "cannot write frame %d", f.Tick)
	}
	return r.w.WriteByte('\n')
}

// Flush writes buffered frames through.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.w.Flush()
}

// Close flushes and, for recorders made by CreateRecorder, closes the file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	err := r.w.Flush()
	if r.closer != nil {
		err = multierr.Combine(err, r.closer.Close())
	}
	return err
}
