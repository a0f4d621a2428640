package replay

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"go.viam.com/test"

	"go.viam.com/mechctl/actuator"
	"go.viam.com/mechctl/logging"
)

func recordFrames(t *testing.T, r *Recorder) {
	t.Helper()
	for i := 1; i <= 3; i++ {
		err := r.Record(Frame{
			States:   map[string]actuator.State{"Indexer": {PositionRad: float64(i), CurrentAmps: []float64{1}}},
			Sensors:  map[string]bool{"BeamBreak": i == 2},
			Commands: map[string]string{"Indexer": "stop"},
		})
		test.That(t, err, test.ShouldBeNil)
	}
}

func TestRecordAndPlayBack(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	r := NewRecorder(&buf)
	recordFrames(t, r)
	test.That(t, r.Close(), test.ShouldBeNil)
	test.That(t, r.Record(Frame{}), test.ShouldNotBeNil)
	test.That(t, strings.Count(buf.String(), "\n"), test.ShouldEqual, 3)

	l, err := Read(&buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, l.Len(), test.ShouldEqual, 3)

	b := l.Backend("Indexer")
	s := l.Sensor("BeamBreak")
	test.That(t, s.Name(), test.ShouldEqual, "BeamBreak")

	// nothing played yet
	st, err := b.Refresh(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, st.PositionRad, test.ShouldEqual, 0.0)

	var positions []float64
	var beams []bool
	for l.Advance() {
		st, err := b.Refresh(ctx)
		test.That(t, err, test.ShouldBeNil)
		positions = append(positions, st.PositionRad)
		v, err := s.Get(ctx)
		test.That(t, err, test.ShouldBeNil)
		beams = append(beams, v)
	}
	test.That(t, positions, test.ShouldResemble, []float64{1, 2, 3})
	test.That(t, beams, test.ShouldResemble, []bool{false, true, false})
	test.That(t, l.Current().Tick, test.ShouldEqual, int64(3))

	// exhausted logs keep the last frame
	test.That(t, l.Advance(), test.ShouldBeFalse)
	st, err = b.Refresh(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, st.PositionRad, test.ShouldEqual, 3.0)

	missing, err := l.Backend("Shooter/Top").Refresh(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, missing, test.ShouldResemble, actuator.State{})
}

func TestReplayDrivesActuator(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	r := NewRecorder(&buf)
	recordFrames(t, r)
	test.That(t, r.Flush(), test.ShouldBeNil)
	l, err := Read(&buf)
	test.That(t, err, test.ShouldBeNil)

	a, err := actuator.New(actuator.Config{Name: "Indexer", Mode: actuator.ModeReplay}, l.Backend("Indexer"), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	l.Advance()
	l.Advance()
	a.Update(ctx)
	a.Drive(actuator.VoltageSetpoint(12))
	a.Apply(0)
	test.That(t, a.Measure().PositionRad, test.ShouldEqual, 2.0)
	test.That(t, a.Command(), test.ShouldResemble, actuator.VoltageSetpoint(12))
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "match.jsonl")
	r, err := CreateRecorder(path)
	test.That(t, err, test.ShouldBeNil)
	recordFrames(t, r)
	test.That(t, r.Close(), test.ShouldBeNil)
	test.That(t, r.Close(), test.ShouldBeNil)

	l, err := Open(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, l.Len(), test.ShouldEqual, 3)

	_, err = Open(filepath.Join(t.TempDir(), "missing.jsonl"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestReadRejectsGarbage(t *testing.T) {
	_, err := Read(strings.NewReader("{\"tick\":1}\n\nnot json\n"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "line 3")

	l, err := Read(strings.NewReader(""))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, l.Advance(), test.ShouldBeFalse)
}
