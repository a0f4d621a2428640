package tuning

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.viam.com/test"

	"go.viam.com/mechctl/logging"
	"go.viam.com/mechctl/telemetry"
)

func TestNumberUpdatesOnPoll(t *testing.T) {
	r := NewRegistry(logging.NewTestLogger(t), 0)
	kp := r.Number("Shooter/TopKP", 0.1)
	test.That(t, kp.Key(), test.ShouldEqual, "Shooter/TopKP")
	test.That(t, kp.Get(), test.ShouldEqual, 0.1)
	test.That(t, kp.HasChanged(), test.ShouldBeFalse)
	test.That(t, r.Number("Shooter/TopKP", 9), test.ShouldEqual, kp)

	test.That(t, r.Set("Shooter/TopKP", 0.2), test.ShouldBeTrue)
	// not visible until the next poll
	test.That(t, kp.Get(), test.ShouldEqual, 0.1)
	test.That(t, r.Poll(), test.ShouldEqual, 1)
	test.That(t, kp.Get(), test.ShouldEqual, 0.2)
	test.That(t, kp.Default(), test.ShouldEqual, 0.1)
	test.That(t, kp.HasChanged(), test.ShouldBeTrue)
	test.That(t, kp.HasChanged(), test.ShouldBeFalse)

	r.Set("Shooter/TopKP", 0.2)
	test.That(t, r.Poll(), test.ShouldEqual, 0)
	test.That(t, kp.HasChanged(), test.ShouldBeFalse)
}

func TestUnknownKeyIsRegistered(t *testing.T) {
	r := NewRegistry(logging.NewTestLogger(t), 4)
	r.Set("Climber/ForwardLimit", 30)
	r.Poll()
	test.That(t, r.Keys(), test.ShouldResemble, []string{"Climber/ForwardLimit"})
	test.That(t, r.Number("Climber/ForwardLimit", 25).Get(), test.ShouldEqual, 30.0)

	table := telemetry.NewTable()
	r.Publish(table)
	v, ok := table.Number("Tuning/Climber/ForwardLimit")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, v, test.ShouldEqual, 30.0)
}

func TestFullQueueDrops(t *testing.T) {
	r := NewRegistry(logging.NewTestLogger(t), 2)
	test.That(t, r.Set("a", 1), test.ShouldBeTrue)
	test.That(t, r.Set("a", 2), test.ShouldBeTrue)
	test.That(t, r.Set("a", 3), test.ShouldBeFalse)
	r.Poll()
	test.That(t, r.Number("a", 0).Get(), test.ShouldEqual, 2.0)
}

func TestWatchFile(t *testing.T) {
	logger := logging.NewTestLogger(t)
	path := filepath.Join(t.TempDir(), "tunables.json")
	test.That(t, os.WriteFile(path, []byte(`{"Shooter/TopKP": 0.3, "Indexer/RPM": "1500"}`), 0o600), test.ShouldBeNil)

	r := NewRegistry(logger, 0)
	fw, err := WatchFile(context.Background(), path, r, logger)
	test.That(t, err, test.ShouldBeNil)
	defer func() {
		test.That(t, fw.Close(), test.ShouldBeNil)
	}()
	r.Poll()
	test.That(t, r.Number("Shooter/TopKP", 0).Get(), test.ShouldEqual, 0.3)
	test.That(t, r.Number("Indexer/RPM", 0).Get(), test.ShouldEqual, 1500.0)

	test.That(t, os.WriteFile(path, []byte(`{"Shooter/TopKP": 0.4}`), 0o600), test.ShouldBeNil)
	kp := r.Number("Shooter/TopKP", 0)
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) && kp.Get() != 0.4 {
		r.Poll()
		time.Sleep(10 * time.Millisecond)
	}
	test.That(t, kp.Get(), test.ShouldEqual, 0.4)
}

func TestWatchFileErrors(t *testing.T) {
	logger := logging.NewTestLogger(t)
	dir := t.TempDir()
	r := NewRegistry(logger, 0)

	_, err := WatchFile(context.Background(), filepath.Join(dir, "missing.json"), r, logger)
	test.That(t, err, test.ShouldNotBeNil)

	bad := filepath.Join(dir, "bad.json")
	test.That(t, os.WriteFile(bad, []byte(`{"kp": "fast"}`), 0o600), test.ShouldBeNil)
	_, err = WatchFile(context.Background(), bad, r, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "must map names to numbers")
}
