package telemetry

import (
	"testing"
	"time"

	"go.viam.com/test"
)

func TestTable(t *testing.T) {
	table := NewTable()
	table.RecordNumber("Shooter/TopSetpointRPM", 3000)
	table.RecordNumber("Shooter/TopSetpointRPM", 2500)
	table.RecordString("Climber/Mode", "Manual")
	table.RecordBool("Indexer/BeamBroken", true)

	v, ok := table.Number("Shooter/TopSetpointRPM")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, v, test.ShouldEqual, 2500.0)

	s, ok := table.String("Climber/Mode")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, s, test.ShouldEqual, "Manual")

	b, ok := table.Bool("Indexer/BeamBroken")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, b, test.ShouldBeTrue)

	_, ok = table.Number("missing")
	test.That(t, ok, test.ShouldBeFalse)

	test.That(t, table.Keys(), test.ShouldResemble,
		[]string{"Climber/Mode", "Indexer/BeamBroken", "Shooter/TopSetpointRPM"})
}

func TestLoopStats(t *testing.T) {
	ls := NewLoopStats(20*time.Millisecond, 4)
	test.That(t, ls.Summary(), test.ShouldResemble, LoopSummary{})

	for _, ms := range []int{5, 10, 30, 15, 10} {
		ls.Observe(time.Duration(ms) * time.Millisecond)
	}
	s := ls.Summary()
	test.That(t, s.Ticks, test.ShouldEqual, int64(5))
	test.That(t, s.Overruns, test.ShouldEqual, int64(1))
	// window holds the last four: 10, 30, 15, 10
	test.That(t, s.MeanMs, test.ShouldAlmostEqual, 16.25)
	test.That(t, s.MaxMs, test.ShouldAlmostEqual, 30.0)

	table := NewTable()
	ls.Publish(table, "Loop")
	overruns, ok := table.Number("Loop/Overruns")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, overruns, test.ShouldEqual, 1.0)
}
