package tasks

import (
	"context"

	"go.viam.com/mechctl/subsystem"
	"go.viam.com/mechctl/task"
)

// Indexer is what indexer tasks drive.
type Indexer interface {
	task.Resource
	RunVelocity(rpm float64)
	Stop()
	BeamBroken() bool
}

var _ Indexer = (*subsystem.Indexer)(nil)

// IndexUntilLoaded feeds a game piece until the beam break sees it. The beam is checked every
// tick, so removing the piece starts the roller again. It never finishes.
type IndexUntilLoaded struct {
	indexer Indexer
	rpm     float64
}

// NewIndexUntilLoaded returns an automated indexer running at rpm.
func NewIndexUntilLoaded(i Indexer, rpm float64) *IndexUntilLoaded {
	return &IndexUntilLoaded{indexer: i, rpm: rpm}
}

// Name returns IndexUntilLoaded.
func (t *IndexUntilLoaded) Name() string {
	return "IndexUntilLoaded"
}

// Requirements is the indexer.
func (t *IndexUntilLoaded) Requirements() []task.Resource {
	return []task.Resource{t.indexer}
}

// Initialize stops the roller.
func (t *IndexUntilLoaded) Initialize(ctx context.Context) {
	t.indexer.Stop()
}

// Execute runs the roller while the beam is clear.
func (t *IndexUntilLoaded) Execute(ctx context.Context) {
	if t.indexer.BeamBroken() {
		t.indexer.Stop()
		return
	}
	t.indexer.RunVelocity(t.rpm)
}

// IsFinished is always false.
func (t *IndexUntilLoaded) IsFinished() bool {
	return false
}

// End leaves the roller as it is. Whoever takes the indexer next decides what it does.
func (t *IndexUntilLoaded) End(ctx context.Context, interrupted bool) {}

// RunIndexer runs the roller at the speed rpm returns when started and stops it on end.
func RunIndexer(name string, i Indexer, rpm func() float64) *task.FuncTask {
	return task.StartEnd(name,
		func(context.Context) { i.RunVelocity(rpm()) },
		func(context.Context) { i.Stop() },
		i)
}
