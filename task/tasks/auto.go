package tasks

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"go.viam.com/mechctl/subsystem"
	"go.viam.com/mechctl/task"
	"go.viam.com/mechctl/tuning"
)

// Drive is what drive tasks command.
type Drive interface {
	task.Resource
	RunVelocity(vx, omega float64)
	Stop()
}

var _ Drive = (*subsystem.Drive)(nil)

// Autonomous routine parameters.
const (
	AutoBackupSpeed    = -1.5
	AutoTurnRate       = -1.5
	AutoIndexRPM       = 3000.0
	AutoShotSettleTime = 2500 * time.Millisecond
	AutoStartDelay     = 3 * time.Second
)

func driveAt(d Drive, vx, omega float64) task.Task {
	return task.RunOnce("DriveAt", func(context.Context) { d.RunVelocity(vx, omega) }, d)
}

func stopDrive(d Drive) task.Task {
	return task.RunOnce("StopDrive", func(context.Context) { d.Stop() }, d)
}

// DriveBack backs away at full speed for five seconds.
func DriveBack(clk clock.Clock, d Drive) (task.Task, error) {
	seq, err := task.Sequential(
		driveAt(d, -subsystem.MaxLinearSpeedMPS, 0),
		task.Wait(clk, 5*time.Second),
		stopDrive(d),
	)
	if err != nil {
		return nil, errors.Wrap(err, "building DriveBack")
	}
	return seq.Named("DriveBack"), nil
}

// DelayDriveBack waits for the field to clear, then backs away for driveTime.
func DelayDriveBack(clk clock.Clock, d Drive, driveTime time.Duration) (task.Task, error) {
	seq, err := task.Sequential(
		task.Wait(clk, AutoStartDelay),
		driveAt(d, AutoBackupSpeed, 0),
		task.Wait(clk, driveTime),
		stopDrive(d),
	)
	if err != nil {
		return nil, errors.Wrap(err, "building DelayDriveBack")
	}
	return seq.Named("DelayDriveBack"), nil
}

// shootSteps feeds the preloaded note into the shooter and stops the indexer.
func shootSteps(clk clock.Clock, i Indexer) []task.Task {
	return []task.Task{
		task.Wait(clk, AutoShotSettleTime),
		task.RunOnce("FeedShot", func(context.Context) { i.RunVelocity(AutoIndexRPM) }, i),
		task.Wait(clk, AutoShotSettleTime),
		task.RunOnce("StopIndexer", func(context.Context) { i.Stop() }, i),
	}
}

// ShootDriveBack shoots from the center position and backs out of the starting zone.
func ShootDriveBack(clk clock.Clock, d Drive, i Indexer) (task.Task, error) {
	steps := append(shootSteps(clk, i),
		driveAt(d, AutoBackupSpeed, 0),
		task.Wait(clk, time.Second),
		stopDrive(d),
	)
	seq, err := task.Sequential(steps...)
	if err != nil {
		return nil, errors.Wrap(err, "building ShootDriveBack")
	}
	return seq.Named("ShootDriveBack"), nil
}

// ShootDriveLeft shoots from the left position, backs up, turns and backs up again.
func ShootDriveLeft(clk clock.Clock, d Drive, i Indexer) (task.Task, error) {
	steps := append(shootSteps(clk, i),
		driveAt(d, AutoBackupSpeed, 0),
		task.Wait(clk, time.Second),
		driveAt(d, 0, AutoTurnRate),
		task.Wait(clk, 500*time.Millisecond),
		driveAt(d, AutoBackupSpeed, 0),
		task.Wait(clk, time.Second),
		stopDrive(d),
	)
	seq, err := task.Sequential(steps...)
	if err != nil {
		return nil, errors.Wrap(err, "building ShootDriveLeft")
	}
	return seq.Named("ShootDriveLeft"), nil
}

// TurnForSeconds spins in place at the tunable rate DriveForward/Speed for a fixed time.
type TurnForSeconds struct {
	clk      clock.Clock
	drive    Drive
	speed    *tuning.Number
	duration time.Duration
	start    time.Time
}

// NewTurnForSeconds returns a timed turn. The rate defaults to 1 rad/s.
func NewTurnForSeconds(clk clock.Clock, d Drive, tunables *tuning.Registry, duration time.Duration) *TurnForSeconds {
	return &TurnForSeconds{
		clk:      clk,
		drive:    d,
		speed:    tunables.Number("DriveForward/Speed", 1),
		duration: duration,
	}
}

// Name returns TurnForSeconds.
func (t *TurnForSeconds) Name() string {
	return "TurnForSeconds"
}

// Requirements is the drive.
func (t *TurnForSeconds) Requirements() []task.Resource {
	return []task.Resource{t.drive}
}

// Initialize starts turning and the timer.
func (t *TurnForSeconds) Initialize(ctx context.Context) {
	t.drive.RunVelocity(0, t.speed.Get())
	t.start = t.clk.Now()
}

// Execute does nothing.
func (t *TurnForSeconds) Execute(ctx context.Context) {}

// IsFinished reports whether the duration has elapsed.
func (t *TurnForSeconds) IsFinished() bool {
	return t.clk.Since(t.start) >= t.duration
}

// End stops the drive.
func (t *TurnForSeconds) End(ctx context.Context, interrupted bool) {
	t.drive.Stop()
}

// ArcadeDrive drives from a throttle and a turn stick, both in [-1, 1], scaled to the drive's
// limits. Sticks inside the dead band read as zero.
func ArcadeDrive(d Drive, throttle, turn func() float64) *task.FuncTask {
	maxOmega := 2 * subsystem.MaxLinearSpeedMPS / subsystem.TrackWidthMeters
	return &task.FuncTask{
		TaskName:  "ArcadeDrive",
		Resources: []task.Resource{d},
		OnExecute: func(context.Context) {
			x, z := throttle(), turn()
			if inDeadBand(x) {
				x = 0
			}
			if inDeadBand(z) {
				z = 0
			}
			if x == 0 && z == 0 {
				d.Stop()
				return
			}
			d.RunVelocity(x*subsystem.MaxLinearSpeedMPS, z*maxOmega)
		},
		OnEnd: func(context.Context, bool) { d.Stop() },
	}
}

// EndOfMatch retracts both climber arms at full speed, hanging the robot. Soft limits are left as
// they are.
func EndOfMatch(c Climber, maxVelocity func() float64) *ClimbManual {
	full := func() float64 { return -1 }
	return NewClimbManual(c, maxVelocity, full, full)
}
