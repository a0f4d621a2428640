package robot

import (
	"time"

	"go.viam.com/mechctl/input"
	"go.viam.com/mechctl/task"
	"go.viam.com/mechctl/task/tasks"
)

// Tunable keys and defaults of the operator controls.
const (
	IndexerSpeedKey      = "Indexer/Speed"
	ShooterTopSpeedKey   = "Shooter/TopSpeed"
	ShooterBottomKey     = "Shooter/BottomSpeed"
	ClimberMaxSpeedKey   = "Climber/MaxSpeed"
	defaultIndexerSpeed  = 3000.0
	defaultShooterSpeed  = 3000.0
	defaultClimberSpeed  = 5.0
	ampEjectRPM          = -750.0
	ampEjectIndexerScale = -0.5
)

func negate(f func() float64) func() float64 {
	return func() float64 { return -f() }
}

// bindControls maps both gamepads to tasks.
func (r *Robot) bindControls() {
	indexerSpeed := r.tunables.Number(IndexerSpeedKey, defaultIndexerSpeed).Get
	topSpeed := r.tunables.Number(ShooterTopSpeedKey, defaultShooterSpeed).Get
	bottomSpeed := r.tunables.Number(ShooterBottomKey, defaultShooterSpeed).Get
	climberSpeed := r.tunables.Number(ClimberMaxSpeedKey, defaultClimberSpeed).Get
	fixed := func(v float64) func() float64 { return func() float64 { return v } }

	// sticks read negative when pushed forward
	r.teleopDrive = tasks.ArcadeDrive(r.drive,
		negate(r.driver.Axis(input.AbsoluteY)),
		negate(r.driver.Axis(input.AbsoluteRX)))
	r.endOfMatch = tasks.EndOfMatch(r.climber, climberSpeed)

	r.driver.Button(input.ButtonWest).WhileHeld(
		tasks.RunIndexer("IndexerForward", r.indexer, indexerSpeed))
	r.driver.Button(input.ButtonNorth).WhileHeld(
		tasks.RunIndexer("IndexerReverse", r.indexer, negate(indexerSpeed)))

	r.operator.Button(input.ButtonRT).WhileHeld(
		tasks.SpinUp("SpinUp", r.shooter, topSpeed, bottomSpeed))
	r.operator.Button(input.ButtonSouth).WhileHeld(
		tasks.SpinUp("AmpEject", r.shooter, fixed(ampEjectRPM), fixed(ampEjectRPM)),
		tasks.RunIndexer("AmpEjectIndexer", r.indexer, func() float64 {
			return ampEjectIndexerScale * indexerSpeed()
		}))
	r.operator.Button(input.ButtonLT).WhileHeld(
		tasks.NewIndexUntilLoaded(r.indexer, defaultIndexerSpeed))
	r.operator.Button(input.ButtonEast).WhileHeld(
		tasks.RunIndexer("IndexerReverse", r.indexer, negate(indexerSpeed)))
	r.operator.AxisAbove(input.AbsoluteRZ, tasks.DeadBand).WhileHeld(
		tasks.NewAmpShoot(r.shooter, r.operator.Axis(input.AbsoluteRZ)))

	r.operator.Button(input.DPadUp).WhileHeld(tasks.NewClimb(r.climber, climberSpeed, false))
	r.operator.Button(input.DPadDown).WhileHeld(tasks.NewClimb(r.climber, climberSpeed, true))
	r.operator.Button(input.ButtonNorth).Toggle(
		tasks.NewClimbWithInput(r.climber, climberSpeed, negate(r.operator.Axis(input.AbsoluteY))))
	r.operator.Button(input.ButtonWest).Toggle(
		tasks.NewClimbManual(r.climber, climberSpeed,
			negate(r.operator.Axis(input.AbsoluteY)),
			negate(r.operator.Axis(input.AbsoluteRY))))
}

// Autonomous routine names.
const (
	RoutineDriveBack        = "Drive Back"
	RoutineDelayedDriveBack = "Delayed Drive Back"
	RoutineShootCenter      = "Shoot and Drive (Center)"
	RoutineShootLeft        = "Shoot and Drive (Left)"
	RoutineTurn             = "Turn For Seconds"
)

func (r *Robot) addRoutines() error {
	for _, opt := range []struct {
		name  string
		build func() (task.Task, error)
	}{
		{RoutineDriveBack, func() (task.Task, error) { return tasks.DriveBack(r.clk, r.drive) }},
		{RoutineDelayedDriveBack, func() (task.Task, error) { return tasks.DelayDriveBack(r.clk, r.drive, time.Second) }},
		{RoutineShootCenter, func() (task.Task, error) { return tasks.ShootDriveBack(r.clk, r.drive, r.indexer) }},
		{RoutineShootLeft, func() (task.Task, error) { return tasks.ShootDriveLeft(r.clk, r.drive, r.indexer) }},
		{RoutineTurn, func() (task.Task, error) {
			return tasks.NewTurnForSeconds(r.clk, r.drive, r.tunables, time.Second), nil
		}},
	} {
		routine, err := opt.build()
		if err != nil {
			return err
		}
		if err := r.chooser.Add(opt.name, routine); err != nil {
			return err
		}
	}
	return nil
}
