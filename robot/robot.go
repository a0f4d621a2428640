// Package robot assembles the subsystems, scheduler and operator bindings of the robot and runs
// its control loop.
package robot

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/mechctl/actuator"
	"go.viam.com/mechctl/actuator/replay"
	"go.viam.com/mechctl/config"
	"go.viam.com/mechctl/input"
	"go.viam.com/mechctl/logging"
	"go.viam.com/mechctl/subsystem"
	"go.viam.com/mechctl/task"
	"go.viam.com/mechctl/telemetry"
	"go.viam.com/mechctl/tuning"
)

// DefaultTelemetryInterval is how often the loop logs its statistics when not configured.
const DefaultTelemetryInterval = 5 * time.Second

// Options customizes a Robot beyond its config. Zero fields get defaults.
type Options struct {
	Clock     clock.Clock
	Driver    input.Source
	Operator  input.Source
	Backends  *Backends
	Publisher telemetry.Publisher
}

// Robot owns every subsystem and runs them one tick at a time.
type Robot struct {
	mu     sync.Mutex
	mode   actuator.Mode
	period time.Duration
	clk    clock.Clock
	logger logging.Logger

	tunables   *tuning.Registry
	scheduler  *task.Scheduler
	shooter    *subsystem.Shooter
	climber    *subsystem.Climber
	indexer    *subsystem.Indexer
	drive      *subsystem.Drive
	subsystems []subsystem.Subsystem

	driver      *input.Bindings
	operator    *input.Bindings
	chooser     *Chooser
	teleopDrive task.Task
	endOfMatch  task.Task

	replayLog *replay.Log
	recorder  *replay.Recorder
	watcher   *tuning.FileWatcher

	table             *telemetry.Table
	publisher         telemetry.Publisher
	stats             *telemetry.LoopStats
	telemetryInterval time.Duration
	recordFailing     bool
	ticks             int64

	cancelBackgroundWorkers func()
	activeBackgroundWorkers sync.WaitGroup
	closed                  bool
}

// New builds a robot for cfg. The mode in cfg decides what every actuator talks to.
func New(ctx context.Context, cfg *config.Config, opts Options, logger logging.Logger) (_ *Robot, err error) {
	r := &Robot{
		mode:              cfg.ExecutionMode(),
		period:            cfg.LoopPeriod(),
		clk:               opts.Clock,
		logger:            logger,
		chooser:           NewChooser(),
		table:             telemetry.NewTable(),
		publisher:         opts.Publisher,
		telemetryInterval: cfg.Telemetry.IntervalOrDefault(DefaultTelemetryInterval),
	}
	if r.period <= 0 {
		r.period = config.DefaultPeriod
	}
	if r.clk == nil {
		r.clk = clock.New()
	}
	r.stats = telemetry.NewLoopStats(r.period, int(time.Second/r.period)*10)
	defer func() {
		if err != nil {
			err = multierr.Combine(err, r.closeResources())
		}
	}()

	values := cfg.TuningValues()
	r.tunables = tuning.NewRegistry(logger.Sublogger("tuning"), len(values)+tuning.DefaultBufferSize)
	for k, v := range values {
		r.tunables.Set(k, v)
	}
	r.tunables.Poll()

	if r.mode == actuator.ModeReplay {
		if r.replayLog, err = replay.Open(cfg.Replay.Log); err != nil {
			return nil, err
		}
		logger.Infow("replaying", "log", cfg.Replay.Log, "frames", r.replayLog.Len())
	}
	backends := opts.Backends
	if backends == nil {
		if backends, err = backendsFor(r.mode, r.period, r.replayLog, logger); err != nil {
			return nil, err
		}
	}
	if err := backends.Validate(); err != nil {
		return nil, err
	}
	if err := r.buildSubsystems(backends); err != nil {
		return nil, err
	}

	if cfg.RecordPath != "" {
		if r.recorder, err = replay.CreateRecorder(cfg.RecordPath); err != nil {
			return nil, err
		}
	}
	if cfg.Tuning != nil && cfg.Tuning.File != "" {
		if r.watcher, err = tuning.WatchFile(ctx, cfg.Tuning.File, r.tunables, logger.Sublogger("tuning")); err != nil {
			return nil, err
		}
	}

	r.scheduler = task.NewScheduler(logger.Sublogger("scheduler"))
	driver, operator := opts.Driver, opts.Operator
	if driver == nil {
		driver = input.NewManual()
	}
	if operator == nil {
		operator = input.NewManual()
	}
	r.driver = input.NewBindings("driver", driver, r.scheduler, r.clk, logger.Sublogger("driver"))
	r.operator = input.NewBindings("operator", operator, r.scheduler, r.clk, logger.Sublogger("operator"))
	r.bindControls()

	if err := r.addRoutines(); err != nil {
		return nil, err
	}
	if cfg.Autonomous != "" {
		if err := r.chooser.Select(cfg.Autonomous); err != nil {
			return nil, err
		}
	}
	logger.Infow("robot ready", "mode", r.mode.String(), "period", r.period.String())
	return r, nil
}

func (r *Robot) buildSubsystems(b *Backends) error {
	var err error
	if r.shooter, err = subsystem.NewShooter(
		r.mode, r.period, b.ShooterTop, b.ShooterBottom, r.tunables, r.logger,
	); err != nil {
		return err
	}
	if r.climber, err = subsystem.NewClimber(
		r.mode, r.period, b.ClimberLeft, b.ClimberRight, r.tunables, r.logger,
	); err != nil {
		return err
	}
	if r.indexer, err = subsystem.NewIndexer(
		r.mode, r.period, b.IndexerRoller, b.BeamBreak, r.tunables, r.logger,
	); err != nil {
		return err
	}
	if r.drive, err = subsystem.NewDrive(
		r.mode, r.period, b.DriveLeft, b.DriveRight, r.tunables, r.logger,
	); err != nil {
		return err
	}
	r.subsystems = []subsystem.Subsystem{r.shooter, r.climber, r.indexer, r.drive}
	return nil
}

// Step runs one tick: measure, sample the controllers, schedule, actuate and record.
func (r *Robot) Step(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errors.New("robot is closed")
	}
	r.ticks++
	r.logger.SetTick(r.ticks)
	if r.replayLog != nil {
		r.replayLog.Advance()
	}
	r.tunables.Poll()
	for _, s := range r.subsystems {
		s.Update(ctx)
	}
	r.driver.Poll(ctx)
	r.operator.Poll(ctx)
	if err := r.scheduler.Run(ctx); err != nil {
		return err
	}
	for _, s := range r.subsystems {
		s.Apply(r.period)
	}
	r.publish(r.table)
	if r.publisher != nil {
		r.publish(r.publisher)
	}
	r.record()
	return nil
}

func (r *Robot) publish(pub telemetry.Publisher) {
	for _, s := range r.subsystems {
		s.Publish(pub)
	}
	r.scheduler.Publish(pub)
	r.tunables.Publish(pub)
	r.chooser.Publish(pub)
	r.stats.Publish(pub, "Loop")
}

func (r *Robot) record() {
	if r.recorder == nil {
		return
	}
	f := replay.Frame{
		States:   map[string]actuator.State{},
		Sensors:  map[string]bool{subsystem.IndexerBeamBreak: r.indexer.BeamBroken()},
		Commands: map[string]string{},
	}
	for _, s := range r.subsystems {
		for _, a := range s.Actuators() {
			f.States[a.Name()] = a.Measure()
			f.Commands[a.Name()] = a.Command().String()
		}
	}
	if err := r.recorder.Record(f); err != nil {
		if !r.recordFailing {
			r.logger.Errorw("cannot record replay frame", "error", err)
		}
		r.recordFailing = true
		return
	}
	r.recordFailing = false
}

// AutonomousInit schedules the selected routine.
func (r *Robot) AutonomousInit() {
	r.mu.Lock()
	defer r.mu.Unlock()
	name, routine := r.chooser.Selected()
	if routine == nil {
		r.logger.Infow("no autonomous routine to run", "selected", name)
		return
	}
	r.logger.Infow("starting autonomous", "routine", name)
	r.scheduler.Schedule(routine)
}

// AutonomousExit cancels whatever autonomous left running.
func (r *Robot) AutonomousExit(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scheduler.CancelAll(ctx)
}

// TeleopInit hands the drive to the driver's sticks.
func (r *Robot) TeleopInit() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scheduler.Schedule(r.teleopDrive)
}

// EndOfMatch cancels everything and retracts the climber.
func (r *Robot) EndOfMatch(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scheduler.CancelAll(ctx)
	r.scheduler.Schedule(r.endOfMatch)
}

// Disable cancels every task and stops every actuator.
func (r *Robot) Disable(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disable(ctx)
}

func (r *Robot) disable(ctx context.Context) {
	if r.scheduler != nil {
		r.scheduler.CancelAll(ctx)
	}
	for _, s := range r.subsystems {
		for _, a := range s.Actuators() {
			a.Stop()
		}
		s.Apply(r.period)
	}
}

// Mode is the execution mode the robot was built for.
func (r *Robot) Mode() actuator.Mode {
	return r.mode
}

// Scheduler returns the task scheduler.
func (r *Robot) Scheduler() *task.Scheduler {
	return r.scheduler
}

// Chooser returns the autonomous routine chooser.
func (r *Robot) Chooser() *Chooser {
	return r.chooser
}

// SelectedRoutine returns the routine AutonomousInit would schedule, nil for none.
func (r *Robot) SelectedRoutine() task.Task {
	_, routine := r.chooser.Selected()
	return routine
}

// Tunables returns the tunable registry.
func (r *Robot) Tunables() *tuning.Registry {
	return r.tunables
}

// Telemetry returns the table holding the latest published values.
func (r *Robot) Telemetry() *telemetry.Table {
	return r.table
}

// Shooter returns the shooter.
func (r *Robot) Shooter() *subsystem.Shooter { return r.shooter }

// Climber returns the climber.
func (r *Robot) Climber() *subsystem.Climber { return r.climber }

// Indexer returns the indexer.
func (r *Robot) Indexer() *subsystem.Indexer { return r.indexer }

// Drive returns the drive base.
func (r *Robot) Drive() *subsystem.Drive { return r.drive }

// LoopStats returns the control loop timing statistics.
func (r *Robot) LoopStats() *telemetry.LoopStats {
	return r.stats
}

// Close stops the loop, stops every actuator and releases files.
func (r *Robot) Close(ctx context.Context) error {
	r.mu.Lock()
	cancel := r.cancelBackgroundWorkers
	r.cancelBackgroundWorkers = nil
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	r.activeBackgroundWorkers.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.disable(ctx)
	return r.closeResources()
}

func (r *Robot) closeResources() error {
	var err error
	if r.watcher != nil {
		err = multierr.Combine(err, r.watcher.Close())
	}
	if r.recorder != nil {
		err = multierr.Combine(err, r.recorder.Close())
	}
	return err
}
