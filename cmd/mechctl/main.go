// Package main runs the robot control loop through one match.
package main

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/mechctl/config"
	"go.viam.com/mechctl/logging"
	"go.viam.com/mechctl/robot"
)

var logger = logging.NewLogger("mechctl")

// Arguments for the command.
type Arguments struct {
	ConfigFile        string `flag:"0,required,usage=robot config file"`
	Debug             bool   `flag:"debug,usage=enable debug logging"`
	AutonomousSeconds int    `flag:"autonomous,default=15,usage=length of the autonomous period in seconds"`
	TeleopSeconds     int    `flag:"teleop,default=135,usage=length of the teleoperated period in seconds"`
	SkipAutonomous    bool   `flag:"skip-autonomous,usage=start in teleop"`
	Practice          bool   `flag:"practice,usage=stay in teleop until interrupted"`
}

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

func mainWithArgs(ctx context.Context, args []string, logger logging.Logger) (err error) {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}
	if argsParsed.AutonomousSeconds <= 0 || argsParsed.TeleopSeconds <= 0 {
		return errors.Errorf("period lengths must be positive, got autonomous=%d teleop=%d",
			argsParsed.AutonomousSeconds, argsParsed.TeleopSeconds)
	}

	cfg, err := config.Read(ctx, argsParsed.ConfigFile, logger)
	if err != nil {
		return err
	}
	if argsParsed.Debug || cfg.LogLevel == "debug" {
		logger.SetLevel(logging.DEBUG)
	} else if cfg.LogLevel != "" {
		level, err := logging.LevelFromString(cfg.LogLevel)
		if err != nil {
			return err
		}
		logger.SetLevel(level)
	}
	if cfg.LogFile != nil {
		file := logging.NewFileAppender(cfg.LogFile.Path, cfg.LogFile.MaxSizeMB, cfg.LogFile.MaxBackups)
		logger.AddAppender(file)
		defer func() {
			err = multierr.Combine(err, logger.Sync(), file.Close())
		}()
	}

	myRobot, err := robot.New(ctx, cfg, robot.Options{}, logger.Sublogger("robot"))
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, myRobot.Close(context.Background()))
	}()
	myRobot.Start(ctx)

	if !argsParsed.SkipAutonomous {
		myRobot.AutonomousInit()
		if !utils.SelectContextOrWait(ctx, time.Duration(argsParsed.AutonomousSeconds)*time.Second) {
			return ctx.Err()
		}
		myRobot.AutonomousExit(ctx)
	}

	myRobot.TeleopInit()
	if argsParsed.Practice {
		<-ctx.Done()
		return ctx.Err()
	}
	if !utils.SelectContextOrWait(ctx, time.Duration(argsParsed.TeleopSeconds)*time.Second) {
		return ctx.Err()
	}
	myRobot.EndOfMatch(ctx)
	logger.Info("match over, hanging until interrupted")
	<-ctx.Done()
	return ctx.Err()
}
