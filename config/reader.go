package config

import (
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"

	"go.viam.com/mechctl/actuator"
	"go.viam.com/mechctl/logging"
)

// Read loads the robot config at path after expanding ${VAR} references against the environment.
func Read(ctx context.Context, path string, logger logging.Logger) (*Config, error) {
	expanded, err := envsubst.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read config %q", path)
	}
	return FromReader(ctx, path, bytes.NewReader(expanded), logger)
}

// FromReader decodes and checks a config. path names where the bytes came from and may be empty.
// Unknown keys are rejected.
func FromReader(ctx context.Context, path string, r io.Reader, logger logging.Logger) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg := &Config{ConfigFilePath: path}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, errors.Wrap(err, "cannot decode config")
	}
	if err := cfg.Ensure(); err != nil {
		return nil, err
	}

	if cfg.ExecutionMode() == actuator.ModeReplay && cfg.RecordPath != "" {
		logger.Warnw("recording a replay run; the new log will repeat the source log", "source", cfg.Replay.Log)
	}
	logger.Debugw("read config",
		"path", path,
		"mode", cfg.ExecutionMode().String(),
		"period", cfg.LoopPeriod().String(),
	)
	return cfg, nil
}
