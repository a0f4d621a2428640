package robot

import (
	"context"

	goutils "go.viam.com/utils"
)

// Run steps the robot once per period until ctx is done. A tick that overruns its period delays
// the next one rather than queueing extra ticks.
func (r *Robot) Run(ctx context.Context) error {
	ticker := r.clk.Ticker(r.period)
	defer ticker.Stop()
	lastReport := r.clk.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		start := r.clk.Now()
		if err := r.Step(ctx); err != nil {
			return err
		}
		r.stats.Observe(r.clk.Since(start))
		if r.telemetryInterval > 0 && r.clk.Since(lastReport) >= r.telemetryInterval {
			lastReport = r.clk.Now()
			s := r.stats.Summary()
			r.logger.Debugw("loop stats",
				"ticks", s.Ticks,
				"overruns", s.Overruns,
				"mean_ms", s.MeanMs,
				"p95_ms", s.P95Ms,
				"max_ms", s.MaxMs)
		}
	}
}

// Start runs the loop in the background until Close.
func (r *Robot) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelBackgroundWorkers != nil || r.closed {
		return
	}
	cancelCtx, cancel := context.WithCancel(ctx)
	r.cancelBackgroundWorkers = cancel
	r.activeBackgroundWorkers.Add(1)
	goutils.ManagedGo(func() {
		if err := r.Run(cancelCtx); err != nil && cancelCtx.Err() == nil {
			r.logger.Errorw("control loop stopped", "error", err)
		}
	}, r.activeBackgroundWorkers.Done)
}
