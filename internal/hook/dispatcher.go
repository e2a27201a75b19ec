package hook

import (
	"context"
	"log/slog"
	"time"

	"github.com/ayusman/facetrack/internal/store"
)

// RunLog records hook executions.
type RunLog interface {
	Create(ctx context.Context, run *store.HookRun) error
}

// Dispatcher fires events at the subscribed hooks.
type Dispatcher struct {
	manager  *Manager
	executor *Executor
	runs     RunLog
	logger   *slog.Logger
}

// NewDispatcher creates a Dispatcher. runs may be nil.
func NewDispatcher(manager *Manager, executor *Executor, runs RunLog, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		manager:  manager,
		executor: executor,
		runs:     runs,
		logger:   logger.With("component", "hook"),
	}
}

// Fire runs every hook subscribed to req.Event in name order and returns
// the recorded runs. Hook failures are logged, never returned.
func (d *Dispatcher) Fire(ctx context.Context, req Request) []*store.HookRun {
	var runs []*store.HookRun

	for _, h := range d.manager.Subscribers(req.Event) {
		r := req
		r.Config = h.Manifest.Config

		start := time.Now()
		resp, err := d.executor.Execute(ctx, h, &r)

		run := &store.HookRun{
			HookName:     h.Manifest.Name,
			Event:        req.Event,
			RecordingKey: req.Key,
			Duration:     time.Since(start),
		}

		switch {
		case err != nil:
			run.Error = err.Error()
			d.logger.Warn("hook failed", "hook", h.Manifest.Name, "event", req.Event, "error", err)
		case !resp.Success:
			run.Error = resp.Error
			run.Output = resp.Data
			d.logger.Warn("hook reported failure", "hook", h.Manifest.Name, "event", req.Event, "error", resp.Error)
		default:
			run.Success = true
			run.Output = resp.Data
			d.logger.Info("hook completed", "hook", h.Manifest.Name, "event", req.Event, "duration", run.Duration)
		}

		if d.runs != nil {
			if err := d.runs.Create(ctx, run); err != nil {
				d.logger.Error("failed to record hook run", "hook", h.Manifest.Name, "error", err)
			}
		}
		runs = append(runs, run)
	}

	return runs
}
