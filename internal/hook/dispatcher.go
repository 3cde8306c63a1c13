package hook

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/ayusman/hueassay/internal/metrics"
)

// Result is the outcome of one hook invocation.
type Result struct {
	Hook     string    `json:"hook"`
	Response *Response `json:"response,omitempty"`
	Err      error     `json:"-"`
}

// Dispatcher runs every discovered hook that wants a finished run.
type Dispatcher struct {
	manager  *Manager
	executor *Executor
	logger   *zap.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(manager *Manager, executor *Executor, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{manager: manager, executor: executor, logger: logger}
}

// Dispatch runs the matching hooks one after another. A failing hook does not
// stop the others.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) []Result {
	var results []Result
	for _, h := range d.manager.List() {
		if !h.Wants(req.Event) {
			continue
		}

		log := d.logger.With(zap.String("hook", h.Manifest.Name), zap.String("run_id", req.Outcome.RunID))
		resp, err := d.executor.Execute(ctx, h, req)
		if err == nil && !resp.Success {
			err = errors.New("hook reported failure")
			if resp.Error != "" {
				err = errors.New(resp.Error)
			}
		}

		switch {
		case err != nil:
			metrics.HookRunsTotal.WithLabelValues("failed").Inc()
			log.Warn("hook failed", zap.Error(err))
		default:
			metrics.HookRunsTotal.WithLabelValues("succeeded").Inc()
			log.Info("hook succeeded")
		}
		results = append(results, Result{Hook: h.Manifest.Name, Response: resp, Err: err})
	}
	return results
}
