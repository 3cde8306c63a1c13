// Package metrics exposes Prometheus instrumentation for frame sampling and analysis sessions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesSampledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hueassay_frames_sampled_total",
		Help: "Total number of frames measured and appended to a time series",
	})

	FramesSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hueassay_frames_skipped_total",
		Help: "Frames skipped because a region could not be measured, by reason",
	}, []string{"reason"})

	StaleFramesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hueassay_stale_frames_total",
		Help: "Rasterized frames identical to the previous step's frame",
	})

	SeekDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hueassay_seek_duration_seconds",
		Help:    "Time from seek request to decoder completion",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})

	SessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hueassay_sessions_total",
		Help: "Analysis sessions finished, by terminal state",
	}, []string{"state"})

	SessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hueassay_session_duration_seconds",
		Help:    "Wall time of a full analysis run",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	})

	SessionRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hueassay_session_running",
		Help: "1 while an analysis run is active",
	})

	HookRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hueassay_hook_runs_total",
		Help: "Post-analysis hook invocations, by result",
	}, []string{"result"})
)
