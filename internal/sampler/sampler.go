// Package sampler walks a video in fixed time steps and records the mean hue
// of two regions per sampled frame.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/hueassay/internal/capture"
	"github.com/ayusman/hueassay/internal/color"
	"github.com/ayusman/hueassay/internal/metrics"
	"github.com/ayusman/hueassay/internal/region"
)

// Default sampling parameters. SeekTimeout and SettleDelay are empirical.
const (
	DefaultInterval    = 0.5
	DefaultEndEpsilon  = 0.01
	DefaultSeekTimeout = 5 * time.Second
	DefaultSettleDelay = 60 * time.Millisecond
)

// timeTolerance absorbs float drift when comparing step times to the end time.
const timeTolerance = 1e-9

var (
	// ErrSeekTimeout is returned when the decoder never signals seek completion.
	ErrSeekTimeout = errors.New("seek timed out")
	// ErrRasterize is returned when the current frame cannot be copied into the raster.
	ErrRasterize = errors.New("rasterize failed")
	// ErrInvalidRegion marks a region that maps to no pixels on the current frame.
	ErrInvalidRegion = errors.New("region does not map onto frame")
	// ErrInvalidConfig is returned for non-positive intervals or negative delays.
	ErrInvalidConfig = errors.New("invalid sampler config")
)

// Config holds the sampling parameters.
type Config struct {
	Interval    float64       // seconds between samples
	EndEpsilon  float64       // seconds kept clear of end-of-stream
	SeekTimeout time.Duration // per-step seek completion limit
	SettleDelay time.Duration // wait between seek completion and rasterizing
	StaleCheck  bool          // hash frames to detect repeats
}

// DefaultConfig returns the reference sampling parameters.
func DefaultConfig() Config {
	return Config{
		Interval:    DefaultInterval,
		EndEpsilon:  DefaultEndEpsilon,
		SeekTimeout: DefaultSeekTimeout,
		SettleDelay: DefaultSettleDelay,
		StaleCheck:  true,
	}
}

// Validate checks the config for values the loop cannot run with.
func (c Config) Validate() error {
	switch {
	case !(c.Interval > 0) || math.IsInf(c.Interval, 0):
		return fmt.Errorf("%w: interval %v", ErrInvalidConfig, c.Interval)
	case c.EndEpsilon < 0 || math.IsNaN(c.EndEpsilon):
		return fmt.Errorf("%w: end epsilon %v", ErrInvalidConfig, c.EndEpsilon)
	case c.SeekTimeout <= 0:
		return fmt.Errorf("%w: seek timeout %s", ErrInvalidConfig, c.SeekTimeout)
	case c.SettleDelay < 0:
		return fmt.Errorf("%w: settle delay %s", ErrInvalidConfig, c.SettleDelay)
	}
	return nil
}

// EndTime returns the last time a step may target for a video of the given duration.
func (c Config) EndTime(duration float64) float64 {
	return math.Max(0, duration-c.EndEpsilon)
}

// Timestamps returns every step time the sampler attempts for the given duration.
func (c Config) Timestamps(duration float64) []float64 {
	end := c.EndTime(duration)

	var ts []float64
	for i := 0; ; i++ {
		t := float64(i) * c.Interval
		if t > end+timeTolerance {
			return ts
		}
		ts = append(ts, t)
	}
}

// expectedSteps is the progress denominator: ceil(endTime/interval), at least 1.
func (c Config) expectedSteps(duration float64) int {
	return max(1, int(math.Ceil(c.EndTime(duration)/c.Interval-timeTolerance)))
}

// Phase is the sampler's position in its per-step cycle.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseAwaitingSeek
	PhaseRasterizing
	PhaseMeasuring
	PhaseScheduled
	PhaseDone
	PhaseAborted
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingSeek:
		return "awaiting_seek"
	case PhaseRasterizing:
		return "rasterizing"
	case PhaseMeasuring:
		return "measuring"
	case PhaseScheduled:
		return "scheduled"
	case PhaseDone:
		return "done"
	case PhaseAborted:
		return "aborted"
	}
	return fmt.Sprintf("phase(%d)", int32(p))
}

// Sample is one measurement. Values are rounded to two decimals.
type Sample struct {
	Time          float64 `json:"time"`
	HueReaction   float64 `json:"hue_reaction"`
	HueBackground float64 `json:"hue_background"`
}

// TimeSeries is an ordered list of samples with strictly increasing Time.
type TimeSeries []Sample

// Regions is the pair of tracked regions for a run.
type Regions struct {
	Reaction   *region.Normalized
	Background *region.Normalized
}

// Progress is reported after every attempted step.
type Progress struct {
	Step     int     `json:"step"`
	Total    int     `json:"total"`
	Fraction float64 `json:"fraction"`
	Time     float64 `json:"time"`
	Samples  int     `json:"samples"`
}

// Result summarises a run. Series holds whatever was collected, even when Run fails.
type Result struct {
	Series  TimeSeries
	Steps   int
	Skipped int
	Stale   int
}

// Sampler drives a VideoSource through a sequence of timestamps.
type Sampler struct {
	config Config
	engine color.Engine
	logger *zap.Logger
	phase  atomic.Int32
}

// New creates a Sampler. A nil logger disables logging.
func New(config Config, engine color.Engine, logger *zap.Logger) *Sampler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sampler{
		config: config,
		engine: engine,
		logger: logger,
	}
}

// Phase returns the current phase.
func (s *Sampler) Phase() Phase {
	return Phase(s.phase.Load())
}

func (s *Sampler) setPhase(p Phase) {
	s.phase.Store(int32(p))
}

// Run samples src from 0 to duration. Frames whose regions cannot be measured
// are skipped; seek timeouts, decoder errors, raster failures and cancellation
// abort the run and return the samples collected so far together with the error.
func (s *Sampler) Run(ctx context.Context, src capture.VideoSource, regions Regions, duration float64, progress func(Progress)) (Result, error) {
	var res Result

	if err := s.config.Validate(); err != nil {
		return res, err
	}

	width, height := src.Size()
	if width <= 0 || height <= 0 {
		s.setPhase(PhaseAborted)
		return res, fmt.Errorf("%w: native size %dx%d", ErrRasterize, width, height)
	}

	// One buffer for the whole run; every Render overwrites it completely.
	raster := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
	defer raster.Close()

	var stale staleDetector
	endTime := s.config.EndTime(duration)
	total := s.config.expectedSteps(duration)

	log := s.logger.With(
		zap.Float64("duration", duration),
		zap.Float64("end_time", endTime),
		zap.Float64("interval", s.config.Interval),
	)
	log.Info("sampling started", zap.Int("expected_steps", total))

	for i := 0; ; i++ {
		t := float64(i) * s.config.Interval
		if t > endTime+timeTolerance {
			break
		}

		if err := ctx.Err(); err != nil {
			return s.abort(log, res, t, err)
		}

		s.setPhase(PhaseAwaitingSeek)
		started := time.Now()
		if err := AwaitSeek(ctx, src, t, s.config.SeekTimeout); err != nil {
			return s.abort(log, res, t, err)
		}
		metrics.SeekDuration.Observe(time.Since(started).Seconds())

		if err := sleep(ctx, s.config.SettleDelay); err != nil {
			return s.abort(log, res, t, err)
		}

		s.setPhase(PhaseRasterizing)
		if err := src.Render(&raster); err != nil {
			return s.abort(log, res, t, fmt.Errorf("%w: %w", ErrRasterize, err))
		}
		if raster.Empty() {
			return s.abort(log, res, t, fmt.Errorf("%w: empty raster", ErrRasterize))
		}

		if s.config.StaleCheck {
			if repeated, err := stale.check(raster); err != nil {
				log.Debug("stale check failed", zap.Float64("t", t), zap.Error(err))
			} else if repeated {
				res.Stale++
				metrics.StaleFramesTotal.Inc()
				log.Debug("frame identical to previous step", zap.Float64("t", t))
			}
		}

		s.setPhase(PhaseMeasuring)
		sample, err := s.measure(raster, regions, t)
		switch {
		case err == nil:
			res.Series = append(res.Series, sample)
			metrics.FramesSampledTotal.Inc()
		case isSoft(err):
			res.Skipped++
			metrics.FramesSkippedTotal.WithLabelValues(skipReason(err)).Inc()
			log.Debug("frame skipped", zap.Float64("t", t), zap.Error(err))
		default:
			return s.abort(log, res, t, err)
		}

		res.Steps++
		if progress != nil {
			progress(Progress{
				Step:     res.Steps,
				Total:    total,
				Fraction: math.Min(1, float64(res.Steps)/float64(total)),
				Time:     round2(t),
				Samples:  len(res.Series),
			})
		}

		s.setPhase(PhaseScheduled)
		runtime.Gosched()
	}

	s.setPhase(PhaseDone)
	log.Info("sampling finished",
		zap.Int("steps", res.Steps),
		zap.Int("samples", len(res.Series)),
		zap.Int("skipped", res.Skipped),
		zap.Int("stale", res.Stale),
	)
	return res, nil
}

func (s *Sampler) abort(log *zap.Logger, res Result, t float64, err error) (Result, error) {
	s.setPhase(PhaseAborted)
	log.Warn("sampling aborted",
		zap.Float64("t", t),
		zap.Int("samples", len(res.Series)),
		zap.Error(err),
	)
	return res, fmt.Errorf("step at %.2fs: %w", t, err)
}

// measure computes both region hues on raster.
func (s *Sampler) measure(raster gocv.Mat, regions Regions, t float64) (Sample, error) {
	w, h := raster.Cols(), raster.Rows()

	reaction := region.ToAbsolute(regions.Reaction, w, h)
	if reaction == nil {
		return Sample{}, fmt.Errorf("reaction: %w", ErrInvalidRegion)
	}
	background := region.ToAbsolute(regions.Background, w, h)
	if background == nil {
		return Sample{}, fmt.Errorf("background: %w", ErrInvalidRegion)
	}

	hueR, err := s.engine.MeanHue(raster, *reaction)
	if err != nil {
		return Sample{}, fmt.Errorf("reaction: %w", err)
	}
	hueB, err := s.engine.MeanHue(raster, *background)
	if err != nil {
		return Sample{}, fmt.Errorf("background: %w", err)
	}

	return Sample{
		Time:          round2(t),
		HueReaction:   round2(hueR),
		HueBackground: round2(hueB),
	}, nil
}

func isSoft(err error) bool {
	return errors.Is(err, ErrInvalidRegion) ||
		errors.Is(err, color.ErrEmptyRegion) ||
		errors.Is(err, color.ErrColorConversion)
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRegion):
		return "invalid_region"
	case errors.Is(err, color.ErrEmptyRegion):
		return "empty_region"
	default:
		return "color_conversion"
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
