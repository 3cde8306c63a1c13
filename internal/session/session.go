// Package session owns one analysis run: the video, the two tracked regions,
// the sampler settings and the resulting time series.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/hueassay/internal/capture"
	"github.com/ayusman/hueassay/internal/color"
	"github.com/ayusman/hueassay/internal/metrics"
	"github.com/ayusman/hueassay/internal/region"
	"github.com/ayusman/hueassay/internal/sampler"
)

var (
	// ErrPrecondition is returned when a run cannot start.
	ErrPrecondition = errors.New("precondition failed")
	// ErrBusy is returned when the session is already running. It wraps ErrPrecondition.
	ErrBusy = fmt.Errorf("%w: analysis already running", ErrPrecondition)
	// ErrInvalidDuration is returned when the video duration is not a positive finite number.
	ErrInvalidDuration = errors.New("invalid video duration")
)

// State is the lifecycle state of a session.
type State string

const (
	StateIdle           State = "idle"
	StateRunning        State = "running"
	StateCompleted      State = "completed"
	StateCompletedEmpty State = "completed_empty"
	StateFailed         State = "failed"
)

// Outcome is passed to the finish callback when a run ends, whatever the result.
type Outcome struct {
	RunID   string        `json:"run_id"`
	State   State         `json:"state"`
	Samples int           `json:"samples"`
	Reason  string        `json:"reason,omitempty"`
	Elapsed time.Duration `json:"elapsed"`
}

// Status is a point-in-time snapshot of the session.
type Status struct {
	RunID    string           `json:"run_id,omitempty"`
	State    State            `json:"state"`
	Progress sampler.Progress `json:"progress"`
	Samples  int              `json:"samples"`
	Reason   string           `json:"reason,omitempty"`
	HasVideo bool             `json:"has_video"`
}

// Config holds the collaborators of a session.
type Config struct {
	Engine     color.Engine
	Sampler    sampler.Config
	Logger     *zap.Logger
	OnProgress func(sampler.Progress)
	OnFinish   func(Outcome)
}

// Session coordinates a single video analysis. At most one run is active at a time.
type Session struct {
	engine     color.Engine
	logger     *zap.Logger
	onProgress func(sampler.Progress)
	onFinish   func(Outcome)

	// playback is held for the whole of a run so previews cannot move the
	// decoder position underneath the sampler.
	playback sync.Mutex

	mu         sync.RWMutex
	cfg        sampler.Config
	video      capture.VideoSource
	reaction   *region.Normalized
	background *region.Normalized
	state      State
	series     sampler.TimeSeries
	progress   sampler.Progress
	reason     string
	runID      string
	cancel     context.CancelFunc
}

// New creates an idle Session.
func New(config Config) *Session {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg := config.Sampler
	if cfg == (sampler.Config{}) {
		cfg = sampler.DefaultConfig()
	}

	return &Session{
		engine:     config.Engine,
		logger:     logger,
		onProgress: config.OnProgress,
		onFinish:   config.OnFinish,
		cfg:        cfg,
		state:      StateIdle,
	}
}

// LoadVideo replaces the video and clears both regions. The previous video is closed.
func (s *Session) LoadVideo(video capture.VideoSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRunning {
		return ErrBusy
	}

	if s.video != nil && s.video != video {
		if err := s.video.Close(); err != nil {
			s.logger.Warn("closing previous video", zap.Error(err))
		}
	}

	s.video = video
	s.reaction = nil
	s.background = nil
	s.series = nil
	s.progress = sampler.Progress{}
	s.reason = ""
	s.state = StateIdle

	if video != nil {
		w, h := video.Size()
		s.logger.Info("video loaded",
			zap.Int("width", w),
			zap.Int("height", h),
			zap.Float64("duration", video.Duration()),
		)
	}
	return nil
}

// Video returns the loaded video, or nil.
func (s *Session) Video() capture.VideoSource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.video
}

// SetRegion sets one of the tracked regions.
func (s *Session) SetRegion(kind region.Kind, r region.Normalized) error {
	if err := r.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRunning {
		return ErrBusy
	}

	switch kind {
	case region.KindReaction:
		s.reaction = &r
	case region.KindBackground:
		s.background = &r
	default:
		return fmt.Errorf("%w: unknown kind %q", region.ErrInvalid, kind)
	}
	return nil
}

// ClearRegions removes both tracked regions.
func (s *Session) ClearRegions() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRunning {
		return ErrBusy
	}
	s.reaction = nil
	s.background = nil
	return nil
}

// Regions returns copies of the tracked regions; absent regions are nil.
func (s *Session) Regions() sampler.Regions {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sampler.Regions{Reaction: copyRegion(s.reaction), Background: copyRegion(s.background)}
}

// SetSamplerConfig replaces the sampling parameters used by the next run.
func (s *Session) SetSamplerConfig(cfg sampler.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRunning {
		return ErrBusy
	}
	s.cfg = cfg
	return nil
}

// SamplerConfig returns the current sampling parameters.
func (s *Session) SamplerConfig() sampler.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Status{
		RunID:    s.runID,
		State:    s.state,
		Progress: s.progress,
		Samples:  len(s.series),
		Reason:   s.reason,
		HasVideo: s.video != nil,
	}
}

// Series returns a copy of the last run's time series.
func (s *Session) Series() sampler.TimeSeries {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append(sampler.TimeSeries(nil), s.series...)
}

// Run analyzes the loaded video from start to end. Precondition failures leave
// the session idle and untouched. A hard failure mid-run returns the partial
// series together with the error and leaves the session Failed.
func (s *Session) Run(ctx context.Context) (sampler.TimeSeries, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	plan, err := s.begin(cancel)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, plan)
}

// Start validates preconditions like Run and then analyzes in the background.
// It returns the new run ID. The run stops early when ctx is cancelled or
// Cancel is called.
func (s *Session) Start(ctx context.Context) (string, error) {
	ctx, cancel := context.WithCancel(ctx)

	plan, err := s.begin(cancel)
	if err != nil {
		cancel()
		return "", err
	}

	go func() {
		defer cancel()
		s.execute(ctx, plan)
	}()
	return plan.id, nil
}

// Cancel stops the active run, if any. It reports whether a run was cancelled.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning || s.cancel == nil {
		return false
	}
	s.cancel()
	return true
}

// run carries what begin captured for one analysis.
type run struct {
	id       string
	video    capture.VideoSource
	regions  sampler.Regions
	cfg      sampler.Config
	duration float64
}

func (s *Session) execute(ctx context.Context, r run) (sampler.TimeSeries, error) {
	s.playback.Lock()
	defer s.playback.Unlock()

	log := s.logger.With(zap.String("run_id", r.id))
	log.Info("analysis started",
		zap.Float64("duration", r.duration),
		zap.String("reaction", r.regions.Reaction.String()),
		zap.String("background", r.regions.Background.String()),
	)

	metrics.SessionRunning.Set(1)
	defer metrics.SessionRunning.Set(0)

	started := time.Now()
	smp := sampler.New(r.cfg, s.engine, log)
	res, runErr := smp.Run(ctx, r.video, r.regions, r.duration, s.reportProgress)

	outcome := s.finish(res.Series, runErr, time.Since(started))
	log.Info("analysis finished",
		zap.String("state", string(outcome.State)),
		zap.Int("samples", outcome.Samples),
		zap.Int("skipped", res.Skipped),
		zap.Int("stale", res.Stale),
		zap.Duration("elapsed", outcome.Elapsed),
		zap.String("reason", outcome.Reason),
	)

	metrics.SessionsTotal.WithLabelValues(string(outcome.State)).Inc()
	metrics.SessionDuration.Observe(outcome.Elapsed.Seconds())

	if s.onFinish != nil {
		s.onFinish(outcome)
	}

	return append(sampler.TimeSeries(nil), res.Series...), runErr
}

// begin validates preconditions and moves the session to Running.
func (s *Session) begin(cancel context.CancelFunc) (run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRunning {
		return run{}, ErrBusy
	}
	// Terminal states fall back to idle before a new attempt; the previous
	// series stays readable until the run actually starts.
	s.state = StateIdle

	if s.engine == nil || !s.engine.Ready() {
		return run{}, fmt.Errorf("%w: color engine not ready", ErrPrecondition)
	}
	if s.video == nil {
		return run{}, fmt.Errorf("%w: no video loaded", ErrPrecondition)
	}
	if s.reaction == nil || s.background == nil {
		return run{}, fmt.Errorf("%w: both regions must be defined", ErrPrecondition)
	}

	duration := s.video.Duration()
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration <= 0 {
		return run{}, fmt.Errorf("%w: %v", ErrInvalidDuration, duration)
	}

	// Sampling needs exclusive control of the playback position.
	s.video.Pause()

	s.state = StateRunning
	s.series = nil
	s.progress = sampler.Progress{}
	s.reason = ""
	s.runID = uuid.New().String()
	s.cancel = cancel

	return run{
		id:       s.runID,
		video:    s.video,
		regions:  sampler.Regions{Reaction: copyRegion(s.reaction), Background: copyRegion(s.background)},
		cfg:      s.cfg,
		duration: duration,
	}, nil
}

func (s *Session) reportProgress(p sampler.Progress) {
	s.mu.Lock()
	s.progress = p
	s.mu.Unlock()

	if s.onProgress != nil {
		s.onProgress(p)
	}
}

// finish records the run's result and terminal state.
func (s *Session) finish(series sampler.TimeSeries, runErr error, elapsed time.Duration) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.series = series
	s.cancel = nil
	switch {
	case runErr != nil:
		s.state = StateFailed
		s.reason = runErr.Error()
	case len(series) == 0:
		s.state = StateCompletedEmpty
	default:
		s.state = StateCompleted
	}

	return Outcome{
		RunID:   s.runID,
		State:   s.state,
		Samples: len(series),
		Reason:  s.reason,
		Elapsed: elapsed,
	}
}

// Preview decodes the frame at t for the region drawing UI.
func (s *Session) Preview(ctx context.Context, t float64) (image.Image, error) {
	s.mu.RLock()
	video, state, timeout := s.video, s.state, s.cfg.SeekTimeout
	s.mu.RUnlock()

	if state == StateRunning {
		return nil, ErrBusy
	}
	if video == nil {
		return nil, fmt.Errorf("%w: no video loaded", ErrPrecondition)
	}

	if !s.playback.TryLock() {
		return nil, ErrBusy
	}
	defer s.playback.Unlock()

	if err := sampler.AwaitSeek(ctx, video, t, timeout); err != nil {
		return nil, err
	}

	frame := gocv.NewMat()
	defer frame.Close()
	if err := video.Render(&frame); err != nil {
		return nil, fmt.Errorf("%w: %w", sampler.ErrRasterize, err)
	}

	if frame.Channels() == 4 {
		bgr := gocv.NewMat()
		defer bgr.Close()
		gocv.CvtColor(frame, &bgr, gocv.ColorBGRAToBGR)
		return bgr.ToImage()
	}
	return frame.ToImage()
}

func copyRegion(r *region.Normalized) *region.Normalized {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}
