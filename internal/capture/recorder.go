package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// RecordCodec is the FourCC used for recordings. MJPG keeps every frame
// independently decodable, which makes later seeks exact.
const RecordCodec = "MJPG"

var (
	// ErrInvalidDuration is returned when a recording length is not positive.
	ErrInvalidDuration = errors.New("recording duration must be positive")
	// ErrCameraBusy is returned when the camera is already recording or streaming.
	ErrCameraBusy = errors.New("camera is busy")
)

// Recorder writes camera frames to a video file. It owns the camera: one
// recording or viewfinder stream at a time.
type Recorder struct {
	camera Camera
	logger *zap.Logger
	shake  float64
	busy   sync.Mutex
}

// Recording describes a finished recording.
type Recording struct {
	Path   string `json:"path"`
	Frames int    `json:"frames"`
	// Unsteady counts frames where the scene jumped against the previous frame.
	Unsteady int `json:"unsteady"`
}

// NewRecorder creates a Recorder for the given camera.
func NewRecorder(camera Camera, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{camera: camera, logger: logger, shake: DefaultShakeThreshold}
}

// SetShakeThreshold sets the percentage of changed pixels that marks a
// recorded frame unsteady. Non-positive values are ignored.
func (r *Recorder) SetShakeThreshold(percent float64) {
	if percent > 0 {
		r.shake = percent
	}
}

// Record captures frames for the given length and writes them to path.
// Cancelling ctx stops the recording early and keeps what was written so far.
func (r *Recorder) Record(ctx context.Context, path string, length time.Duration) (Recording, error) {
	rec := Recording{Path: path}
	if length <= 0 {
		return rec, ErrInvalidDuration
	}
	if !r.busy.TryLock() {
		return rec, ErrCameraBusy
	}
	defer r.busy.Unlock()

	if err := r.camera.Open(); err != nil {
		return rec, fmt.Errorf("open camera: %w", err)
	}
	defer r.camera.Close()

	fps := r.camera.FPS()
	w, h := r.camera.Size()

	writer, err := gocv.VideoWriterFile(path, RecordCodec, float64(fps), w, h, true)
	if err != nil {
		return rec, fmt.Errorf("create video writer: %w", err)
	}
	defer writer.Close()

	shake := NewShakeDetector(r.shake)
	defer shake.Close()

	r.logger.Info("recording started",
		zap.String("path", path),
		zap.Int("fps", fps),
		zap.Int("width", w),
		zap.Int("height", h),
		zap.Duration("length", length),
	)

	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	deadline := time.NewTimer(length)
	defer deadline.Stop()

	done := func(msg string) (Recording, error) {
		fields := []zap.Field{zap.Int("frames", rec.Frames), zap.Int("unsteady", rec.Unsteady)}
		if rec.Unsteady > 0 {
			r.logger.Warn(msg+" with unsteady frames", fields...)
		} else {
			r.logger.Info(msg, fields...)
		}
		return rec, nil
	}

	for {
		select {
		case <-ctx.Done():
			return done("recording cancelled")
		case <-deadline.C:
			return done("recording finished")
		case <-ticker.C:
			frame, err := r.camera.ReadFrame()
			if err != nil {
				r.logger.Warn("dropping frame", zap.Error(err))
				continue
			}

			if frame.Cols() != w || frame.Rows() != h {
				resized := gocv.NewMat()
				gocv.Resize(*frame, &resized, image.Point{X: w, Y: h}, 0, 0, gocv.InterpolationLinear)
				frame.Close()
				frame = &resized
			}

			if moved, changed := shake.Check(*frame); moved {
				rec.Unsteady++
				r.logger.Debug("unsteady frame",
					zap.Int("frame", rec.Frames),
					zap.Float64("changed_percent", changed),
					zap.Float64("threshold", shake.threshold),
				)
			}

			err = writer.Write(*frame)
			frame.Close()
			if err != nil {
				return rec, fmt.Errorf("write frame: %w", err)
			}
			rec.Frames++
		}
	}
}

// Stream opens the camera and hands every frame to fn at the camera's frame
// rate until ctx is done or fn returns an error. The frame is closed after fn returns.
func (r *Recorder) Stream(ctx context.Context, fn func(frame *gocv.Mat) error) error {
	if !r.busy.TryLock() {
		return ErrCameraBusy
	}
	defer r.busy.Unlock()

	if err := r.camera.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}
	defer r.camera.Close()

	ticker := time.NewTicker(time.Second / time.Duration(r.camera.FPS()))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			frame, err := r.camera.ReadFrame()
			if err != nil {
				continue
			}
			err = fn(frame)
			frame.Close()
			if err != nil {
				return err
			}
		}
	}
}
