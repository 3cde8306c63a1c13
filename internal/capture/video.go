package capture

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"gocv.io/x/gocv"
)

var (
	// ErrDecoder is returned when the decoder reports a failure while seeking.
	ErrDecoder = errors.New("decoder error")
	// ErrNoFrame is returned by Render when no frame has been decoded yet.
	ErrNoFrame = errors.New("no decoded frame")
)

// VideoSource is a seekable video with an asynchronous seek-completion signal.
type VideoSource interface {
	// Size returns the native frame dimensions in pixels.
	Size() (width, height int)
	// Duration returns the video length in seconds.
	Duration() float64
	// Seek requests the frame at t seconds. The returned channel receives nil once
	// the frame is decoded, or an error wrapping ErrDecoder. Some decoders never
	// signal at all, so callers must bound the wait.
	Seek(t float64) <-chan error
	// Render copies the current frame into dst at native resolution.
	Render(dst *gocv.Mat) error
	// Pause stops any active playback.
	Pause()
	Close() error
}

// decoder is the part of gocv.VideoCapture a VideoFile drives.
type decoder interface {
	Set(prop gocv.VideoCaptureProperties, param float64)
	Read(m *gocv.Mat) bool
	Close() error
}

// VideoFile is a VideoSource backed by a file opened with GoCV.
//
// Decoding happens outside the lock, so a Read that never returns cannot block
// Render or Close. A stuck decoder is released by its seek goroutine once Read
// returns, if the file was closed in the meantime.
type VideoFile struct {
	path     string
	width    int
	height   int
	duration float64

	mu       sync.Mutex
	dec      decoder
	frame    gocv.Mat
	inflight bool
	closed   bool
}

// OpenVideoFile opens path for frame-accurate seeking.
func OpenVideoFile(path string) (*VideoFile, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrDecoder, path, err)
	}

	fps := vc.Get(gocv.VideoCaptureFPS)
	frames := vc.Get(gocv.VideoCaptureFrameCount)

	duration := math.NaN()
	if fps > 0 && frames > 0 {
		duration = frames / fps
	}

	v := newVideoFile(vc, int(vc.Get(gocv.VideoCaptureFrameWidth)), int(vc.Get(gocv.VideoCaptureFrameHeight)), duration)
	v.path = path
	return v, nil
}

func newVideoFile(dec decoder, width, height int, duration float64) *VideoFile {
	return &VideoFile{
		dec:      dec,
		frame:    gocv.NewMat(),
		width:    width,
		height:   height,
		duration: duration,
	}
}

// Path returns the file the video was opened from.
func (v *VideoFile) Path() string {
	return v.path
}

// Size returns the native frame dimensions.
func (v *VideoFile) Size() (int, int) {
	return v.width, v.height
}

// Duration returns the length in seconds, or NaN if the container does not report it.
func (v *VideoFile) Duration() float64 {
	return v.duration
}

// Seek positions the decoder at t and decodes one frame on a separate goroutine.
// A seek requested while an earlier one is still decoding fails immediately.
func (v *VideoFile) Seek(t float64) <-chan error {
	done := make(chan error, 1)

	v.mu.Lock()
	switch {
	case v.closed:
		v.mu.Unlock()
		done <- fmt.Errorf("%w: video closed", ErrDecoder)
		return done
	case v.inflight:
		v.mu.Unlock()
		done <- fmt.Errorf("%w: decoder still busy with an earlier seek", ErrDecoder)
		return done
	}
	v.inflight = true
	dec := v.dec
	v.mu.Unlock()

	go func() {
		frame := gocv.NewMat()
		dec.Set(gocv.VideoCapturePosMsec, t*1000)
		ok := dec.Read(&frame)

		v.mu.Lock()
		defer v.mu.Unlock()
		v.inflight = false

		if v.closed {
			frame.Close()
			dec.Close()
			done <- fmt.Errorf("%w: video closed", ErrDecoder)
			return
		}
		if !ok || frame.Empty() {
			frame.Close()
			done <- fmt.Errorf("%w: no frame at %.2fs", ErrDecoder, t)
			return
		}

		v.frame.Close()
		v.frame = frame
		done <- nil
	}()

	return done
}

// Render copies the last decoded frame into dst.
func (v *VideoFile) Render(dst *gocv.Mat) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed || v.frame.Empty() {
		return ErrNoFrame
	}
	v.frame.CopyTo(dst)
	return nil
}

// Pause is a no-op: a file capture only advances when read.
func (v *VideoFile) Pause() {}

// Close releases the decoder. If a seek is still decoding, the decoder is
// released when that seek finishes and Close returns without waiting.
func (v *VideoFile) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return nil
	}
	v.closed = true
	v.frame.Close()

	if v.inflight {
		return nil
	}
	return v.dec.Close()
}
