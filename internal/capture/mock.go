package capture

import (
	"fmt"
	"math"
	"sync"

	"gocv.io/x/gocv"
)

// ColorFunc returns the BGR(A) fill color of the synthetic frame at t seconds.
type ColorFunc func(t float64) gocv.Scalar

// MockVideo is a synthetic VideoSource that renders solid-color frames.
// Seeks can be made to stall forever or fail, to exercise timeout handling.
type MockVideo struct {
	mu       sync.Mutex
	width    int
	height   int
	channels int
	duration float64
	color    ColorFunc
	stallAt  func(t float64) bool
	failAt   func(t float64) bool
	renderAt func(t float64) bool
	current  float64
	seeked   bool
	seeks    []float64
	paused   bool
	closed   bool
}

// NewMockVideo creates a 3-channel synthetic video of the given size and duration.
func NewMockVideo(width, height int, duration float64, color ColorFunc) *MockVideo {
	if color == nil {
		color = func(float64) gocv.Scalar { return gocv.NewScalar(0, 0, 255, 0) }
	}
	return &MockVideo{
		width:    width,
		height:   height,
		channels: 3,
		duration: duration,
		color:    color,
	}
}

// SetChannels switches frames between 1 (gray), 3 (BGR) and 4 (BGRA) channels.
func (v *MockVideo) SetChannels(n int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.channels = n
}

// StallWhen makes seeks matching fn never signal completion.
func (v *MockVideo) StallWhen(fn func(t float64) bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stallAt = fn
}

// FailWhen makes seeks matching fn report a decoder error.
func (v *MockVideo) FailWhen(fn func(t float64) bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.failAt = fn
}

// FailRenderWhen makes Render fail for frames at times matching fn, after the
// seek itself succeeded.
func (v *MockVideo) FailRenderWhen(fn func(t float64) bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.renderAt = fn
}

// Seeks returns every timestamp requested so far.
func (v *MockVideo) Seeks() []float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]float64(nil), v.seeks...)
}

// Paused reports whether Pause was called.
func (v *MockVideo) Paused() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.paused
}

func (v *MockVideo) Size() (int, int) { return v.width, v.height }

func (v *MockVideo) Duration() float64 { return v.duration }

func (v *MockVideo) Seek(t float64) <-chan error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.seeks = append(v.seeks, t)
	done := make(chan error, 1)

	switch {
	case v.closed:
		done <- fmt.Errorf("%w: video closed", ErrDecoder)
	case v.stallAt != nil && v.stallAt(t):
		// never signalled
	case v.failAt != nil && v.failAt(t):
		done <- fmt.Errorf("%w: synthetic failure at %.2fs", ErrDecoder, t)
	case t < 0 || t > v.duration || math.IsNaN(t):
		done <- fmt.Errorf("%w: %.2fs out of range", ErrDecoder, t)
	default:
		v.current = t
		v.seeked = true
		done <- nil
	}
	return done
}

func (v *MockVideo) Render(dst *gocv.Mat) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.seeked {
		return ErrNoFrame
	}

	if v.renderAt != nil && v.renderAt(v.current) {
		return fmt.Errorf("synthetic render failure at %.2fs", v.current)
	}

	matType := gocv.MatTypeCV8UC3
	switch v.channels {
	case 1:
		matType = gocv.MatTypeCV8UC1
	case 4:
		matType = gocv.MatTypeCV8UC4
	}

	frame := gocv.NewMatWithSizeFromScalar(v.color(v.current), v.height, v.width, matType)
	defer frame.Close()
	frame.CopyTo(dst)
	return nil
}

func (v *MockVideo) Pause() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.paused = true
}

func (v *MockVideo) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	return nil
}

// MockCamera plays back pre-built frames for recorder tests.
type MockCamera struct {
	frames  []*gocv.Mat
	index   int
	fps     int
	mu      sync.Mutex
	running bool
}

// NewMockCamera creates a camera that loops over frames at the given FPS.
func NewMockCamera(frames []*gocv.Mat, fps int) *MockCamera {
	if fps <= 0 {
		fps = DefaultFPS
	}
	return &MockCamera{frames: frames, fps: fps}
}

func (c *MockCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = true
	c.index = 0
	return nil
}

func (c *MockCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	return nil
}

func (c *MockCamera) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil, ErrCameraNotOpen
	}
	if len(c.frames) == 0 {
		return nil, fmt.Errorf("no frames available")
	}

	frame := c.frames[c.index%len(c.frames)].Clone()
	c.index++
	return &frame, nil
}

func (c *MockCamera) Size() (int, int) {
	if len(c.frames) == 0 {
		return DefaultWidth, DefaultHeight
	}
	return c.frames[0].Cols(), c.frames[0].Rows()
}

func (c *MockCamera) SetFPS(fps int) {
	if fps <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fps = fps
}

// SetResolution is a no-op; the frames define the size.
func (c *MockCamera) SetResolution(width, height int) {}

func (c *MockCamera) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

func (c *MockCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
