// Package capture provides video sources and camera recording using GoCV (OpenCV).
package capture

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// Default camera settings for reaction recordings.
const (
	DefaultFPS    = 15
	DefaultWidth  = 1280
	DefaultHeight = 720
)

var (
	// ErrCameraNotOpen is returned when reading from a camera that is not open.
	ErrCameraNotOpen = errors.New("camera is not open")
	// ErrNoFrame is returned when the device delivers no usable frame.
	ErrNoFrame = errors.New("camera delivered no frame")
)

// Camera is a frame source the Recorder can drive.
type Camera interface {
	Open() error
	Close() error
	ReadFrame() (*gocv.Mat, error)
	Size() (width, height int)
	SetFPS(fps int)
	SetResolution(width, height int)
	FPS() int
	IsOpen() bool
}

// deviceCamera reads from a local capture device. Resolution and frame rate
// are requests; the device may settle on something else, which Size reports
// after Open.
type deviceCamera struct {
	deviceID int

	mu     sync.Mutex
	dev    *gocv.VideoCapture
	fps    int
	want   [2]int // requested width, height
	actual [2]int // negotiated width, height
}

// NewCamera returns a Camera for the given device index.
func NewCamera(deviceID int) Camera {
	return &deviceCamera{
		deviceID: deviceID,
		fps:      DefaultFPS,
		want:     [2]int{DefaultWidth, DefaultHeight},
		actual:   [2]int{DefaultWidth, DefaultHeight},
	}
}

func (c *deviceCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dev != nil {
		return nil
	}

	dev, err := gocv.OpenVideoCapture(c.deviceID)
	if err != nil {
		return fmt.Errorf("open device %d: %w", c.deviceID, err)
	}

	dev.Set(gocv.VideoCaptureFrameWidth, float64(c.want[0]))
	dev.Set(gocv.VideoCaptureFrameHeight, float64(c.want[1]))
	dev.Set(gocv.VideoCaptureFPS, float64(c.fps))

	c.actual = c.want
	if w := int(dev.Get(gocv.VideoCaptureFrameWidth)); w > 0 {
		c.actual[0] = w
	}
	if h := int(dev.Get(gocv.VideoCaptureFrameHeight)); h > 0 {
		c.actual[1] = h
	}

	c.dev = dev
	return nil
}

func (c *deviceCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dev == nil {
		return nil
	}
	err := c.dev.Close()
	c.dev = nil
	return err
}

// ReadFrame grabs the next frame. The caller closes it.
func (c *deviceCamera) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dev == nil {
		return nil, ErrCameraNotOpen
	}

	frame := gocv.NewMat()
	if !c.dev.Read(&frame) || frame.Empty() {
		frame.Close()
		return nil, ErrNoFrame
	}
	return &frame, nil
}

// Size reports the negotiated size once open, the requested size before.
func (c *deviceCamera) Size() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dev == nil {
		return c.want[0], c.want[1]
	}
	return c.actual[0], c.actual[1]
}

// SetFPS ignores non-positive values. An open device is updated immediately.
func (c *deviceCamera) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.fps = fps
	if c.dev != nil {
		c.dev.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

// SetResolution takes effect on the next Open. Non-positive values are ignored.
func (c *deviceCamera) SetResolution(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.want = [2]int{width, height}
}

func (c *deviceCamera) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.fps
}

func (c *deviceCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.dev != nil
}
