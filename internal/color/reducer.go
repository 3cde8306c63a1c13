// Package color reduces a region of a video frame to a single mean hue using GoCV (OpenCV).
package color

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/hueassay/internal/region"
)

var (
	// ErrEmptyRegion is returned when the crop has no pixels or falls outside the raster.
	ErrEmptyRegion = errors.New("empty region")
	// ErrColorConversion is returned when the crop cannot be converted to HSV.
	ErrColorConversion = errors.New("color conversion failed")
	// ErrNotReady is returned when the engine is used before Init succeeds.
	ErrNotReady = errors.New("color engine not initialized")
)

// Engine reduces raster regions to hue values.
type Engine interface {
	Ready() bool
	Init(ctx context.Context) error
	MeanHue(raster gocv.Mat, r region.Absolute) (float64, error)
}

// cvEngine is the OpenCV-backed Engine.
type cvEngine struct {
	mu    sync.RWMutex
	ready bool
}

// NewEngine returns an uninitialized OpenCV engine. Call Init before use.
func NewEngine() Engine {
	return &cvEngine{}
}

// Init runs a probe conversion so a broken OpenCV install surfaces at startup
// instead of on the first analyzed frame.
func (e *cvEngine) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	probe := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 255, 0), 2, 2, gocv.MatTypeCV8UC3)
	defer probe.Close()

	hue, err := meanHue(probe, region.Absolute{Width: 2, Height: 2})
	if err != nil {
		return fmt.Errorf("opencv probe: %w", err)
	}
	if hue != 0 {
		return fmt.Errorf("opencv probe: red hue = %v, want 0", hue)
	}

	e.mu.Lock()
	e.ready = true
	e.mu.Unlock()
	return nil
}

// Ready reports whether Init completed successfully.
func (e *cvEngine) Ready() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ready
}

// MeanHue returns the mean hue (0-179) of r within raster.
func (e *cvEngine) MeanHue(raster gocv.Mat, r region.Absolute) (float64, error) {
	if !e.Ready() {
		return 0, ErrNotReady
	}
	return meanHue(raster, r)
}

// meanHue crops raster to r, drops alpha if present, converts BGR to HSV
// and averages the hue channel.
func meanHue(raster gocv.Mat, r region.Absolute) (float64, error) {
	if r.Area() == 0 || raster.Empty() {
		return 0, ErrEmptyRegion
	}

	rect := image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
	bounds := image.Rect(0, 0, raster.Cols(), raster.Rows())
	if !rect.In(bounds) {
		return 0, fmt.Errorf("%w: %v outside %v", ErrEmptyRegion, rect, bounds)
	}

	crop := raster.Region(rect)
	defer crop.Close()

	bgr := gocv.NewMat()
	defer bgr.Close()

	switch crop.Channels() {
	case 4:
		// HSV conversion is undefined for four-channel input.
		gocv.CvtColor(crop, &bgr, gocv.ColorBGRAToBGR)
	case 3:
		crop.CopyTo(&bgr)
	default:
		return 0, fmt.Errorf("%w: unsupported channel count %d", ErrColorConversion, crop.Channels())
	}

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(bgr, &hsv, gocv.ColorBGRToHSV)

	if hsv.Empty() || hsv.Channels() != 3 {
		return 0, ErrColorConversion
	}

	mean := hsv.Mean()
	return mean.Val1, nil
}
