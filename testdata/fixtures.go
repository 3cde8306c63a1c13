// Package testdata builds synthetic reaction footage for tests.
package testdata

import (
	"gocv.io/x/gocv"

	"github.com/ayusman/hueassay/internal/capture"
)

// HueColor returns the BGR scalar of an OpenCV hue (0-179) at full saturation and value.
func HueColor(hue float64) gocv.Scalar {
	hsv := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(hue, 255, 255, 0), 1, 1, gocv.MatTypeCV8UC3)
	defer hsv.Close()

	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(hsv, &bgr, gocv.ColorHSVToBGR)

	px := bgr.GetVecbAt(0, 0)
	return gocv.NewScalar(float64(px[0]), float64(px[1]), float64(px[2]), 0)
}

// HueFrame returns a w×h BGR frame filled with one hue. The caller closes it.
func HueFrame(hue float64, w, h int) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(HueColor(hue), h, w, gocv.MatTypeCV8UC3)
}

// HueSequence returns one frame per hue. The caller closes them.
func HueSequence(hues []float64, w, h int) []*gocv.Mat {
	frames := make([]*gocv.Mat, 0, len(hues))
	for _, hue := range hues {
		frame := HueFrame(hue, w, h)
		frames = append(frames, &frame)
	}
	return frames
}

// HueRamp is a MockVideo color function that moves linearly from one hue to
// another over duration seconds, like a slow color-change reaction.
func HueRamp(from, to, duration float64) capture.ColorFunc {
	return func(t float64) gocv.Scalar {
		f := t / duration
		f = max(0, min(1, f))
		return HueColor(from + (to-from)*f)
	}
}
