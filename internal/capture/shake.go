package capture

import (
	"image"

	"gocv.io/x/gocv"
)

// Shake detection constants.
const (
	// ShakeBlurSize is the Gaussian kernel applied before differencing.
	ShakeBlurSize = 21
	// ShakeDiffThreshold is the per-pixel gray difference that counts as changed.
	ShakeDiffThreshold = 25
	// DefaultShakeThreshold is the percentage of changed pixels that marks a frame unsteady.
	DefaultShakeThreshold = 5.0
)

// ShakeDetector flags frames that differ sharply from the previous one, which
// during a recording means the camera or the plate moved. A color reaction
// changes slowly and stays under the threshold between consecutive frames.
type ShakeDetector struct {
	threshold float64
	prev      gocv.Mat
	primed    bool
}

// NewShakeDetector creates a detector. threshold is a percentage of pixels;
// non-positive values select DefaultShakeThreshold.
func NewShakeDetector(threshold float64) *ShakeDetector {
	if threshold <= 0 {
		threshold = DefaultShakeThreshold
	}
	return &ShakeDetector{threshold: threshold, prev: gocv.NewMat()}
}

// Check compares frame with the previous one and reports whether it moved,
// along with the percentage of pixels that changed. The first frame only primes the detector.
func (d *ShakeDetector) Check(frame gocv.Mat) (bool, float64) {
	if frame.Empty() {
		return false, 0
	}

	gray := gocv.NewMat()
	defer gray.Close()
	switch frame.Channels() {
	case 1:
		frame.CopyTo(&gray)
	case 4:
		gocv.CvtColor(frame, &gray, gocv.ColorBGRAToGray)
	default:
		gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: ShakeBlurSize, Y: ShakeBlurSize}, 0, 0, gocv.BorderDefault)

	if !d.primed || d.prev.Cols() != blurred.Cols() || d.prev.Rows() != blurred.Rows() {
		blurred.CopyTo(&d.prev)
		d.primed = true
		return false, 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, d.prev, &diff)

	changed := gocv.NewMat()
	defer changed.Close()
	gocv.Threshold(diff, &changed, ShakeDiffThreshold, 255, gocv.ThresholdBinary)

	percent := float64(gocv.CountNonZero(changed)) / float64(changed.Rows()*changed.Cols()) * 100
	blurred.CopyTo(&d.prev)

	return percent > d.threshold, percent
}

// Reset forgets the previous frame.
func (d *ShakeDetector) Reset() {
	d.primed = false
}

// Close releases the stored frame.
func (d *ShakeDetector) Close() {
	d.prev.Close()
	d.primed = false
}
