package sampler

import (
	"github.com/corona10/goimagehash"
	"gocv.io/x/gocv"
)

// staleDetector flags frames that hash identically to the previous step's frame.
// Some decoders report a finished seek before the new frame is paintable, so a
// repeated hash usually means the settle delay was too short.
type staleDetector struct {
	last *goimagehash.ImageHash
}

// check hashes raster and reports whether it matches the previous frame.
func (d *staleDetector) check(raster gocv.Mat) (bool, error) {
	img, err := raster.ToImage()
	if err != nil {
		return false, err
	}

	hash, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return false, err
	}

	stale := false
	if d.last != nil {
		distance, err := d.last.Distance(hash)
		if err != nil {
			return false, err
		}
		stale = distance == 0
	}

	d.last = hash
	return stale, nil
}
