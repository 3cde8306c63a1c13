// Package region maps user-drawn rectangles between the display surface and native frame rasters.
package region

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalid is returned when a normalized region is malformed.
var ErrInvalid = errors.New("invalid region")

// Kind identifies one of the two tracked regions.
type Kind string

const (
	// KindReaction is the region where the color change happens.
	KindReaction Kind = "reaction"
	// KindBackground is the reference region used to factor out lighting drift.
	KindBackground Kind = "background"
)

// ParseKind converts a string to a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindReaction, KindBackground:
		return Kind(s), nil
	}
	return "", fmt.Errorf("%w: unknown kind %q", ErrInvalid, s)
}

// Normalized is a rectangle expressed as fractions of the surface it was drawn on,
// with the origin at the top-left corner.
type Normalized struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Absolute is a rectangle in integer pixels within a specific raster.
type Absolute struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Area returns the number of pixels covered by the rectangle.
func (a Absolute) Area() int {
	if a.Width <= 0 || a.Height <= 0 {
		return 0
	}
	return a.Width * a.Height
}

// Validate checks that every component is a finite fraction in [0, 1].
// Overhang past the right or bottom edge is tolerated and clamped on use.
func (n Normalized) Validate() error {
	for name, v := range map[string]float64{"x": n.X, "y": n.Y, "width": n.Width, "height": n.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > 1 {
			return fmt.Errorf("%w: %s=%v out of [0,1]", ErrInvalid, name, v)
		}
	}
	return nil
}

// String renders the region in the "x,y,w,h" form accepted by Parse.
func (n Normalized) String() string {
	return fmt.Sprintf("%.4f,%.4f,%.4f,%.4f", n.X, n.Y, n.Width, n.Height)
}

// Parse reads a region from "x,y,width,height".
func Parse(s string) (Normalized, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Normalized{}, fmt.Errorf("%w: expected x,y,width,height, got %q", ErrInvalid, s)
	}

	var vals [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Normalized{}, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		vals[i] = v
	}

	n := Normalized{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}
	if err := n.Validate(); err != nil {
		return Normalized{}, err
	}
	return n, nil
}

// FromPixels builds a normalized region from two drag corners on a display of size w×h.
// The corners may be given in any order. Returns nil for a degenerate surface.
func FromPixels(x0, y0, x1, y1 float64, w, h int) *Normalized {
	if w <= 0 || h <= 0 {
		return nil
	}

	left, right := math.Min(x0, x1), math.Max(x0, x1)
	top, bottom := math.Min(y0, y1), math.Max(y0, y1)

	left = clampF(left, 0, float64(w))
	right = clampF(right, 0, float64(w))
	top = clampF(top, 0, float64(h))
	bottom = clampF(bottom, 0, float64(h))

	return &Normalized{
		X:      left / float64(w),
		Y:      top / float64(h),
		Width:  (right - left) / float64(w),
		Height: (bottom - top) / float64(h),
	}
}

// ToDisplay scales r onto a display surface of w×h without clamping.
// Used to redraw regions after the surface is resized.
func ToDisplay(r *Normalized, w, h int) *Absolute {
	if r == nil || w <= 0 || h <= 0 {
		return nil
	}
	a := scale(r, w, h)
	return &a
}

// ToAbsolute maps r onto a processing raster of w×h, clamped to the raster bounds.
// It returns nil when r is nil, the raster is degenerate, or clamping leaves
// no usable area. A nil result means the region is unusable for this frame.
func ToAbsolute(r *Normalized, w, h int) *Absolute {
	if r == nil || w <= 0 || h <= 0 {
		return nil
	}

	a := scale(r, w, h)

	a.X = clampI(a.X, 0, w)
	a.Y = clampI(a.Y, 0, h)
	a.Width = min(a.Width, w-a.X)
	a.Height = min(a.Height, h-a.Y)

	if a.Width <= 0 || a.Height <= 0 {
		return nil
	}
	return &a
}

func scale(r *Normalized, w, h int) Absolute {
	return Absolute{
		X:      int(math.Round(r.X * float64(w))),
		Y:      int(math.Round(r.Y * float64(h))),
		Width:  int(math.Round(r.Width * float64(w))),
		Height: int(math.Round(r.Height * float64(h))),
	}
}

func clampI(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

func clampF(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
