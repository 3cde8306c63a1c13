package color

import (
	"context"
	"errors"
	"image"
	"math"
	"testing"

	"gocv.io/x/gocv"

	"github.com/ayusman/hueassay/internal/region"
)

func newReadyEngine(t *testing.T) Engine {
	t.Helper()

	e := NewEngine()
	if e.Ready() {
		t.Fatal("engine should not be ready before Init")
	}
	if err := e.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if !e.Ready() {
		t.Fatal("engine should be ready after Init")
	}
	return e
}

func TestMeanHue_SolidColors(t *testing.T) {
	e := newReadyEngine(t)

	// Scalars are BGR; OpenCV hue is degrees/2.
	tests := []struct {
		name    string
		bgr     gocv.Scalar
		wantHue float64
	}{
		{name: "red", bgr: gocv.NewScalar(0, 0, 255, 0), wantHue: 0},
		{name: "green", bgr: gocv.NewScalar(0, 255, 0, 0), wantHue: 60},
		{name: "blue", bgr: gocv.NewScalar(255, 0, 0, 0), wantHue: 120},
		{name: "yellow", bgr: gocv.NewScalar(0, 255, 255, 0), wantHue: 30},
		{name: "cyan", bgr: gocv.NewScalar(255, 255, 0, 0), wantHue: 90},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raster := gocv.NewMatWithSizeFromScalar(tt.bgr, 48, 64, gocv.MatTypeCV8UC3)
			defer raster.Close()

			hue, err := e.MeanHue(raster, region.Absolute{X: 8, Y: 8, Width: 16, Height: 16})
			if err != nil {
				t.Fatalf("MeanHue() error = %v", err)
			}
			if math.Abs(hue-tt.wantHue) > 1 {
				t.Errorf("MeanHue() = %.2f, want %.2f", hue, tt.wantHue)
			}
		})
	}
}

func TestMeanHue_DropsAlpha(t *testing.T) {
	e := newReadyEngine(t)

	raster := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 255, 0, 128), 20, 20, gocv.MatTypeCV8UC4)
	defer raster.Close()

	hue, err := e.MeanHue(raster, region.Absolute{Width: 20, Height: 20})
	if err != nil {
		t.Fatalf("MeanHue() error = %v", err)
	}
	if math.Abs(hue-60) > 1 {
		t.Errorf("MeanHue() = %.2f, want 60", hue)
	}
}

func TestMeanHue_OnlyCountsCrop(t *testing.T) {
	e := newReadyEngine(t)

	raster := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), 40, 40, gocv.MatTypeCV8UC3)
	defer raster.Close()

	// Paint the left half green, leave the right half blue.
	left := raster.Region(image.Rect(0, 0, 20, 40))
	left.SetTo(gocv.NewScalar(0, 255, 0, 0))
	left.Close()

	hue, err := e.MeanHue(raster, region.Absolute{X: 0, Y: 0, Width: 20, Height: 40})
	if err != nil {
		t.Fatalf("MeanHue() error = %v", err)
	}
	if math.Abs(hue-60) > 1 {
		t.Errorf("left half MeanHue() = %.2f, want 60", hue)
	}

	hue, err = e.MeanHue(raster, region.Absolute{X: 0, Y: 0, Width: 40, Height: 40})
	if err != nil {
		t.Fatalf("MeanHue() error = %v", err)
	}
	if math.Abs(hue-90) > 1 {
		t.Errorf("whole frame MeanHue() = %.2f, want 90", hue)
	}
}

func TestMeanHue_Errors(t *testing.T) {
	e := newReadyEngine(t)

	raster := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8UC3)
	defer raster.Close()

	gray := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8UC1)
	defer gray.Close()

	tests := []struct {
		name    string
		raster  gocv.Mat
		region  region.Absolute
		wantErr error
	}{
		{name: "zero width", raster: raster, region: region.Absolute{Width: 0, Height: 5}, wantErr: ErrEmptyRegion},
		{name: "outside raster", raster: raster, region: region.Absolute{X: 8, Y: 0, Width: 5, Height: 5}, wantErr: ErrEmptyRegion},
		{name: "single channel", raster: gray, region: region.Absolute{Width: 5, Height: 5}, wantErr: ErrColorConversion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.MeanHue(tt.raster, tt.region)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("MeanHue() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestMeanHue_NotReady(t *testing.T) {
	e := NewEngine()

	raster := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8UC3)
	defer raster.Close()

	if _, err := e.MeanHue(raster, region.Absolute{Width: 5, Height: 5}); !errors.Is(err, ErrNotReady) {
		t.Errorf("MeanHue() error = %v, want ErrNotReady", err)
	}
}

func TestInit_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := NewEngine()
	if err := e.Init(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Init() error = %v, want context.Canceled", err)
	}
	if e.Ready() {
		t.Error("engine should not be ready after failed Init")
	}
}
