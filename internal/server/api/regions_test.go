package api

import (
	"net/http"
	"testing"

	"github.com/ayusman/hueassay/internal/region"
)

func TestRegionsHandler_SetNormalized(t *testing.T) {
	sess := newTestSession(t)
	handler := NewRegionsHandler(sess)

	body := setRegionRequest{X: 0.25, Y: 0.5, Width: 0.1, Height: 0.2}
	rec := do(t, handler, http.MethodPut, "/api/regions/reaction", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	want := region.Normalized{X: 0.25, Y: 0.5, Width: 0.1, Height: 0.2}
	if got := sess.Regions().Reaction; got == nil || *got != want {
		t.Errorf("reaction = %+v, want %+v", got, want)
	}
	if sess.Regions().Background != nil {
		t.Error("background should still be unset")
	}
}

func TestRegionsHandler_SetFromDrag(t *testing.T) {
	sess := newTestSession(t)
	handler := NewRegionsHandler(sess)

	// Dragged bottom-right to top-left on an 800x600 surface.
	body := setRegionRequest{Drag: &dragRequest{X0: 400, Y0: 300, X1: 200, Y1: 150, SurfaceWidth: 800, SurfaceHeight: 600}}
	rec := do(t, handler, http.MethodPut, "/api/regions/background", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	want := region.Normalized{X: 0.25, Y: 0.25, Width: 0.25, Height: 0.25}
	if got := sess.Regions().Background; got == nil || *got != want {
		t.Errorf("background = %+v, want %+v", got, want)
	}
}

func TestRegionsHandler_SetErrors(t *testing.T) {
	handler := NewRegionsHandler(newTestSession(t))

	tests := []struct {
		name   string
		target string
		body   interface{}
		want   int
	}{
		{"unknown kind", "/api/regions/foreground", setRegionRequest{Width: 0.1, Height: 0.1}, http.StatusNotFound},
		{"out of range", "/api/regions/reaction", setRegionRequest{X: 1.2, Width: 0.1, Height: 0.1}, http.StatusBadRequest},
		{"degenerate surface", "/api/regions/reaction", setRegionRequest{Drag: &dragRequest{X1: 10, Y1: 10}}, http.StatusBadRequest},
		{"invalid json", "/api/regions/reaction", "nope", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, handler, http.MethodPut, tt.target, tt.body)
			if rec.Code != tt.want {
				t.Errorf("expected status %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestRegionsHandler_GetWithDisplay(t *testing.T) {
	sess := newTestSession(t)
	loadMock(t, sess)
	handler := NewRegionsHandler(sess)

	rec := do(t, handler, http.MethodGet, "/api/regions?width=1000&height=500", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var resp regionsResponse
	decode(t, rec, &resp)

	if resp.Reaction == nil || resp.Background == nil {
		t.Fatalf("expected both regions, got %+v", resp)
	}
	got := resp.Display[region.KindReaction]
	want := region.Absolute{X: 100, Y: 50, Width: 200, Height: 100}
	if got == nil || *got != want {
		t.Errorf("display reaction = %+v, want %+v", got, want)
	}
}

func TestRegionsHandler_Clear(t *testing.T) {
	sess := newTestSession(t)
	loadMock(t, sess)
	handler := NewRegionsHandler(sess)

	rec := do(t, handler, http.MethodDelete, "/api/regions", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}

	if r := sess.Regions(); r.Reaction != nil || r.Background != nil {
		t.Errorf("expected regions cleared, got %+v", r)
	}
}
