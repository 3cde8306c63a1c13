package api

import (
	"image/jpeg"
	"net/http"
	"testing"
)

func TestPreviewHandler_NoVideo(t *testing.T) {
	handler := NewPreviewHandler(newTestSession(t))

	rec := do(t, handler, http.MethodGet, "/api/preview?t=0", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected status %d, got %d", http.StatusConflict, rec.Code)
	}
}

func TestPreviewHandler_ServesJPEG(t *testing.T) {
	sess := newTestSession(t)
	loadMock(t, sess)
	handler := NewPreviewHandler(sess)

	tests := []struct {
		name      string
		target    string
		wantWidth int
	}{
		{"native size", "/api/preview?t=1", 160},
		{"downscaled", "/api/preview?t=0.5&width=80", 80},
		{"no upscaling", "/api/preview?width=640", 160},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, handler, http.MethodGet, tt.target, nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
			}
			if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
				t.Errorf("Content-Type = %q, want image/jpeg", ct)
			}

			img, err := jpeg.Decode(rec.Body)
			if err != nil {
				t.Fatalf("failed to decode jpeg: %v", err)
			}
			if img.Bounds().Dx() != tt.wantWidth {
				t.Errorf("width = %d, want %d", img.Bounds().Dx(), tt.wantWidth)
			}
		})
	}
}

func TestPreviewHandler_BadParams(t *testing.T) {
	sess := newTestSession(t)
	loadMock(t, sess)
	handler := NewPreviewHandler(sess)

	targets := []string{
		"/api/preview?t=abc",
		"/api/preview?t=-1",
		"/api/preview?t=NaN",
		"/api/preview?t=%2BInf",
		"/api/preview?t=Inf",
		"/api/preview?width=0",
		"/api/preview?width=99999",
	}
	for _, target := range targets {
		rec := do(t, handler, http.MethodGet, target, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected status %d, got %d", target, http.StatusBadRequest, rec.Code)
		}
	}
}

func TestPreviewHandler_OutOfRange(t *testing.T) {
	sess := newTestSession(t)
	loadMock(t, sess)
	handler := NewPreviewHandler(sess)

	rec := do(t, handler, http.MethodGet, "/api/preview?t=99", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected status %d, got %d", http.StatusUnprocessableEntity, rec.Code)
	}
}
