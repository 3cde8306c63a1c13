package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/ayusman/hueassay/internal/capture"
	"github.com/ayusman/hueassay/internal/color"
	"github.com/ayusman/hueassay/internal/region"
	"github.com/ayusman/hueassay/internal/sampler"
	"github.com/ayusman/hueassay/internal/session"
	"github.com/ayusman/hueassay/internal/store"
)

// newTestStore creates a new Store with a temporary database for testing.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})

	return s
}

// newTestSession creates a session with an initialized engine and short waits.
func newTestSession(t *testing.T) *session.Session {
	t.Helper()

	engine := color.NewEngine()
	if err := engine.Init(context.Background()); err != nil {
		t.Fatalf("failed to init engine: %v", err)
	}

	cfg := sampler.DefaultConfig()
	cfg.SeekTimeout = 200 * time.Millisecond
	cfg.SettleDelay = time.Millisecond

	return session.New(session.Config{
		Engine:  engine,
		Sampler: cfg,
		Logger:  zaptest.NewLogger(t),
	})
}

// loadMock loads a synthetic 2 second video and both regions into s.
func loadMock(t *testing.T, s *session.Session) *capture.MockVideo {
	t.Helper()

	video := capture.NewMockVideo(160, 120, 2.0, nil)
	if err := s.LoadVideo(video); err != nil {
		t.Fatalf("failed to load video: %v", err)
	}
	if err := s.SetRegion(region.KindReaction, region.Normalized{X: 0.1, Y: 0.1, Width: 0.2, Height: 0.2}); err != nil {
		t.Fatalf("failed to set reaction: %v", err)
	}
	if err := s.SetRegion(region.KindBackground, region.Normalized{X: 0.6, Y: 0.6, Width: 0.2, Height: 0.2}); err != nil {
		t.Fatalf("failed to set background: %v", err)
	}
	return video
}

// do sends a request with an optional JSON body to handler.
func do(t *testing.T, handler http.Handler, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}
