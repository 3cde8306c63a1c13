package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap/zaptest"

	"github.com/ayusman/hueassay/internal/capture"
	"github.com/ayusman/hueassay/internal/color"
	"github.com/ayusman/hueassay/internal/sampler"
	"github.com/ayusman/hueassay/internal/session"
	"github.com/ayusman/hueassay/internal/store"
)

// newTestServer wires a store, session and hub the way main does, with a
// synthetic video behind every path.
func newTestServer(t *testing.T) (*httptest.Server, *ProgressHub) {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	engine := color.NewEngine()
	if err := engine.Init(context.Background()); err != nil {
		t.Fatalf("failed to init engine: %v", err)
	}

	cfg := sampler.DefaultConfig()
	cfg.SeekTimeout = 200 * time.Millisecond
	cfg.SettleDelay = time.Millisecond

	logger := zaptest.NewLogger(t)
	hub := NewProgressHub(logger)
	sess := session.New(session.Config{
		Engine:     engine,
		Sampler:    cfg,
		Logger:     logger,
		OnProgress: hub.PublishProgress,
		OnFinish:   hub.PublishFinish,
	})

	srv := New(Config{
		Store:   st,
		Session: sess,
		Hub:     hub,
		Logger:  logger,
		OpenVideo: func(path string) (capture.VideoSource, error) {
			return capture.NewMockVideo(160, 120, 2.0, nil), nil
		},
	})

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts, hub
}

func send(t *testing.T, client *http.Client, method, url, body string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, url, bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, url, err)
	}
	return resp
}

func TestAPI_AnalysisWorkflow(t *testing.T) {
	ts, hub := newTestServer(t)
	client := ts.Client()

	// 1. Subscribe to progress
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/progress"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial error = %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for hub.Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	// 2. Load a video
	resp := send(t, client, http.MethodPost, ts.URL+"/api/video", `{"path": "reaction.mp4"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /api/video status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	resp.Body.Close()

	// 3. Starting without regions is a conflict
	resp = send(t, client, http.MethodPost, ts.URL+"/api/analysis", "")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("POST /api/analysis without regions status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}
	resp.Body.Close()

	// 4. Save a preset and apply it
	resp = send(t, client, http.MethodPost, ts.URL+"/api/presets",
		`{"name": "plate", "reaction": {"x": 0.1, "y": 0.1, "width": 0.2, "height": 0.2}, "background": {"x": 0.6, "y": 0.6, "width": 0.2, "height": 0.2}}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST /api/presets status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	var preset struct {
		ID string `json:"id"`
	}
	json.NewDecoder(resp.Body).Decode(&preset)
	resp.Body.Close()

	resp = send(t, client, http.MethodPost, ts.URL+"/api/presets/"+preset.ID+"/apply", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST apply status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	resp.Body.Close()

	// 5. Start the analysis
	resp = send(t, client, http.MethodPost, ts.URL+"/api/analysis", "")
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("POST /api/analysis status = %d, want %d", resp.StatusCode, http.StatusAccepted)
	}
	resp.Body.Close()

	// 6. Follow progress until the finish event
	var progressEvents int
	var outcome *session.Outcome
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for outcome == nil {
		var e Event
		if err := conn.ReadJSON(&e); err != nil {
			t.Fatalf("websocket read error = %v", err)
		}
		switch e.Type {
		case "progress":
			progressEvents++
		case "finish":
			outcome = e.Outcome
		}
	}

	if progressEvents != 4 {
		t.Errorf("progress events = %d, want 4", progressEvents)
	}
	if outcome.State != session.StateCompleted || outcome.Samples != 4 {
		t.Errorf("outcome = %+v, want completed with 4 samples", outcome)
	}

	// 7. Download the CSV
	resp, err = client.Get(ts.URL + "/api/analysis/csv")
	if err != nil {
		t.Fatalf("GET /api/analysis/csv error = %v", err)
	}
	var body bytes.Buffer
	body.ReadFrom(resp.Body)
	resp.Body.Close()

	lines := strings.Split(strings.TrimSpace(body.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("csv lines = %d, want 5:\n%s", len(lines), body.String())
	}
	if lines[0] != "Time(s),HueReaction,HueBackground" {
		t.Errorf("csv header = %q", lines[0])
	}
}

func TestAPI_HealthCheck(t *testing.T) {
	srv := New(Config{})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var health struct {
		Status string `json:"status"`
		Uptime string `json:"uptime"`
	}
	json.NewDecoder(resp.Body).Decode(&health)

	if health.Status != "ok" {
		t.Errorf("status = %s, want ok", health.Status)
	}
}
