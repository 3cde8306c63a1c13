package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/hueassay/internal/capture"
	"github.com/ayusman/hueassay/internal/session"
)

// VideoOpener opens a video file for analysis.
type VideoOpener func(path string) (capture.VideoSource, error)

// OpenVideoFile is the default VideoOpener.
func OpenVideoFile(path string) (capture.VideoSource, error) {
	v, err := capture.OpenVideoFile(path)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// VideoConfig holds the dependencies of VideoHandler. Recorder may be nil
// when no camera is configured.
type VideoConfig struct {
	Session       *session.Session
	Open          VideoOpener
	Recorder      *capture.Recorder
	RecordingsDir string
	MaxRecording  time.Duration
	Logger        *zap.Logger
}

// VideoHandler loads videos into the session and records new ones from the camera.
type VideoHandler struct {
	config VideoConfig
}

// NewVideoHandler creates a new VideoHandler.
func NewVideoHandler(config VideoConfig) *VideoHandler {
	if config.Open == nil {
		config.Open = OpenVideoFile
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.MaxRecording <= 0 {
		config.MaxRecording = 10 * time.Minute
	}
	return &VideoHandler{config: config}
}

// ServeHTTP routes /api/video and /api/video/record.
func (h *VideoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/video")
	path = strings.Trim(path, "/")

	switch {
	case path == "" && r.Method == http.MethodGet:
		h.info(w, r)
	case path == "" && r.Method == http.MethodPost:
		h.load(w, r)
	case path == "record" && r.Method == http.MethodPost:
		h.record(w, r)
	case path == "" || path == "record":
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	default:
		http.NotFound(w, r)
	}
}

type videoResponse struct {
	Loaded   bool    `json:"loaded"`
	Path     string  `json:"path,omitempty"`
	Width    int     `json:"width,omitempty"`
	Height   int     `json:"height,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

type loadVideoRequest struct {
	Path string `json:"path"`
}

type recordRequest struct {
	Seconds float64 `json:"seconds"`
}

type recordResponse struct {
	Frames   int           `json:"frames"`
	Unsteady int           `json:"unsteady"`
	Video    videoResponse `json:"video"`
}

func describe(v capture.VideoSource) videoResponse {
	if v == nil {
		return videoResponse{}
	}
	w, h := v.Size()
	resp := videoResponse{Loaded: true, Width: w, Height: h, Duration: v.Duration()}
	if p, ok := v.(interface{ Path() string }); ok {
		resp.Path = p.Path()
	}
	return resp
}

// info handles GET /api/video.
func (h *VideoHandler) info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, describe(h.config.Session.Video()))
}

// load handles POST /api/video and replaces the session's video.
func (h *VideoHandler) load(w http.ResponseWriter, r *http.Request) {
	var req loadVideoRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "Path is required")
		return
	}

	video, err := h.openAndLoad(req.Path)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, describe(video))
}

// record handles POST /api/video/record. It blocks for the recording length
// and then loads the new file.
func (h *VideoHandler) record(w http.ResponseWriter, r *http.Request) {
	if h.config.Recorder == nil {
		writeError(w, http.StatusNotFound, "No camera configured")
		return
	}

	var req recordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	length := time.Duration(req.Seconds * float64(time.Second))
	if length <= 0 || length > h.config.MaxRecording {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Seconds must be in (0, %v]", h.config.MaxRecording.Seconds()))
		return
	}
	if h.config.Session.Status().State == session.StateRunning {
		writeErr(w, session.ErrBusy)
		return
	}

	if err := os.MkdirAll(h.config.RecordingsDir, 0755); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create recordings directory")
		return
	}
	path := filepath.Join(h.config.RecordingsDir, fmt.Sprintf("reaction-%s.avi", time.Now().Format("20060102-150405")))

	rec, err := h.config.Recorder.Record(r.Context(), path, length)
	if err != nil {
		writeErr(w, err)
		return
	}
	if rec.Frames == 0 {
		writeError(w, http.StatusInternalServerError, "Camera delivered no frames")
		return
	}

	video, err := h.openAndLoad(path)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, recordResponse{Frames: rec.Frames, Unsteady: rec.Unsteady, Video: describe(video)})
}

func (h *VideoHandler) openAndLoad(path string) (capture.VideoSource, error) {
	video, err := h.config.Open(path)
	if err != nil {
		h.config.Logger.Warn("failed to open video", zap.String("path", path), zap.Error(err))
		return nil, err
	}
	if err := h.config.Session.LoadVideo(video); err != nil {
		video.Close()
		return nil, err
	}
	return video, nil
}
