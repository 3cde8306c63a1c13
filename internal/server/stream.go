package server

import (
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/hueassay/internal/capture"
)

// StreamHandler serves MJPEG frames from the camera.
type StreamHandler struct {
	recorder *capture.Recorder
	logger   *zap.Logger
}

// NewStreamHandler creates a new StreamHandler for the recorder's camera.
func NewStreamHandler(recorder *capture.Recorder, logger *zap.Logger) *StreamHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamHandler{recorder: recorder, logger: logger}
}

// ServeHTTP streams MJPEG frames until the client goes away.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	started := false
	err := h.recorder.Stream(r.Context(), func(frame *gocv.Mat) error {
		buf, err := gocv.IMEncode(".jpg", *frame)
		if err != nil {
			return nil
		}
		defer buf.Close()

		if !started {
			w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("Connection", "keep-alive")
			started = true
		}

		fmt.Fprintf(w, "--frame\r\n")
		fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", buf.Len())
		if _, err := w.Write(buf.GetBytes()); err != nil {
			return err
		}
		fmt.Fprintf(w, "\r\n")

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		return nil
	})

	if err == nil || started {
		return
	}
	if errors.Is(err, capture.ErrCameraBusy) {
		http.Error(w, "Camera is busy", http.StatusConflict)
		return
	}
	h.logger.Warn("camera stream failed", zap.Error(err))
	http.Error(w, "Camera unavailable", http.StatusServiceUnavailable)
}
