package api

import (
	"math"
	"net/http"
	"strconv"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"

	"github.com/ayusman/hueassay/internal/session"
)

// maxPreviewWidth bounds the width query parameter.
const maxPreviewWidth = 1920

// PreviewHandler serves single decoded frames as JPEG.
type PreviewHandler struct {
	session *session.Session
}

// NewPreviewHandler creates a new PreviewHandler.
func NewPreviewHandler(s *session.Session) *PreviewHandler {
	return &PreviewHandler{session: s}
}

// ServeHTTP handles GET /api/preview?t=seconds&width=pixels.
func (h *PreviewHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	t := 0.0
	if v := q.Get("t"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed < 0 || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
			writeError(w, http.StatusBadRequest, "Invalid t")
			return
		}
		t = parsed
	}
	width := 0
	if v := q.Get("width"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 || parsed > maxPreviewWidth {
			writeError(w, http.StatusBadRequest, "Invalid width")
			return
		}
		width = parsed
	}

	img, err := h.session.Preview(r.Context(), t)
	if err != nil {
		writeErr(w, err)
		return
	}

	if width > 0 && width < img.Bounds().Dx() {
		img = imaging.Resize(img, width, 0, imaging.Lanczos)
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to convert frame")
		return
	}
	defer mat.Close()

	buf, err := gocv.IMEncode(".jpg", mat)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to encode frame")
		return
	}
	defer buf.Close()

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(buf.GetBytes())
}
