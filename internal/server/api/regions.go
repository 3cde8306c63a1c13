package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/ayusman/hueassay/internal/region"
	"github.com/ayusman/hueassay/internal/session"
)

// RegionsHandler handles the two tracked regions of the session.
type RegionsHandler struct {
	session *session.Session
}

// NewRegionsHandler creates a new RegionsHandler.
func NewRegionsHandler(s *session.Session) *RegionsHandler {
	return &RegionsHandler{session: s}
}

// ServeHTTP routes /api/regions and /api/regions/{kind}.
func (h *RegionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/regions")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.get(w, r)
		case http.MethodDelete:
			h.clear(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	kind, err := region.ParseKind(path)
	if err != nil {
		writeError(w, http.StatusNotFound, "Unknown region kind")
		return
	}
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.set(w, r, kind)
}

// setRegionRequest accepts either normalized fractions or the two corners of a
// drag on a display surface of the given size.
type setRegionRequest struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`

	Drag *dragRequest `json:"drag,omitempty"`
}

type dragRequest struct {
	X0            float64 `json:"x0"`
	Y0            float64 `json:"y0"`
	X1            float64 `json:"x1"`
	Y1            float64 `json:"y1"`
	SurfaceWidth  int     `json:"surface_width"`
	SurfaceHeight int     `json:"surface_height"`
}

type regionsResponse struct {
	Reaction   *region.Normalized `json:"reaction"`
	Background *region.Normalized `json:"background"`
	// Display holds pixel rectangles for the surface size given in the query.
	Display map[region.Kind]*region.Absolute `json:"display,omitempty"`
}

func (h *RegionsHandler) response(r *http.Request) regionsResponse {
	regions := h.session.Regions()
	resp := regionsResponse{Reaction: regions.Reaction, Background: regions.Background}

	sw, errW := strconv.Atoi(r.URL.Query().Get("width"))
	sh, errH := strconv.Atoi(r.URL.Query().Get("height"))
	if errW == nil && errH == nil {
		resp.Display = map[region.Kind]*region.Absolute{
			region.KindReaction:   region.ToDisplay(regions.Reaction, sw, sh),
			region.KindBackground: region.ToDisplay(regions.Background, sw, sh),
		}
	}
	return resp
}

// get handles GET /api/regions[?width=&height=].
func (h *RegionsHandler) get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.response(r))
}

// clear handles DELETE /api/regions.
func (h *RegionsHandler) clear(w http.ResponseWriter, r *http.Request) {
	if err := h.session.ClearRegions(); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// set handles PUT /api/regions/{kind}.
func (h *RegionsHandler) set(w http.ResponseWriter, r *http.Request, kind region.Kind) {
	var req setRegionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	n := region.Normalized{X: req.X, Y: req.Y, Width: req.Width, Height: req.Height}
	if d := req.Drag; d != nil {
		drawn := region.FromPixels(d.X0, d.Y0, d.X1, d.Y1, d.SurfaceWidth, d.SurfaceHeight)
		if drawn == nil {
			writeError(w, http.StatusBadRequest, "Surface size must be positive")
			return
		}
		n = *drawn
	}

	if err := h.session.SetRegion(kind, n); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.response(r))
}
