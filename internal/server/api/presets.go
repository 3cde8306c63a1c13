package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/hueassay/internal/region"
	"github.com/ayusman/hueassay/internal/session"
	"github.com/ayusman/hueassay/internal/store"
)

// PresetHandler handles HTTP requests for region presets.
type PresetHandler struct {
	store   *store.Store
	session *session.Session
}

// NewPresetHandler creates a new PresetHandler. The session receives applied presets.
func NewPresetHandler(st *store.Store, s *session.Session) *PresetHandler {
	return &PresetHandler{store: st, session: s}
}

// ServeHTTP routes /api/presets, /api/presets/{id} and /api/presets/{id}/apply.
func (h *PresetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/presets")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	if id, ok := strings.CutSuffix(path, "/apply"); ok {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.apply(w, r, id)
		return
	}

	id := path
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPut:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type presetRequest struct {
	Name       string             `json:"name"`
	Reaction   *region.Normalized `json:"reaction"`
	Background *region.Normalized `json:"background"`
}

type listPresetsResponse struct {
	Presets []*store.Preset `json:"presets"`
}

// list handles GET /api/presets.
func (h *PresetHandler) list(w http.ResponseWriter, r *http.Request) {
	presets, err := h.store.Presets().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list presets")
		return
	}
	if presets == nil {
		presets = []*store.Preset{}
	}
	writeJSON(w, http.StatusOK, listPresetsResponse{Presets: presets})
}

// get handles GET /api/presets/{id}.
func (h *PresetHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	preset, err := h.store.Presets().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Preset not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get preset")
		return
	}
	writeJSON(w, http.StatusOK, preset)
}

// create handles POST /api/presets. Missing regions are taken from the session,
// so the current layout can be saved by name alone.
func (h *PresetHandler) create(w http.ResponseWriter, r *http.Request) {
	var req presetRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	preset, ok := h.fromRequest(w, req)
	if !ok {
		return
	}
	if err := h.store.Presets().Create(preset); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, preset)
}

// update handles PUT /api/presets/{id}.
func (h *PresetHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	var req presetRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	preset, ok := h.fromRequest(w, req)
	if !ok {
		return
	}
	preset.ID = id
	if err := h.store.Presets().Update(preset); err != nil {
		writeErr(w, err)
		return
	}

	updated, err := h.store.Presets().GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get preset")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// delete handles DELETE /api/presets/{id}.
func (h *PresetHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Presets().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Preset not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete preset")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// apply handles POST /api/presets/{id}/apply and sets both session regions.
func (h *PresetHandler) apply(w http.ResponseWriter, r *http.Request, id string) {
	preset, err := h.store.Presets().GetByID(id)
	if err != nil {
		writeErr(w, err)
		return
	}

	if err := h.session.SetRegion(region.KindReaction, preset.Reaction); err != nil {
		writeErr(w, err)
		return
	}
	if err := h.session.SetRegion(region.KindBackground, preset.Background); err != nil {
		writeErr(w, err)
		return
	}

	regions := h.session.Regions()
	writeJSON(w, http.StatusOK, regionsResponse{Reaction: regions.Reaction, Background: regions.Background})
}

func (h *PresetHandler) fromRequest(w http.ResponseWriter, req presetRequest) (*store.Preset, bool) {
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required")
		return nil, false
	}

	current := h.session.Regions()
	if req.Reaction == nil {
		req.Reaction = current.Reaction
	}
	if req.Background == nil {
		req.Background = current.Background
	}
	if req.Reaction == nil || req.Background == nil {
		writeError(w, http.StatusBadRequest, "Both regions are required")
		return nil, false
	}

	return &store.Preset{Name: req.Name, Reaction: *req.Reaction, Background: *req.Background}, true
}
