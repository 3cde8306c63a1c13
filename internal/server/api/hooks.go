package api

import (
	"net/http"
	"strings"

	"github.com/ayusman/hueassay/internal/hook"
)

// HooksHandler lists the post-analysis hooks and rescans the hooks directory.
type HooksHandler struct {
	manager *hook.Manager
}

// NewHooksHandler creates a new HooksHandler.
func NewHooksHandler(m *hook.Manager) *HooksHandler {
	return &HooksHandler{manager: m}
}

type hooksResponse struct {
	Dir   string       `json:"dir"`
	Hooks []*hook.Hook `json:"hooks"`
}

// ServeHTTP handles GET /api/hooks and POST /api/hooks/reload.
func (h *HooksHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/hooks"), "/")

	switch {
	case path == "" && r.Method == http.MethodGet:
		h.list(w)
	case path == "reload" && r.Method == http.MethodPost:
		if err := h.manager.Discover(); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to scan hooks directory")
			return
		}
		h.list(w)
	case path == "" || path == "reload":
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	default:
		http.NotFound(w, r)
	}
}

func (h *HooksHandler) list(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, hooksResponse{Dir: h.manager.Dir(), Hooks: h.manager.List()})
}
