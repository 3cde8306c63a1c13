package api

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ayusman/hueassay/internal/report"
	"github.com/ayusman/hueassay/internal/sampler"
	"github.com/ayusman/hueassay/internal/session"
)

// AnalysisHandler starts runs and serves their results.
type AnalysisHandler struct {
	session *session.Session
	// base is the parent context of every run started over HTTP. Runs outlive
	// the request that started them.
	base   context.Context
	logger *zap.Logger
}

// NewAnalysisHandler creates a new AnalysisHandler. Runs are cancelled when ctx is.
func NewAnalysisHandler(ctx context.Context, s *session.Session, logger *zap.Logger) *AnalysisHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalysisHandler{session: s, base: ctx, logger: logger}
}

// ServeHTTP routes /api/analysis and /api/analysis/csv.
func (h *AnalysisHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/analysis")
	path = strings.Trim(path, "/")

	switch path {
	case "":
		switch r.Method {
		case http.MethodGet:
			h.status(w, r)
		case http.MethodPost:
			h.start(w, r)
		case http.MethodDelete:
			h.cancel(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "csv":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.csv(w, r)
	default:
		http.NotFound(w, r)
	}
}

type startResponse struct {
	RunID string `json:"run_id"`
}

type analysisResponse struct {
	Status  session.Status     `json:"status"`
	Series  sampler.TimeSeries `json:"series"`
	Summary report.Summary     `json:"summary"`
}

// start handles POST /api/analysis.
func (h *AnalysisHandler) start(w http.ResponseWriter, r *http.Request) {
	runID, err := h.session.Start(h.base)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, startResponse{RunID: runID})
}

// status handles GET /api/analysis.
func (h *AnalysisHandler) status(w http.ResponseWriter, r *http.Request) {
	series := h.session.Series()
	if series == nil {
		series = sampler.TimeSeries{}
	}
	writeJSON(w, http.StatusOK, analysisResponse{
		Status:  h.session.Status(),
		Series:  series,
		Summary: report.Summarize(series),
	})
}

// cancel handles DELETE /api/analysis.
func (h *AnalysisHandler) cancel(w http.ResponseWriter, r *http.Request) {
	if !h.session.Cancel() {
		writeError(w, http.StatusConflict, "No analysis running")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// csv handles GET /api/analysis/csv.
func (h *AnalysisHandler) csv(w http.ResponseWriter, r *http.Request) {
	status := h.session.Status()
	if status.State == session.StateRunning {
		writeErr(w, session.ErrBusy)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="hue_analysis.csv"`)
	series := h.session.Series()
	if err := report.WriteCSV(w, series); err != nil {
		h.logger.Error("failed to write csv export", zap.Int("samples", len(series)), zap.Error(err))
	}
}
