package api

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/hueassay/internal/sampler"
	"github.com/ayusman/hueassay/internal/session"
	"github.com/ayusman/hueassay/internal/store"
)

// SettingsHandler reads and persists the sampler tuning.
type SettingsHandler struct {
	store   *store.Store
	session *session.Session
	logger  *zap.Logger
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(st *store.Store, s *session.Session, logger *zap.Logger) *SettingsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsHandler{store: st, session: s, logger: logger}
}

// settingsPayload is the JSON form of sampler.Config with durations in milliseconds.
type settingsPayload struct {
	IntervalSeconds   float64 `json:"interval_seconds"`
	EndEpsilonSeconds float64 `json:"end_epsilon_seconds"`
	SeekTimeoutMs     int64   `json:"seek_timeout_ms"`
	SettleDelayMs     int64   `json:"settle_delay_ms"`
	StaleCheck        bool    `json:"stale_check"`
}

func toPayload(c sampler.Config) settingsPayload {
	return settingsPayload{
		IntervalSeconds:   c.Interval,
		EndEpsilonSeconds: c.EndEpsilon,
		SeekTimeoutMs:     c.SeekTimeout.Milliseconds(),
		SettleDelayMs:     c.SettleDelay.Milliseconds(),
		StaleCheck:        c.StaleCheck,
	}
}

func (p settingsPayload) config() sampler.Config {
	return sampler.Config{
		Interval:    p.IntervalSeconds,
		EndEpsilon:  p.EndEpsilonSeconds,
		SeekTimeout: time.Duration(p.SeekTimeoutMs) * time.Millisecond,
		SettleDelay: time.Duration(p.SettleDelayMs) * time.Millisecond,
		StaleCheck:  p.StaleCheck,
	}
}

// ServeHTTP handles GET and PUT /api/settings.
func (h *SettingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, toPayload(h.session.SamplerConfig()))
	case http.MethodPut:
		h.update(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// update validates, applies to the session and then persists. Omitted fields
// keep their current value.
func (h *SettingsHandler) update(w http.ResponseWriter, r *http.Request) {
	payload := toPayload(h.session.SamplerConfig())
	if !decodeJSON(w, r, &payload) {
		return
	}

	cfg := payload.config()
	if err := h.session.SetSamplerConfig(cfg); err != nil {
		writeErr(w, err)
		return
	}
	if err := h.store.Settings().SaveSampler(cfg); err != nil {
		h.logger.Error("failed to persist settings", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to save settings")
		return
	}

	h.logger.Info("sampler settings updated",
		zap.Float64("interval", cfg.Interval),
		zap.Duration("seek_timeout", cfg.SeekTimeout),
		zap.Duration("settle_delay", cfg.SettleDelay),
	)
	writeJSON(w, http.StatusOK, toPayload(cfg))
}
