// Package hook runs external programs after an analysis finishes. Each hook
// lives in its own directory under the hooks dir with a hook.json manifest and
// receives the run's outcome, series and summary as JSON on stdin.
package hook

import (
	"encoding/json"
	"slices"

	"github.com/ayusman/hueassay/internal/report"
	"github.com/ayusman/hueassay/internal/sampler"
	"github.com/ayusman/hueassay/internal/session"
)

// ManifestFile is the manifest name looked up in every hook directory.
const ManifestFile = "hook.json"

// Manifest describes a hook and the terminal states it runs on.
type Manifest struct {
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Description string          `json:"description"`
	Executable  string          `json:"executable"`
	Events      []session.State `json:"events"`
	Config      json.RawMessage `json:"config,omitempty"`
}

// Request is written to a hook's stdin.
type Request struct {
	Event   session.State      `json:"event"`
	Outcome session.Outcome    `json:"outcome"`
	Series  sampler.TimeSeries `json:"series"`
	Summary report.Summary     `json:"summary"`
	Config  json.RawMessage    `json:"config,omitempty"`
}

// NewRequest builds the request for a finished run.
func NewRequest(outcome session.Outcome, series sampler.TimeSeries) *Request {
	return &Request{
		Event:   outcome.State,
		Outcome: outcome,
		Series:  series,
		Summary: report.Summarize(series),
	}
}

// Response is read from a hook's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Hook is a discovered hook with its manifest and location.
type Hook struct {
	Manifest   Manifest `json:"manifest"`
	Path       string   `json:"path"`
	Executable string   `json:"executable"`
}

// Wants reports whether the hook runs for a run ending in state.
// A manifest without events runs on every terminal state.
func (h *Hook) Wants(state session.State) bool {
	return len(h.Manifest.Events) == 0 || slices.Contains(h.Manifest.Events, state)
}
