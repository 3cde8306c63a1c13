// Command notify is a hueassay hook that posts a desktop notification when an
// analysis finishes. It uses osascript on macOS and notify-send elsewhere.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/ayusman/hueassay/internal/hook"
	"github.com/ayusman/hueassay/internal/session"
)

// Config is the manifest's config block.
type Config struct {
	Title string `json:"title"`
	Sound string `json:"sound"` // macOS only
}

func main() {
	var req hook.Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		respond(fmt.Errorf("decode request: %w", err))
		return
	}

	cfg := Config{Title: "hueassay"}
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			respond(fmt.Errorf("parse config: %w", err))
			return
		}
	}

	name, args := command(runtime.GOOS, cfg, message(&req))
	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		err = fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	respond(err)
}

// message is the notification body for a finished run.
func message(req *hook.Request) string {
	s := req.Summary
	switch req.Outcome.State {
	case session.StateCompleted:
		return fmt.Sprintf("Analysis complete: %d samples, reaction hue %.1f → %.1f (Δ %.1f)",
			s.Samples, s.Reaction.First, s.Reaction.Last, s.Reaction.Delta)
	case session.StateCompletedEmpty:
		return "Analysis finished without samples. Check the regions."
	default:
		msg := fmt.Sprintf("Analysis failed after %d samples", s.Samples)
		if req.Outcome.Reason != "" {
			msg += ": " + req.Outcome.Reason
		}
		return msg
	}
}

// command builds the notifier invocation for goos.
func command(goos string, cfg Config, msg string) (string, []string) {
	if goos == "darwin" {
		script := fmt.Sprintf("display notification %s with title %s", quote(msg), quote(cfg.Title))
		if cfg.Sound != "" {
			script += " sound name " + quote(cfg.Sound)
		}
		return "osascript", []string{"-e", script}
	}
	return "notify-send", []string{cfg.Title, msg}
}

// quote renders s as an AppleScript string literal.
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

func respond(err error) {
	resp := hook.Response{Success: err == nil}
	if err != nil {
		resp.Error = err.Error()
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}
