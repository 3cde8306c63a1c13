// Command ledger is a hueassay hook that appends one summary row per finished
// analysis to a CSV ledger. The ledger path comes from the manifest config and
// is resolved against the hook directory.
package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ayusman/hueassay/internal/hook"
)

// Config is the manifest's config block.
type Config struct {
	File string `json:"file"`
}

var ledgerHeader = []string{
	"finished_at", "run_id", "state", "samples",
	"reaction_first", "reaction_last", "reaction_delta",
	"background_mean", "contrast", "reason",
}

func main() {
	var req hook.Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		respond(fmt.Errorf("decode request: %w", err))
		return
	}
	respond(run(&req, time.Now()))
}

func run(req *hook.Request, now time.Time) error {
	cfg := Config{File: "ledger.csv"}
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			return fmt.Errorf("parse config: %w", err)
		}
	}

	f, err := os.OpenFile(filepath.Clean(cfg.File), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if err := appendRow(f, info.Size() == 0, req, now); err != nil {
		return err
	}
	return f.Close()
}

// appendRow writes the header when the ledger is new, then the run's row.
func appendRow(w io.Writer, header bool, req *hook.Request, now time.Time) error {
	cw := csv.NewWriter(w)
	if header {
		if err := cw.Write(ledgerHeader); err != nil {
			return err
		}
	}

	s := req.Summary
	num := func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }
	row := []string{
		now.UTC().Format(time.RFC3339),
		req.Outcome.RunID,
		string(req.Outcome.State),
		strconv.Itoa(s.Samples),
		num(s.Reaction.First),
		num(s.Reaction.Last),
		num(s.Reaction.Delta),
		num(s.Background.Mean),
		num(s.Contrast),
		req.Outcome.Reason,
	}
	if err := cw.Write(row); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

func respond(err error) {
	resp := hook.Response{Success: err == nil}
	if err != nil {
		resp.Error = err.Error()
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}
