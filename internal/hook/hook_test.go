package hook

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/ayusman/hueassay/internal/sampler"
	"github.com/ayusman/hueassay/internal/session"
)

// writeHook creates dir/name with a manifest and an executable shell script.
func writeHook(t *testing.T, dir string, manifest Manifest, script string) string {
	t.Helper()

	path := filepath.Join(dir, manifest.Name)
	if err := os.MkdirAll(path, 0755); err != nil {
		t.Fatalf("failed to create hook dir: %v", err)
	}

	data, err := json.Marshal(manifest)
	if err != nil {
		t.Fatalf("failed to marshal manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(path, ManifestFile), data, 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	if script != "" {
		if err := os.WriteFile(filepath.Join(path, manifest.Executable), []byte(script), 0755); err != nil {
			t.Fatalf("failed to write script: %v", err)
		}
	}
	return path
}

func skipOnWindows(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping shell hook test on Windows")
	}
}

func testRequest() *Request {
	series := sampler.TimeSeries{
		{Time: 0, HueReaction: 10, HueBackground: 100},
		{Time: 0.5, HueReaction: 30, HueBackground: 100},
	}
	return NewRequest(session.Outcome{RunID: "run-1", State: session.StateCompleted, Samples: 2}, series)
}

func TestNewRequest(t *testing.T) {
	req := testRequest()

	if req.Event != session.StateCompleted {
		t.Errorf("Event = %s, want completed", req.Event)
	}
	if req.Summary.Samples != 2 {
		t.Errorf("Summary.Samples = %d, want 2", req.Summary.Samples)
	}
	if req.Summary.Reaction.Delta != 20 {
		t.Errorf("Summary.Reaction.Delta = %v, want 20", req.Summary.Reaction.Delta)
	}
}

func TestHook_Wants(t *testing.T) {
	all := &Hook{Manifest: Manifest{Name: "all"}}
	failures := &Hook{Manifest: Manifest{Name: "failures", Events: []session.State{session.StateFailed}}}

	if !all.Wants(session.StateCompletedEmpty) {
		t.Error("hook without events should run on every state")
	}
	if failures.Wants(session.StateCompleted) {
		t.Error("failure hook should not run on completed")
	}
	if !failures.Wants(session.StateFailed) {
		t.Error("failure hook should run on failed")
	}
}

func TestManager_Discover(t *testing.T) {
	dir := t.TempDir()
	path := writeHook(t, dir, Manifest{
		Name:        "ledger",
		Version:     "1.0.0",
		Description: "Appends summaries to a ledger",
		Executable:  "ledger.sh",
		Events:      []session.State{session.StateCompleted},
	}, "")

	// Ignored: no manifest, invalid manifest, missing executable, plain file.
	os.MkdirAll(filepath.Join(dir, "empty"), 0755)
	os.MkdirAll(filepath.Join(dir, "broken"), 0755)
	os.WriteFile(filepath.Join(dir, "broken", ManifestFile), []byte("{not json"), 0644)
	writeHook(t, dir, Manifest{Name: "noexec"}, "")
	os.WriteFile(filepath.Join(dir, "README"), []byte("hooks"), 0644)

	manager := NewManager(dir, zaptest.NewLogger(t))
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	hooks := manager.List()
	if len(hooks) != 1 {
		t.Fatalf("expected 1 hook, got %d", len(hooks))
	}
	h := hooks[0]
	if h.Path != path {
		t.Errorf("Path = %q, want %q", h.Path, path)
	}
	if h.Executable != filepath.Join(path, "ledger.sh") {
		t.Errorf("Executable = %q", h.Executable)
	}

	if _, err := manager.Get("ledger"); err != nil {
		t.Errorf("Get(ledger) error = %v", err)
	}
	if _, err := manager.Get("missing"); !errors.Is(err, ErrHookNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrHookNotFound", err)
	}
}

func TestManager_Discover_Rescan(t *testing.T) {
	dir := t.TempDir()
	writeHook(t, dir, Manifest{Name: "b", Executable: "b.sh"}, "")
	writeHook(t, dir, Manifest{Name: "a", Executable: "a.sh"}, "")

	manager := NewManager(dir, nil)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	hooks := manager.List()
	if len(hooks) != 2 || hooks[0].Manifest.Name != "a" || hooks[1].Manifest.Name != "b" {
		t.Fatalf("List() not sorted by name: %v", hooks)
	}

	os.RemoveAll(filepath.Join(dir, "a"))
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if n := len(manager.List()); n != 1 {
		t.Errorf("after rescan: %d hooks, want 1", n)
	}
}

func TestManager_Discover_MissingDir(t *testing.T) {
	manager := NewManager(filepath.Join(t.TempDir(), "nope"), nil)

	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(manager.List()) != 0 {
		t.Error("expected no hooks")
	}
}

func TestExecutor_Execute_ReadsStdin(t *testing.T) {
	skipOnWindows(t)

	path := writeHook(t, t.TempDir(), Manifest{
		Name:       "echo",
		Executable: "echo.sh",
		Config:     json.RawMessage(`{"file":"ledger.csv"}`),
	}, `#!/bin/sh
INPUT=$(cat)
echo "{\"success\":true,\"data\":$INPUT}"
`)

	manager := NewManager(filepath.Dir(path), nil)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	h, _ := manager.Get("echo")

	resp, err := NewExecutor(5*time.Second).Execute(context.Background(), h, testRequest())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !resp.Success {
		t.Fatal("expected success")
	}

	var got Request
	if err := json.Unmarshal(resp.Data, &got); err != nil {
		t.Fatalf("failed to unmarshal echoed request: %v", err)
	}
	if got.Outcome.RunID != "run-1" {
		t.Errorf("RunID = %q, want run-1", got.Outcome.RunID)
	}
	if len(got.Series) != 2 {
		t.Errorf("len(Series) = %d, want 2", len(got.Series))
	}
	if string(got.Config) != `{"file":"ledger.csv"}` {
		t.Errorf("Config = %s", got.Config)
	}
}

func TestExecutor_Execute_Timeout(t *testing.T) {
	skipOnWindows(t)

	path := writeHook(t, t.TempDir(), Manifest{Name: "slow", Executable: "slow.sh"}, `#!/bin/sh
sleep 10
echo '{"success":true}'
`)
	h := &Hook{Manifest: Manifest{Name: "slow"}, Path: path, Executable: filepath.Join(path, "slow.sh")}

	_, err := NewExecutor(100*time.Millisecond).Execute(context.Background(), h, testRequest())
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Execute() error = %v, want ErrTimeout", err)
	}
}

func TestExecutor_Execute_Failures(t *testing.T) {
	skipOnWindows(t)

	tests := []struct {
		name   string
		script string
	}{
		{name: "non-zero exit", script: "#!/bin/sh\necho boom >&2\nexit 3\n"},
		{name: "garbage stdout", script: "#!/bin/sh\necho not-json\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeHook(t, t.TempDir(), Manifest{Name: "bad", Executable: "bad.sh"}, tt.script)
			h := &Hook{Manifest: Manifest{Name: "bad"}, Path: path, Executable: filepath.Join(path, "bad.sh")}

			if _, err := NewExecutor(time.Second).Execute(context.Background(), h, testRequest()); err == nil {
				t.Error("Execute() error = nil, want failure")
			}
		})
	}
}

func TestDispatcher_Dispatch(t *testing.T) {
	skipOnWindows(t)

	dir := t.TempDir()
	marker := filepath.Join(t.TempDir(), "ran")

	writeHook(t, dir, Manifest{Name: "ok", Executable: "ok.sh"}, `#!/bin/sh
cat > /dev/null
touch `+marker+`
echo '{"success":true}'
`)
	writeHook(t, dir, Manifest{Name: "refuses", Executable: "refuses.sh"}, `#!/bin/sh
cat > /dev/null
echo '{"success":false,"error":"ledger locked"}'
`)
	writeHook(t, dir, Manifest{
		Name:       "failures-only",
		Executable: "failures.sh",
		Events:     []session.State{session.StateFailed},
	}, "#!/bin/sh\nexit 1\n")

	manager := NewManager(dir, nil)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	d := NewDispatcher(manager, NewExecutor(5*time.Second), zaptest.NewLogger(t))

	results := d.Dispatch(context.Background(), testRequest())
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	byName := map[string]Result{}
	for _, r := range results {
		byName[r.Hook] = r
	}
	if byName["ok"].Err != nil {
		t.Errorf("ok hook error = %v", byName["ok"].Err)
	}
	if err := byName["refuses"].Err; err == nil || err.Error() != "ledger locked" {
		t.Errorf("refuses hook error = %v, want ledger locked", err)
	}
	if _, err := os.Stat(marker); err != nil {
		t.Errorf("ok hook did not run: %v", err)
	}
}
