package api

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/ayusman/hueassay/internal/hook"
)

func TestHooksHandler_ListAndReload(t *testing.T) {
	dir := t.TempDir()
	manager := hook.NewManager(dir, nil)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	handler := NewHooksHandler(manager)

	var resp hooksResponse
	rec := do(t, handler, http.MethodGet, "/api/hooks", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	decode(t, rec, &resp)
	if len(resp.Hooks) != 0 || resp.Dir != dir {
		t.Fatalf("unexpected response: %+v", resp)
	}

	os.MkdirAll(filepath.Join(dir, "ledger"), 0755)
	manifest := `{"name": "ledger", "executable": "ledger", "events": ["completed"]}`
	if err := os.WriteFile(filepath.Join(dir, "ledger", hook.ManifestFile), []byte(manifest), 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}

	rec = do(t, handler, http.MethodPost, "/api/hooks/reload", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	decode(t, rec, &resp)
	if len(resp.Hooks) != 1 || resp.Hooks[0].Manifest.Name != "ledger" {
		t.Errorf("after reload: %+v", resp.Hooks)
	}
}

func TestHooksHandler_Methods(t *testing.T) {
	handler := NewHooksHandler(hook.NewManager(t.TempDir(), nil))

	tests := []struct {
		method, target string
		want           int
	}{
		{http.MethodPost, "/api/hooks", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/hooks/reload", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/hooks/other", http.StatusNotFound},
	}

	for _, tt := range tests {
		if rec := do(t, handler, tt.method, tt.target, nil); rec.Code != tt.want {
			t.Errorf("%s %s = %d, want %d", tt.method, tt.target, rec.Code, tt.want)
		}
	}
}
