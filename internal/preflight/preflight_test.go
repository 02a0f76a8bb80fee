package preflight

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"shotforge/internal/config"
)

func healthServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": `{"ok":true}`}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if !strings.Contains(result.Detail, "does not exist") {
		t.Fatalf("detail = %q", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckLLM(t *testing.T) {
	ok := healthServer(t, http.StatusOK)
	denied := healthServer(t, http.StatusUnauthorized)

	tests := []struct {
		name   string
		cfg    config.LLMConfig
		passed bool
	}{
		{name: "reachable", cfg: config.LLMConfig{APIKey: "k", BaseURL: ok.URL, Model: "m"}, passed: true},
		{name: "unauthorized", cfg: config.LLMConfig{APIKey: "k", BaseURL: denied.URL, Model: "m"}},
		{name: "missing key", cfg: config.LLMConfig{BaseURL: ok.URL}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckLLM(context.Background(), "LLM", tt.cfg)
			if result.Passed != tt.passed {
				t.Fatalf("Passed = %v (%s), want %v", result.Passed, result.Detail, tt.passed)
			}
		})
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_RuleMode(t *testing.T) {
	srv := healthServer(t, http.StatusOK)
	cfg := config.Default()
	cfg.Paths.StateDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()
	cfg.LLM.APIKey = "k"
	cfg.LLM.BaseURL = srv.URL

	results := RunAll(context.Background(), &cfg)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("failed checks: %+v", failed)
	}
}

func TestRunAll_ModelModeWithDistinctScoringModel(t *testing.T) {
	srv := healthServer(t, http.StatusOK)
	cfg := config.Default()
	cfg.Paths.StateDir = t.TempDir()
	cfg.Paths.LogDir = filepath.Join(t.TempDir(), "missing")
	cfg.LLM.APIKey = "k"
	cfg.LLM.BaseURL = srv.URL
	cfg.Quality.Mode = config.QualityModeModel
	cfg.Quality.Model = "reviewer"

	results := RunAll(context.Background(), &cfg)
	if len(results) != 4 || results[3].Name != "Scoring LLM" {
		t.Fatalf("results = %+v", results)
	}
	failed := Failed(results)
	if len(failed) != 1 || failed[0].Name != "Log directory" {
		t.Fatalf("failed = %+v", failed)
	}
}
