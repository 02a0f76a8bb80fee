package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"shotforge/internal/config"
	"shotforge/internal/project"
	"shotforge/internal/script"
	"shotforge/internal/testsupport"
)

// fakeModel answers the three generation prompts by recognizing their system
// messages. failShots makes the shots request fail with a 400.
type fakeModel struct {
	mu        sync.Mutex
	calls     map[string]int
	failShots bool
	// holdVisuals, when set, receives the first visuals request, which then
	// stays open until the client goes away.
	holdVisuals chan struct{}
	release     chan struct{}
}

// holdFirstVisuals makes the first visuals request hang and returns a channel
// closed once that request arrives.
func (f *fakeModel) holdFirstVisuals(t *testing.T) <-chan struct{} {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.holdVisuals = make(chan struct{})
	f.release = make(chan struct{})
	release := f.release
	t.Cleanup(func() { close(release) })
	return f.holdVisuals
}

func (f *fakeModel) count(stage string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[stage]
}

func (f *fakeModel) setFailShots(fail bool) {
	f.mu.Lock()
	f.failShots = fail
	f.mu.Unlock()
}

func (f *fakeModel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) < 2 {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	system, user := req.Messages[0].Content, req.Messages[1].Content

	var stage, content string
	switch {
	case strings.Contains(system, "review storyboard shots"):
		stage = "quality"
		content = `{"score": 88, "grade": "pass", "summary": "Ready to render.", "checks": [
			{"key": "promptReadiness", "score": 90, "details": "clear prompts"},
			{"key": "assetCoverage", "score": 80, "details": "references present"},
			{"key": "keyframeExecution", "score": 85, "details": "frames planned"},
			{"key": "videoExecution", "score": 90, "details": "motion described"}]}`
	case strings.Contains(system, "screenwriting"):
		stage = "structure"
		content = `{"title": "Harbor Lights", "logline": "Anna waits for a boat.",
			"characters": [{"name": "Anna", "gender": "female"}],
			"scenes": [{"location": "Old Pier", "time": "night", "atmosphere": "foggy"}],
			"props": [{"name": "Lantern", "category": "light"}]}`
	case strings.Contains(system, "visual development"):
		stage = "visuals"
		var payload struct {
			Entities []struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"entities"`
		}
		_ = json.Unmarshal([]byte(user), &payload)
		visuals := make([]map[string]string, 0, len(payload.Entities))
		for _, e := range payload.Entities {
			visuals = append(visuals, map[string]string{
				"id":             e.ID,
				"visualPrompt":   "cinematic portrait of " + e.Name + ", soft rim light, muted palette",
				"negativePrompt": "blurry",
			})
		}
		encoded, _ := json.Marshal(map[string]any{"visuals": visuals})
		content = string(encoded)
	case strings.Contains(system, "storyboard"):
		stage = "shots"
		content = `{"shots": [{"sceneId": "scene-1", "characterIds": ["char-1"], "propIds": ["prop-1"],
			"actionSummary": "Anna raises the lantern at the end of the pier.", "camera": "slow push in", "shotSize": "medium",
			"startPrompt": "Anna on the foggy pier at night holding a lantern, medium shot, cinematic lighting",
			"endPrompt": "Anna lifts the lantern high, fog swirling around her, medium close shot",
			"videoPrompt": "slow push in as Anna raises the lantern", "duration": 5}]}`
	default:
		content = `{"ok": true}`
	}

	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[stage]++
	fail := stage == "shots" && f.failShots
	hold := f.holdVisuals
	if stage == "visuals" {
		f.holdVisuals = nil
	}
	release := f.release
	f.mu.Unlock()

	if stage == "visuals" && hold != nil {
		close(hold)
		select {
		case <-r.Context().Done():
		case <-release:
		}
		return
	}

	if fail {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad request"}`))
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"choices": []any{map[string]any{
			"finish_reason": "stop",
			"message":       map[string]any{"content": content},
		}},
	})
}

type cliTestEnv struct {
	cfg         *config.Config
	model       *fakeModel
	configPath  string
	projectPath string
	baseDir     string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	t.Setenv("SHOTFORGE_LLM_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("HOME", t.TempDir())

	model := &fakeModel{}
	server := httptest.NewServer(model)
	t.Cleanup(server.Close)

	cfg := testsupport.NewConfig(t, append([]testsupport.ConfigOption{testsupport.WithLLMEndpoint(server.URL)}, opts...)...)
	cfg.Generation.RetryAttempts = 1
	cfg.Quality.RetryAttempts = 1
	cfg.Logging.Level = "error"
	base := testsupport.BaseDir(cfg)

	configPath := filepath.Join(base, "shotforge.toml")
	writeTestConfig(t, configPath, cfg)

	projectPath := filepath.Join(base, "project.json")
	doc := &project.Document{Draft: script.Draft{
		ProjectID:      "proj",
		EpisodeID:      "ep1",
		Title:          "Harbor Lights",
		RawText:        "Night. Anna waits on the old pier with a lantern.",
		Language:       "en",
		VisualStyle:    "noir",
		TargetDuration: 30,
		Model:          "demo",
		VideoModel:     "kling-v2",
	}}
	if err := project.SaveDocument(projectPath, doc); err != nil {
		t.Fatalf("save project: %v", err)
	}

	return &cliTestEnv{
		cfg:         cfg,
		model:       model,
		configPath:  configPath,
		projectPath: projectPath,
		baseDir:     base,
	}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return runCLI(t, args, e.configPath)
}

func (e *cliTestEnv) document(t *testing.T) *project.Document {
	t.Helper()
	doc, err := project.LoadDocument(e.projectPath)
	if err != nil {
		t.Fatalf("load project: %v", err)
	}
	return doc
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func mustRun(t *testing.T, env *cliTestEnv, args ...string) string {
	t.Helper()
	out, stderr, err := env.run(t, args...)
	if err != nil {
		t.Fatalf("shotforge %s: %v\nstderr: %s", strings.Join(args, " "), err, stderr)
	}
	return out
}

func writeLibrary(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "library.yaml")
	content := `characterLibrary:
  - id: lib-anna
    name: Anna Lee
    referenceImage: anna.png
    visualPrompt: Anna Lee, library portrait
    version: 3
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write library: %v", err)
	}
	return path
}
