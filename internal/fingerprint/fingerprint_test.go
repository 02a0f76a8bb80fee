package fingerprint

import (
	"testing"

	"shotforge/internal/script"
)

func TestStringKnownValues(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"", "v1-1505-0"},
		{"a", "v1-2b5c4-1"},
		{"hello", "v1-a9cede7-5"},
		// Astral runes count as two UTF-16 units.
		{"角色😀", "v1-37c9aaf8-4"},
	}
	for _, tt := range tests {
		if got := String(tt.raw); got != tt.want {
			t.Errorf("String(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestBuildSortsMapKeys(t *testing.T) {
	got, err := Build(map[string]int{"a": 1})
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if got != "v1-6fb5a3e9-7" {
		t.Fatalf("unexpected key %q", got)
	}
	if _, err := Build(func() {}); err == nil {
		t.Fatal("expected error for unserializable input")
	}
}

func baseDraft() script.Draft {
	return script.Draft{
		ProjectID:      "proj-1",
		EpisodeID:      "ep-1",
		Title:          "Harbor Lights",
		RawText:        "Anna waits at the harbor.",
		Language:       "en",
		VisualStyle:    "watercolor",
		TargetDuration: 60,
		Model:          "writer-1",
		VideoModel:     "veo-3",
	}
}

func TestForDraftDeterministic(t *testing.T) {
	a, err := ForDraft(baseDraft())
	if err != nil {
		t.Fatalf("ForDraft: %v", err)
	}
	b, err := ForDraft(baseDraft())
	if err != nil {
		t.Fatalf("ForDraft: %v", err)
	}
	if a != b {
		t.Fatalf("expected identical keys, got %+v vs %+v", a, b)
	}
}

func TestForDraftStageIsolation(t *testing.T) {
	base, _ := ForDraft(baseDraft())

	tests := []struct {
		name          string
		mutate        func(*script.Draft)
		wantStructure bool
		wantVisuals   bool
		wantShots     bool
	}{
		{"raw text", func(d *script.Draft) { d.RawText += " She smiles." }, true, false, false},
		{"title", func(d *script.Draft) { d.Title = "Other" }, true, false, false},
		{"visual style", func(d *script.Draft) { d.VisualStyle = "noir" }, false, true, true},
		{"video model", func(d *script.Draft) { d.VideoModel = "kling-2" }, false, false, true},
		{"model", func(d *script.Draft) { d.Model = "writer-2" }, true, true, true},
		{"language", func(d *script.Draft) { d.Language = "zh" }, true, true, true},
		{"genre", func(d *script.Draft) { d.Genre = "drama" }, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := baseDraft()
			tt.mutate(&d)
			got, err := ForDraft(d)
			if err != nil {
				t.Fatalf("ForDraft: %v", err)
			}
			if got.Config == base.Config {
				t.Fatal("config key must change for any field")
			}
			if (got.Structure != base.Structure) != tt.wantStructure {
				t.Errorf("structure changed=%v, want %v", got.Structure != base.Structure, tt.wantStructure)
			}
			if (got.Visuals != base.Visuals) != tt.wantVisuals {
				t.Errorf("visuals changed=%v, want %v", got.Visuals != base.Visuals, tt.wantVisuals)
			}
			if (got.Shots != base.Shots) != tt.wantShots {
				t.Errorf("shots changed=%v, want %v", got.Shots != base.Shots, tt.wantShots)
			}
		})
	}
}
