package assetmatch

import (
	"errors"
	"testing"

	"shotforge/internal/script"
	"shotforge/internal/services"
)

func TestMatchSelectsBestCandidateAboveThreshold(t *testing.T) {
	data := &script.ScriptData{
		Characters: []script.Character{{ID: "char-1", Name: "Anna"}},
	}
	lib := &script.Library{
		CharacterLibrary: []script.Character{
			{ID: "lib-banana", Name: "Banana"},
			{ID: "lib-an", Name: "An"},
			{ID: "lib-anna", Name: "Anna Lee", Visual: script.Visual{ReferenceImage: "anna.png", Version: 3}},
		},
	}
	result := NewMatcher(DefaultPolicy(), nil).Match(data, lib)
	if len(result.Characters) != 1 {
		t.Fatalf("characters = %+v", result.Characters)
	}
	match := result.Characters[0]
	if !match.Found() || match.Library.ID != "lib-anna" {
		t.Fatalf("expected Anna Lee, got %+v", match.Library)
	}
	if !near(match.Score, 0.775) || !match.Reuse {
		t.Fatalf("score = %v reuse = %v", match.Score, match.Reuse)
	}
	if !near(match.Bonus, 0.04+0.012) {
		t.Fatalf("bonus = %v", match.Bonus)
	}
}

func TestMatchRejectsShortAccidentalOverlap(t *testing.T) {
	data := &script.ScriptData{Characters: []script.Character{{ID: "char-1", Name: "Anna"}}}
	lib := &script.Library{CharacterLibrary: []script.Character{
		{ID: "lib-an", Name: "An", Visual: script.Visual{ReferenceImage: "an.png", Version: 10, VisualPrompt: "very long prompt"}},
		{ID: "lib-banana", Name: "Banana"},
	}}
	result := NewMatcher(DefaultPolicy(), nil).Match(data, lib)
	if result.Characters[0].Found() || result.Characters[0].Reuse {
		t.Fatalf("unexpected match %+v", result.Characters[0].Library)
	}
}

func TestMatchUsesStricterThresholdOfBothNames(t *testing.T) {
	p := DefaultPolicy()
	// Clears the long generated name's 0.50 but not the library name's 0.72.
	if sim := p.Similarity("Anna Marie Bell", "Anna"); sim <= 0.5 || sim >= 0.72 {
		t.Fatalf("similarity = %v, want between the two thresholds", sim)
	}
	data := &script.ScriptData{Characters: []script.Character{{ID: "char-1", Name: "Anna Marie Bell"}}}
	lib := &script.Library{CharacterLibrary: []script.Character{{ID: "lib-anna", Name: "Anna"}}}
	if m := NewMatcher(p, nil).Match(data, lib).Characters[0]; m.Found() {
		t.Fatalf("matched %+v at score %v", m.Library, m.Score)
	}
}

func TestMatchBonusesBreakTies(t *testing.T) {
	data := &script.ScriptData{
		Scenes: []script.Scene{{ID: "scene-1", Location: "Old Harbor", Time: "night", Atmosphere: "foggy"}},
		Props:  []script.Prop{{ID: "prop-1", Name: "Brass Lantern", Category: "light", Description: "a dented brass lantern"}},
	}
	lib := &script.Library{
		SceneLibrary: []script.Scene{
			{ID: "lib-day", Location: "Old Harbor", Time: "day"},
			{ID: "lib-night", Location: "old harbor", Time: "Night", Atmosphere: "Foggy"},
		},
		PropLibrary: []script.Prop{
			{ID: "lib-plain", Name: "Brass Lantern"},
			{ID: "lib-rich", Name: "Brass Lantern", Category: "light", Description: "dented brass lantern with soot"},
		},
	}
	result := NewMatcher(DefaultPolicy(), nil).Match(data, lib)
	if got := result.Scenes[0].Library.ID; got != "lib-night" {
		t.Fatalf("scene match = %s, want lib-night", got)
	}
	if got := result.Props[0].Library.ID; got != "lib-rich" {
		t.Fatalf("prop match = %s, want lib-rich", got)
	}
	if !near(result.Scenes[0].Score, 1) {
		t.Fatalf("scene base score = %v", result.Scenes[0].Score)
	}
}

func TestMatchCJKNames(t *testing.T) {
	data := &script.ScriptData{Characters: []script.Character{{ID: "char-1", Name: "老渔夫阿福"}}}
	lib := &script.Library{CharacterLibrary: []script.Character{{ID: "lib-1", Name: "老渔夫阿福叔"}}}
	result := NewMatcher(DefaultPolicy(), nil).Match(data, lib)
	if !result.Characters[0].Found() {
		t.Fatal("expected CJK containment match")
	}
}

func TestMatchDoesNotAliasInputs(t *testing.T) {
	data := &script.ScriptData{Characters: []script.Character{{ID: "char-1", Name: "Anna"}}}
	lib := &script.Library{CharacterLibrary: []script.Character{{ID: "lib-1", Name: "Anna"}}}
	result := NewMatcher(DefaultPolicy(), nil).Match(data, lib)
	result.Characters[0].AI.Name = "changed"
	result.Characters[0].Library.Name = "changed"
	if data.Characters[0].Name != "Anna" || lib.CharacterLibrary[0].Name != "Anna" {
		t.Fatal("match result aliases its inputs")
	}
}

func TestSetReuse(t *testing.T) {
	data := &script.ScriptData{Characters: []script.Character{
		{ID: "char-1", Name: "Anna"},
		{ID: "char-2", Name: "Stranger"},
	}}
	lib := &script.Library{CharacterLibrary: []script.Character{{ID: "lib-1", Name: "Anna"}}}
	result := NewMatcher(DefaultPolicy(), nil).Match(data, lib)

	if err := result.SetReuse(script.KindCharacter, "char-1", false); err != nil {
		t.Fatalf("SetReuse: %v", err)
	}
	if result.Characters[0].Reuse {
		t.Fatal("reuse not cleared")
	}
	if err := result.SetReuse(script.KindCharacter, "char-2", true); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if err := result.SetReuse(script.KindCharacter, "char-9", false); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if got := result.Matched(script.KindCharacter); got != 1 {
		t.Fatalf("Matched = %d", got)
	}
}
