package textutil

import (
	"math"
	"slices"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	lantern := NewFingerprint("brass lantern hanging from the mast")
	tests := []struct {
		name string
		a, b *Fingerprint
		want float64
	}{
		{"both nil", nil, nil, 0},
		{"one nil", nil, lantern, 0},
		{"zero norm", &Fingerprint{tokens: map[string]float64{}}, lantern, 0},
		{"identical", lantern, NewFingerprint("brass lantern hanging from the mast"), 1},
		{"disjoint", lantern, NewFingerprint("leather logbook star charts"), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CosineSimilarity(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CosineSimilarity() = %v, want %v", got, tt.want)
			}
		})
	}

	other := NewFingerprint("rusty lantern on the mast")
	ab, ba := CosineSimilarity(lantern, other), CosineSimilarity(other, lantern)
	if ab != ba || ab <= 0 || ab >= 1 {
		t.Errorf("partial overlap = %v / %v, want symmetric and in (0, 1)", ab, ba)
	}
}

func TestNewFingerprint(t *testing.T) {
	if NewFingerprint("") != nil || NewFingerprint("a an it to") != nil {
		t.Fatal("expected nil for text without usable tokens")
	}
	// "rope rope knot" -> rope:2, knot:1
	fp := NewFingerprint("rope rope knot")
	if fp == nil || math.Abs(fp.norm-math.Sqrt(5)) > 1e-4 {
		t.Fatalf("fingerprint = %+v, want norm sqrt(5)", fp)
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"lowercases", "Brass Lantern", []string{"brass", "lantern"}},
		{"drops short words", "a lamp on a hook", []string{"lamp", "hook"}},
		{"splits punctuation", "Cracked, glass! Chimney?", []string{"cracked", "glass", "chimney"}},
		{"keeps digits", "model42 1920s", []string{"model42", "1920s"}},
		{"empty", "", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Tokenize(tt.input); !slices.Equal(got, tt.want) {
				t.Errorf("Tokenize(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestTokenizeHanRunsBecomeBigrams(t *testing.T) {
	got := Tokenize("古老的 lantern 灯")
	want := []string{"古老", "老的", "lantern", "灯"}
	if len(got) != len(want) {
		t.Fatalf("Tokenize() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCosineSimilarityPropDescriptions(t *testing.T) {
	library := NewFingerprint("Brass ship lantern with a cracked glass chimney, hung from the mast")
	near := NewFingerprint("An old brass lantern hanging from the mast, glass chimney cracked")
	unrelated := NewFingerprint("Leather-bound captain's logbook filled with star charts")

	closeSim := CosineSimilarity(library, near)
	if closeSim < 0.6 {
		t.Errorf("similar description score = %v, want >= 0.6", closeSim)
	}
	if sim := CosineSimilarity(library, unrelated); sim >= closeSim || sim > 0.2 {
		t.Errorf("unrelated description score = %v, want well below %v", sim, closeSim)
	}
}

func TestSanitizeToken(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Project 42", "project_42"},
		{"  ep-01 ", "ep-01"},
		{"剧集", "unknown"},
		{"", "unknown"},
		{"a/b\\c", "a_b_c"},
	}
	for _, tt := range tests {
		if got := SanitizeToken(tt.in); got != tt.want {
			t.Errorf("SanitizeToken(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
