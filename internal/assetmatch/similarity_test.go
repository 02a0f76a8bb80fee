package assetmatch

import (
	"math"
	"slices"
	"testing"
)

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Anna   LEE ", "anna lee"},
		{"「老渔夫」", "老渔夫"},
		{"(Dr.) \"Watson\"", "dr watson"},
		{"Café-Noir", "cafénoir"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTokens(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"anna lee", []string{"anna", "lee"}},
		{"老渔夫", []string{"老渔夫", "老渔", "渔夫"}},
		{"王", []string{"王"}},
		{"dr 王小明", []string{"dr", "王小明", "王小", "小明"}},
	}
	for _, tt := range tests {
		if got := Tokens(tt.in); !slices.Equal(got, tt.want) {
			t.Errorf("Tokens(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSimilarity(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		a, b string
		want float64
	}{
		{"Anna", "Anna Lee", 0.775},
		{"Anna", "Banana", 0.225},
		{"Anna", "An", 0.425},
		{"Anna", "anna!", 1},
		{"Anna", "", 0},
		{"Harbor", "Lighthouse", 0},
	}
	for _, tt := range tests {
		if got := p.Similarity(tt.a, tt.b); !near(got, tt.want) {
			t.Errorf("Similarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
	if !near(p.Similarity("Anna Lee", "Anna"), p.Similarity("Anna", "Anna Lee")) {
		t.Error("similarity should be symmetric")
	}
}

func TestThreshold(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		name string
		want float64
	}{
		{"An", 0.95},
		{"王", 0.95},
		{"Anna", 0.72},
		{"A n n a", 0.72},
		{"Annabel", 0.50},
	}
	for _, tt := range tests {
		if got := p.Threshold(tt.name); got != tt.want {
			t.Errorf("Threshold(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
