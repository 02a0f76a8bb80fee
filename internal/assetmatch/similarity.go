package assetmatch

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"shotforge/internal/config"
	"shotforge/internal/textutil"
)

// Policy holds the similarity weights, thresholds, and tie-break bonuses.
type Policy struct {
	JaccardWeight      float64
	DiceWeight         float64
	ContainmentBonus   float64
	ShortNameMaxLen    int
	ShortThreshold     float64
	MediumNameMaxLen   int
	MediumThreshold    float64
	DefaultThreshold   float64
	ImageBonus         float64
	VersionBonus       float64
	PromptBonusDivisor float64
	PromptBonusCap     float64
	FieldMatchBonus    float64
}

// descriptionBonusWeight scales the cosine similarity of prop descriptions.
const descriptionBonusWeight = 0.05

// maxVersionBonusSteps caps how many versions count towards the recency bonus.
const maxVersionBonusSteps = 10

// PolicyFromConfig converts the [matching] config section.
func PolicyFromConfig(m config.Matching) Policy {
	return Policy{
		JaccardWeight:      m.JaccardWeight,
		DiceWeight:         m.DiceWeight,
		ContainmentBonus:   m.ContainmentBonus,
		ShortNameMaxLen:    m.ShortNameMaxLen,
		ShortThreshold:     m.ShortThreshold,
		MediumNameMaxLen:   m.MediumNameMaxLen,
		MediumThreshold:    m.MediumThreshold,
		DefaultThreshold:   m.DefaultThreshold,
		ImageBonus:         m.ImageBonus,
		VersionBonus:       m.VersionBonus,
		PromptBonusDivisor: m.PromptBonusDivide,
		PromptBonusCap:     m.PromptBonusCap,
		FieldMatchBonus:    m.FieldMatchBonus,
	}
}

// DefaultPolicy returns the tuned defaults.
func DefaultPolicy() Policy {
	return PolicyFromConfig(config.DefaultMatching())
}

// normalized fills unset fields from the defaults.
func (p Policy) normalized() Policy {
	d := DefaultPolicy()
	if p.JaccardWeight == 0 && p.DiceWeight == 0 {
		p.JaccardWeight, p.DiceWeight = d.JaccardWeight, d.DiceWeight
	}
	if p.ShortNameMaxLen <= 0 {
		p.ShortNameMaxLen = d.ShortNameMaxLen
	}
	if p.MediumNameMaxLen <= p.ShortNameMaxLen {
		p.MediumNameMaxLen = max(d.MediumNameMaxLen, p.ShortNameMaxLen+1)
	}
	if p.ShortThreshold == 0 {
		p.ShortThreshold = d.ShortThreshold
	}
	if p.MediumThreshold == 0 {
		p.MediumThreshold = d.MediumThreshold
	}
	if p.DefaultThreshold == 0 {
		p.DefaultThreshold = d.DefaultThreshold
	}
	if p.PromptBonusDivisor <= 0 {
		p.PromptBonusDivisor = d.PromptBonusDivisor
	}
	return p
}

// Normalize lowercases s, drops brackets, quotes, and other punctuation,
// keeps letters and digits (CJK ideographs included), and collapses
// whitespace to single spaces.
func Normalize(s string) string {
	lower := cases.Lower(language.Und).String(s)
	var b strings.Builder
	b.Grow(len(lower))
	space := false
	for _, r := range lower {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		case unicode.IsSpace(r):
			space = true
		}
	}
	return b.String()
}

// Tokens splits a normalized name on whitespace and adds the overlapping
// bigrams of every Han run longer than one ideograph.
func Tokens(normalized string) []string {
	fields := strings.Fields(normalized)
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		tokens = append(tokens, field)
		for _, run := range hanRuns(field) {
			if utf8.RuneCountInString(run) > 1 {
				tokens = append(tokens, textutil.RuneBigrams(run)...)
			}
		}
	}
	return tokens
}

func hanRuns(s string) []string {
	var runs []string
	start := -1
	for i, r := range s {
		han := unicode.Is(unicode.Han, r)
		switch {
		case han && start < 0:
			start = i
		case !han && start >= 0:
			runs = append(runs, s[start:i])
			start = -1
		}
	}
	if start >= 0 {
		runs = append(runs, s[start:])
	}
	return runs
}

// Similarity scores two raw names in [0, 1].
func (p Policy) Similarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	ca, cb := compact(na), compact(nb)
	score := p.JaccardWeight*jaccard(Tokens(na), Tokens(nb)) + p.DiceWeight*dice(ca, cb)
	if strings.Contains(ca, cb) || strings.Contains(cb, ca) {
		score += p.ContainmentBonus
	}
	return min(score, 1)
}

// Threshold returns the minimum base score for a name of the given
// normalized length in runes.
func (p Policy) Threshold(name string) float64 {
	n := utf8.RuneCountInString(compact(Normalize(name)))
	switch {
	case n <= p.ShortNameMaxLen:
		return p.ShortThreshold
	case n <= p.MediumNameMaxLen:
		return p.MediumThreshold
	default:
		return p.DefaultThreshold
	}
}

func compact(normalized string) string {
	return strings.ReplaceAll(normalized, " ", "")
}

func jaccard(a, b []string) float64 {
	setA := make(map[string]struct{}, len(a))
	for _, t := range a {
		setA[t] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, t := range b {
		setB[t] = struct{}{}
	}
	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}
	inter := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			inter++
		}
	}
	return float64(inter) / float64(len(setA)+len(setB)-inter)
}

// dice is the Sørensen-Dice coefficient over character bigram multisets.
func dice(a, b string) float64 {
	ga, gb := textutil.RuneBigrams(a), textutil.RuneBigrams(b)
	if len(ga) == 0 || len(gb) == 0 {
		return 0
	}
	counts := make(map[string]int, len(ga))
	for _, g := range ga {
		counts[g]++
	}
	inter := 0
	for _, g := range gb {
		if counts[g] > 0 {
			counts[g]--
			inter++
		}
	}
	return 2 * float64(inter) / float64(len(ga)+len(gb))
}
