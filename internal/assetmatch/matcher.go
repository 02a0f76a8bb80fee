package assetmatch

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"shotforge/internal/logging"
	"shotforge/internal/script"
	"shotforge/internal/services"
	"shotforge/internal/textutil"
)

// Match pairs one generated entity with its best library candidate. Library
// is nil when nothing cleared the threshold.
type Match[T script.Asset] struct {
	AI      T       `json:"aiAsset"`
	Library T       `json:"libraryAsset"`
	Score   float64 `json:"score"`
	Bonus   float64 `json:"bonus,omitempty"`
	Reuse   bool    `json:"reuse"`
}

// Found reports whether a library candidate was selected.
func (m Match[T]) Found() bool {
	return !script.IsNilAsset(m.Library)
}

// Result is the outcome of one matching run.
type Result struct {
	Characters []Match[*script.Character] `json:"characters"`
	Scenes     []Match[*script.Scene]     `json:"scenes"`
	Props      []Match[*script.Prop]      `json:"props"`
}

// SetReuse records the user's decision for one generated entity. Reuse can
// only be enabled for entities that have a library candidate.
func (r *Result) SetReuse(kind script.Kind, aiID string, reuse bool) error {
	switch kind {
	case script.KindCharacter:
		return setReuse(r.Characters, kind, aiID, reuse)
	case script.KindScene:
		return setReuse(r.Scenes, kind, aiID, reuse)
	case script.KindProp:
		return setReuse(r.Props, kind, aiID, reuse)
	}
	return services.Wrap(services.ErrValidation, "", "match", fmt.Sprintf("unknown kind %q", kind), nil)
}

// DeclineAll clears every reuse flag.
func (r *Result) DeclineAll() {
	for i := range r.Characters {
		r.Characters[i].Reuse = false
	}
	for i := range r.Scenes {
		r.Scenes[i].Reuse = false
	}
	for i := range r.Props {
		r.Props[i].Reuse = false
	}
}

// Matched returns how many entities of kind have a library candidate.
func (r *Result) Matched(kind script.Kind) int {
	switch kind {
	case script.KindCharacter:
		return countFound(r.Characters)
	case script.KindScene:
		return countFound(r.Scenes)
	case script.KindProp:
		return countFound(r.Props)
	}
	return 0
}

func setReuse[T script.Asset](matches []Match[T], kind script.Kind, aiID string, reuse bool) error {
	for i := range matches {
		if matches[i].AI.AssetID() != aiID {
			continue
		}
		if reuse && !matches[i].Found() {
			return services.Wrap(services.ErrValidation, "", "match",
				fmt.Sprintf("%s %q has no library candidate", kind, aiID), nil)
		}
		matches[i].Reuse = reuse
		return nil
	}
	return services.Wrap(services.ErrNotFound, "", "match", fmt.Sprintf("%s %q not in match result", kind, aiID), nil)
}

func countFound[T script.Asset](matches []Match[T]) int {
	n := 0
	for _, m := range matches {
		if m.Found() {
			n++
		}
	}
	return n
}

// Matcher scores generated entities against a library.
type Matcher struct {
	policy Policy
	logger *slog.Logger
}

// NewMatcher constructs a Matcher. Zero policy fields fall back to defaults.
func NewMatcher(policy Policy, logger *slog.Logger) *Matcher {
	return &Matcher{
		policy: policy.normalized(),
		logger: logging.NewComponentLogger(logger, "assetmatch"),
	}
}

// Match searches the library for every entity of data. Inputs are copied;
// the result never aliases data or lib.
func (m *Matcher) Match(data *script.ScriptData, lib *script.Library) Result {
	var result Result
	if data == nil {
		return result
	}
	data = data.Clone()
	if lib == nil {
		lib = &script.Library{}
	}
	lib = lib.Clone()

	result.Characters = matchKind[*script.Character](m, data.Assets(script.KindCharacter), lib.Assets(script.KindCharacter))
	result.Scenes = matchKind[*script.Scene](m, data.Assets(script.KindScene), lib.Assets(script.KindScene))
	result.Props = matchKind[*script.Prop](m, data.Assets(script.KindProp), lib.Assets(script.KindProp))

	m.logger.Info("asset matching complete",
		logging.String(logging.FieldEventType, "asset_match_complete"),
		logging.Int("characters_matched", result.Matched(script.KindCharacter)),
		logging.Int("scenes_matched", result.Matched(script.KindScene)),
		logging.Int("props_matched", result.Matched(script.KindProp)),
	)
	return result
}

func matchKind[T script.Asset](m *Matcher, generated, library []script.Asset) []Match[T] {
	out := make([]Match[T], 0, len(generated))
	for _, asset := range generated {
		match := Match[T]{AI: asset.(T)}
		best := -1.0
		for _, candidate := range library {
			base, ok := m.accept(asset, candidate)
			if !ok {
				continue
			}
			bonus := m.bonus(asset, candidate)
			if base+bonus > best {
				best = base + bonus
				match.Library = candidate.(T)
				match.Score = base
				match.Bonus = bonus
			}
		}
		match.Reuse = best >= 0
		if match.Reuse {
			m.logger.Debug("library candidate selected",
				logging.Args(append(logging.DecisionAttrs("asset_match", "matched", "score cleared threshold"),
					logging.String("kind", string(asset.Kind())),
					logging.String("ai_name", asset.AssetName()),
					logging.String("library_name", match.Library.AssetName()),
					logging.Float64("score", match.Score),
					logging.Float64("bonus", match.Bonus),
				)...)...,
			)
		}
		out = append(out, match)
	}
	return out
}

// accept compares the base score against the stricter of the two names'
// thresholds rather than the generated name's alone. Thresholds fall with
// length, so this is the shorter name's, and a two-letter library name
// cannot match a long generated name at the long-name threshold.
func (m *Matcher) accept(asset, candidate script.Asset) (float64, bool) {
	base := m.policy.Similarity(asset.AssetName(), candidate.AssetName())
	threshold := max(m.policy.Threshold(asset.AssetName()), m.policy.Threshold(candidate.AssetName()))
	return base, base > 0 && base >= threshold
}

func (m *Matcher) bonus(asset, candidate script.Asset) float64 {
	p := m.policy
	var bonus float64
	if strings.TrimSpace(candidate.AssetReferenceImage()) != "" {
		bonus += p.ImageBonus
	}
	bonus += p.VersionBonus * float64(min(max(candidate.AssetVersion(), 0), maxVersionBonusSteps))
	if prompt := candidate.AssetPrompt(); prompt != "" {
		bonus += min(float64(utf8.RuneCountInString(prompt))/p.PromptBonusDivisor, p.PromptBonusCap)
	}

	switch ai := asset.(type) {
	case *script.Scene:
		lib := candidate.(*script.Scene)
		if sameField(ai.Time, lib.Time) {
			bonus += p.FieldMatchBonus
		}
		if sameField(ai.Atmosphere, lib.Atmosphere) {
			bonus += p.FieldMatchBonus
		}
	case *script.Prop:
		lib := candidate.(*script.Prop)
		if sameField(ai.Category, lib.Category) {
			bonus += p.FieldMatchBonus
		}
		similarity := textutil.CosineSimilarity(textutil.NewFingerprint(ai.Description), textutil.NewFingerprint(lib.Description))
		bonus += descriptionBonusWeight * similarity
	}
	return bonus
}

func sameField(a, b string) bool {
	na := Normalize(a)
	return na != "" && na == Normalize(b)
}
