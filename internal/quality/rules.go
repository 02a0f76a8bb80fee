package quality

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"shotforge/internal/script"
	"shotforge/internal/textutil"
)

// CheckKey identifies one of the five fixed checks.
type CheckKey string

const (
	CheckPromptReadiness   CheckKey = "promptReadiness"
	CheckAssetCoverage     CheckKey = "assetCoverage"
	CheckKeyframeExecution CheckKey = "keyframeExecution"
	CheckVideoExecution    CheckKey = "videoExecution"
	CheckContinuityRisk    CheckKey = "continuityRisk"
)

// CheckKeys lists the checks in report order.
var CheckKeys = []CheckKey{
	CheckPromptReadiness,
	CheckAssetCoverage,
	CheckKeyframeExecution,
	CheckVideoExecution,
	CheckContinuityRisk,
}

// Weights are the relative check weights. They total 110, and WeightedScore
// divides Σ(weight·score) by that total rather than by 100, so a shot that
// passes every check scores at most 100 without relying on the clamp.
var Weights = map[CheckKey]int{
	CheckPromptReadiness:   30,
	CheckAssetCoverage:     20,
	CheckKeyframeExecution: 30,
	CheckVideoExecution:    20,
	CheckContinuityRisk:    10,
}

var labels = map[CheckKey]string{
	CheckPromptReadiness:   "Prompt readiness",
	CheckAssetCoverage:     "Asset coverage",
	CheckKeyframeExecution: "Keyframe execution",
	CheckVideoExecution:    "Video execution",
	CheckContinuityRisk:    "Continuity risk",
}

// Label returns the human-readable check name.
func Label(key CheckKey) string {
	return labels[key]
}

const (
	// PassThreshold is the minimum score for a single check to pass.
	PassThreshold = 70

	GradePass    = "pass"
	GradeWarning = "warning"
	GradeFail    = "fail"

	SourceRule         = "rule"
	SourceModel        = "model"
	SourceRuleFallback = "rule-fallback"

	RuleVersion  = 1
	ModelVersion = 2
)

// DefaultEndFrameModels lists video model prefixes that interpolate between
// a start and an end keyframe.
var DefaultEndFrameModels = []string{"veo", "kling", "vidu", "seedance"}

// GradeFor maps an overall score to a grade.
func GradeFor(score int) string {
	switch {
	case score >= 80:
		return GradePass
	case score >= 60:
		return GradeWarning
	default:
		return GradeFail
	}
}

// Input is one shot plus the entities it references.
type Input struct {
	Shot       script.Shot
	Scene      *script.Scene
	Characters []script.Character
	Props      []script.Prop
	VideoModel string
	// EndFrameModels overrides DefaultEndFrameModels when non-nil.
	EndFrameModels []string
}

// InputFor resolves the shot's references against data. Unknown references
// are left out and count as missing assets.
func InputFor(data *script.ScriptData, shot script.Shot, videoModel string, endFrameModels []string) Input {
	in := Input{Shot: shot, VideoModel: videoModel, EndFrameModels: endFrameModels}
	if data == nil {
		return in
	}
	if scene := data.SceneByID(shot.SceneID); scene != nil {
		copied := *scene
		in.Scene = &copied
	}
	for _, id := range shot.CharacterIDs {
		if c := data.CharacterByID(id); c != nil {
			in.Characters = append(in.Characters, *c)
		}
	}
	for _, id := range shot.PropIDs {
		if p := data.PropByID(id); p != nil {
			in.Props = append(in.Props, *p)
		}
	}
	return in
}

// SupportsEndFrame reports whether model matches one of the prefixes. A
// provider segment such as "google/" is ignored.
func SupportsEndFrame(model string, prefixes []string) bool {
	model = strings.ToLower(strings.TrimSpace(model))
	if i := strings.LastIndex(model, "/"); i >= 0 {
		model = model[i+1:]
	}
	if model == "" {
		return false
	}
	for _, prefix := range prefixes {
		prefix = strings.ToLower(strings.TrimSpace(prefix))
		if prefix != "" && strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

func (in Input) endFrameCapable() bool {
	prefixes := in.EndFrameModels
	if prefixes == nil {
		prefixes = DefaultEndFrameModels
	}
	return SupportsEndFrame(in.VideoModel, prefixes)
}

// Assess runs the rule-based checks.
func Assess(in Input) script.QualityAssessment {
	checks := []script.QualityCheck{
		promptReadiness(in),
		assetCoverage(in),
		keyframeExecution(in),
		videoExecution(in),
		continuityRisk(in),
	}
	score := WeightedScore(checks)
	return script.QualityAssessment{
		Score:   score,
		Grade:   GradeFor(score),
		Summary: Summarize(checks),
		Checks:  checks,
		Source:  SourceRule,
		Version: RuleVersion,
	}
}

// WeightedScore is the weight-normalized mean of the check scores, rounded
// and clamped to [0, 100].
func WeightedScore(checks []script.QualityCheck) int {
	var total, weights float64
	for _, c := range checks {
		total += float64(c.Weight * c.Score)
		weights += float64(c.Weight)
	}
	if weights == 0 {
		return 0
	}
	return clamp(int(math.Round(total / weights)))
}

// Summarize lists the labels of failing checks.
func Summarize(checks []script.QualityCheck) string {
	var failing []string
	for _, c := range checks {
		if !c.Passed {
			failing = append(failing, c.Label)
		}
	}
	if len(failing) == 0 {
		return "All checks passed."
	}
	return "Needs attention: " + strings.Join(failing, ", ") + "."
}

func newCheck(key CheckKey, score int, details string) script.QualityCheck {
	score = clamp(score)
	return script.QualityCheck{
		Key:     string(key),
		Label:   labels[key],
		Score:   score,
		Weight:  Weights[key],
		Passed:  score >= PassThreshold,
		Details: details,
	}
}

func promptReadiness(in Input) script.QualityCheck {
	shot := in.Shot
	var startPrompt, endPrompt, videoPrompt string
	if kf := shot.FindKeyframe(script.KeyframeStart); kf != nil {
		startPrompt = kf.VisualPrompt
	}
	if kf := shot.FindKeyframe(script.KeyframeEnd); kf != nil {
		endPrompt = kf.VisualPrompt
	}
	if shot.Interval != nil {
		videoPrompt = shot.Interval.VideoPrompt
	}

	score := 0
	switch n := runeLen(startPrompt); {
	case n >= 40:
		score += 45
	case n >= 16:
		score += 30
	case n > 0:
		score += 15
	}
	switch n := runeLen(endPrompt); {
	case n >= 30:
		score += 25
	case n > 0:
		score += 10
	}
	switch n := runeLen(videoPrompt); {
	case n >= 30:
		score += 20
	case n > 0:
		score += 10
	}
	if runeLen(shot.ActionSummary) >= 12 {
		score += 10
	}
	return newCheck(CheckPromptReadiness, score, fmt.Sprintf(
		"start prompt %d chars, end prompt %d chars, video prompt %d chars",
		runeLen(startPrompt), runeLen(endPrompt), runeLen(videoPrompt)))
}

func assetCoverage(in Input) script.QualityCheck {
	score := 10
	sceneState := "scene image missing"
	if in.Scene != nil && in.Scene.ReferenceImage != "" {
		score = 35
		sceneState = "scene image ready"
	}

	characterScore := 20.0
	if len(in.Shot.CharacterIDs) > 0 {
		var sum float64
		for _, id := range in.Shot.CharacterIDs {
			if characterImage(in, id) != "" {
				sum += 25
			} else {
				sum += 5
			}
		}
		characterScore = sum / float64(len(in.Shot.CharacterIDs))
	}

	propScore := 10.0
	if len(in.Shot.PropIDs) > 0 {
		var sum float64
		for _, id := range in.Shot.PropIDs {
			if propImage(in, id) != "" {
				sum += 10
			} else {
				sum += 4
			}
		}
		propScore = sum / float64(len(in.Shot.PropIDs))
	}

	score += int(math.Round(characterScore + propScore))
	return newCheck(CheckAssetCoverage, score, fmt.Sprintf(
		"%s, %d characters, %d props referenced", sceneState, len(in.Shot.CharacterIDs), len(in.Shot.PropIDs)))
}

// characterImage prefers the image of the variation selected for this shot.
func characterImage(in Input, id string) string {
	for _, c := range in.Characters {
		if c.ID != id {
			continue
		}
		if variationID, ok := in.Shot.CharacterVariations[id]; ok {
			for _, v := range c.Variations {
				if v.ID == variationID && v.ReferenceImage != "" {
					return v.ReferenceImage
				}
			}
		}
		return c.ReferenceImage
	}
	return ""
}

func propImage(in Input, id string) string {
	for _, p := range in.Props {
		if p.ID == id {
			return p.ReferenceImage
		}
	}
	return ""
}

func keyframeExecution(in Input) script.QualityCheck {
	start := in.Shot.FindKeyframe(script.KeyframeStart)
	end := in.Shot.FindKeyframe(script.KeyframeEnd)
	capable := in.endFrameCapable()

	score := frameScore(start, 55, 25, 15)
	if capable {
		score += frameScore(end, 35, 16, 10)
	} else {
		score += 30
	}
	failed := (start != nil && start.Status == script.StatusFailed) ||
		(end != nil && end.Status == script.StatusFailed)
	if failed {
		score -= 20
	}
	return newCheck(CheckKeyframeExecution, score, fmt.Sprintf(
		"start frame %s, end frame %s%s",
		frameState(start), frameState(end), textutil.Ternary(capable, "", " (not used by video model)")))
}

func frameScore(kf *script.Keyframe, image, generating, promptOnly int) int {
	switch {
	case kf == nil:
		return 0
	case kf.ImageURL != "":
		return image
	case kf.Status == script.StatusGenerating:
		return generating
	case strings.TrimSpace(kf.VisualPrompt) != "":
		return promptOnly
	}
	return 0
}

func frameState(kf *script.Keyframe) string {
	switch {
	case kf == nil:
		return "missing"
	case kf.ImageURL != "":
		return "rendered"
	case kf.Status == script.StatusFailed:
		return "failed"
	case kf.Status == script.StatusGenerating:
		return "generating"
	case strings.TrimSpace(kf.VisualPrompt) != "":
		return "prompt only"
	}
	return "empty"
}

func videoExecution(in Input) script.QualityCheck {
	interval := in.Shot.Interval
	if interval == nil {
		return newCheck(CheckVideoExecution, 0, "no video interval")
	}
	var score int
	switch interval.Status {
	case script.StatusCompleted:
		if interval.VideoURL != "" {
			score = 100
		} else {
			score = 35
		}
	case script.StatusGenerating:
		score = 55
	case script.StatusFailed:
		score = 10
	default:
		score = 35
	}
	status := string(interval.Status)
	if status == "" {
		status = string(script.StatusPending)
	}
	return newCheck(CheckVideoExecution, score, fmt.Sprintf("video %s%s", status,
		textutil.Ternary(interval.Status == script.StatusCompleted && interval.VideoURL == "", " without output", "")))
}

func continuityRisk(in Input) script.QualityCheck {
	start := in.Shot.FindKeyframe(script.KeyframeStart)
	end := in.Shot.FindKeyframe(script.KeyframeEnd)
	hasStart := start != nil && start.ImageURL != ""
	hasEnd := end != nil && end.ImageURL != ""
	capable := in.endFrameCapable()

	score := 40
	if hasStart {
		score += 25
	}
	switch {
	case !capable:
		score += 20
	case hasEnd:
		score += 25
	}
	if len(in.Shot.CharacterIDs) > 0 && !hasStart {
		score -= 20
		if capable && !hasEnd {
			score -= 10
		}
	}
	return newCheck(CheckContinuityRisk, score, fmt.Sprintf(
		"%d characters, start anchor %t, end anchor %t", len(in.Shot.CharacterIDs), hasStart, hasEnd))
}

func clamp(score int) int {
	return min(max(score, 0), 100)
}

func runeLen(s string) int {
	return utf8.RuneCountInString(strings.TrimSpace(s))
}
