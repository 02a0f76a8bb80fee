package quality

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"shotforge/internal/logging"
	"shotforge/internal/script"
	"shotforge/internal/services"
	"shotforge/internal/services/llm"
)

// Assessor grades one shot. Implementations never fail; problems are folded
// into the returned assessment.
type Assessor interface {
	Assess(ctx context.Context, in Input) script.QualityAssessment
}

// RuleAssessor adapts Assess to the Assessor interface.
type RuleAssessor struct{}

func (RuleAssessor) Assess(_ context.Context, in Input) script.QualityAssessment {
	return Assess(in)
}

// Completer issues one JSON chat completion. *llm.Client satisfies it.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ModelOptions configures a ModelAssessor.
type ModelOptions struct {
	// Attempts is the total number of requests before falling back.
	Attempts int
	// Backoff is multiplied by the attempt number between requests.
	Backoff time.Duration
	// Timeout bounds each request.
	Timeout time.Duration
	Logger  *slog.Logger
	// Sleep waits between attempts. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// ModelAssessor asks a model for the five checks and falls back to the rule
// scorer when the model cannot deliver a usable answer.
type ModelAssessor struct {
	completer Completer
	attempts  int
	backoff   time.Duration
	timeout   time.Duration
	logger    *slog.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewModelAssessor constructs a ModelAssessor.
func NewModelAssessor(completer Completer, opts ModelOptions) *ModelAssessor {
	m := &ModelAssessor{
		completer: completer,
		attempts:  max(opts.Attempts, 1),
		backoff:   max(opts.Backoff, 0),
		timeout:   opts.Timeout,
		logger:    logging.NewComponentLogger(opts.Logger, "quality"),
		sleep:     opts.Sleep,
	}
	if m.timeout <= 0 {
		m.timeout = 45 * time.Second
	}
	if m.sleep == nil {
		m.sleep = sleepContext
	}
	return m
}

const modelSystemPrompt = `You review storyboard shots for production readiness.
Score exactly these checks from 0 to 100: promptReadiness, assetCoverage, keyframeExecution, videoExecution, continuityRisk.
A check passes at 70 or above. Weights: promptReadiness 30, assetCoverage 20, keyframeExecution 30, videoExecution 20, continuityRisk 10.
Respond with JSON only:
{"score": number, "grade": "pass"|"warning"|"fail", "summary": string,
 "checks": [{"key": string, "score": number, "passed": boolean, "details": string}]}`

// Assess returns the model's assessment, or the rule assessment with the
// failure reason appended to its summary.
func (m *ModelAssessor) Assess(ctx context.Context, in Input) script.QualityAssessment {
	payload, err := json.Marshal(buildContext(in))
	if err != nil {
		return m.fallback(in, fmt.Errorf("encode shot context: %w", err))
	}

	var lastErr error
	for attempt := 1; attempt <= m.attempts; attempt++ {
		if attempt > 1 {
			if err := m.sleep(ctx, m.backoff*time.Duration(attempt-1)); err != nil {
				lastErr = err
				break
			}
		}
		assessment, err := m.request(ctx, string(payload))
		if err == nil {
			return assessment
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		m.logger.Debug("quality model attempt failed",
			logging.String(logging.FieldEventType, "quality_model_retry"),
			logging.Int("attempt", attempt),
			logging.Error(err),
		)
	}
	return m.fallback(in, lastErr)
}

func (m *ModelAssessor) request(ctx context.Context, payload string) (script.QualityAssessment, error) {
	reqCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	content, err := m.completer.CompleteJSON(reqCtx, modelSystemPrompt, payload)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return script.QualityAssessment{}, services.Wrap(services.ErrTimeout, "quality", "complete", "model request timed out", err)
		}
		return script.QualityAssessment{}, services.Wrap(services.ErrExternalTool, "quality", "complete", "model request failed", err)
	}
	var reply modelReply
	if err := llm.DecodeLLMJSON(content, &reply); err != nil {
		return script.QualityAssessment{}, services.Wrap(services.ErrMalformedResponse, "quality", "decode", "reply is not JSON", err)
	}
	return reply.assessment()
}

func (m *ModelAssessor) fallback(in Input, cause error) script.QualityAssessment {
	reason := "unknown error"
	if cause != nil {
		reason = cause.Error()
	}
	logging.WarnWithContext(m.logger, "model scoring failed; using rule scorer", "quality_fallback",
		logging.String("reason", reason),
		logging.String(logging.FieldImpact, "assessment uses deterministic rules"),
		logging.String(logging.FieldErrorHint, "check llm settings or the quality model override"),
	)
	assessment := Assess(in)
	assessment.Source = SourceRuleFallback
	assessment.Summary = strings.TrimSpace(assessment.Summary + " (model scoring unavailable: " + truncate(reason, 200) + ")")
	return assessment
}

type modelCheck struct {
	Key     string   `json:"key"`
	Score   *float64 `json:"score"`
	Details string   `json:"details"`
}

type modelReply struct {
	Score   *float64     `json:"score"`
	Summary string       `json:"summary"`
	Checks  []modelCheck `json:"checks"`
}

const insufficientInformation = "insufficient information"

// assessment validates the reply. Missing checks score 50 and fail; pass
// flags and the grade are recomputed rather than trusted.
func (r modelReply) assessment() (script.QualityAssessment, error) {
	byKey := make(map[CheckKey]modelCheck, len(r.Checks))
	for _, c := range r.Checks {
		key := CheckKey(strings.TrimSpace(c.Key))
		if _, known := Weights[key]; known && c.Score != nil {
			byKey[key] = c
		}
	}
	if len(byKey) == 0 {
		return script.QualityAssessment{}, services.Wrap(services.ErrMalformedResponse, "quality", "validate", "reply has no recognizable checks", nil)
	}

	checks := make([]script.QualityCheck, 0, len(CheckKeys))
	for _, key := range CheckKeys {
		c, ok := byKey[key]
		if !ok {
			checks = append(checks, script.QualityCheck{
				Key:     string(key),
				Label:   labels[key],
				Score:   50,
				Weight:  Weights[key],
				Passed:  false,
				Details: insufficientInformation,
			})
			continue
		}
		details := truncate(c.Details, 400)
		if details == "" {
			details = insufficientInformation
		}
		checks = append(checks, newCheck(key, roundScore(*c.Score), details))
	}

	score := WeightedScore(checks)
	if r.Score != nil && !math.IsNaN(*r.Score) {
		score = clamp(roundScore(*r.Score))
	}
	summary := truncate(r.Summary, 400)
	if summary == "" {
		summary = Summarize(checks)
	}
	return script.QualityAssessment{
		Score:   score,
		Grade:   GradeFor(score),
		Summary: summary,
		Checks:  checks,
		Source:  SourceModel,
		Version: ModelVersion,
	}, nil
}

func roundScore(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return clamp(int(math.Round(v)))
}

type frameContext struct {
	Type     string `json:"type"`
	Status   string `json:"status,omitempty"`
	HasImage bool   `json:"hasImage"`
	Prompt   string `json:"prompt,omitempty"`
}

type entityContext struct {
	Name     string `json:"name"`
	HasImage bool   `json:"hasImage"`
	Prompt   string `json:"prompt,omitempty"`
}

type shotContext struct {
	ActionSummary    string          `json:"actionSummary,omitempty"`
	Dialogue         string          `json:"dialogue,omitempty"`
	Camera           string          `json:"camera,omitempty"`
	ShotSize         string          `json:"shotSize,omitempty"`
	Scene            *entityContext  `json:"scene,omitempty"`
	Characters       []entityContext `json:"characters,omitempty"`
	Props            []entityContext `json:"props,omitempty"`
	Keyframes        []frameContext  `json:"keyframes,omitempty"`
	VideoStatus      string          `json:"videoStatus,omitempty"`
	HasVideo         bool            `json:"hasVideo"`
	VideoPrompt      string          `json:"videoPrompt,omitempty"`
	Duration         float64         `json:"duration,omitempty"`
	VideoModel       string          `json:"videoModel,omitempty"`
	SupportsEndFrame bool            `json:"supportsEndFrame"`
}

const (
	maxPromptChars  = 300
	maxEntityPrompt = 160
	maxShortField   = 120
)

func buildContext(in Input) shotContext {
	shot := in.Shot
	ctx := shotContext{
		ActionSummary:    truncate(shot.ActionSummary, maxPromptChars),
		Dialogue:         truncate(shot.Dialogue, maxShortField),
		Camera:           truncate(shot.Camera, maxShortField),
		ShotSize:         truncate(shot.ShotSize, maxShortField),
		VideoModel:       in.VideoModel,
		SupportsEndFrame: in.endFrameCapable(),
	}
	if in.Scene != nil {
		ctx.Scene = &entityContext{
			Name:     truncate(in.Scene.Location, maxShortField),
			HasImage: in.Scene.ReferenceImage != "",
			Prompt:   truncate(in.Scene.VisualPrompt, maxEntityPrompt),
		}
	}
	for _, c := range in.Characters {
		ctx.Characters = append(ctx.Characters, entityContext{
			Name:     truncate(c.Name, maxShortField),
			HasImage: characterImage(in, c.ID) != "",
			Prompt:   truncate(c.VisualPrompt, maxEntityPrompt),
		})
	}
	for _, p := range in.Props {
		ctx.Props = append(ctx.Props, entityContext{
			Name:     truncate(p.Name, maxShortField),
			HasImage: p.ReferenceImage != "",
			Prompt:   truncate(p.VisualPrompt, maxEntityPrompt),
		})
	}
	for _, kf := range shot.Keyframes {
		ctx.Keyframes = append(ctx.Keyframes, frameContext{
			Type:     string(kf.Type),
			Status:   string(kf.Status),
			HasImage: kf.ImageURL != "",
			Prompt:   truncate(kf.VisualPrompt, maxPromptChars),
		})
	}
	if shot.Interval != nil {
		ctx.VideoStatus = string(shot.Interval.Status)
		ctx.HasVideo = shot.Interval.VideoURL != ""
		ctx.VideoPrompt = truncate(shot.Interval.VideoPrompt, maxPromptChars)
		ctx.Duration = shot.Interval.Duration
	}
	return ctx
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "…"
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
