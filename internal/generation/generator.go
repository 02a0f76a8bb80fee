package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"shotforge/internal/language"
	"shotforge/internal/logging"
	"shotforge/internal/pipeline"
	"shotforge/internal/script"
	"shotforge/internal/services"
	"shotforge/internal/services/llm"
)

// Completer issues one JSON chat completion. *llm.Client satisfies it.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Options configures a Generator.
type Options struct {
	Logger *slog.Logger
	// NewID mints shot, keyframe, and interval IDs. Defaults to uuid.NewString.
	NewID func() string
}

// Generator is the model-backed pipeline.Generator.
type Generator struct {
	completer Completer
	logger    *slog.Logger
	newID     func() string
}

var _ pipeline.Generator = (*Generator)(nil)

// New constructs a Generator.
func New(completer Completer, opts Options) *Generator {
	g := &Generator{
		completer: completer,
		logger:    logging.NewComponentLogger(opts.Logger, "generation"),
		newID:     opts.NewID,
	}
	if g.newID == nil {
		g.newID = uuid.NewString
	}
	return g
}

type structureReply struct {
	Title      string             `json:"title"`
	Genre      string             `json:"genre"`
	Logline    string             `json:"logline"`
	Characters []script.Character `json:"characters"`
	Scenes     []script.Scene     `json:"scenes"`
	Props      []script.Prop      `json:"props"`
}

// GenerateStructure parses the raw script into titled entity lists.
func (g *Generator) GenerateStructure(ctx context.Context, draft script.Draft) (*script.ScriptData, error) {
	if strings.TrimSpace(draft.RawText) == "" {
		return nil, services.Wrap(services.ErrValidation, "structure", "generate", "raw text is empty", nil)
	}
	user, err := promptPayload(map[string]any{
		"title":          draft.Title,
		"language":       language.PromptName(draft.Language),
		"genre":          draft.Genre,
		"targetDuration": draft.TargetDuration,
		"script":         draft.RawText,
	})
	if err != nil {
		return nil, err
	}
	var reply structureReply
	if err := g.complete(ctx, "structure", structureSystemPrompt, user, &reply); err != nil {
		return nil, err
	}

	data := &script.ScriptData{
		Title:          firstNonEmpty(reply.Title, draft.Title),
		Genre:          firstNonEmpty(reply.Genre, draft.Genre),
		Logline:        strings.TrimSpace(reply.Logline),
		TargetDuration: draft.TargetDuration,
		Language:       draft.Language,
		VisualStyle:    draft.VisualStyle,
		Characters:     keepNamed(reply.Characters, func(c *script.Character) string { return c.Name }),
		Scenes:         keepNamed(reply.Scenes, func(s *script.Scene) string { return s.Location }),
		Props:          keepNamed(reply.Props, func(p *script.Prop) string { return p.Name }),
	}
	if len(data.Scenes) == 0 {
		return nil, services.Wrap(services.ErrMalformedResponse, "structure", "validate", "reply contains no scenes", nil)
	}
	assignIDs(data.Characters, "char", func(c *script.Character) *string { return &c.ID })
	assignIDs(data.Scenes, "scene", func(s *script.Scene) *string { return &s.ID })
	assignIDs(data.Props, "prop", func(p *script.Prop) *string { return &p.ID })

	g.logger.Debug("structure parsed",
		logging.String(logging.FieldEventType, "structure_parsed"),
		logging.Int("characters", len(data.Characters)),
		logging.Int("scenes", len(data.Scenes)),
		logging.Int("props", len(data.Props)),
	)
	return data, nil
}

type visualRequest struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type visualsReply struct {
	Visuals []struct {
		ID             string `json:"id"`
		VisualPrompt   string `json:"visualPrompt"`
		NegativePrompt string `json:"negativePrompt"`
	} `json:"visuals"`
}

// GenerateVisuals writes prompts for every entity that has none. Entities
// already carrying a prompt, including those restored by reuse, are not sent.
func (g *Generator) GenerateVisuals(ctx context.Context, draft script.Draft, data *script.ScriptData) (*script.ScriptData, error) {
	if data == nil {
		return nil, services.Wrap(services.ErrValidation, "visuals", "generate", "script is nil", nil)
	}
	pending := make(map[string]script.Asset)
	var requests []visualRequest
	for _, kind := range script.Kinds {
		for _, asset := range data.Assets(kind) {
			if strings.TrimSpace(asset.AssetPrompt()) != "" {
				continue
			}
			ref := visualRef(kind, asset.AssetID())
			pending[ref] = asset
			requests = append(requests, visualRequest{
				ID:          ref,
				Kind:        string(kind),
				Name:        asset.AssetName(),
				Description: describe(asset),
			})
		}
	}
	if len(requests) == 0 {
		g.logger.Debug("visuals already present",
			logging.Args(logging.DecisionAttrs("visuals_request", "skipped", "every entity has a prompt")...)...)
		return data, nil
	}

	user, err := promptPayload(map[string]any{
		"language":    language.PromptName(draft.Language),
		"visualStyle": draft.VisualStyle,
		"entities":    requests,
	})
	if err != nil {
		return nil, err
	}
	var reply visualsReply
	if err := g.complete(ctx, "visuals", visualsSystemPrompt, user, &reply); err != nil {
		return nil, err
	}

	applied := 0
	for _, item := range reply.Visuals {
		asset, ok := pending[item.ID]
		prompt := strings.TrimSpace(item.VisualPrompt)
		if !ok || prompt == "" {
			continue
		}
		v := asset.Visuals()
		v.VisualPrompt = prompt
		if v.NegativePrompt == "" {
			v.NegativePrompt = strings.TrimSpace(item.NegativePrompt)
		}
		if v.Status == "" {
			v.Status = script.StatusPending
		}
		v.PromptVersions = append(v.PromptVersions, script.PromptVersion{
			Version: len(v.PromptVersions) + 1,
			Prompt:  prompt,
			Note:    "generated",
		})
		v.Version = max(v.Version, len(v.PromptVersions))
		delete(pending, item.ID)
		applied++
	}
	if applied == 0 {
		return nil, services.Wrap(services.ErrMalformedResponse, "visuals", "validate", "reply matched no requested ids", nil)
	}
	if len(pending) > 0 {
		logging.WarnWithContext(g.logger, "visual prompts missing for some entities", "visuals_incomplete",
			logging.Int("missing", len(pending)),
			logging.String(logging.FieldImpact, "entities without prompts are requested again on the next visuals run"),
			logging.String(logging.FieldErrorHint, "rerun generate after editing the visual style"),
		)
	}
	return data, nil
}

type shotReply struct {
	ID            string   `json:"id"`
	SceneID       string   `json:"sceneId"`
	CharacterIDs  []string `json:"characterIds"`
	PropIDs       []string `json:"propIds"`
	ActionSummary string   `json:"actionSummary"`
	Dialogue      string   `json:"dialogue"`
	Camera        string   `json:"camera"`
	ShotSize      string   `json:"shotSize"`
	StartPrompt   string   `json:"startPrompt"`
	EndPrompt     string   `json:"endPrompt"`
	VideoPrompt   string   `json:"videoPrompt"`
	Duration      float64  `json:"duration"`
}

type shotsReply struct {
	Shots []shotReply `json:"shots"`
}

// GenerateShots splits the episode into shots. References to unknown
// entities are dropped; a shot whose scene is unknown is skipped entirely.
func (g *Generator) GenerateShots(ctx context.Context, draft script.Draft, data *script.ScriptData) ([]script.Shot, error) {
	if data == nil || len(data.Scenes) == 0 {
		return nil, services.Wrap(services.ErrValidation, "shots", "generate", "script has no scenes", nil)
	}
	user, err := promptPayload(map[string]any{
		"language":       language.PromptName(draft.Language),
		"visualStyle":    draft.VisualStyle,
		"videoModel":     draft.VideoModel,
		"targetDuration": draft.TargetDuration,
		"script":         draft.RawText,
		"scenes":         data.Scenes,
		"characters":     data.Characters,
		"props":          data.Props,
	})
	if err != nil {
		return nil, err
	}
	var reply shotsReply
	if err := g.complete(ctx, "shots", shotsSystemPrompt, user, &reply); err != nil {
		return nil, err
	}

	shots := make([]script.Shot, 0, len(reply.Shots))
	skipped := 0
	for _, item := range reply.Shots {
		if data.SceneByID(item.SceneID) == nil {
			skipped++
			continue
		}
		shots = append(shots, g.buildShot(item, data))
	}
	if len(shots) == 0 {
		return nil, services.Wrap(services.ErrMalformedResponse, "shots", "validate", "reply contains no usable shots", nil)
	}
	if skipped > 0 {
		logging.WarnWithContext(g.logger, "shots with unknown scenes skipped", "shots_skipped",
			logging.Int("skipped", skipped),
			logging.String(logging.FieldImpact, "storyboard may be shorter than the target duration"),
		)
	}
	return shots, nil
}

func (g *Generator) buildShot(item shotReply, data *script.ScriptData) script.Shot {
	shot := script.Shot{
		ID:            strings.TrimSpace(item.ID),
		SceneID:       item.SceneID,
		ActionSummary: strings.TrimSpace(item.ActionSummary),
		Dialogue:      strings.TrimSpace(item.Dialogue),
		Camera:        strings.TrimSpace(item.Camera),
		ShotSize:      strings.TrimSpace(item.ShotSize),
	}
	if shot.ID == "" {
		shot.ID = g.newID()
	}
	shot.CharacterIDs = knownIDs(item.CharacterIDs, func(id string) bool { return data.CharacterByID(id) != nil })
	shot.PropIDs = knownIDs(item.PropIDs, func(id string) bool { return data.PropByID(id) != nil })

	if prompt := strings.TrimSpace(item.StartPrompt); prompt != "" {
		shot.Keyframes = append(shot.Keyframes, script.Keyframe{
			ID: g.newID(), Type: script.KeyframeStart, VisualPrompt: prompt, Status: script.StatusPending,
		})
	}
	if prompt := strings.TrimSpace(item.EndPrompt); prompt != "" {
		shot.Keyframes = append(shot.Keyframes, script.Keyframe{
			ID: g.newID(), Type: script.KeyframeEnd, VisualPrompt: prompt, Status: script.StatusPending,
		})
	}
	if prompt := strings.TrimSpace(item.VideoPrompt); prompt != "" || item.Duration > 0 {
		shot.Interval = &script.VideoInterval{
			ID:          g.newID(),
			Status:      script.StatusPending,
			VideoPrompt: prompt,
			Duration:    item.Duration,
		}
	}
	return shot
}

// complete runs one request and decodes the reply. Cancellation passes
// through untouched so the orchestrator can classify it.
func (g *Generator) complete(ctx context.Context, stage, system, user string, target any) error {
	content, err := g.completer.CompleteJSON(ctx, system, user)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errors.Is(err, services.ErrConfiguration) {
			return err
		}
		return services.Wrap(services.ErrExternalTool, stage, "complete", "model request failed", err)
	}
	if err := llm.DecodeLLMJSON(content, target); err != nil {
		return services.Wrap(services.ErrMalformedResponse, stage, "decode", "reply is not the expected JSON", err)
	}
	return nil
}

func promptPayload(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode prompt payload: %w", err)
	}
	return string(data), nil
}

// visualRef keys a visuals request. IDs are only unique within one kind.
func visualRef(kind script.Kind, id string) string {
	return string(kind) + "/" + id
}

func describe(asset script.Asset) string {
	switch a := asset.(type) {
	case *script.Character:
		return strings.TrimSpace(strings.Join(nonEmpty(a.Gender, a.Age, a.Personality), ", "))
	case *script.Scene:
		return strings.TrimSpace(strings.Join(nonEmpty(a.Time, a.Atmosphere, a.Description), ", "))
	case *script.Prop:
		return strings.TrimSpace(strings.Join(nonEmpty(a.Category, a.Description), ", "))
	}
	return ""
}

// keepNamed drops entries the model returned without a name.
func keepNamed[T any](items []T, name func(*T) string) []T {
	out := make([]T, 0, len(items))
	for i := range items {
		if strings.TrimSpace(name(&items[i])) != "" {
			out = append(out, items[i])
		}
	}
	return out
}

// assignIDs gives every entry a unique ID, keeping model-supplied IDs unless
// they collide.
func assignIDs[T any](items []T, prefix string, id func(*T) *string) {
	seen := make(map[string]struct{}, len(items))
	next := 1
	for i := range items {
		ref := id(&items[i])
		*ref = strings.TrimSpace(*ref)
		if _, dup := seen[*ref]; *ref != "" && !dup {
			seen[*ref] = struct{}{}
			continue
		}
		for {
			candidate := prefix + "-" + strconv.Itoa(next)
			next++
			if _, taken := seen[candidate]; !taken {
				*ref = candidate
				seen[candidate] = struct{}{}
				break
			}
		}
	}
}

func knownIDs(ids []string, known func(string) bool) []string {
	var out []string
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup || !known(id) {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func nonEmpty(values ...string) []string {
	out := values[:0:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
