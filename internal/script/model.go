package script

import "time"

// Status tracks generation progress of a visual artefact.
type Status string

const (
	StatusPending    Status = "pending"
	StatusGenerating Status = "generating"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Draft is the caller's current episode configuration. Every fingerprint the
// pipeline computes is derived from a subset of these fields.
type Draft struct {
	ProjectID      string `json:"projectId"`
	EpisodeID      string `json:"episodeId"`
	Title          string `json:"title"`
	RawText        string `json:"rawText"`
	Genre          string `json:"genre,omitempty"`
	Language       string `json:"language"`
	VisualStyle    string `json:"visualStyle"`
	TargetDuration int    `json:"targetDuration"`
	Model          string `json:"model"`
	VideoModel     string `json:"videoModel,omitempty"`
}

// GenerationMeta records the stage fingerprints the script was produced with.
type GenerationMeta struct {
	StructureKey string    `json:"structureKey,omitempty"`
	VisualsKey   string    `json:"visualsKey,omitempty"`
	ShotsKey     string    `json:"shotsKey,omitempty"`
	GeneratedAt  time.Time `json:"generatedAt,omitzero"`
}

// ScriptData is the structured result of the structure and visuals stages.
type ScriptData struct {
	Title          string         `json:"title"`
	Genre          string         `json:"genre,omitempty"`
	Logline        string         `json:"logline,omitempty"`
	TargetDuration int            `json:"targetDuration,omitempty"`
	Language       string         `json:"language,omitempty"`
	VisualStyle    string         `json:"visualStyle,omitempty"`
	Characters     []Character    `json:"characters"`
	Scenes         []Scene        `json:"scenes"`
	Props          []Prop         `json:"props"`
	GenerationMeta GenerationMeta `json:"generationMeta"`
}

// PromptVersion is one entry of an entity's prompt history.
type PromptVersion struct {
	Version int    `json:"version"`
	Prompt  string `json:"prompt"`
	Note    string `json:"note,omitempty"`
}

// Visual groups the fields that represent generated visual work. It is
// embedded by every asset kind.
type Visual struct {
	VisualPrompt   string          `json:"visualPrompt,omitempty"`
	NegativePrompt string          `json:"negativePrompt,omitempty"`
	PromptVersions []PromptVersion `json:"promptVersions,omitempty"`
	ReferenceImage string          `json:"referenceImage,omitempty"`
	Status         Status          `json:"status,omitempty"`
	LibraryID      string          `json:"libraryId,omitempty"`
	LibraryVersion int             `json:"libraryVersion,omitempty"`
	Version        int             `json:"version,omitempty"`
}

// Variation is a named, independently versioned look of a character.
type Variation struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	VisualPrompt   string `json:"visualPrompt,omitempty"`
	NegativePrompt string `json:"negativePrompt,omitempty"`
	ReferenceImage string `json:"referenceImage,omitempty"`
	Status         Status `json:"status,omitempty"`
	Version        int    `json:"version,omitempty"`
}

type Character struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Gender      string `json:"gender,omitempty"`
	Age         string `json:"age,omitempty"`
	Personality string `json:"personality,omitempty"`
	Visual
	Turnaround string      `json:"turnaround,omitempty"`
	Variations []Variation `json:"variations,omitempty"`
}

type Scene struct {
	ID          string `json:"id"`
	Location    string `json:"location"`
	Time        string `json:"time,omitempty"`
	Atmosphere  string `json:"atmosphere,omitempty"`
	Description string `json:"description,omitempty"`
	Visual
}

type Prop struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`
	Visual
}

// KeyframeType marks the position of a keyframe within its shot.
type KeyframeType string

const (
	KeyframeStart KeyframeType = "start"
	KeyframeEnd   KeyframeType = "end"
)

type Keyframe struct {
	ID           string       `json:"id"`
	Type         KeyframeType `json:"type"`
	VisualPrompt string       `json:"visualPrompt,omitempty"`
	ImageURL     string       `json:"imageUrl,omitempty"`
	Status       Status       `json:"status,omitempty"`
}

type VideoInterval struct {
	ID          string  `json:"id"`
	Status      Status  `json:"status,omitempty"`
	VideoPrompt string  `json:"videoPrompt,omitempty"`
	VideoURL    string  `json:"videoUrl,omitempty"`
	Duration    float64 `json:"duration,omitempty"`
}

// Shot is one ordered unit of the storyboard.
type Shot struct {
	ID            string         `json:"id"`
	SceneID       string         `json:"sceneId"`
	CharacterIDs  []string       `json:"characterIds,omitempty"`
	PropIDs       []string       `json:"propIds,omitempty"`
	ActionSummary string         `json:"actionSummary,omitempty"`
	Dialogue      string         `json:"dialogue,omitempty"`
	Camera        string         `json:"camera,omitempty"`
	ShotSize      string         `json:"shotSize,omitempty"`
	Keyframes     []Keyframe     `json:"keyframes,omitempty"`
	Interval      *VideoInterval `json:"interval,omitempty"`
	// CharacterVariations maps character ID to the selected variation ID.
	CharacterVariations map[string]string  `json:"characterVariations,omitempty"`
	QualityAssessment   *QualityAssessment `json:"qualityAssessment,omitempty"`
}

// FindKeyframe returns the first keyframe of the given type, or nil.
func (s *Shot) FindKeyframe(kind KeyframeType) *Keyframe {
	for i := range s.Keyframes {
		if s.Keyframes[i].Type == kind {
			return &s.Keyframes[i]
		}
	}
	return nil
}

// QualityCheck is the result of a single weighted readiness check.
type QualityCheck struct {
	Key     string `json:"key"`
	Label   string `json:"label"`
	Score   int    `json:"score"`
	Weight  int    `json:"weight"`
	Passed  bool   `json:"passed"`
	Details string `json:"details"`
}

// QualityAssessment aggregates the checks for one shot.
type QualityAssessment struct {
	Score     int            `json:"score"`
	Grade     string         `json:"grade"`
	Summary   string         `json:"summary"`
	Checks    []QualityCheck `json:"checks"`
	Source    string         `json:"source"`
	Version   int            `json:"version"`
	CheckedAt time.Time      `json:"checkedAt,omitzero"`
}

// CharacterByID returns the character with the given ID, or nil.
func (d *ScriptData) CharacterByID(id string) *Character {
	for i := range d.Characters {
		if d.Characters[i].ID == id {
			return &d.Characters[i]
		}
	}
	return nil
}

// SceneByID returns the scene with the given ID, or nil.
func (d *ScriptData) SceneByID(id string) *Scene {
	for i := range d.Scenes {
		if d.Scenes[i].ID == id {
			return &d.Scenes[i]
		}
	}
	return nil
}

// PropByID returns the prop with the given ID, or nil.
func (d *ScriptData) PropByID(id string) *Prop {
	for i := range d.Props {
		if d.Props[i].ID == id {
			return &d.Props[i]
		}
	}
	return nil
}
