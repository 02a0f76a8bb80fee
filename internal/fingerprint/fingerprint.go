// Package fingerprint derives short deterministic keys from configuration
// records. Keys identify the exact inputs a pipeline stage consumed so the
// orchestrator can tell which stages need to run again.
//
// The hash is a 33-multiplier rolling XOR over UTF-16 code units. It is not
// cryptographic; collisions are tolerated and only cost a missed cache hit.
package fingerprint

import (
	"encoding/json"
	"fmt"
	"strconv"
	"unicode/utf16"

	"shotforge/internal/script"
)

// Version prefixes every key so a future algorithm change invalidates old ones.
const Version = "v1"

// String fingerprints an already serialized value.
func String(raw string) string {
	units := utf16.Encode([]rune(raw))
	var h uint32 = 5381
	for _, c := range units {
		h = ((h << 5) + h) ^ uint32(c)
	}
	return Version + "-" + strconv.FormatUint(uint64(h), 16) + "-" + strconv.Itoa(len(units))
}

// Build serializes v deterministically and fingerprints the result. Struct
// fields serialize in declaration order and map keys sorted.
func Build(v any) (string, error) {
	encoded, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("fingerprint: encode: %w", err)
	}
	return String(string(encoded)), nil
}

// Keys holds the whole-draft key plus one key per stage.
type Keys struct {
	Config    string `json:"config"`
	Structure string `json:"structure"`
	Visuals   string `json:"visuals"`
	Shots     string `json:"shots"`
}

type structureInputs struct {
	RawText        string `json:"rawText"`
	Title          string `json:"title"`
	Language       string `json:"language"`
	TargetDuration int    `json:"targetDuration"`
	Model          string `json:"model"`
}

type visualsInputs struct {
	Language       string `json:"language"`
	VisualStyle    string `json:"visualStyle"`
	Model          string `json:"model"`
	TargetDuration int    `json:"targetDuration"`
}

type shotsInputs struct {
	Language       string `json:"language"`
	VisualStyle    string `json:"visualStyle"`
	Model          string `json:"model"`
	TargetDuration int    `json:"targetDuration"`
	VideoModel     string `json:"videoModel"`
}

// ForDraft computes all keys for the draft. Each stage key covers only the
// fields that stage consumes, so editing the visual style leaves the structure
// key untouched.
func ForDraft(d script.Draft) (Keys, error) {
	var keys Keys
	var err error
	if keys.Config, err = Build(d); err != nil {
		return Keys{}, err
	}
	if keys.Structure, err = Build(structureInputs{
		RawText:        d.RawText,
		Title:          d.Title,
		Language:       d.Language,
		TargetDuration: d.TargetDuration,
		Model:          d.Model,
	}); err != nil {
		return Keys{}, err
	}
	if keys.Visuals, err = Build(visualsInputs{
		Language:       d.Language,
		VisualStyle:    d.VisualStyle,
		Model:          d.Model,
		TargetDuration: d.TargetDuration,
	}); err != nil {
		return Keys{}, err
	}
	if keys.Shots, err = Build(shotsInputs{
		Language:       d.Language,
		VisualStyle:    d.VisualStyle,
		Model:          d.Model,
		TargetDuration: d.TargetDuration,
		VideoModel:     d.VideoModel,
	}); err != nil {
		return Keys{}, err
	}
	return keys, nil
}
