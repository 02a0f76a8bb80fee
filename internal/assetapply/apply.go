package assetapply

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"shotforge/internal/assetmatch"
	"shotforge/internal/logging"
	"shotforge/internal/script"
	"shotforge/internal/services"
)

// SyncStatusSynced marks a reference whose entity matches the library version.
const SyncStatusSynced = "synced"

// Ref tracks which library entry an applied entity came from.
type Ref struct {
	EntityID      string `json:"entityId"`
	SyncedVersion int    `json:"syncedVersion"`
	SyncStatus    string `json:"syncStatus"`
}

// IDFunc mints the ID for an entity that reuses a library asset.
type IDFunc func(kind script.Kind) string

// Options configures Apply.
type Options struct {
	NewID  IDFunc
	Logger *slog.Logger
}

// Output is the finalized script with rewired shots and sync references.
type Output struct {
	Script        *script.ScriptData `json:"scriptData"`
	Shots         []script.Shot      `json:"shots"`
	CharacterRefs []Ref              `json:"characterRefs"`
	SceneRefs     []Ref              `json:"sceneRefs"`
	PropRefs      []Ref              `json:"propRefs"`
	// Remapped maps each kind's old generated IDs to their new IDs.
	Remapped map[script.Kind]map[string]string `json:"remapped,omitempty"`
}

var idPrefixes = map[script.Kind]string{
	script.KindCharacter: "char",
	script.KindScene:     "scene",
	script.KindProp:      "prop",
}

// DefaultID returns "<kind prefix>-<uuid>".
func DefaultID(kind script.Kind) string {
	return idPrefixes[kind] + "-" + uuid.NewString()
}

// Apply commits every match marked for reuse. Inputs are not modified.
// Decisions are taken from result as-is; nothing is re-scored here.
func Apply(data *script.ScriptData, shots []script.Shot, result assetmatch.Result, opts Options) (*Output, error) {
	if data == nil {
		return nil, services.Wrap(services.ErrValidation, "", "apply", "script is nil", nil)
	}
	newID := opts.NewID
	if newID == nil {
		newID = DefaultID
	}
	logger := logging.NewComponentLogger(opts.Logger, "assetapply")

	out := &Output{
		Script:   data.Clone(),
		Shots:    script.CloneShots(shots),
		Remapped: make(map[script.Kind]map[string]string),
	}
	refs := map[script.Kind]*refList{
		script.KindCharacter: {},
		script.KindScene:     {},
		script.KindProp:      {},
	}

	if err := applyKind(out, result.Characters, newID, refs[script.KindCharacter]); err != nil {
		return nil, err
	}
	if err := applyKind(out, result.Scenes, newID, refs[script.KindScene]); err != nil {
		return nil, err
	}
	if err := applyKind(out, result.Props, newID, refs[script.KindProp]); err != nil {
		return nil, err
	}
	for kind, table := range out.Remapped {
		if len(table) == 0 {
			delete(out.Remapped, kind)
		}
	}

	for i := range out.Shots {
		rewireShot(&out.Shots[i], out.Remapped)
	}
	out.CharacterRefs = refs[script.KindCharacter].items()
	out.SceneRefs = refs[script.KindScene].items()
	out.PropRefs = refs[script.KindProp].items()

	logger.Info("library matches applied",
		logging.String(logging.FieldEventType, "asset_apply_complete"),
		logging.Int("characters_reused", len(out.Remapped[script.KindCharacter])),
		logging.Int("scenes_reused", len(out.Remapped[script.KindScene])),
		logging.Int("props_reused", len(out.Remapped[script.KindProp])),
	)
	return out, nil
}

func applyKind[T script.Asset](out *Output, matches []assetmatch.Match[T], newID IDFunc, refs *refList) error {
	for _, match := range matches {
		if !match.Reuse {
			continue
		}
		if script.IsNilAsset(match.AI) {
			return services.Wrap(services.ErrValidation, "", "apply", "match without a generated asset", nil)
		}
		if !match.Found() {
			return services.Wrap(services.ErrValidation, "", "apply",
				fmt.Sprintf("%s %q marked for reuse without a library asset", match.AI.Kind(), match.AI.AssetID()), nil)
		}
		kind := match.AI.Kind()
		oldID := match.AI.AssetID()
		target := findAsset(out.Script, kind, oldID)
		if target == nil {
			return services.Wrap(services.ErrNotFound, "", "apply",
				fmt.Sprintf("%s %q is not in the script", kind, oldID), nil)
		}
		id := newID(kind)
		adopt(target, match.Library, id)

		table := out.Remapped[kind]
		if table == nil {
			table = make(map[string]string)
			out.Remapped[kind] = table
		}
		table[oldID] = id
		refs.put(Ref{
			EntityID:      match.Library.AssetID(),
			SyncedVersion: match.Library.AssetVersion(),
			SyncStatus:    SyncStatusSynced,
		})
	}
	return nil
}

func findAsset(data *script.ScriptData, kind script.Kind, id string) script.Asset {
	for _, asset := range data.Assets(kind) {
		if asset.AssetID() == id {
			return asset
		}
	}
	return nil
}

// adopt copies the library's visual data onto target, falling back to the
// generated value wherever the library field is empty, and relabels it.
func adopt(target, lib script.Asset, id string) {
	v := target.Visuals()
	src := *lib.Visuals()
	v.VisualPrompt = preferString(src.VisualPrompt, v.VisualPrompt)
	v.NegativePrompt = preferString(src.NegativePrompt, v.NegativePrompt)
	v.ReferenceImage = preferString(src.ReferenceImage, v.ReferenceImage)
	if len(src.PromptVersions) > 0 {
		v.PromptVersions = slices.Clone(src.PromptVersions)
	}
	if src.Status != "" {
		v.Status = src.Status
	}
	if src.Version > 0 {
		v.Version = src.Version
	}
	v.LibraryID = lib.AssetID()
	v.LibraryVersion = lib.AssetVersion()

	switch t := target.(type) {
	case *script.Character:
		t.ID = id
		l := lib.(*script.Character)
		t.Turnaround = preferString(l.Turnaround, t.Turnaround)
		if len(l.Variations) > 0 {
			t.Variations = slices.Clone(l.Variations)
		}
	case *script.Scene:
		t.ID = id
	case *script.Prop:
		t.ID = id
	}
}

func preferString(primary, fallback string) string {
	if primary != "" {
		return primary
	}
	return fallback
}

func rewireShot(shot *script.Shot, tables map[script.Kind]map[string]string) {
	if len(tables) == 0 {
		return
	}
	if id, ok := tables[script.KindScene][shot.SceneID]; ok {
		shot.SceneID = id
	}
	remapAll(shot.CharacterIDs, tables[script.KindCharacter])
	remapAll(shot.PropIDs, tables[script.KindProp])
	if len(shot.CharacterVariations) > 0 && len(tables[script.KindCharacter]) > 0 {
		remapped := make(map[string]string, len(shot.CharacterVariations))
		for charID, variationID := range shot.CharacterVariations {
			if id, ok := tables[script.KindCharacter][charID]; ok {
				charID = id
			}
			remapped[charID] = variationID
		}
		shot.CharacterVariations = remapped
	}
}

func remapAll(ids []string, table map[string]string) {
	for i, id := range ids {
		if next, ok := table[id]; ok {
			ids[i] = next
		}
	}
}

// refList keeps insertion order and replaces duplicates by entity ID.
type refList struct {
	order []string
	byID  map[string]Ref
}

func (l *refList) put(ref Ref) {
	if l.byID == nil {
		l.byID = make(map[string]Ref)
	}
	if _, exists := l.byID[ref.EntityID]; !exists {
		l.order = append(l.order, ref.EntityID)
	}
	l.byID[ref.EntityID] = ref
}

func (l *refList) items() []Ref {
	out := make([]Ref, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.byID[id])
	}
	return out
}
