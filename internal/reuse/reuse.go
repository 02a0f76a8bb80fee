// Package reuse carries previously generated visual work onto freshly parsed
// script entities so unchanged inputs never pay for a second model call.
package reuse

import (
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/cases"

	"shotforge/internal/script"
)

// NormalizeName case-folds s, strips punctuation and symbols, and collapses
// whitespace. Two names that normalize equal refer to the same entity.
func NormalizeName(s string) string {
	folded := cases.Fold().String(s)
	var b strings.Builder
	b.Grow(len(folded))
	space := false
	for _, r := range folded {
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

// Stats counts reused entities per kind.
type Stats map[script.Kind]int

// Total returns the number of entities that received reused data.
func (s Stats) Total() int {
	total := 0
	for _, n := range s {
		total += n
	}
	return total
}

// Apply returns a copy of fresh in which every entity that matches one in
// previous (by ID, then by normalized name) has its empty visual fields
// filled from the previous entity. Fresh content is never overwritten.
func Apply(fresh, previous *script.ScriptData) (*script.ScriptData, Stats) {
	out := fresh.Clone()
	stats := Stats{}
	if out == nil || previous == nil {
		return out, stats
	}
	prev := previous.Clone()
	for _, kind := range script.Kinds {
		index := newIndex(prev.Assets(kind))
		for _, asset := range out.Assets(kind) {
			source := index.lookup(asset)
			if source == nil {
				continue
			}
			if Merge(asset, source) {
				stats[kind]++
			}
		}
	}
	return out, stats
}

// Merge fills dst's empty visual fields from src and reports whether anything
// was copied. Both assets must be of the same kind.
func Merge(dst, src script.Asset) bool {
	if dst == nil || src == nil || dst.Kind() != src.Kind() {
		return false
	}
	changed := MergeVisual(dst.Visuals(), *src.Visuals())
	if dc, ok := dst.(*script.Character); ok {
		sc := src.(*script.Character)
		if dc.Turnaround == "" && sc.Turnaround != "" {
			dc.Turnaround = sc.Turnaround
			changed = true
		}
		if len(dc.Variations) == 0 && len(sc.Variations) > 0 {
			dc.Variations = slices.Clone(sc.Variations)
			changed = true
		}
	}
	return changed
}

// MergeVisual is the field-level reducer for generated visual work. Each
// field of dst keeps its value when set and takes src's value otherwise.
func MergeVisual(dst *script.Visual, src script.Visual) bool {
	changed := false
	fillString := func(d *string, s string) {
		if *d == "" && s != "" {
			*d = s
			changed = true
		}
	}
	fillInt := func(d *int, s int) {
		if *d == 0 && s != 0 {
			*d = s
			changed = true
		}
	}
	fillString(&dst.VisualPrompt, src.VisualPrompt)
	fillString(&dst.NegativePrompt, src.NegativePrompt)
	fillString(&dst.ReferenceImage, src.ReferenceImage)
	fillString(&dst.LibraryID, src.LibraryID)
	fillInt(&dst.LibraryVersion, src.LibraryVersion)
	fillInt(&dst.Version, src.Version)
	if dst.Status == "" && src.Status != "" {
		dst.Status = src.Status
		changed = true
	}
	if len(dst.PromptVersions) == 0 && len(src.PromptVersions) > 0 {
		dst.PromptVersions = slices.Clone(src.PromptVersions)
		changed = true
	}
	return changed
}

// Invalidate returns a copy of data with its generated visual work cleared,
// so a visuals run made under different inputs writes every prompt again.
// Prompt history is kept and extended by the next run. Entities linked to a
// library asset keep their visuals.
func Invalidate(data *script.ScriptData) (*script.ScriptData, Stats) {
	out := data.Clone()
	stats := Stats{}
	if out == nil {
		return out, stats
	}
	for _, kind := range script.Kinds {
		for _, asset := range out.Assets(kind) {
			v := asset.Visuals()
			if v.LibraryID != "" {
				continue
			}
			cleared := ClearVisual(v)
			if c, ok := asset.(*script.Character); ok {
				if c.Turnaround != "" {
					c.Turnaround = ""
					cleared = true
				}
				// Variation looks are kept; their renders are not.
				for i := range c.Variations {
					if c.Variations[i].ReferenceImage != "" || c.Variations[i].Status != "" {
						c.Variations[i].ReferenceImage = ""
						c.Variations[i].Status = ""
						cleared = true
					}
				}
			}
			if cleared {
				stats[kind]++
			}
		}
	}
	return out, stats
}

// ClearVisual empties the prompt, negative prompt, render and status of v and
// reports whether any of them was set.
func ClearVisual(v *script.Visual) bool {
	cleared := v.VisualPrompt != "" || v.NegativePrompt != "" || v.ReferenceImage != "" || v.Status != ""
	v.VisualPrompt = ""
	v.NegativePrompt = ""
	v.ReferenceImage = ""
	v.Status = ""
	return cleared
}

type index struct {
	byID   map[string]script.Asset
	byName map[string]script.Asset
}

func newIndex(assets []script.Asset) index {
	idx := index{
		byID:   make(map[string]script.Asset, len(assets)),
		byName: make(map[string]script.Asset, len(assets)),
	}
	for _, asset := range assets {
		if id := asset.AssetID(); id != "" {
			if _, exists := idx.byID[id]; !exists {
				idx.byID[id] = asset
			}
		}
		if name := NormalizeName(asset.AssetName()); name != "" {
			if _, exists := idx.byName[name]; !exists {
				idx.byName[name] = asset
			}
		}
	}
	return idx
}

func (idx index) lookup(asset script.Asset) script.Asset {
	if id := asset.AssetID(); id != "" {
		if hit, ok := idx.byID[id]; ok {
			return hit
		}
	}
	if name := NormalizeName(asset.AssetName()); name != "" {
		return idx.byName[name]
	}
	return nil
}
