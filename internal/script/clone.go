package script

import (
	"maps"
	"slices"
)

// Clone returns a deep copy of the script data.
func (d *ScriptData) Clone() *ScriptData {
	if d == nil {
		return nil
	}
	out := *d
	out.Characters = cloneEach(d.Characters, (*Character).clone)
	out.Scenes = cloneEach(d.Scenes, (*Scene).clone)
	out.Props = cloneEach(d.Props, (*Prop).clone)
	return &out
}

// CloneShots returns a deep copy of the shot list.
func CloneShots(shots []Shot) []Shot {
	return cloneEach(shots, (*Shot).Clone)
}

// Clone returns a deep copy of the shot.
func (s *Shot) Clone() Shot {
	out := *s
	out.CharacterIDs = slices.Clone(s.CharacterIDs)
	out.PropIDs = slices.Clone(s.PropIDs)
	out.Keyframes = slices.Clone(s.Keyframes)
	out.CharacterVariations = maps.Clone(s.CharacterVariations)
	if s.Interval != nil {
		interval := *s.Interval
		out.Interval = &interval
	}
	if s.QualityAssessment != nil {
		qa := *s.QualityAssessment
		qa.Checks = slices.Clone(s.QualityAssessment.Checks)
		out.QualityAssessment = &qa
	}
	return out
}

func (v Visual) clone() Visual {
	v.PromptVersions = slices.Clone(v.PromptVersions)
	return v
}

func (c *Character) clone() Character {
	out := *c
	out.Visual = c.Visual.clone()
	out.Variations = slices.Clone(c.Variations)
	return out
}

func (s *Scene) clone() Scene {
	out := *s
	out.Visual = s.Visual.clone()
	return out
}

func (p *Prop) clone() Prop {
	out := *p
	out.Visual = p.Visual.clone()
	return out
}

func cloneEach[T any](items []T, fn func(*T) T) []T {
	if items == nil {
		return nil
	}
	out := make([]T, len(items))
	for i := range items {
		out[i] = fn(&items[i])
	}
	return out
}
