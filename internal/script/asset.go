package script

// Kind tags the concrete type behind an Asset.
type Kind string

const (
	KindCharacter Kind = "character"
	KindScene     Kind = "scene"
	KindProp      Kind = "prop"
)

// Kinds lists every asset kind in processing order.
var Kinds = []Kind{KindCharacter, KindScene, KindProp}

// Asset is the capability shared by characters, scenes, and props.
type Asset interface {
	Kind() Kind
	AssetID() string
	// AssetName is the display name used for matching. Scenes use their location.
	AssetName() string
	AssetPrompt() string
	AssetReferenceImage() string
	AssetVersion() int
	Visuals() *Visual
}

func (c *Character) Kind() Kind                  { return KindCharacter }
func (c *Character) AssetID() string             { return c.ID }
func (c *Character) AssetName() string           { return c.Name }
func (c *Character) AssetPrompt() string         { return c.VisualPrompt }
func (c *Character) AssetReferenceImage() string { return c.ReferenceImage }
func (c *Character) AssetVersion() int           { return c.Version }
func (c *Character) Visuals() *Visual            { return &c.Visual }

func (s *Scene) Kind() Kind                  { return KindScene }
func (s *Scene) AssetID() string             { return s.ID }
func (s *Scene) AssetName() string           { return s.Location }
func (s *Scene) AssetPrompt() string         { return s.VisualPrompt }
func (s *Scene) AssetReferenceImage() string { return s.ReferenceImage }
func (s *Scene) AssetVersion() int           { return s.Version }
func (s *Scene) Visuals() *Visual            { return &s.Visual }

func (p *Prop) Kind() Kind                  { return KindProp }
func (p *Prop) AssetID() string             { return p.ID }
func (p *Prop) AssetName() string           { return p.Name }
func (p *Prop) AssetPrompt() string         { return p.VisualPrompt }
func (p *Prop) AssetReferenceImage() string { return p.ReferenceImage }
func (p *Prop) AssetVersion() int           { return p.Version }
func (p *Prop) Visuals() *Visual            { return &p.Visual }

// Assets returns pointers into the script's entity slices for the given kind.
func (d *ScriptData) Assets(kind Kind) []Asset {
	var out []Asset
	switch kind {
	case KindCharacter:
		out = make([]Asset, 0, len(d.Characters))
		for i := range d.Characters {
			out = append(out, &d.Characters[i])
		}
	case KindScene:
		out = make([]Asset, 0, len(d.Scenes))
		for i := range d.Scenes {
			out = append(out, &d.Scenes[i])
		}
	case KindProp:
		out = make([]Asset, 0, len(d.Props))
		for i := range d.Props {
			out = append(out, &d.Props[i])
		}
	}
	return out
}

// IsNilAsset reports whether a holds no entity, including a typed nil pointer.
func IsNilAsset(a Asset) bool {
	switch v := a.(type) {
	case *Character:
		return v == nil
	case *Scene:
		return v == nil
	case *Prop:
		return v == nil
	}
	return a == nil
}
