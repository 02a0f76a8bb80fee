package script

// Library is the project-level asset collection shared across episodes.
type Library struct {
	CharacterLibrary []Character `json:"characterLibrary"`
	SceneLibrary     []Scene     `json:"sceneLibrary"`
	PropLibrary      []Prop      `json:"propLibrary"`
}

// Assets returns pointers into the library's slices for the given kind.
func (l *Library) Assets(kind Kind) []Asset {
	var out []Asset
	switch kind {
	case KindCharacter:
		for i := range l.CharacterLibrary {
			out = append(out, &l.CharacterLibrary[i])
		}
	case KindScene:
		for i := range l.SceneLibrary {
			out = append(out, &l.SceneLibrary[i])
		}
	case KindProp:
		for i := range l.PropLibrary {
			out = append(out, &l.PropLibrary[i])
		}
	}
	return out
}

// Clone returns a deep copy of the library.
func (l *Library) Clone() *Library {
	if l == nil {
		return nil
	}
	return &Library{
		CharacterLibrary: cloneEach(l.CharacterLibrary, (*Character).clone),
		SceneLibrary:     cloneEach(l.SceneLibrary, (*Scene).clone),
		PropLibrary:      cloneEach(l.PropLibrary, (*Prop).clone),
	}
}
