package language

import (
	"strings"

	xlang "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Word forms resolve against the English names of these tags.
var common = []xlang.Tag{
	xlang.English, xlang.Spanish, xlang.French, xlang.German, xlang.Italian,
	xlang.Portuguese, xlang.Japanese, xlang.Korean, xlang.Chinese, xlang.Russian,
	xlang.Arabic, xlang.Hindi, xlang.Dutch, xlang.Polish, xlang.Swedish,
	xlang.Danish, xlang.Norwegian, xlang.Finnish, xlang.Thai, xlang.Vietnamese,
	xlang.Indonesian, xlang.Turkish,
}

var byName map[string]xlang.Tag

func init() {
	namer := display.English.Languages()
	byName = make(map[string]xlang.Tag, len(common))
	for _, t := range common {
		byName[strings.ToLower(namer.Name(t))] = t
	}
}

func lookup(value string) (xlang.Tag, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return xlang.Und, false
	}
	if t, ok := byName[strings.ToLower(value)]; ok {
		return t, true
	}
	if !looksLikeTag(value) {
		return xlang.Und, false
	}
	t, err := xlang.Parse(value)
	if err != nil || t == xlang.Und {
		return xlang.Und, false
	}
	return t, true
}

// looksLikeTag reports whether the primary subtag is two or three letters.
func looksLikeTag(value string) bool {
	primary, _, _ := strings.Cut(strings.ReplaceAll(value, "_", "-"), "-")
	if len(primary) < 2 || len(primary) > 3 {
		return false
	}
	for _, r := range primary {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}

// Normalize returns the canonical BCP 47 form of value, or "" when it is not
// a recognized language.
func Normalize(value string) string {
	t, ok := lookup(value)
	if !ok {
		return ""
	}
	return t.String()
}

// PromptName returns the English name of value for model prompts.
// Unrecognized values pass through trimmed.
func PromptName(value string) string {
	t, ok := lookup(value)
	if !ok {
		return strings.TrimSpace(value)
	}
	if name := display.English.Languages().Name(t); name != "" {
		return name
	}
	return t.String()
}
