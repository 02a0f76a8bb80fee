package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// DecodeLLMJSON unmarshals a model reply into target. Besides plain JSON it
// accepts a reply inside a code fence or with prose around the JSON value.
func DecodeLLMJSON(content string, target any) error {
	candidates := jsonCandidates(content)
	if len(candidates) == 0 {
		return errors.New("empty payload")
	}
	var firstErr error
	for _, candidate := range candidates {
		err := json.Unmarshal([]byte(candidate), target)
		if err == nil {
			return nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return fmt.Errorf("%w (payload: %s)", firstErr, snippet(content))
}

// jsonCandidates lists, without repeats, the reply itself, its unfenced body,
// and the outermost object and array spans of that body.
func jsonCandidates(content string) []string {
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s != "" && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	add(content)
	body := unfence(strings.TrimSpace(content))
	add(body)
	for _, delims := range [][2]string{{"{", "}"}, {"[", "]"}} {
		start, end := strings.Index(body, delims[0]), strings.LastIndex(body, delims[1])
		if start >= 0 && end > start {
			add(body[start : end+1])
		}
	}
	return out
}

// unfence strips a surrounding ``` fence and its info string.
func unfence(s string) string {
	rest, ok := strings.CutPrefix(s, "```")
	if !ok {
		return s
	}
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:]
	} else {
		rest = strings.TrimPrefix(rest, "json")
	}
	if end := strings.LastIndex(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return rest
}

// snippet collapses whitespace and shortens s for error messages.
func snippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return "<empty>"
	}
	if runes := []rune(s); len(runes) > 160 {
		return string(runes[:160]) + "..."
	}
	return s
}
