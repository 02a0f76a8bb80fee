// Package quality grades how production-ready a storyboard shot is.
//
// The rule scorer is deterministic: five weighted checks inspect prompts,
// asset coverage, keyframes, video output, and continuity risk. The model
// scorer asks an LLM for the same five checks and falls back to the rule
// scorer on any failure, so callers always receive a complete assessment.
package quality
