// Package generation implements the three staged model requests behind the
// pipeline: structure, visuals, and shots. Each stage is a single JSON chat
// completion; replies are validated and normalized before they reach the
// orchestrator so later stages can rely on stable IDs and resolvable
// references.
package generation
