// Package services defines shared utilities consumed by the pipeline stages
// and their model collaborators.
//
// Key responsibilities:
//   - Context helpers that stamp project IDs, episode IDs, stage names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper, and Classify, which tells
//     user cancellation apart from genuine failure.
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
