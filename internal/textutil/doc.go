// Package textutil provides text processing utilities for similarity scoring
// and filesystem-safe tokens.
//
// The primary use cases are:
//   - Creating token-based fingerprints from free text (prop descriptions)
//   - Computing cosine similarity between fingerprints
//   - Building safe file names from project and episode identifiers
//
// Tokenization is Unicode-aware: Latin words shorter than three runes are
// dropped, and Han runs are split into overlapping bigrams.
package textutil
