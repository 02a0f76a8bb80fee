// Package assetmatch pairs freshly generated characters, scenes, and props
// with entries of the project asset library.
//
// Names are compared with a blend of token Jaccard overlap, character bigram
// Dice similarity, and a containment bonus. A candidate is accepted only when
// that base score clears a threshold that grows as the shorter name shrinks,
// because two-letter names overlap by accident far more often than long ones.
// Small bonuses for reference images, version, prompt richness, and matching
// descriptive fields then rank the accepted candidates; they never lift a
// candidate over the threshold.
package assetmatch
