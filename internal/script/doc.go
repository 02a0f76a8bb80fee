// Package script holds the data model shared by every pipeline component: the
// caller's Draft configuration, the generated ScriptData with its characters,
// scenes, and props, and the Shots produced from them.
//
// Characters, scenes, and props implement the Asset interface so matching and
// reuse code can treat them uniformly while keeping their per-kind fields.
// Clone helpers return deep copies so stages never alias each other's output.
package script
