// Package project reads and writes the files the CLI works on: the project
// document (draft, generated script, shots, sync references), the asset
// library, and reviewed match results. The format follows the file
// extension: .json, or .yaml/.yml.
package project
