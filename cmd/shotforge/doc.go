// Package main hosts the Shotforge CLI entrypoint and command graph.
//
// The Cobra-based command tree turns terminal invocations into pipeline runs,
// asset library matching, match application, shot scoring, checkpoint
// maintenance, and configuration scaffolding. It centralizes configuration
// resolution and logger setup so subcommands can focus on reading and
// writing the project document.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
