// Package main hosts the vidbridge CLI entrypoint and command graph.
//
// The Cobra-based command tree plays Annex-B files through a decoder session
// on the simulated engine, lists recorded runs from the history database, and
// scaffolds configuration. It centralizes configuration resolution and
// structured logging setup so subcommands can focus on user experience.
//
// Keep this package lean: new behavior belongs in the internal packages first
// and is surfaced here through dedicated commands or flags.
package main
