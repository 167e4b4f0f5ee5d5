// Package services defines shared utilities consumed by the decoder session,
// its collaborators, and the CLI.
//
// Key responsibilities:
//   - Context helpers that stamp session IDs, component names, and playback
//     run identifiers for logging.
//   - Structured error markers plus the Wrap helper that keep the decoder's
//     error taxonomy (resource, engine configuration, unsupported, queue full,
//     slot timeout, session closed) classifiable with errors.Is.
//
// Use these helpers when wiring new components so error handling and log
// correlation stay uniform across the bridge.
package services
