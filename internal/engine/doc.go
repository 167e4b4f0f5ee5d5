// Package engine defines the contract between a decoder session and the video
// decoder engine it feeds: codecs, formats, input slots, output events, render
// targets, and the sentinel errors engines report.
//
// The session never decodes anything itself. Hardware codecs, software
// decoders, and the simulated engine in the sim subpackage all sit behind the
// Engine interface.
package engine
