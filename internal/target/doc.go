// Package target provides render targets for decoder sessions: a file sink
// that records every presented frame as a JSON line, and a null sink that only
// counts frames.
//
// Targets are reference counted. The decoder session calls Acquire once per
// binding and Release when the binding ends; the underlying resource opens on
// the first Acquire and closes on the final Release.
package target
