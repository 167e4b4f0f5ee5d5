// Package source turns an Annex-B elementary stream into access units and
// pumps them into a decoder session at a steady frame rate.
//
// It stands in for the transport that delivers encoded units in production:
// units are handed over whole, one Submit per access unit, and queue-full
// backpressure is answered by a bounded retry followed by a drop.
package source
