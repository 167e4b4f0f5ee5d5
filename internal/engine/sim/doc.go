// Package sim provides an in-memory engine.Engine used by the CLI and tests.
// It models a hardware codec's fixed pool of input slots and asynchronous
// output events without decoding anything.
package sim
