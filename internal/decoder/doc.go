// Package decoder implements the decoder session: a bounded submission queue
// feeding an external engine through a feeder goroutine, a drain goroutine
// releasing decoded frames to the render target, live render-target swaps,
// and a blocking shutdown that joins both workers before the engine and
// target are released.
//
// Producers call Submit from any goroutine. Submit never blocks; a full queue
// is reported as services.ErrQueueFull and the producer decides whether to
// drop or retry. Units are fed in submission order and each receives the next
// presentation timestamp, one per unit regardless of its size.
package decoder
