package engine

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrTimeout reports that no slot or output event became available within
	// the requested timeout. Callers retry or re-check their own state.
	ErrTimeout = errors.New("engine: try again later")
	// ErrUnsupported reports that the engine cannot perform the operation at
	// all, as opposed to failing transiently.
	ErrUnsupported = errors.New("engine: operation unsupported")
	// ErrStopped is returned by slot and event calls once Stop has run.
	ErrStopped = errors.New("engine: stopped")
	// ErrIllegalState is returned when a call arrives in the wrong lifecycle phase.
	ErrIllegalState = errors.New("engine: illegal state")
)

// Codec identifies the compressed video format fed to an engine.
type Codec int

const (
	CodecH264 Codec = iota + 1
	CodecH265
)

// ParseCodec maps a configuration value onto a Codec.
func ParseCodec(value string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "h264", "avc", "h.264":
		return CodecH264, nil
	case "h265", "hevc", "h.265":
		return CodecH265, nil
	default:
		return 0, fmt.Errorf("unknown codec %q", value)
	}
}

func (c Codec) String() string {
	switch c {
	case CodecH264:
		return "h264"
	case CodecH265:
		return "h265"
	default:
		return fmt.Sprintf("codec(%d)", int(c))
	}
}

// MIME returns the media type engines are created for.
func (c Codec) MIME() string {
	if c == CodecH265 {
		return "video/hevc"
	}
	return "video/avc"
}

// Valid reports whether c names a supported codec.
func (c Codec) Valid() bool {
	return c == CodecH264 || c == CodecH265
}

// Format is the configuration handed to Engine.Configure.
type Format struct {
	MIME   string
	Width  int32
	Height int32
}

// BufferFlags annotate input submissions and output events.
type BufferFlags uint32

const (
	FlagKeyFrame    BufferFlags = 1
	FlagCodecConfig BufferFlags = 2
	FlagEndOfStream BufferFlags = 4
)

// InputSlot is an engine-owned input buffer lent to the caller between
// AcquireInputSlot and SubmitInputSlot. Buf's length is the slot capacity.
type InputSlot struct {
	Index int
	Buf   []byte
}

// OutputEvent describes a decoded buffer ready to be released.
type OutputEvent struct {
	Index int
	Size  int
	PTS   uint64
	Flags BufferFlags
}

// EndOfStream reports whether the event carries the end-of-stream flag.
func (e OutputEvent) EndOfStream() bool {
	return e.Flags&FlagEndOfStream != 0
}

// Frame is what a software engine hands to a Presenter when it renders.
type Frame struct {
	PTS    uint64
	Size   int
	Width  int32
	Height int32
}

// Target is an opaque render surface. Acquire and Release bracket one binding
// reference; the backing resource belongs to whoever created the target.
type Target interface {
	Name() string
	Acquire() error
	Release()
}

// Presenter is implemented by targets that accept frames from software engines.
type Presenter interface {
	Present(Frame) error
}

// Engine is the decoder collaborator the session drives. Implementations must
// allow the input-side calls, the output-side calls, and RebindTarget to run
// concurrently from different goroutines.
type Engine interface {
	Configure(Format) error
	BindTarget(Target) error
	Start() error
	Stop() error
	Destroy() error

	AcquireInputSlot(timeout time.Duration) (InputSlot, error)
	SubmitInputSlot(slot InputSlot, size int, pts uint64, flags BufferFlags) error

	AcquireOutputEvent(timeout time.Duration) (OutputEvent, error)
	ReleaseOutputEvent(ev OutputEvent, render bool) error

	// RebindTarget swaps the render target of a started engine. Engines that
	// cannot do this live return ErrUnsupported. A nil target detaches output.
	RebindTarget(Target) error
}

// Factory creates an unconfigured engine for the codec.
type Factory func(Codec) (Engine, error)
