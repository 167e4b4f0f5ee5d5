package target

import (
	"fmt"
	"strings"

	"vidbridge/internal/config"
	"vidbridge/internal/engine"
)

// FrameCounter is implemented by targets that count presented frames.
type FrameCounter interface {
	engine.Target
	Frames() uint64
}

// Open resolves a target description: "null" or a sink file path. Paths may
// start with "~".
func Open(spec string) (FrameCounter, error) {
	spec = strings.TrimSpace(spec)
	switch strings.ToLower(spec) {
	case "":
		return nil, fmt.Errorf("empty render target")
	case "null", "none":
		return NewNull(), nil
	}
	path, err := config.ExpandPath(spec)
	if err != nil {
		return nil, fmt.Errorf("resolve render target %q: %w", spec, err)
	}
	return NewFile(path), nil
}
