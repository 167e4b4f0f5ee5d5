package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrResource      = errors.New("resource error")
	ErrEngineConfig  = errors.New("engine configuration error")
	ErrUnsupported   = errors.New("unsupported operation")
	ErrQueueFull     = errors.New("queue full")
	ErrSlotTimeout   = errors.New("input slot timeout")
	ErrSessionClosed = errors.New("session closed")
	ErrValidation    = errors.New("validation error")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind returns a stable classification string for err, suitable for the
// event_type style log fields and CLI exit summaries.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrResource):
		return "resource"
	case errors.Is(err, ErrEngineConfig):
		return "engine_config"
	case errors.Is(err, ErrUnsupported):
		return "unsupported"
	case errors.Is(err, ErrQueueFull):
		return "queue_full"
	case errors.Is(err, ErrSlotTimeout):
		return "slot_timeout"
	case errors.Is(err, ErrSessionClosed):
		return "session_closed"
	case errors.Is(err, ErrValidation):
		return "validation"
	default:
		return "transient"
	}
}

// IsBackpressure reports whether err is the expected queue-full signal that
// producers should answer by dropping or retrying rather than failing.
func IsBackpressure(err error) bool {
	return errors.Is(err, ErrQueueFull)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
