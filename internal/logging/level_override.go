package logging

import (
	"context"
	"log/slog"
	"strings"
)

// levelOverrideHandler enforces a per-logger minimum level while delegating
// output to the wrapped handler.
type levelOverrideHandler struct {
	next  slog.Handler
	level slog.Level
}

func newLevelOverrideHandler(next slog.Handler, level slog.Level) slog.Handler {
	if next == nil {
		return NoopHandler{}
	}
	return &levelOverrideHandler{next: next, level: level}
}

func (h *levelOverrideHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if level < h.level {
		return false
	}
	return h.next.Enabled(ctx, level)
}

func (h *levelOverrideHandler) Handle(ctx context.Context, record slog.Record) error {
	if record.Level < h.level {
		return nil
	}
	return h.next.Handle(ctx, record)
}

func (h *levelOverrideHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelOverrideHandler{next: h.next.WithAttrs(attrs), level: h.level}
}

func (h *levelOverrideHandler) WithGroup(name string) slog.Handler {
	return &levelOverrideHandler{next: h.next.WithGroup(name), level: h.level}
}

// ForComponent returns a component logger, raising its minimum level when the
// overrides map names the component (for example {"drain": "warn"}). An
// override can only silence records; it cannot enable levels the base handler
// rejects.
func ForComponent(logger *slog.Logger, component string, overrides map[string]string) *slog.Logger {
	componentLogger := NewComponentLogger(logger, component)
	raw, ok := overrides[component]
	if !ok || strings.TrimSpace(raw) == "" {
		return componentLogger
	}
	return slog.New(newLevelOverrideHandler(componentLogger.Handler(), parseLevel(raw)))
}
