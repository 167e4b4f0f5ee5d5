package logging

import (
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
)

// jsonTimestampLayout is fixed width so log lines sort the same way they were
// written.
const jsonTimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// newJSONHandler builds the handler used for log files. Durations are written
// as fractional milliseconds since engine timeouts and queue waits are all in
// that range.
func newJSONHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	opts := slog.HandlerOptions{
		Level:     lvl,
		AddSource: addSource,
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr {
			switch {
			case attr.Key == slog.TimeKey && attr.Value.Kind() == slog.KindTime:
				return slog.String("ts", attr.Value.Time().UTC().Format(jsonTimestampLayout))
			case attr.Key == slog.LevelKey:
				attr.Value = slog.StringValue(strings.ToLower(attr.Value.String()))
			case attr.Key == slog.SourceKey:
				if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
					attr.Value = slog.StringValue(filepath.Base(src.File) + ":" + strconv.Itoa(src.Line))
				}
			case attr.Value.Kind() == slog.KindDuration:
				ms := float64(attr.Value.Duration().Microseconds()) / 1000
				return slog.Float64(attr.Key+"_ms", ms)
			}
			return attr
		},
	}
	return slog.NewJSONHandler(w, &opts)
}
