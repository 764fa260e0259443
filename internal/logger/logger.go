package logger

import (
	"io"
	"log/slog"
	"os"
)

// Init installs a JSON slog handler as the process default logger.
func Init(debug bool) *slog.Logger {
	return InitWithWriter(os.Stdout, debug)
}

func InitWithWriter(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug,
	})
	l := slog.New(handler)
	slog.SetDefault(l)

	l.Debug("Structured logging initialized", "level", level.String())
	return l
}
