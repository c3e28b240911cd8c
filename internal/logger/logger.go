package logger

import (
	"io"
	"log/slog"
	"strings"
)

var levelVar = new(slog.LevelVar)

// L is the process logger. It discards everything until Init is called since
// the chat UI owns the terminal.
var L = slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: levelVar}))

// Init redirects L to w.
func Init(w io.Writer, lvl string) {
	SetLevel(lvl)
	L = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: levelVar}))
}

// SetLevel configures the global log level (debug, info, warn, error).
func SetLevel(lvl string) {
	switch strings.ToLower(lvl) {
	case "debug":
		levelVar.Set(slog.LevelDebug)
	case "warn":
		levelVar.Set(slog.LevelWarn)
	case "error":
		levelVar.Set(slog.LevelError)
	default:
		levelVar.Set(slog.LevelInfo)
	}
}
