// Package tracelog provides the compiler's internal debug logging, built
// the way the teacher's runtime/lexer builds its debug logger: a
// package-level slog.Logger gated by an environment variable, with
// timestamp and level noise stripped so trace output reads as a plain
// sequence of structured lines. It costs one env lookup at package init
// and is otherwise a no-op unless ARCANA_DEBUG_PARSE is set.
package tracelog

import (
	"log/slog"
	"os"
)

var level = &slog.LevelVar{}

var logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
	Level: level,
	ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
		switch a.Key {
		case slog.TimeKey, slog.LevelKey:
			return slog.Attr{}
		}
		return a
	},
}))

func init() {
	if os.Getenv("ARCANA_DEBUG_PARSE") != "" {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}
}

// SetEnabled forces debug tracing on or off for the remainder of the
// process, overriding ARCANA_DEBUG_PARSE — used by arcana.WithDebugTrace
// to let an embedder opt a specific compile call in or out.
func SetEnabled(on bool) {
	if on {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}
}

// Debug logs a structured trace line. Cheap to call unconditionally: at
// LevelInfo the handler drops Debug records before formatting attrs.
func Debug(msg string, args ...any) {
	logger.Debug(msg, args...)
}
