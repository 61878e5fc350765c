package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures the global zerolog logger. Unknown levels fall back to info.
func Setup(level string, pretty bool) zerolog.Logger {
	return setup(os.Stdout, level, pretty)
}

func setup(out io.Writer, level string, pretty bool) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	if pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	lvl := ParseLevel(level)
	zerolog.SetGlobalLevel(lvl)
	log.Logger = zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	return log.Logger
}

func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
