package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// NewLogger builds the process logger. Format "console" is for development;
// anything else emits JSON. The returned logger is also installed as the
// zerolog global so package-level diagnostic logging shares the settings.
func NewLogger(level, format string) zerolog.Logger {
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}

	var out io.Writer = os.Stderr
	if format == "console" {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	logger := zerolog.New(out).Level(parsed).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}
