package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/masterFuf/taktik-bot-sub003/internal/config"
)

// Init builds the root logger from config. In stdio MCP mode stdout carries
// the protocol, so callers must pass forceFile=true to keep it clean.
func Init(cfg config.LoggingConfig, forceFile bool) (zerolog.Logger, io.Closer, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	output := strings.ToLower(cfg.Output)
	if forceFile && output != "file" {
		output = "file"
	}

	var w io.Writer
	var closer io.Closer
	switch output {
	case "console", "":
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	case "file":
		file := cfg.File
		if file == "" {
			file = "taktik-bot.log"
		}
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			// Last resort: drop logs rather than pollute the protocol stream.
			w = io.Discard
		} else {
			w = f
			closer = f
		}
	default:
		return zerolog.Nop(), nil, fmt.Errorf("unknown log output %q", cfg.Output)
	}

	logger := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return logger, closer, nil
}
