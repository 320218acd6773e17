// Package logging builds craftd's structured logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Options controls the logger's level and output encoding.
type Options struct {
	Level  string // debug, info, warn, error
	Pretty bool   // console-friendly output instead of JSON
}

// New builds a zerolog.Logger tagged with the craftd service name.
func New(opts Options) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil {
		return zerolog.Logger{}, err
	}

	var output io.Writer = os.Stdout
	if opts.Pretty {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	logger := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Str("service", "craftd").
		Logger()

	return logger, nil
}
