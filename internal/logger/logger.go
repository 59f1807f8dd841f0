package logger

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"

	"github.com/rohits-web03/softvault/internal/config"
)

// New builds the process logger. Output "stdout" (or empty) writes to the
// console, anything else is treated as a file path that is appended to and,
// when stdout is a terminal, mirrored on the console.
func New(c config.LogConfig) (zerolog.Logger, io.Closer, error) {
	zerolog.TimeFieldFormat = time.RFC3339

	level, err := parseLevel(c.Level)
	if err != nil {
		return zerolog.Nop(), nil, err
	}

	var (
		w      io.Writer
		closer io.Closer = io.NopCloser(nil)
	)
	if c.Output == "stdout" || c.Output == "" {
		w = consoleWriter()
	} else {
		file, err := os.OpenFile(c.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o664)
		if err != nil {
			return zerolog.Nop(), nil, err
		}
		closer = file
		if isatty.IsTerminal(os.Stdout.Fd()) {
			w = zerolog.MultiLevelWriter(consoleWriter(), file)
		} else {
			w = file
		}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Caller().Logger(), closer, nil
}

func consoleWriter() io.Writer {
	if isatty.IsTerminal(os.Stdout.Fd()) {
		return zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime}
	}
	return os.Stdout
}

func parseLevel(level string) (zerolog.Level, error) {
	if level == "" {
		return zerolog.InfoLevel, nil
	}
	return zerolog.ParseLevel(level)
}
