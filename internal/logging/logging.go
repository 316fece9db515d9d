// Package logging builds the process-wide *slog.Logger.
//
// Output always goes to stdout. When a log file is configured it is written
// as well, rotated once a day by file-rotatelogs:
//
//	logs/bookburst.log.20260314   ← one file per day
//	logs/bookburst.log            ← symlink to the current file
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
)

// MaxAge is how long rotated log files are kept.
const MaxAge = 7 * 24 * time.Hour

// Options select the handler, level and optional file sink.
type Options struct {
	Level  string // debug | info | warn | error
	Format string // text | json
	File   string // empty for stdout only
}

// New returns the logger and a close function for the file sink.
// The close function is never nil.
func New(opts Options, stdout io.Writer) (*slog.Logger, func() error, error) {
	out := stdout
	closeFn := func() error { return nil }

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("logging: creating log directory: %w", err)
		}
		rl, err := rotatelogs.New(
			opts.File+".%Y%m%d",
			rotatelogs.WithLinkName(opts.File),
			rotatelogs.WithRotationTime(24*time.Hour),
			rotatelogs.WithMaxAge(MaxAge),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("logging: opening %s: %w", opts.File, err)
		}
		out = io.MultiWriter(stdout, rl)
		closeFn = rl.Close
	}

	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}
	var h slog.Handler
	if opts.Format == "json" {
		h = slog.NewJSONHandler(out, handlerOpts)
	} else {
		h = slog.NewTextHandler(out, handlerOpts)
	}
	return slog.New(h), closeFn, nil
}

// ParseLevel maps a level name to slog. Unknown names mean info.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
