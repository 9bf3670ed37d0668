package common

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

const logFileName = "pdf_filer.log"

// LogConfig controls process logging. The file log always records debug events.
type LogConfig struct {
	Dir     string
	Verbose bool
	Stdout  io.Writer // defaults to os.Stdout
}

// NewLogger builds the process logger: JSON to stdout (info, or debug when verbose)
// plus a rotating JSON file under Dir. The returned closer flushes the file.
func NewLogger(cfg LogConfig) (*slog.Logger, io.Closer, error) {
	out := cfg.Stdout
	if out == nil {
		out = os.Stdout
	}
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	console := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})

	if cfg.Dir == "" {
		return slog.New(console), io.NopCloser(nil), nil
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, nil, WrapError(err, "create logs dir")
	}
	file := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Dir, logFileName),
		MaxSize:    2, // MB
		MaxBackups: 5,
	}
	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug})

	return slog.New(fanout{console, fileHandler}), file, nil
}

// fanout sends each record to every handler that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
