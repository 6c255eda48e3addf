// Package logging configures the process-wide slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/robfig/cron/v3"
	"gopkg.in/natefinch/lumberjack.v2"
)

/*
	Log rotation schedule, cron syntax with seconds:

	"0 30 * * * *"             Every hour on the half hour
	"@hourly"                  Every hour
	"@every 1h30m"             Every hour thirty
*/

type Config struct {
	Console        bool   `yaml:"console"`
	Format         string `yaml:"format"` // text or json
	Level          string `yaml:"level"`
	Filename       string `yaml:"filename"`
	Append         bool   `yaml:"append"`
	RotateSchedule string `yaml:"rotate_schedule"`
	MaxSize        int    `yaml:"max_size"` // MB
	MaxBackups     int    `yaml:"max_backups"`
	MaxAge         int    `yaml:"max_age"` // days
	Compress       bool   `yaml:"compress"`
}

func DefaultConfig() Config {
	return Config{
		Console:    true,
		Format:     "text",
		Level:      "info",
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     7,
	}
}

func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace", "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
}

// Logger owns the outputs behind a slog.Logger.
type Logger struct {
	*slog.Logger
	file *lumberjack.Logger
	cron *cron.Cron
}

// New builds a logger writing to stderr and, when Filename is set, to a
// rotated file.
func New(cfg Config) (*Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var writers []io.Writer
	if cfg.Console {
		writers = append(writers, os.Stderr)
	}
	out := &Logger{}
	if cfg.Filename != "" {
		out.file = &lumberjack.Logger{
			Filename:   cfg.Filename,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
			LocalTime:  true,
		}
		if !cfg.Append {
			if err := out.file.Rotate(); err != nil {
				return nil, fmt.Errorf("rotate %s: %w", cfg.Filename, err)
			}
		}
		if cfg.RotateSchedule != "" {
			out.cron = cron.New(cron.WithSeconds())
			if _, err := out.cron.AddFunc(cfg.RotateSchedule, func() { out.file.Rotate() }); err != nil {
				return nil, fmt.Errorf("rotate schedule %q: %w", cfg.RotateSchedule, err)
			}
			out.cron.Start()
		}
		writers = append(writers, out.file)
	}

	var w io.Writer = io.Discard
	switch len(writers) {
	case 0:
	case 1:
		w = writers[0]
	default:
		w = io.MultiWriter(writers...)
	}

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		h = slog.NewTextHandler(w, opts)
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	out.Logger = slog.New(h)
	return out, nil
}

func (l *Logger) Close() error {
	if l.cron != nil {
		<-l.cron.Stop().Done()
	}
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
