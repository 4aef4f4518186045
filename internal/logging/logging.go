// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// =============================================================================
// OPTIONS
// =============================================================================

// Options controls where and how logs are written.
type Options struct {
	// Level is one of debug, info, warn, error.
	Level string

	// Format is "json" or "console".
	Format string

	// Dir is the log directory. Empty disables the file sink.
	Dir string

	// MaxSizeMB is the rotation threshold in megabytes. Zero means 100.
	MaxSizeMB int

	// Keep is how many rotated backups to retain. Zero keeps all of them.
	Keep int

	// Console, when set, receives a console-encoded copy of every entry.
	// Leave nil while the terminal UI owns stdout.
	Console io.Writer

	// Now stamps the run's file name. Defaults to time.Now.
	Now func() time.Time
}

// =============================================================================
// LOGGING
// =============================================================================

// Logging owns the root logger and its sinks.
type Logging struct {
	logger *zap.Logger
	level  zap.AtomicLevel
	file   *lumberjack.Logger
}

// New builds the root logger. With no Dir and no Console it returns a
// logger that discards everything but still tracks the level.
func New(opts Options) (*Logging, error) {
	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	level := zap.NewAtomicLevelAt(lvl)

	var cores []zapcore.Core
	var file *lumberjack.Logger

	if opts.Dir != "" {
		now := time.Now
		if opts.Now != nil {
			now = opts.Now
		}
		enc, err := encoder(opts.Format)
		if err != nil {
			return nil, err
		}
		file, err = newRunFile(opts.Dir, now(), opts.MaxSizeMB, opts.Keep)
		if err != nil {
			return nil, err
		}
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(file), level))
	} else if _, err := encoder(opts.Format); err != nil {
		return nil, err
	}

	if opts.Console != nil {
		enc := zapcore.NewConsoleEncoder(encoderConfig())
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(opts.Console), level))
	}

	var logger *zap.Logger
	if len(cores) == 0 {
		logger = zap.NewNop()
	} else {
		logger = zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	}

	return &Logging{logger: logger, level: level, file: file}, nil
}

// Logger returns the root logger.
func (l *Logging) Logger() *zap.Logger { return l.logger }

// Named returns a child logger for a component.
func (l *Logging) Named(name string) *zap.Logger { return l.logger.Named(name) }

// Level returns the current level.
func (l *Logging) Level() zapcore.Level { return l.level.Level() }

// SetLevel changes the level of every logger derived from this one.
func (l *Logging) SetLevel(s string) error {
	lvl, err := ParseLevel(s)
	if err != nil {
		return err
	}
	if lvl != l.level.Level() {
		l.logger.Info("log level changed",
			zap.Stringer("from", l.level.Level()),
			zap.Stringer("to", lvl))
	}
	l.level.SetLevel(lvl)
	return nil
}

// FilePath returns the active log file, or "" when logging to file is off.
func (l *Logging) FilePath() string {
	if l.file == nil {
		return ""
	}
	return l.file.Filename
}

// Close syncs and closes the sinks.
func (l *Logging) Close() error {
	err := l.logger.Sync()
	// Syncing a terminal or pipe returns EINVAL on some platforms.
	if err != nil && isIgnorableSyncErr(err) {
		err = nil
	}
	if l.file != nil {
		err = multierr.Append(err, l.file.Close())
	}
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

// ParseLevel parses a level name. Empty means info.
func ParseLevel(s string) (zapcore.Level, error) {
	if strings.TrimSpace(s) == "" {
		return zapcore.InfoLevel, nil
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(s)))); err != nil {
		return lvl, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return lvl, nil
}

func encoder(format string) (zapcore.Encoder, error) {
	switch strings.ToLower(format) {
	case "", "json":
		return zapcore.NewJSONEncoder(encoderConfig()), nil
	case "console":
		return zapcore.NewConsoleEncoder(encoderConfig()), nil
	default:
		return nil, fmt.Errorf("invalid log format %q (use json or console)", format)
	}
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg
}

func isIgnorableSyncErr(err error) bool {
	for _, e := range multierr.Errors(err) {
		msg := e.Error()
		if !strings.Contains(msg, "invalid argument") && !strings.Contains(msg, "inappropriate ioctl") {
			return false
		}
	}
	return true
}
