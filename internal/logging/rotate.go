// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileNameLayout is the time layout for a run's log file name.
const FileNameLayout = "log_2006-01-02_15-04-05.log"

// newRunFile returns a size-rotated writer for a file in dir named after
// now. Rotated files get a timestamp suffix; at most keep are retained.
func newRunFile(dir string, now time.Time, maxSizeMB, keep int) (*lumberjack.Logger, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return &lumberjack.Logger{
		Filename:   filepath.Join(dir, now.Format(FileNameLayout)),
		MaxSize:    maxSizeMB,
		MaxBackups: keep,
		LocalTime:  true,
	}, nil
}
