// Copyright 2025 the lsmdb Authors.

package lsmdb

import (
	"fmt"
	"os"
	"time"
)

// Logger is the info_log collaborator: a sink for human-readable
// diagnostic lines about flushes, compactions, and recovered errors.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// defaultLogger writes timestamped lines to stderr. EnsureDefaults installs
// it when no Logger is configured; no LOG file is written.
type defaultLogger struct{}

func (defaultLogger) Infof(format string, args ...interface{}) {
	logLine(os.Stderr, "INFO", format, args...)
}

func (defaultLogger) Errorf(format string, args ...interface{}) {
	logLine(os.Stderr, "ERROR", format, args...)
}

func logLine(w *os.File, level, format string, args ...interface{}) {
	fmt.Fprintf(w, "%s %s %s\n", time.Now().UTC().Format("2006/01/02 15:04:05.000000"), level, fmt.Sprintf(format, args...))
}
