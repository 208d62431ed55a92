// Package khmlog provides dual stdout+file logging, following the same
// shape as claworc's internal/logging package: a MultiWriter over stdlib
// log, with an optional append-only log file.
package khmlog

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

var (
	logFile *os.File
	mu      sync.Mutex
)

// Init sets up dual logging to stdout and, if logPath is non-empty, a log
// file. Safe to call with an empty path, in which case only stdout is used.
func Init(logPath string) {
	path := logPath
	if path == "" {
		return
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Printf("WARNING: cannot create log directory: %v", err)
			return
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log.Printf("WARNING: cannot open log file %s: %v", path, err)
		return
	}

	logFile = f
	mw := io.MultiWriter(os.Stdout, logFile)
	log.SetOutput(mw)
	log.Printf("logging to file: %s", path)
}

// Printf logs through the stdlib logger configured by Init (or the default
// stdout logger if Init was never called).
func Printf(format string, args ...interface{}) {
	log.Printf(format, args...)
}

// Close flushes and closes the log file, if one is open.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}
