// Package applog wires slog onto a date-rotated log file so the service can
// run headless and consoles can own the terminal.
package applog

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const filePrefix = "tourist-safety"

// Writer appends to <dir>/<prefix>-YYYY-MM-DD.log, starting a fresh file
// whenever the calendar day changes. Files beyond keep are swept on rollover.
type Writer struct {
	mu     sync.Mutex
	dir    string
	prefix string
	keep   int
	day    string
	f      *os.File
	clock  func() time.Time
}

// NewWriter returns a Writer for dir that keeps at most keep daily files.
func NewWriter(dir, prefix string, keep int) *Writer {
	return &Writer{
		dir:    dir,
		prefix: prefix,
		keep:   keep,
		clock:  time.Now,
	}
}

// SetClock replaces the time source. Used in tests only.
func (w *Writer) SetClock(fn func() time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.clock = fn
}

func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	day := w.clock().Format("2006-01-02")
	if day != w.day {
		if err := w.rollover(day); err != nil {
			return 0, err
		}
	}
	return w.f.Write(p)
}

func (w *Writer) rollover(day string) error {
	if w.f != nil {
		w.f.Close()
		w.f = nil
	}
	name := filepath.Join(w.dir, w.prefix+"-"+day+".log")
	f, err := os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	w.f = f
	w.day = day
	w.sweep()
	return nil
}

// sweep removes the oldest files once more than keep exist. The date stamp in
// the name sorts lexically, so plain string order is chronological.
func (w *Writer) sweep() {
	matches, err := filepath.Glob(filepath.Join(w.dir, w.prefix+"-*.log"))
	if err != nil || len(matches) <= w.keep {
		return
	}
	sort.Strings(matches)
	for _, f := range matches[:len(matches)-w.keep] {
		os.Remove(f)
	}
}

// Close closes the current day's file. Further writes reopen it.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	w.day = ""
	return err
}

// InitConfig holds configuration for Init.
type InitConfig struct {
	LogDir   string
	LogLevel string
}

// Init sets up file-backed structured logging in cfg.LogDir and points both
// slog.Default and the stdlib log package at it. The returned io.Closer must
// be deferred by the caller.
func Init(cfg InitConfig) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(cfg.LogDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	w := NewWriter(cfg.LogDir, filePrefix, 7)
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(cfg.LogLevel)})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	log.SetOutput(w)
	log.SetFlags(0)
	return logger, w, nil
}

// ParseLevel converts a level string to slog.Level. Defaults to LevelInfo.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
