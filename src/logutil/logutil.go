// Package logutil routes the standard logger to a rotating file in the
// application's config directory.
package logutil

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

const (
	logFileName        = "screen_capture.log"
	defaultMaxSize     = 10 * 1024 * 1024
	defaultMaxArchives = 3
)

// Options controls file logging. Zero values select the defaults.
type Options struct {
	// Dir holds the log and its archives. Empty selects DefaultDir.
	Dir         string
	MaxSize     int64
	MaxArchives int
}

// DefaultDir returns <user config dir>/ScreenCapture/logs, or the working
// directory when the config dir is unknown.
func DefaultDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(base, "ScreenCapture", "logs")
}

// Setup enables file logging in DefaultDir. When disabled, logs are
// discarded so one-shot runs keep stdout clean.
func Setup(enableFileLogging bool) {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if !enableFileLogging {
		log.SetOutput(io.Discard)
		return
	}
	w, err := Open(Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		return
	}
	log.SetOutput(w)
	log.Printf("logutil: writing to %s", w.Path())
}

// RotatingWriter appends to a log file and shifts it to .1, .2, ... once it
// would exceed MaxSize. The oldest archive is dropped.
type RotatingWriter struct {
	mu   sync.Mutex
	opts Options
	f    *os.File
}

// Open creates the log directory and opens the current log for appending.
func Open(opts Options) (*RotatingWriter, error) {
	if opts.Dir == "" {
		opts.Dir = DefaultDir()
	}
	if opts.MaxSize <= 0 {
		opts.MaxSize = defaultMaxSize
	}
	if opts.MaxArchives <= 0 {
		opts.MaxArchives = defaultMaxArchives
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	w := &RotatingWriter{opts: opts}
	if st, err := os.Stat(w.Path()); err == nil && st.Size() >= opts.MaxSize {
		w.rotate()
	}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

// Path is the current log file.
func (w *RotatingWriter) Path() string { return filepath.Join(w.opts.Dir, logFileName) }

func (w *RotatingWriter) archive(n int) string { return fmt.Sprintf("%s.%d", w.Path(), n) }

func (w *RotatingWriter) open() error {
	f, err := os.OpenFile(w.Path(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	w.f = f
	return nil
}

func (w *RotatingWriter) rotate() {
	_ = os.Remove(w.archive(w.opts.MaxArchives))
	for i := w.opts.MaxArchives - 1; i >= 1; i-- {
		_ = os.Rename(w.archive(i), w.archive(i+1))
	}
	_ = os.Rename(w.Path(), w.archive(1))
}

func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return 0, os.ErrClosed
	}
	if st, err := w.f.Stat(); err == nil && st.Size() > 0 && st.Size()+int64(len(p)) > w.opts.MaxSize {
		_ = w.f.Close()
		w.rotate()
		if err := w.open(); err != nil {
			w.f = nil
			return 0, err
		}
	}
	return w.f.Write(p)
}

func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}

// RedactKey masks an API key, leaving the first and last 4 chars.
func RedactKey(k string) string {
	if len(k) <= 8 {
		return "********"
	}
	return fmt.Sprintf("%s...%s", k[:4], k[len(k)-4:])
}
