// Package debug provides optional diagnostic logging for the working-copy
// engine. Output is off unless SVNWC_DEBUG is set; with SVNWC_DEBUG_LOG the
// stream is redirected to a size-rotated file instead of stderr.
package debug

import (
	"fmt"
	"io"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu      sync.Mutex
	sink    io.Writer
	enabled bool
	once    sync.Once
)

func setup() {
	enabled = os.Getenv("SVNWC_DEBUG") != ""
	sink = os.Stderr
	if logPath := os.Getenv("SVNWC_DEBUG_LOG"); logPath != "" {
		enabled = true
		sink = &lumberjack.Logger{
			Filename:   logPath,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
		}
	}
}

// Enabled reports whether debug logging is active.
func Enabled() bool {
	once.Do(setup)
	return enabled
}

// Logf writes a formatted line to the debug sink when logging is active.
func Logf(format string, args ...interface{}) {
	if !Enabled() {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(sink, format, args...)
}

// SetOutput redirects debug output, primarily for tests. Passing nil
// restores stderr.
func SetOutput(w io.Writer) {
	once.Do(setup)
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		sink = os.Stderr
		return
	}
	sink = w
	enabled = true
}
