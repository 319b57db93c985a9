// Package monitoring carries the node's diagnostic plumbing: the
// package-level logger, the persistent log file served on /log and the
// Prometheus registry.
package monitoring

import (
	"io"
	"log"
	"os"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// TeeStandardLog sends the standard logger to stderr and w. A nil w
// restores stderr only.
func TeeStandardLog(w io.Writer) {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	if w == nil {
		log.SetOutput(os.Stderr)
		return
	}
	log.SetOutput(io.MultiWriter(os.Stderr, w))
}
