package monitoring

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogFile is the size-bounded log the node keeps on disk. Writes go through
// lumberjack, which rotates the file once it reaches MaxSize megabytes.
type LogFile struct {
	path string

	mu sync.Mutex
	lj *lumberjack.Logger
}

// OpenLogFile prepares a rotating log at path. The file itself is created
// on the first Write.
func OpenLogFile(path string, maxSizeMB, maxBackups int) (*LogFile, error) {
	if path == "" {
		return nil, errors.New("log file path is empty")
	}
	return &LogFile{
		path: path,
		lj: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
		},
	}, nil
}

// Path returns the location of the active log file.
func (l *LogFile) Path() string { return l.path }

func (l *LogFile) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lj.Write(p)
}

// Open returns a reader over the active log file and its size. A log that
// has not been written yet reads as empty.
func (l *LogFile) Open() (io.ReadCloser, int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return io.NopCloser(bytes.NewReader(nil)), 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("stat log file: %w", err)
	}
	return f, info.Size(), nil
}

// Clear truncates the active log file. Rotated backups are left alone.
func (l *LogFile) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.lj.Close(); err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	if err := os.Truncate(l.path, 0); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("truncate log file: %w", err)
	}
	return nil
}

func (l *LogFile) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lj.Close()
}
