// Package queue spools published samples to disk until the uplink has
// delivered them. Each sample is one JSON file named
// <unix nanoseconds>-<uuid>.json, so a lexical sort is oldest first.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/google/uuid"

	"github.com/banshee-data/airquality.report/internal/fsutil"
	"github.com/banshee-data/airquality.report/internal/store"
	"github.com/banshee-data/airquality.report/internal/timeutil"
)

var ErrInvalidName = errors.New("invalid queue file name")

var namePattern = regexp.MustCompile(`^[0-9]{19}-[0-9a-f-]{36}\.json$`)

// Spool is a bounded directory of pending samples. Once it holds maxFiles
// entries, each Enqueue evicts the oldest.
type Spool struct {
	fs       fsutil.FileSystem
	dir      string
	maxFiles int
	clock    timeutil.Clock

	mu sync.Mutex
}

// New creates dir if needed and returns a spool over it.
func New(fsys fsutil.FileSystem, dir string, maxFiles int, clock timeutil.Clock) (*Spool, error) {
	if maxFiles < 1 {
		return nil, fmt.Errorf("queue needs room for at least one file, got %d", maxFiles)
	}
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create queue dir: %w", err)
	}
	return &Spool{fs: fsys, dir: dir, maxFiles: maxFiles, clock: clock}, nil
}

// Dir returns the spool directory.
func (s *Spool) Dir() string { return s.dir }

// Enqueue writes snap as a new file and returns its name.
func (s *Spool) Enqueue(snap store.Snapshot) (string, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	// Names must stay within namePattern or List would never see them;
	// a clock before the epoch sorts as time zero.
	stamp := max(s.clock.Now().UnixNano(), 0)
	name := fmt.Sprintf("%019d-%s.json", stamp, uuid.NewString())

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}

	names, err := s.list()
	if err != nil {
		return name, err
	}
	for len(names) > s.maxFiles {
		log.Printf("Queue full, dropping %s", names[0])
		if err := s.fs.Remove(filepath.Join(s.dir, names[0])); err != nil {
			return name, fmt.Errorf("evict %s: %w", names[0], err)
		}
		names = names[1:]
	}
	return name, nil
}

// List returns the queued file names, oldest first.
func (s *Spool) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list()
}

func (s *Spool) list() ([]string, error) {
	all, err := s.fs.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	names := all[:0]
	for _, n := range all {
		if namePattern.MatchString(n) {
			names = append(names, n)
		}
	}
	return names, nil
}

// Read decodes the queued file name.
func (s *Spool) Read(name string) (store.Snapshot, error) {
	if !namePattern.MatchString(name) {
		return store.Snapshot{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	data, err := s.fs.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return store.Snapshot{}, err
	}
	var snap store.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return store.Snapshot{}, fmt.Errorf("decode %s: %w", name, err)
	}
	return snap, nil
}

// Remove deletes one queued file.
func (s *Spool) Remove(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fs.Remove(filepath.Join(s.dir, name))
}

// Clear removes every queued file and returns how many were removed.
func (s *Spool) Clear() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.list()
	if err != nil {
		return 0, err
	}
	for i, n := range names {
		log.Printf("Removing %s...", n)
		if err := s.fs.Remove(filepath.Join(s.dir, n)); err != nil {
			return i, fmt.Errorf("remove %s: %w", n, err)
		}
	}
	return len(names), nil
}

// ReadRaw returns the queued file's bytes without decoding them.
func (s *Spool) ReadRaw(name string) ([]byte, error) {
	if !namePattern.MatchString(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return s.fs.ReadFile(filepath.Join(s.dir, name))
}
