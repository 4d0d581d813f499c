// Package storage writes finished region files to their destination
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wegman-software/osm2voxel-go/internal/logger"
)

// ErrWriteFailed wraps every failure to persist a region
var ErrWriteFailed = errors.New("write failed")

// Sink persists named blobs. Names use forward slashes, e.g. region/r.0.0.mca.
// Implementations must be safe for concurrent use.
type Sink interface {
	Write(ctx context.Context, name string, data []byte) error
}

// RegionName returns the sink name of region (rx, ry)
func RegionName(rx, ry int) string {
	return fmt.Sprintf("region/r.%d.%d.mca", rx, ry)
}

// FileSink writes blobs below a root directory
type FileSink struct {
	root string
}

// NewFileSink creates a sink rooted at dir
func NewFileSink(dir string) *FileSink {
	return &FileSink{root: dir}
}

// Write stores data at root/name, replacing the file atomically
func (s *FileSink) Write(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWriteFailed, name, err)
	}
	path := filepath.Join(s.root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: failed to create directory for %s: %w", ErrWriteFailed, name, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("%w: failed to create temp file for %s: %w", ErrWriteFailed, name, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %s: %w", ErrWriteFailed, name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %s: %w", ErrWriteFailed, name, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %s: %w", ErrWriteFailed, name, err)
	}
	return nil
}

// MemorySink keeps blobs in memory, for dry runs and tests
type MemorySink struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

// NewMemorySink creates an empty memory sink
func NewMemorySink() *MemorySink {
	return &MemorySink{blobs: make(map[string][]byte)}
}

// Write stores a copy of data
func (s *MemorySink) Write(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWriteFailed, name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[name] = append([]byte(nil), data...)
	return nil
}

// Get returns the blob stored under name
func (s *MemorySink) Get(name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blobs[name]
	return b, ok
}

// Names returns all stored names in ascending order
func (s *MemorySink) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.blobs))
	for n := range s.blobs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// RetrySink retries failed writes with exponential backoff
type RetrySink struct {
	next     Sink
	attempts int
	backoff  time.Duration
}

// NewRetrySink wraps next so every write is tried up to retries+1 times,
// sleeping backoff, 2*backoff, 4*backoff... between attempts.
// With retries <= 0 it returns next unchanged.
func NewRetrySink(next Sink, retries int, backoff time.Duration) Sink {
	if retries <= 0 {
		return next
	}
	return &RetrySink{next: next, attempts: retries + 1, backoff: backoff}
}

// Write forwards to the wrapped sink until it succeeds or attempts run out
func (s *RetrySink) Write(ctx context.Context, name string, data []byte) error {
	log := logger.Get()
	wait := s.backoff

	var err error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		if err = s.next.Write(ctx, name, data); err == nil {
			return nil
		}
		if attempt == s.attempts {
			break
		}
		log.Warn("Write failed, retrying",
			zap.String("name", name),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s: %w", ErrWriteFailed, name, ctx.Err())
		case <-time.After(wait):
		}
		wait *= 2
	}

	if errors.Is(err, ErrWriteFailed) {
		return fmt.Errorf("after %d attempts: %w", s.attempts, err)
	}
	return fmt.Errorf("%w: %s after %d attempts: %w", ErrWriteFailed, name, s.attempts, err)
}
