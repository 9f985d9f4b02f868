package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/oklog/ulid/v2"
)

// Sink writes extracted rows as JSON lines, one file per dataset. File
// names carry a ULID run id so repeated runs against the same directory
// never collide, and the directory is guarded with an advisory lock so
// concurrent processes sharing it don't interleave.
type Sink struct {
	dir   string
	runID string
	lock  *flock.Flock

	mu    sync.Mutex
	files map[string]*os.File
}

// NewSink prepares dir for writing and acquires the directory lock.
// The returned sink is safe for concurrent use.
func NewSink(dir string) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	lock := flock.New(filepath.Join(dir, ".coldcall.lock"))
	if err := lock.Lock(); err != nil {
		return nil, fmt.Errorf("lock output dir: %w", err)
	}
	return &Sink{
		dir:   dir,
		runID: ulid.Make().String(),
		lock:  lock,
		files: make(map[string]*os.File),
	}, nil
}

// RunID returns the identifier embedded in this run's file names.
func (s *Sink) RunID() string {
	return s.runID
}

// Write appends row to the dataset's file, opening it on first use.
func (s *Sink) Write(dataset string, row json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[dataset]
	if !ok {
		name := filepath.Join(s.dir, fmt.Sprintf("%s_%s.jsonl", dataset, s.runID))
		var err error
		f, err = os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open %s: %w", name, err)
		}
		s.files[dataset] = f
	}

	if _, err := f.Write(append(row, '\n')); err != nil {
		return fmt.Errorf("write %s row: %w", dataset, err)
	}
	return nil
}

// Close flushes and closes all dataset files and releases the
// directory lock.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for _, f := range s.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.files = make(map[string]*os.File)
	if err := s.lock.Unlock(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
