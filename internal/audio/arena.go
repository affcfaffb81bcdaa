package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Arena owns every temporary file created during one assembly run. All
// scratch paths live under a single directory so Release can guarantee
// nothing survives a failed run.
type Arena struct {
	dir      string
	mu       sync.Mutex
	count    int
	released bool
}

// NewArena creates a scratch directory under base (or the system temp
// directory when base is empty).
func NewArena(base string) (*Arena, error) {
	dir, err := os.MkdirTemp(base, "castforge-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	return &Arena{dir: dir}, nil
}

// WriteFile stores data in a fresh file inside the arena and returns
// its path.
func (a *Arena) WriteFile(suffix string, data []byte) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.released {
		return "", fmt.Errorf("arena already released")
	}
	a.count++
	path := filepath.Join(a.dir, fmt.Sprintf("part-%04d%s", a.count, suffix))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write scratch file: %w", err)
	}
	return path, nil
}

// NewPath reserves a path inside the arena without creating the file.
func (a *Arena) NewPath(suffix string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.released {
		return "", fmt.Errorf("arena already released")
	}
	a.count++
	return filepath.Join(a.dir, fmt.Sprintf("part-%04d%s", a.count, suffix)), nil
}

// Dir returns the scratch directory.
func (a *Arena) Dir() string { return a.dir }

// Release removes the scratch directory and everything in it. Safe to
// call more than once; intended for defer on every exit path.
func (a *Arena) Release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.released {
		return
	}
	a.released = true
	_ = os.RemoveAll(a.dir)
}
