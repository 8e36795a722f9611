// Package scratch manages the per-check working directory. Everything a check
// downloads or transcodes is registered here and removed when the check ends.
package scratch

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// Workspace is a uniquely named directory under a shared root plus the set
// of files the owning check created. It is safe for concurrent use.
type Workspace struct {
	dir    string
	logger *slog.Logger

	mu     sync.Mutex
	owned  []string
	closed bool
}

// New reserves a workspace under root. The directory itself is created on
// first use by Ensure, so a check that never writes leaves nothing behind.
func New(root string, logger *slog.Logger) *Workspace {
	return &Workspace{
		dir:    filepath.Join(root, uuid.NewString()),
		logger: logger,
	}
}

// Dir returns the workspace directory.
func (w *Workspace) Dir() string {
	return w.dir
}

// Ensure creates the workspace directory.
func (w *Workspace) Ensure() error {
	return os.MkdirAll(w.dir, 0o750)
}

// Path returns name inside the workspace.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.dir, name)
}

// Own registers a file for deletion on Close. Only register files this
// check created.
func (w *Workspace) Own(path string) {
	if path == "" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.owned = append(w.owned, path)
}

// Owned returns the registered files in registration order.
func (w *Workspace) Owned() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.owned...)
}

// Close deletes every owned file and then the workspace directory. Files
// that are already gone are not an error. Calling Close again is a no-op.
func (w *Workspace) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	var errs []error
	for _, path := range w.owned {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			w.logger.Warn("failed to remove check file", slog.String("path", path), slog.Any("error", err))
			errs = append(errs, err)
		}
	}
	w.owned = nil

	if err := os.RemoveAll(w.dir); err != nil {
		w.logger.Warn("failed to remove check workspace", slog.String("dir", w.dir), slog.Any("error", err))
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
