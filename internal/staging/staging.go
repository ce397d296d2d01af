// Package staging manages the process-exclusive temporary directory
// that backs one save or load operation. Lifecycle: create → populate →
// archive/unpack → cleanup, with cleanup guaranteed on every exit path.
package staging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/diorama-project/diorama/internal/ident"
)

// Area is one exclusive staging directory. Collaborators that must not
// escape it write through FS(), a filesystem rooted at the area.
type Area struct {
	path   string
	fs     billy.Filesystem
	logger *slog.Logger
}

// Create picks a unique path under root (the platform temp root when
// root is empty) and creates it exclusively. An existing directory is
// never silently reused: on collision it falls back once to the user
// cache directory, then gives up.
func Create(root string, logger *slog.Logger) (*Area, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if root == "" {
		root = os.TempDir()
	}
	gen := ident.New("UID_", 6)

	path := filepath.Join(root, "diorama-stage-"+gen.Next())
	err := os.Mkdir(path, 0o755)
	if err == nil {
		return newArea(path, logger), nil
	}
	if !os.IsExist(err) {
		return nil, fmt.Errorf("create staging dir %s: %w", path, err)
	}

	logger.Warn("staging directory already exists, choosing another", "path", path)
	cache, cacheErr := os.UserCacheDir()
	if cacheErr != nil {
		return nil, fmt.Errorf("resolve fallback staging root: %w", cacheErr)
	}
	alt := filepath.Join(cache, "diorama", "stage-"+gen.Next())
	if err := os.MkdirAll(filepath.Dir(alt), 0o755); err != nil {
		return nil, fmt.Errorf("create fallback staging root: %w", err)
	}
	if err := os.Mkdir(alt, 0o755); err != nil {
		return nil, fmt.Errorf("create fallback staging dir %s: %w", alt, err)
	}
	return newArea(alt, logger), nil
}

func newArea(path string, logger *slog.Logger) *Area {
	return &Area{
		path:   path,
		fs:     osfs.New(path),
		logger: logger.With(slog.String("component", "staging")),
	}
}

// Path returns the absolute path of the staging directory.
func (a *Area) Path() string { return a.path }

// FS returns a filesystem rooted at the staging directory.
func (a *Area) FS() billy.Filesystem { return a.fs }

// Cleanup removes the staging directory tree. Removal errors are logged
// and swallowed: cleanup runs on every exit path, including error paths
// where a second failure must not mask the first.
func (a *Area) Cleanup() {
	if err := os.RemoveAll(a.path); err != nil {
		a.logger.Error("could not delete staging directory", "path", a.path, "error", err)
	}
}
