// Package archive packs a staged directory tree into a single zip file
// and unpacks it again. Unpack is deliberately forgiving: a partial
// scene is better than none, so per-entry failures are counted and
// reported instead of aborting the whole operation.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/flate"
	"golang.org/x/sys/unix"
)

// DefaultCompressionLevel matches flate's default trade-off.
const DefaultCompressionLevel = 6

var ErrDestinationLocked = errors.New("destination archive is locked by another operation")

// EntryFailure records one archive entry that could not be extracted.
type EntryFailure struct {
	Name string
	Err  error
}

// UnpackResult reports how an unpack went: how many entries landed on
// disk and which ones did not.
type UnpackResult struct {
	Extracted int
	Failures  []EntryFailure
}

// Codec packs and unpacks scene archives.
type Codec struct {
	level  int
	logger *slog.Logger
}

func NewCodec(level int, logger *slog.Logger) *Codec {
	if level < flate.HuffmanOnly || level > flate.BestCompression {
		level = DefaultCompressionLevel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Codec{level: level, logger: logger.With(slog.String("component", "archive"))}
}

// Pack zips the contents of sourceDir into destFile, replacing any
// pre-existing file. An exclusive lock on <dest>.lock is held for the
// duration of the delete-then-write so two saves to the same destination
// fail loudly instead of interleaving.
func (c *Codec) Pack(sourceDir, destFile string) error {
	lock, err := acquireLock(destFile + ".lock")
	if err != nil {
		return err
	}
	defer releaseLock(lock)

	if err := os.Remove(destFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing archive %s: %w", destFile, err)
	}
	out, err := os.Create(destFile)
	if err != nil {
		return fmt.Errorf("open archive for writing %s: %w", destFile, err)
	}

	zw := zip.NewWriter(out)
	level := c.level
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, level)
	})

	walkErr := filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return err
		}
		return c.addFile(zw, path, filepath.ToSlash(rel))
	})
	if walkErr != nil {
		_ = zw.Close()
		_ = out.Close()
		_ = os.Remove(destFile) // never leave a half-written archive behind
		return fmt.Errorf("pack %s: %w", sourceDir, walkErr)
	}

	if err := zw.Close(); err != nil {
		_ = out.Close()
		_ = os.Remove(destFile)
		return fmt.Errorf("finalize archive: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(destFile)
		return fmt.Errorf("close archive: %w", err)
	}
	return nil
}

func (c *Codec) addFile(zw *zip.Writer, path, name string) error {
	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = in.Close() }()

	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return fmt.Errorf("create entry %s: %w", name, err)
	}
	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("write entry %s: %w", name, err)
	}
	return nil
}

// Unpack extracts archiveFile into destDir. Only failure to open or read
// the archive itself is a hard error; individual entries that cannot be
// extracted are skipped and reported in the result.
func (c *Codec) Unpack(archiveFile, destDir string) (*UnpackResult, error) {
	result := &UnpackResult{}

	zr, err := zip.OpenReader(archiveFile)
	if err != nil {
		return result, fmt.Errorf("open archive %s: %w", archiveFile, err)
	}
	defer func() { _ = zr.Close() }()

	for _, entry := range zr.File {
		if err := c.extractEntry(entry, destDir); err != nil {
			c.logger.Error("error while extracting entry", "entry", entry.Name, "error", err)
			result.Failures = append(result.Failures, EntryFailure{Name: entry.Name, Err: err})
			continue
		}
		if !entry.FileInfo().IsDir() {
			result.Extracted++
		}
	}
	return result, nil
}

func (c *Codec) extractEntry(entry *zip.File, destDir string) error {
	name := filepath.FromSlash(entry.Name)
	if filepath.IsAbs(name) || strings.Contains(name, "..") {
		return fmt.Errorf("unsafe entry path %q", entry.Name)
	}
	target := filepath.Join(destDir, name)

	if entry.FileInfo().IsDir() {
		return os.MkdirAll(target, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}

	in, err := entry.Open()
	if err != nil {
		return fmt.Errorf("open entry: %w", err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(target) // drop the partial file, never keep corrupt output
		return fmt.Errorf("extract %s: %w", entry.Name, err)
	}
	return out.Close()
}

// acquireLock takes a non-blocking exclusive flock. Lock contention is a
// bounded failure, not a retry-forever wait.
func acquireLock(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", path, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%w: %s", ErrDestinationLocked, path)
		}
		return nil, fmt.Errorf("flock %s: %w", path, err)
	}
	return f, nil
}

func releaseLock(f *os.File) {
	_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name) // best-effort cleanup
}
