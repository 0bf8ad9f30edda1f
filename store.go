package slidereview

import (
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
)

// SlideFileName returns the file name of slide n (1-based) in both image
// directories.
func SlideFileName(n int) string {
	return fmt.Sprintf("slide_%d.png", n)
}

// DirStore keeps slide images in two directories: base images as rendered
// from the document, and the served images clients fetch. Both use the
// same file names.
type DirStore struct {
	baseDir   string
	servedDir string
}

// NewDirStore creates a store over the given directories, creating them if
// needed.
func NewDirStore(baseDir, servedDir string) (*DirStore, error) {
	if baseDir == "" || servedDir == "" {
		return nil, errors.New("image directories must be set")
	}
	if filepath.Clean(baseDir) == filepath.Clean(servedDir) {
		return nil, fmt.Errorf("base and served directories must differ: %s", baseDir)
	}
	s := &DirStore{baseDir: baseDir, servedDir: servedDir}
	for _, dir := range []string{baseDir, servedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory: %w", err)
		}
	}
	return s, nil
}

// BaseDir returns the base image directory.
func (s *DirStore) BaseDir() string { return s.baseDir }

// ServedDir returns the served image directory.
func (s *DirStore) ServedDir() string { return s.servedDir }

// Reset deletes both directories with everything in them and recreates
// them empty.
func (s *DirStore) Reset() error {
	for _, dir := range []string{s.baseDir, s.servedDir} {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("clear %s: %w", dir, err)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	return nil
}

// PutBase writes the PNG data of base image n.
func (s *DirStore) PutBase(n int, data []byte) error {
	return writeFileAtomic(filepath.Join(s.baseDir, SlideFileName(n)), data)
}

// PutServed replaces the PNG data of served image n.
func (s *DirStore) PutServed(n int, data []byte) error {
	return writeFileAtomic(filepath.Join(s.servedDir, SlideFileName(n)), data)
}

// Base decodes base image n. It returns ErrSlideNotFound if the image does
// not exist.
func (s *DirStore) Base(n int) (image.Image, error) {
	data, err := readSlideFile(s.baseDir, n)
	if err != nil {
		return nil, err
	}
	return DecodePNG(data)
}

// Served returns the PNG data of served image n, or ErrSlideNotFound.
func (s *DirStore) Served(n int) ([]byte, error) {
	return readSlideFile(s.servedDir, n)
}

func readSlideFile(dir string, n int) ([]byte, error) {
	if n < 1 {
		return nil, fmt.Errorf("slide %d: %w", n, ErrSlideNotFound)
	}
	data, err := os.ReadFile(filepath.Join(dir, SlideFileName(n)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("slide %d: %w", n, ErrSlideNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read slide %d: %w", n, err)
	}
	return data, nil
}

// writeFileAtomic writes data to a temporary file next to path and renames
// it into place, so readers see either the old or the new image.
func writeFileAtomic(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	tmp := f.Name()

	_, writeErr := f.Write(data)
	closeErr := f.Close()
	if writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", path, writeErr)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
