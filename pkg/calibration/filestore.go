//go:build !tinygo

package calibration

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps the partition image in a file. Every write replaces the
// whole image through a temporary file and a rename.
type FileStore struct {
	path string
	mu   sync.Mutex
	data []byte
}

var _ ByteStore = (*FileStore)(nil)

// OpenFileStore opens or creates a partition image of the given size. A
// missing file is created zero-filled; an image of a different size is an
// error rather than silently reinterpreted.
func OpenFileStore(path string, size int) (*FileStore, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid partition size %d", size)
	}

	fs := &FileStore{path: path}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if len(data) != size {
			return nil, fmt.Errorf("partition image %s is %d bytes, want %d", path, len(data), size)
		}
		fs.data = data
	case os.IsNotExist(err):
		fs.data = make([]byte, size)
		if err := fs.flush(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("failed to read partition image: %w", err)
	}

	return fs, nil
}

// Path returns the image file path.
func (f *FileStore) Path() string {
	return f.path
}

// Size returns the partition size in bytes.
func (f *FileStore) Size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.data)
}

// Read copies len(p) bytes at offset into p.
func (f *FileStore) Read(offset int, p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := checkBounds(len(f.data), offset, len(p)); err != nil {
		return err
	}
	copy(p, f.data[offset:])
	return nil
}

// Write updates the image and blocks until it is on disk.
func (f *FileStore) Write(offset int, p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := checkBounds(len(f.data), offset, len(p)); err != nil {
		return err
	}

	prev := append([]byte(nil), f.data...)
	copy(f.data[offset:], p)
	if err := f.flush(); err != nil {
		f.data = prev
		return err
	}
	return nil
}

func (f *FileStore) flush() error {
	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(f.data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return nil
}
