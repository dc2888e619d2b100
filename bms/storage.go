package bms

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileStorage backs the config region with a fixed-size file. Writes
// land in an in-memory buffer; Commit writes a temp file and renames
// it over the target so a partial commit is never observable.
type FileStorage struct {
	path string
	buf  [RegionSize]byte
}

// OpenFileStorage loads the region from path. A missing or short file
// leaves the buffer zeroed, which reads as an uninitialized region.
func OpenFileStorage(path string) (*FileStorage, error) {
	fs := &FileStorage{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fs, nil
		}
		return nil, fmt.Errorf("failed to read config region %s: %v", path, err)
	}
	if len(data) >= RegionSize {
		copy(fs.buf[:], data[:RegionSize])
	}
	return fs, nil
}

func (fs *FileStorage) ReadByte(addr int) (byte, error) {
	if addr < 0 || addr >= RegionSize {
		return 0, fmt.Errorf("storage read out of bounds: %d", addr)
	}
	return fs.buf[addr], nil
}

func (fs *FileStorage) WriteByte(addr int, val byte) error {
	if addr < 0 || addr >= RegionSize {
		return fmt.Errorf("storage write out of bounds: %d", addr)
	}
	fs.buf[addr] = val
	return nil
}

func (fs *FileStorage) Commit() error {
	tmp := fs.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(fs.path), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %v", err)
	}
	if err := os.WriteFile(tmp, fs.buf[:], 0o644); err != nil {
		return fmt.Errorf("failed to write config region: %v", err)
	}
	if err := os.Rename(tmp, fs.path); err != nil {
		return fmt.Errorf("failed to commit config region: %v", err)
	}
	return nil
}
