package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	json "github.com/goccy/go-json"
)

// FileKV persists keys as a single JSON object on disk. Writes go through
// a temp file rename so a crash mid-write cannot corrupt the previous
// contents.
type FileKV struct {
	path string

	mu     sync.Mutex
	values map[string]string
	loaded bool
}

// NewFileKV creates a file-backed store at the given path. The file is
// created lazily on first write; a missing file reads as empty.
func NewFileKV(path string) *FileKV {
	return &FileKV{path: path}
}

// GetItem returns the stored value and whether the key exists.
func (f *FileKV) GetItem(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.loadLocked(); err != nil {
		return "", false, err
	}
	v, ok := f.values[key]
	return v, ok, nil
}

// SetItem stores a value under the key and flushes to disk.
func (f *FileKV) SetItem(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.loadLocked(); err != nil {
		return err
	}
	f.values[key] = value
	return f.flushLocked()
}

// RemoveItem deletes the key and flushes to disk.
func (f *FileKV) RemoveItem(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.loadLocked(); err != nil {
		return err
	}
	if _, ok := f.values[key]; !ok {
		return nil
	}
	delete(f.values, key)
	return f.flushLocked()
}

func (f *FileKV) loadLocked() error {
	if f.loaded {
		return nil
	}
	f.values = make(map[string]string)

	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			f.loaded = true
			return nil
		}
		return fmt.Errorf("failed to read store file: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &f.values); err != nil {
			return fmt.Errorf("failed to parse store file: %w", err)
		}
	}
	f.loaded = true
	return nil
}

func (f *FileKV) flushLocked() error {
	data, err := json.Marshal(f.values)
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".solwire-*")
	if err != nil {
		return fmt.Errorf("failed to create temp store file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close store file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace store file: %w", err)
	}
	return nil
}
