package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	slotExt = ".json"

	// Secure file permissions - owner read/write only
	jsonSecureFileMode = 0600 // -rw-------
	jsonSecureDirMode  = 0700 // drwx------
)

// Slots is a set of named durable slots. Each slot holds one document and
// is always replaced whole.
type Slots interface {
	// Read returns the slot contents, or nil with no error if the slot is empty
	Read(key string) ([]byte, error)
	// Write replaces the slot contents
	Write(key string, data []byte) error
	Close() error
}

// FileSlots keeps each slot in its own JSON file under a data directory
type FileSlots struct {
	dataDir string
}

// NewFileSlots creates the data directory if needed
func NewFileSlots(dataDir string) (*FileSlots, error) {
	if err := os.MkdirAll(dataDir, jsonSecureDirMode); err != nil {
		return nil, err
	}
	return &FileSlots{dataDir: dataDir}, nil
}

// slotPath returns the path to the file backing key
func (s *FileSlots) slotPath(key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.dataDir, key+slotExt), nil
}

// Read loads a slot from disk
func (s *FileSlots) Read(key string) ([]byte, error) {
	path, err := s.slotPath(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// Write replaces a slot on disk. The new contents are written to a temp
// file and renamed over the old one so a reader never sees a partial slot.
func (s *FileSlots) Write(key string, data []byte) error {
	path, err := s.slotPath(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dataDir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := tmp.Chmod(jsonSecureFileMode); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set secure permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpPath, path)
}

// Close is a no-op for file slots
func (s *FileSlots) Close() error {
	return nil
}

func validateKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return fmt.Errorf("invalid slot key %q", key)
	}
	return nil
}
