package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	dbFile = "apitester.db"

	// Secure file permissions - owner read/write only
	secureFileMode = 0600 // -rw-------
	secureDirMode  = 0700 // drwx------
)

// ensureSecureFile creates a file with secure permissions if it doesn't exist,
// or verifies/fixes permissions if it does exist. This prevents a TOCTOU race
// condition where the file could be created with insecure default permissions.
func ensureSecureFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, secureFileMode)
		if err != nil {
			return fmt.Errorf("failed to create secure file: %w", err)
		}
		f.Close()
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	if info.Mode().Perm() != secureFileMode {
		if err := os.Chmod(path, secureFileMode); err != nil {
			return fmt.Errorf("failed to set secure permissions: %w", err)
		}
	}
	return nil
}

// SQLiteSlots keeps slots as rows of a single table
type SQLiteSlots struct {
	db      *sql.DB
	dataDir string
	logger  *slog.Logger
}

// NewSQLiteSlots opens (or creates) the database in dataDir. Slot files left
// by FileSlots in the same directory are imported on first open.
func NewSQLiteSlots(dataDir string, logger *slog.Logger) (*SQLiteSlots, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(dataDir, secureDirMode); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dataDir, dbFile)
	if err := ensureSecureFile(dbPath); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	s := &SQLiteSlots{db: db, dataDir: dataDir, logger: logger}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	// Migration errors shouldn't prevent startup
	if err := s.migrateFromJSON(); err != nil {
		logger.Warn("slot migration from JSON failed", "dir", dataDir, "error", err)
	}

	return s, nil
}

// Close closes the database connection
func (s *SQLiteSlots) Close() error {
	return s.db.Close()
}

func (s *SQLiteSlots) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS slots (
		name TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);`)
	return err
}

// Read returns the stored document for key
func (s *SQLiteSlots) Read(key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	var value string
	err := s.db.QueryRow("SELECT value FROM slots WHERE name = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(value), nil
}

// Write replaces the stored document for key
func (s *SQLiteSlots) Write(key string, data []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}

	_, err := s.db.Exec(`
		INSERT INTO slots (name, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(data), time.Now().UTC())
	return err
}

// =============================================================================
// Migration from JSON
// =============================================================================

// migrateFromJSON imports slot files into an empty database and renames
// each imported file to *.migrated
func (s *SQLiteSlots) migrateFromJSON() error {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM slots").Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	paths, err := filepath.Glob(filepath.Join(s.dataDir, "*"+slotExt))
	if err != nil {
		return err
	}

	for _, path := range paths {
		key := strings.TrimSuffix(filepath.Base(path), slotExt)
		if validateKey(key) != nil {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			s.logger.Warn("skipping unreadable slot file", "path", path, "error", err)
			continue
		}
		if err := s.Write(key, data); err != nil {
			return fmt.Errorf("failed to import slot %s: %w", key, err)
		}
		if err := os.Rename(path, path+".migrated"); err != nil {
			s.logger.Warn("imported slot file could not be renamed", "path", path, "error", err)
		}
		s.logger.Debug("imported slot file", "key", key)
	}

	return nil
}
