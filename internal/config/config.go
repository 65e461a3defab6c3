// Package config loads apitester settings.
//
// Values are resolved in increasing order of precedence: built-in defaults,
// a YAML file, APITESTER_* environment variables, and finally command-line
// flags (applied by the caller through Overrides). The YAML file is the one
// named by --config, or <data-dir>/config.yaml when that exists.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultBackendURL = "http://localhost:5000"
	DefaultStorage    = StorageJSON

	// FileName is looked up inside the data directory when no --config is given
	FileName = "config.yaml"

	EnvBackendURL = "APITESTER_BACKEND_URL"
	EnvDataDir    = "APITESTER_DATA_DIR"
	EnvStorage    = "APITESTER_STORAGE"
)

// Storage backends for the collection slot
const (
	StorageJSON   = "json"
	StorageSQLite = "sqlite"
)

// Config is the resolved configuration.
type Config struct {
	// BackendURL is the proxy backend that serves /proxy and /history.
	BackendURL string `yaml:"backend_url"`

	// DataDir holds the collection slot and config.yaml.
	// Default: ~/.apitester
	DataDir string `yaml:"data_dir"`

	// Storage selects the slot backend: json or sqlite.
	Storage string `yaml:"storage"`
}

// Overrides carries flag values; empty fields leave the config untouched.
type Overrides struct {
	BackendURL string
	DataDir    string
	Storage    string
}

// DefaultDataDir returns ~/.apitester
func DefaultDataDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".apitester"), nil
}

// Default returns the built-in configuration.
func Default() (*Config, error) {
	dataDir, err := DefaultDataDir()
	if err != nil {
		return nil, err
	}
	return &Config{
		BackendURL: DefaultBackendURL,
		DataDir:    dataDir,
		Storage:    DefaultStorage,
	}, nil
}

// Load resolves defaults, the YAML file and the environment.
//
// An explicit path must exist. Without one, <data-dir>/config.yaml is read
// only if present, where data-dir already reflects APITESTER_DATA_DIR.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	if path == "" {
		dir := cfg.DataDir
		if env := os.Getenv(EnvDataDir); env != "" {
			dir = expandPath(env)
		}
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		}
	}

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, fmt.Errorf("failed to load config %s: %w", path, err)
		}
	}

	cfg.applyEnvironment()
	cfg.DataDir = expandPath(cfg.DataDir)
	cfg.Storage = normalizeStorage(cfg.Storage)
	return cfg, nil
}

// loadFile merges a YAML file into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) applyEnvironment() {
	if v := os.Getenv(EnvBackendURL); v != "" {
		c.BackendURL = v
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv(EnvStorage); v != "" {
		c.Storage = v
	}
}

// Apply layers flag values over the loaded config.
func (c *Config) Apply(o Overrides) {
	if o.BackendURL != "" {
		c.BackendURL = o.BackendURL
	}
	if o.DataDir != "" {
		c.DataDir = expandPath(o.DataDir)
	}
	if o.Storage != "" {
		c.Storage = normalizeStorage(o.Storage)
	}
}

func normalizeStorage(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Validate checks the configuration for errors. It does not modify c;
// storage names are normalized by Load and Apply.
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.BackendURL)
	switch {
	case c.BackendURL == "":
		errs = append(errs, errors.New("backend_url is required"))
	case err != nil:
		errs = append(errs, fmt.Errorf("backend_url is invalid: %w", err))
	case u.Scheme != "http" && u.Scheme != "https":
		errs = append(errs, fmt.Errorf("backend_url must use http or https, got %q", c.BackendURL))
	case u.Host == "":
		errs = append(errs, fmt.Errorf("backend_url has no host: %q", c.BackendURL))
	}

	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}

	if c.Storage != StorageJSON && c.Storage != StorageSQLite {
		errs = append(errs, fmt.Errorf("storage must be one of: %s, %s", StorageJSON, StorageSQLite))
	}

	return errors.Join(errs...)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandPath expands a leading ~ and ${VAR} / ${VAR:-default} patterns.
func expandPath(s string) string {
	s = varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})

	if s == "~" || strings.HasPrefix(s, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			s = filepath.Join(home, strings.TrimPrefix(s, "~"))
		}
	}
	return s
}
