package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Entrez contains configuration for the NCBI E-utilities service.
type Entrez struct {
	// Email is the contact identifier NCBI requires on every request.
	Email  string `toml:"email"`
	APIKey string `toml:"api_key"`
	// BaseURL overrides the E-utilities endpoint, mainly for tests.
	BaseURL string `toml:"base_url"`
	// DelaySeconds is the minimum interval between remote calls. Zero selects
	// the NCBI guidance automatically: ~3 requests/second without an API key,
	// ~10 with one.
	DelaySeconds   float64 `toml:"delay_seconds"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// Cache contains configuration for the checkpoint cache snapshot.
type Cache struct {
	Path string `toml:"path"`
	// FlushEvery persists the snapshot after this many new resolutions.
	FlushEvery int `toml:"flush_every"`
}

// Resolver contains configuration for the resolution protocol.
type Resolver struct {
	SpeciesColumn string `toml:"species_column"`
	TaxIDColumn   string `toml:"taxid_column"`
	RankCheck     bool   `toml:"rank_check"`
	// SearchCap bounds the candidate TaxIDs retrieved per search.
	SearchCap int `toml:"search_cap"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for taxid.
type Config struct {
	Entrez   Entrez   `toml:"entrez"`
	Cache    Cache    `toml:"cache"`
	Resolver Resolver `toml:"resolver"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/taxid/config.toml")
}

// EntrezDelay returns the effective inter-call interval, auto-selected from
// API key presence when no explicit override is configured.
func (c *Config) EntrezDelay() time.Duration {
	if c.Entrez.DelaySeconds > 0 {
		return time.Duration(c.Entrez.DelaySeconds * float64(time.Second))
	}
	if c.Entrez.APIKey != "" {
		return keyedDelay
	}
	return keylessDelay
}

// Load locates, parses, and validates a configuration file. A missing file is
// not an error; defaults (plus environment fallbacks) apply. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// WriteSample writes the embedded sample configuration to path, refusing to
// overwrite an existing file.
func WriteSample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat config: %w", err)
	}
	return os.WriteFile(path, []byte(sampleConfig), 0o644)
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}
