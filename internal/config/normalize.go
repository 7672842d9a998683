package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizeEntrez()
	if err := c.normalizeCache(); err != nil {
		return err
	}
	c.normalizeResolver()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeEntrez() {
	c.Entrez.Email = strings.TrimSpace(c.Entrez.Email)
	c.Entrez.APIKey = strings.TrimSpace(c.Entrez.APIKey)
	if c.Entrez.Email == "" {
		c.Entrez.Email = strings.TrimSpace(os.Getenv("NCBI_EMAIL"))
	}
	if c.Entrez.APIKey == "" {
		c.Entrez.APIKey = strings.TrimSpace(os.Getenv("NCBI_API_KEY"))
	}
	if strings.TrimSpace(c.Entrez.BaseURL) == "" {
		c.Entrez.BaseURL = defaultEntrezBaseURL
	}
	if c.Entrez.TimeoutSeconds <= 0 {
		c.Entrez.TimeoutSeconds = defaultEntrezTimeout
	}
}

func (c *Config) normalizeCache() error {
	if strings.TrimSpace(c.Cache.Path) == "" {
		c.Cache.Path = defaultCachePath
	}
	var err error
	if c.Cache.Path, err = expandPath(c.Cache.Path); err != nil {
		return fmt.Errorf("cache.path: %w", err)
	}
	if c.Cache.FlushEvery <= 0 {
		c.Cache.FlushEvery = defaultFlushEvery
	}
	return nil
}

func (c *Config) normalizeResolver() {
	if strings.TrimSpace(c.Resolver.SpeciesColumn) == "" {
		c.Resolver.SpeciesColumn = defaultSpeciesColumn
	}
	if strings.TrimSpace(c.Resolver.TaxIDColumn) == "" {
		c.Resolver.TaxIDColumn = defaultTaxIDColumn
	}
	if c.Resolver.SearchCap <= 0 {
		c.Resolver.SearchCap = defaultSearchCap
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		trimmed = filepath.Join(home, trimmed[2:])
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path: %w", err)
	}
	return abs, nil
}
