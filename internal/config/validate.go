package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable. The contact email is checked
// separately by RequireEmail so commands that never reach NCBI still work
// without one.
func (c *Config) Validate() error {
	if err := c.validateEntrez(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateResolver(); err != nil {
		return err
	}
	return c.validateLogging()
}

// RequireEmail enforces the NCBI contact-identifier requirement before any
// remote call is attempted.
func (c *Config) RequireEmail() error {
	if c.Entrez.Email == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/taxid/config.toml"
		}
		return fmt.Errorf("entrez.email is required. Pass --email, set NCBI_EMAIL, or edit %s (create with 'taxid config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateEntrez() error {
	if c.Entrez.Email != "" && !strings.Contains(c.Entrez.Email, "@") {
		return fmt.Errorf("entrez.email %q does not look like an email address", c.Entrez.Email)
	}
	if c.Entrez.DelaySeconds < 0 {
		return errors.New("entrez.delay_seconds must not be negative")
	}
	return nil
}

func (c *Config) validateCache() error {
	if c.Cache.FlushEvery <= 0 {
		return errors.New("cache.flush_every must be positive")
	}
	return nil
}

func (c *Config) validateResolver() error {
	if c.Resolver.SpeciesColumn == "" {
		return errors.New("resolver.species_column must be set")
	}
	if c.Resolver.TaxIDColumn == "" {
		return errors.New("resolver.taxid_column must be set")
	}
	if c.Resolver.SearchCap <= 0 {
		return errors.New("resolver.search_cap must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
