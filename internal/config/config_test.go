package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	t.Setenv("NCBI_EMAIL", "")
	t.Setenv("NCBI_API_KEY", "")

	cfg, _, exists, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Error("exists should be false for a missing file")
	}
	if cfg.Resolver.SpeciesColumn != "Species" || cfg.Resolver.TaxIDColumn != "NCBI_TaxID" {
		t.Errorf("unexpected resolver defaults: %+v", cfg.Resolver)
	}
	if cfg.Cache.FlushEvery != 25 {
		t.Errorf("flush_every default = %d, want 25", cfg.Cache.FlushEvery)
	}
	if !cfg.Resolver.RankCheck {
		t.Error("rank_check should default to true")
	}
}

func TestLoadParsesFile(t *testing.T) {
	t.Setenv("NCBI_EMAIL", "")
	t.Setenv("NCBI_API_KEY", "")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[entrez]
email = "user@example.org"
delay_seconds = 0.5

[cache]
path = "` + filepath.Join(dir, "cache.json") + `"
flush_every = 10

[resolver]
rank_check = false
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Errorf("resolved = %q, exists = %v", resolved, exists)
	}
	if cfg.Entrez.Email != "user@example.org" {
		t.Errorf("email = %q", cfg.Entrez.Email)
	}
	if cfg.Cache.FlushEvery != 10 {
		t.Errorf("flush_every = %d, want 10", cfg.Cache.FlushEvery)
	}
	if cfg.Resolver.RankCheck {
		t.Error("rank_check should be false from file")
	}
	if got := cfg.EntrezDelay(); got != 500*time.Millisecond {
		t.Errorf("EntrezDelay = %v, want 500ms", got)
	}
}

func TestLoadEnvFallbacks(t *testing.T) {
	t.Setenv("NCBI_EMAIL", "env@example.org")
	t.Setenv("NCBI_API_KEY", "envkey")

	cfg, _, _, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Entrez.Email != "env@example.org" {
		t.Errorf("email = %q, want env fallback", cfg.Entrez.Email)
	}
	if cfg.Entrez.APIKey != "envkey" {
		t.Errorf("api_key = %q, want env fallback", cfg.Entrez.APIKey)
	}
}

func TestEntrezDelayAutoSelection(t *testing.T) {
	cfg := Default()
	if got := cfg.EntrezDelay(); got != keylessDelay {
		t.Errorf("keyless delay = %v, want %v", got, keylessDelay)
	}
	cfg.Entrez.APIKey = "key"
	if got := cfg.EntrezDelay(); got != keyedDelay {
		t.Errorf("keyed delay = %v, want %v", got, keyedDelay)
	}
	cfg.Entrez.DelaySeconds = 1.5
	if got := cfg.EntrezDelay(); got != 1500*time.Millisecond {
		t.Errorf("explicit delay = %v, want 1.5s", got)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Entrez.Email = "not-an-email"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for malformed email")
	}

	cfg = Default()
	cfg.Logging.Format = "yaml"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unsupported log format")
	}

	cfg = Default()
	cfg.Entrez.DelaySeconds = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for negative delay")
	}
}

func TestRequireEmail(t *testing.T) {
	cfg := Default()
	if err := cfg.RequireEmail(); err == nil {
		t.Error("expected error when email unset")
	}
	cfg.Entrez.Email = "user@example.org"
	if err := cfg.RequireEmail(); err != nil {
		t.Errorf("RequireEmail returned error: %v", err)
	}
}

func TestExpandPathTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}
	got, err := expandPath("~/cache.json")
	if err != nil {
		t.Fatalf("expandPath returned error: %v", err)
	}
	if got != filepath.Join(home, "cache.json") {
		t.Errorf("expandPath = %q", got)
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := WriteSample(path); err != nil {
		t.Fatalf("WriteSample returned error: %v", err)
	}
	if err := WriteSample(path); err == nil {
		t.Fatal("expected error when file exists")
	}
}
