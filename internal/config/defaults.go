package config

import "time"

const (
	defaultEntrezBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"
	defaultEntrezTimeout = 30
	defaultCachePath     = "~/.cache/taxid/taxid_cache.json"
	defaultFlushEvery    = 25
	defaultSpeciesColumn = "Species"
	defaultTaxIDColumn   = "NCBI_TaxID"
	defaultSearchCap     = 20
	defaultLogFormat     = "console"
	defaultLogLevel      = "info"

	// NCBI guidance: ~3 requests/second without an API key, ~10 with one.
	keylessDelay = 340 * time.Millisecond
	keyedDelay   = 120 * time.Millisecond
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Entrez: Entrez{
			BaseURL:        defaultEntrezBaseURL,
			TimeoutSeconds: defaultEntrezTimeout,
		},
		Cache: Cache{
			Path:       defaultCachePath,
			FlushEvery: defaultFlushEvery,
		},
		Resolver: Resolver{
			SpeciesColumn: defaultSpeciesColumn,
			TaxIDColumn:   defaultTaxIDColumn,
			RankCheck:     true,
			SearchCap:     defaultSearchCap,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
