package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/time/rate"

	"taxid/internal/entrez"
	"taxid/internal/logging"
	"taxid/internal/species"
	"taxid/internal/taxcache"
)

const (
	defaultSearchCap  = 20
	defaultFlushEvery = 25

	// Floors for the extended backoff after a failed remote call. Transport
	// failures wait longer than malformed payloads.
	transportBackoffFloor = 800 * time.Millisecond
	parseBackoffFloor     = 500 * time.Millisecond
)

// Options configures a resolution engine.
type Options struct {
	// Delay is the minimum interval between remote calls. NCBI permits about
	// 3 requests per second without an API key and 10 with one.
	Delay time.Duration
	// RankCheck enables species-rank verification of candidates via efetch.
	RankCheck bool
	// SearchCap bounds the candidate list per search call.
	SearchCap int
	// FlushEvery flushes the cache after this many new resolutions.
	FlushEvery int
}

// Engine resolves unique species names through the lookup protocol: synonym
// substitution, ordered query-term variants, optional rank verification, and
// a shared rate limiter with extended backoff on errors. Results, including
// confirmed misses, land in the checkpoint cache.
type Engine struct {
	client  entrez.Searcher
	cache   *taxcache.Cache
	limiter *rate.Limiter
	logger  *slog.Logger
	opts    Options

	newResolutions int
}

// New constructs an engine. The limiter enforces one in-flight call spaced by
// opts.Delay across everything the engine does.
func New(client entrez.Searcher, cache *taxcache.Cache, opts Options, logger *slog.Logger) *Engine {
	if opts.SearchCap <= 0 {
		opts.SearchCap = defaultSearchCap
	}
	if opts.FlushEvery <= 0 {
		opts.FlushEvery = defaultFlushEvery
	}
	limit := rate.Inf
	if opts.Delay > 0 {
		limit = rate.Every(opts.Delay)
	}
	return &Engine{
		client:  client,
		cache:   cache,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logging.NewComponentLogger(logger, "resolver"),
		opts:    opts,
	}
}

// UniqueNames extracts the deduplicated, lexicographically sorted set of
// non-empty normalized species names from the row set. A positive limit
// truncates the set for debugging runs.
func UniqueNames(rows [][]string, speciesIdx, limit int) []string {
	seen := make(map[string]struct{})
	for _, row := range rows {
		if speciesIdx >= len(row) {
			continue
		}
		name := species.Normalize(row[speciesIdx])
		if name == "" {
			continue
		}
		seen[name] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	if limit > 0 && len(names) > limit {
		names = names[:limit]
	}
	return names
}

// NewResolutions returns how many names this engine resolved remotely (cache
// misses) during the run.
func (e *Engine) NewResolutions() int {
	return e.newResolutions
}

// Resolve returns the TaxID for a normalized species name, consulting the
// cache first. A cache miss triggers exactly one remote attempt-sequence and
// the result — empty string included — is recorded in the cache. The only
// error Resolve returns is context cancellation, which aborts before the
// cache is touched for the in-flight name.
func (e *Engine) Resolve(ctx context.Context, name string) (string, error) {
	if taxID, ok := e.cache.Get(name); ok {
		return taxID, nil
	}

	taxID, err := e.resolveRemote(ctx, name)
	if err != nil {
		return "", err
	}

	e.cache.Put(name, taxID)
	e.newResolutions++
	if e.newResolutions%e.opts.FlushEvery == 0 {
		if err := e.cache.Flush(); err != nil {
			e.logger.Warn("periodic cache flush failed",
				logging.String(logging.FieldEventType, "cache_flush_failed"),
				logging.Error(err),
				logging.String(logging.FieldImpact, "progress since last flush is lost on crash"))
		}
	}
	return taxID, nil
}

// termVariants builds the ordered query formulations for a lookup name: an
// exact-phrase scientific-name search, a field-scoped search without phrase
// quoting, and the bare name. The first variant yielding candidates wins.
func termVariants(lookup string) []string {
	return []string{
		fmt.Sprintf("%q[SCIN]", lookup),
		lookup + "[SCIN]",
		lookup,
	}
}

func (e *Engine) resolveRemote(ctx context.Context, name string) (string, error) {
	lookup := species.Preferred(name)
	if lookup != name {
		e.logger.Debug("applying synonym",
			logging.String("name", name),
			logging.String("lookup", lookup))
	}

	for _, term := range termVariants(lookup) {
		// One extra attempt at the same term for transport failures before
		// falling through to the next variant.
		for attempt := 0; attempt < 2; attempt++ {
			ids, err := e.search(ctx, term)
			if err != nil {
				if ctx.Err() != nil {
					return "", ctx.Err()
				}
				transport := entrez.IsTransport(err)
				e.logger.Warn("search attempt failed",
					logging.String(logging.FieldEventType, "search_failed"),
					logging.String("name", name),
					logging.String("term", term),
					logging.Bool("transport", transport),
					logging.Error(err))
				if backoffErr := e.backoff(ctx, transport); backoffErr != nil {
					return "", backoffErr
				}
				if transport {
					continue // retry this term once
				}
				break // malformed payload: next variant
			}

			if len(ids) == 0 {
				break // no candidates for this variant
			}

			taxID, err := e.pickCandidate(ctx, name, ids)
			if err != nil {
				return "", err
			}
			return taxID, nil
		}
	}

	e.logger.Info("no match found",
		logging.String(logging.FieldEventType, "resolved_miss"),
		logging.String("name", name))
	return "", nil
}

// pickCandidate applies the rank-verification policy to the winning variant's
// candidate list. When no candidate verifies as species rank (or verification
// is disabled) the first candidate is accepted; later variants are not tried.
func (e *Engine) pickCandidate(ctx context.Context, name string, ids []string) (string, error) {
	if e.opts.RankCheck {
		for _, id := range ids {
			if err := e.limiter.Wait(ctx); err != nil {
				return "", err
			}
			rank, err := e.client.FetchRank(ctx, id)
			if err != nil {
				if ctx.Err() != nil {
					return "", ctx.Err()
				}
				e.logger.Warn("rank fetch failed",
					logging.String(logging.FieldEventType, "rank_fetch_failed"),
					logging.String("name", name),
					logging.String("taxid", id),
					logging.Error(err))
				if backoffErr := e.backoff(ctx, entrez.IsTransport(err)); backoffErr != nil {
					return "", backoffErr
				}
				continue
			}
			if rank == "species" {
				e.logger.Info("resolved species-rank match",
					logging.String(logging.FieldEventType, "resolved_species"),
					logging.String("name", name),
					logging.String("taxid", id))
				return id, nil
			}
		}
	}

	e.logger.Info("accepting first candidate",
		logging.String(logging.FieldEventType, "resolved_first"),
		logging.String("name", name),
		logging.String("taxid", ids[0]))
	return ids[0], nil
}

func (e *Engine) search(ctx context.Context, term string) ([]string, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return e.client.Search(ctx, term, e.opts.SearchCap)
}

// backoff sleeps the extended post-error interval: at least the floor for the
// error class, and never less than twice the configured delay.
func (e *Engine) backoff(ctx context.Context, transport bool) error {
	wait := 2 * e.opts.Delay
	floor := parseBackoffFloor
	if transport {
		floor = transportBackoffFloor
	}
	if wait < floor {
		wait = floor
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
