package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"taxid/internal/config"
	"taxid/internal/entrez"
	"taxid/internal/logging"
	"taxid/internal/resolver"
	"taxid/internal/species"
	"taxid/internal/tabular"
	"taxid/internal/taxcache"
)

// ErrInterrupted reports that the run was cancelled externally after the
// graceful partial-persistence path completed.
var ErrInterrupted = errors.New("run interrupted")

// Options configures a single resolution run. Config-level overrides (email,
// API key, delay, rank check) are merged into the Config before Run.
type Options struct {
	InputPath  string
	OutputPath string
	// Resume reuses the existing cache snapshot; otherwise the run starts
	// with an empty cache and overwrites the snapshot on first flush.
	Resume bool
	// Limit caps the number of unique names resolved, for debugging.
	Limit int
	// Progress enables the interactive progress bar (TTY only).
	Progress bool
}

// Summary reports what a run accomplished. It is populated on interruption
// and error recovery as well as success.
type Summary struct {
	Rows          int
	RowsWritten   int
	UniqueNames   int
	CachedAtStart int
	NewLookups    int
	Resolved      int
	Interrupted   bool
}

// Run drives the full pipeline: read and validate the input table, resolve
// every unique species name cache-first, and stream the augmented rows to the
// output writer. Every exit path — success, interruption, unrecoverable error
// — flushes the cache and publishes the rows written so far as a valid
// prefix, so a re-run with --resume continues where this one left off.
func Run(ctx context.Context, cfg *config.Config, opts Options, logger *slog.Logger) (*Summary, error) {
	logger = logging.NewComponentLogger(logger, "runner").With(
		logging.String(logging.FieldRunID, uuid.NewString()))

	if err := cfg.RequireEmail(); err != nil {
		return nil, err
	}

	table, err := tabular.ReadTable(opts.InputPath)
	if err != nil {
		return nil, err
	}
	speciesIdx, err := table.ColumnIndex(cfg.Resolver.SpeciesColumn)
	if err != nil {
		return nil, err
	}

	uniq := resolver.UniqueNames(table.Rows, speciesIdx, opts.Limit)
	uniqSet := make(map[string]struct{}, len(uniq))
	for _, name := range uniq {
		uniqSet[name] = struct{}{}
	}

	// Guard the cache snapshot against concurrent runs.
	lock := flock.New(cfg.Cache.Path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire cache lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another run is using cache %s", cfg.Cache.Path)
	}
	defer func() {
		_ = lock.Unlock()
		os.Remove(cfg.Cache.Path + ".lock")
	}()

	var cache *taxcache.Cache
	if opts.Resume {
		cache = taxcache.Open(cfg.Cache.Path, logger)
	} else {
		cache = taxcache.New(cfg.Cache.Path, logger)
	}

	cachedAtStart := 0
	for _, name := range uniq {
		if _, ok := cache.Get(name); ok {
			cachedAtStart++
		}
	}

	client, err := entrez.New(cfg.Entrez.Email, cfg.Entrez.APIKey, cfg.Entrez.BaseURL,
		entrez.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Entrez.TimeoutSeconds) * time.Second}))
	if err != nil {
		return nil, fmt.Errorf("create entrez client: %w", err)
	}
	engine := resolver.New(client, cache, resolver.Options{
		Delay:      cfg.EntrezDelay(),
		RankCheck:  cfg.Resolver.RankCheck,
		SearchCap:  cfg.Resolver.SearchCap,
		FlushEvery: cfg.Cache.FlushEvery,
	}, logger)

	header, taxIDIdx := outputHeader(table.Header, cfg.Resolver.TaxIDColumn)
	writer, err := tabular.NewWriter(opts.OutputPath, header)
	if err != nil {
		return nil, err
	}

	logger.Info("starting resolution run",
		logging.String(logging.FieldEventType, "run_started"),
		logging.Int("rows", len(table.Rows)),
		logging.Int("unique_names", len(uniq)),
		logging.Int("cached", cachedAtStart),
		logging.Duration("delay", cfg.EntrezDelay()),
		logging.Bool("rank_check", cfg.Resolver.RankCheck),
		logging.Bool("resume", opts.Resume))

	bar := newProgress(len(uniq), opts.Progress)
	bar.Add(cachedAtStart)

	summary := &Summary{Rows: len(table.Rows), UniqueNames: len(uniq), CachedAtStart: cachedAtStart}

	for _, row := range table.Rows {
		name := ""
		if speciesIdx < len(row) {
			name = species.Normalize(row[speciesIdx])
		}

		taxID := ""
		if name != "" {
			if _, wanted := uniqSet[name]; wanted {
				before := engine.NewResolutions()
				taxID, err = engine.Resolve(ctx, name)
				if err != nil {
					return recoverRun(summary, cache, writer, bar, logger, err)
				}
				if engine.NewResolutions() > before {
					bar.Add(1)
				}
				summary.NewLookups = engine.NewResolutions()
			} else if cached, ok := cache.Get(name); ok {
				// Beyond the debug limit: reuse prior results, never resolve.
				taxID = cached
			}
		}

		if err := writer.WriteRow(outputRow(row, taxIDIdx, taxID)); err != nil {
			return recoverRun(summary, cache, writer, bar, logger, err)
		}
		summary.RowsWritten++
	}

	bar.Finish()

	if err := cache.Flush(); err != nil {
		return summary, fmt.Errorf("flush cache: %w", err)
	}
	if err := writer.Publish(); err != nil {
		return summary, err
	}

	for _, name := range uniq {
		if taxID, ok := cache.Get(name); ok && taxID != "" {
			summary.Resolved++
		}
	}

	logger.Info("run complete",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.Int("resolved", summary.Resolved),
		logging.Int("unique_names", summary.UniqueNames),
		logging.Int("new_lookups", summary.NewLookups),
		logging.String("output", opts.OutputPath))

	return summary, nil
}

// recoverRun is the shared partial-persistence path for interruption and
// unrecoverable errors: flush the cache, publish the valid output prefix, and
// classify the failure for the exit status.
func recoverRun(summary *Summary, cache *taxcache.Cache, writer *tabular.Writer, bar progress, logger *slog.Logger, cause error) (*Summary, error) {
	bar.Finish()

	if err := cache.Flush(); err != nil {
		logger.Error("cache flush during recovery failed",
			logging.String(logging.FieldEventType, "recovery_flush_failed"),
			logging.Error(err))
	}
	if err := writer.Publish(); err != nil {
		logger.Error("publishing partial output failed",
			logging.String(logging.FieldEventType, "recovery_publish_failed"),
			logging.Error(err))
	}

	interrupted := errors.Is(cause, context.Canceled)
	summary.Interrupted = interrupted
	if interrupted {
		logger.Warn("interrupted; partial output and cache persisted",
			logging.String(logging.FieldEventType, "run_interrupted"),
			logging.Int("rows_written", summary.RowsWritten),
			logging.String(logging.FieldErrorHint, "re-run with --resume to continue"))
		return summary, fmt.Errorf("%w after %d rows", ErrInterrupted, summary.RowsWritten)
	}

	logger.Error("run failed; partial output and cache persisted",
		logging.String(logging.FieldEventType, "run_failed"),
		logging.Error(cause),
		logging.Int("rows_written", summary.RowsWritten),
		logging.String(logging.FieldErrorHint, "re-run with --resume to continue"))
	return summary, cause
}

// outputHeader appends the TaxID column unless the input already carries it,
// in which case existing values are overwritten in place.
func outputHeader(header []string, taxIDColumn string) ([]string, int) {
	for i, field := range header {
		if field == taxIDColumn {
			return header, i
		}
	}
	out := make([]string, 0, len(header)+1)
	out = append(out, header...)
	out = append(out, taxIDColumn)
	return out, len(header)
}

func outputRow(row []string, taxIDIdx int, taxID string) []string {
	out := make([]string, 0, len(row)+1)
	out = append(out, row...)
	if taxIDIdx < len(row) {
		out[taxIDIdx] = taxID
		return out
	}
	return append(out, taxID)
}
