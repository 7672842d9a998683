package main

import (
	"fmt"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"taxid/internal/config"
	"taxid/internal/logging"
	"taxid/internal/runner"
)

func newResolveCommand(configFlag *string, verboseFlag *bool) *cobra.Command {
	var (
		email       string
		apiKey      string
		cachePath   string
		sleep       float64
		resume      bool
		limit       int
		noProgress  bool
		noRankCheck bool
	)

	cmd := &cobra.Command{
		Use:   "resolve <input.csv> <output.csv>",
		Short: "Resolve NCBI TaxIDs for every species in a taxonomy CSV",
		Long: `Resolve NCBI TaxIDs for the species column of a taxonomy CSV.

Each unique species name is looked up once against the NCBI taxonomy
database; repeated rows reuse the result. Progress is checkpointed in a
cache file, so an interrupted run can be continued with --resume without
repeating remote calls. Output is written row by row to a temporary file
and published atomically, so the destination is never left half-written.

Examples:
  taxid resolve taxa.csv taxa_with_ids.csv --email you@example.org
  taxid resolve taxa.csv taxa_with_ids.csv --resume
  taxid resolve taxa.csv out.csv --limit 10 --verbose --no-progress`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, _, err := config.Load(*configFlag)
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}

			// Flags override file and environment values.
			if email != "" {
				cfg.Entrez.Email = email
			}
			if apiKey != "" {
				cfg.Entrez.APIKey = apiKey
			}
			if cachePath != "" {
				cfg.Cache.Path = cachePath
			}
			if cmd.Flags().Changed("sleep") {
				cfg.Entrez.DelaySeconds = sleep
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			if noRankCheck {
				cfg.Resolver.RankCheck = false
			}

			level := cfg.Logging.Level
			if *verboseFlag {
				level = "debug"
			}
			logger, err := logging.New(logging.Options{Level: level, Format: cfg.Logging.Format})
			if err != nil {
				return fmt.Errorf("setup logging: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			summary, err := runner.Run(ctx, cfg, runner.Options{
				InputPath:  args[0],
				OutputPath: args[1],
				Resume:     resume,
				Limit:      limit,
				Progress:   !noProgress,
			}, logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"", "Count"},
				[][]string{
					{"Input rows", strconv.Itoa(summary.Rows)},
					{"Unique species", strconv.Itoa(summary.UniqueNames)},
					{"Resolved", strconv.Itoa(summary.Resolved)},
					{"Unresolved", strconv.Itoa(summary.UniqueNames - summary.Resolved)},
					{"Cached at start", strconv.Itoa(summary.CachedAtStart)},
					{"New lookups", strconv.Itoa(summary.NewLookups)},
				},
				[]columnAlignment{alignLeft, alignRight},
			))
			fmt.Fprintf(out, "Done. Resolved %d/%d unique species. Output: %s\n",
				summary.Resolved, summary.UniqueNames, args[1])
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Contact email sent to NCBI (required unless configured)")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "NCBI API key (raises the permitted request rate)")
	cmd.Flags().StringVar(&cachePath, "cache", "", "Checkpoint cache path (overrides config)")
	cmd.Flags().Float64Var(&sleep, "sleep", 0, "Seconds between remote calls (auto-selected if omitted)")
	cmd.Flags().BoolVar(&resume, "resume", false, "Reuse the existing cache snapshot")
	cmd.Flags().IntVar(&limit, "limit", 0, "Resolve only the first N unique species (debug)")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")
	cmd.Flags().BoolVar(&noRankCheck, "no-rank-check", false, "Skip species-rank verification (faster)")

	return cmd
}
