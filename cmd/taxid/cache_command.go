package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"taxid/internal/config"
	"taxid/internal/taxcache"
)

func newCacheCommand(configFlag *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or reset the checkpoint cache",
	}
	cmd.AddCommand(newCacheShowCommand(configFlag))
	cmd.AddCommand(newCacheCountCommand(configFlag))
	cmd.AddCommand(newCacheClearCommand(configFlag))
	return cmd
}

func openCache(configFlag *string) (*taxcache.Cache, error) {
	cfg, _, _, err := config.Load(*configFlag)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	return taxcache.Open(cfg.Cache.Path, nil), nil
}

func newCacheShowCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "List cached species name to TaxID mappings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := openCache(configFlag)
			if err != nil {
				return err
			}
			names := cache.Names()
			if len(names) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Cache is empty (%s)\n", cache.Path())
				return nil
			}
			rows := make([][]string, 0, len(names))
			for _, name := range names {
				taxID, _ := cache.Get(name)
				if taxID == "" {
					taxID = "(not found)"
				}
				rows = append(rows, []string{name, taxID})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Species", "TaxID"},
				rows,
				[]columnAlignment{alignLeft, alignRight},
			))
			return nil
		},
	}
}

func newCacheCountCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Summarize cache contents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := openCache(configFlag)
			if err != nil {
				return err
			}
			resolved := 0
			for _, name := range cache.Names() {
				if taxID, _ := cache.Get(name); taxID != "" {
					resolved++
				}
			}
			total := cache.Len()
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"", "Count"},
				[][]string{
					{"Cached names", strconv.Itoa(total)},
					{"Resolved", strconv.Itoa(resolved)},
					{"Confirmed misses", strconv.Itoa(total - resolved)},
				},
				[]columnAlignment{alignLeft, alignRight},
			))
			return nil
		},
	}
}

func newCacheClearCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Empty the cache, forcing full re-resolution on the next run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := openCache(configFlag)
			if err != nil {
				return err
			}
			cleared := cache.Len()
			if err := cache.Clear(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d cached entries from %s\n", cleared, cache.Path())
			return nil
		},
	}
}
