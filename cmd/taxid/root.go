package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var verboseFlag bool

	rootCmd := &cobra.Command{
		Use:           "taxid",
		Short:         "Resolve NCBI TaxIDs for taxonomy CSV tables",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().BoolVar(&verboseFlag, "verbose", false, "Enable debug logging")

	rootCmd.AddCommand(newResolveCommand(&configFlag, &verboseFlag))
	rootCmd.AddCommand(newCacheCommand(&configFlag))
	rootCmd.AddCommand(newConfigCommand(&configFlag))

	return rootCmd
}
