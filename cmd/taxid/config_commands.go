package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"taxid/internal/config"
)

func newConfigCommand(configFlag *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage taxid configuration",
	}
	cmd.AddCommand(newConfigInitCommand(configFlag))
	cmd.AddCommand(newConfigShowCommand(configFlag))
	return cmd
}

func newConfigInitCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a sample configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := *configFlag
			if path == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return err
				}
				path = defaultPath
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fmt.Errorf("create config directory: %w", err)
			}
			if err := config.WriteSample(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", path)
			return nil
		},
	}
}

func newConfigShowCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(*configFlag)
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			if exists {
				fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", path)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "# defaults (no file at %s)\n", path)
			}
			// Never echo credentials.
			redacted := *cfg
			if redacted.Entrez.APIKey != "" {
				redacted.Entrez.APIKey = "<redacted>"
			}
			data, err := toml.Marshal(redacted)
			if err != nil {
				return fmt.Errorf("render configuration: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
