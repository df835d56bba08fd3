package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"sigma-chat/internal/config"
)

var initConfigCmd = &cobra.Command{
	Use:   "init-config",
	Short: "Write a default config.yaml",
	Long:  `Writes the default widget configuration to <home>/config.yaml, or to --config. An existing file is left alone.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		path := configPath
		if path == "" {
			home, err := config.DetectHome(homeDir)
			if err != nil {
				return err
			}
			path = filepath.Join(home, "config.yaml")
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}
