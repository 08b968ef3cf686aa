// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MotiveMe Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/motiveme/motiveme/internal/config"
)

// NewRootCmd creates the root command for the motiveme CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "motiveme",
		Short: "MotiveMe account service",
		Long: `MotiveMe serves account signup, signin and cookie sessions over a
JSON API backed by PostgreSQL.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "config file path (default: $XDG_CONFIG_HOME/motiveme/config.yaml)")
	config.BindFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewGenSchemaCmd())

	return cmd
}

// loadConfig reads the configuration for cmd from its --config file, the
// shared flags and the environment.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	return config.Load(config.LoadOptions{File: path, Flags: cmd.Flags()})
}
