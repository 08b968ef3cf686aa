// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MotiveMe Contributors

package main

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/motiveme/motiveme/internal/config"
)

const defaultSchemaPath = "schemas/config.schema.json"

// NewGenSchemaCmd creates the gen-schema subcommand.
func NewGenSchemaCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "gen-schema",
		Short: "Write the config file JSON Schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := writeSchema(out); err != nil {
				return err
			}
			cmd.Printf("Generated %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", defaultSchemaPath, "output path")
	return cmd
}

func writeSchema(path string) error {
	schema, err := config.GenerateSchema()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return oops.Code("SCHEMA_WRITE_FAILED").With("path", path).Wrap(err)
	}
	if err := os.WriteFile(path, schema, 0o600); err != nil {
		return oops.Code("SCHEMA_WRITE_FAILED").With("path", path).Wrap(err)
	}
	return nil
}
