/*
   Copyright 2025 The DIRPX Authors.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

// Package cli implements the ldx command line.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	slogcontext "github.com/veqryn/slog-context"

	"dirpx.dev/ldx/internal/setup"
)

// DefaultConfigFile is the configuration read when --config is not given.
const DefaultConfigFile = "ldx.yaml"

// New returns the root command.
func New() *cobra.Command {
	root := &cobra.Command{
		Use:   "ldx [sub-command]",
		Short: "Resolve types and native libraries through a loader hierarchy",
		Long: `ldx builds a loader hierarchy from a configuration file and resolves
  type names or native libraries through it, reporting which loader
  defined each type.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := GetBaseLogger(cmd)
			if err != nil {
				return fmt.Errorf("could not retrieve logger: %w", err)
			}
			cmd.SetContext(slogcontext.NewCtx(cmd.Context(), logger))
			return nil
		},
		SilenceUsage:      true,
		DisableAutoGenTag: true,
	}

	root.PersistentFlags().StringP("config", "c", DefaultConfigFile, "loader hierarchy configuration file")
	RegisterLoggingFlags(root)

	root.AddCommand(newResolveCmd(), newLibraryCmd(), newLoadersCmd())
	return root
}

// Execute runs the root command with ctx and args.
func Execute(ctx context.Context, args []string) error {
	root := New()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func loadEnv(cmd *cobra.Command) (*setup.Env, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("getting config flag failed: %w", err)
	}
	env, err := setup.Load(cmd.Context(), path)
	if err != nil {
		return nil, fmt.Errorf("could not build loaders: %w", err)
	}
	return env, nil
}
