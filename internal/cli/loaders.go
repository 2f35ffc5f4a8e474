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

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"dirpx.dev/ldx/loader"
)

func newLoadersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "loaders",
		Short:             "List the configured loaders",
		Args:              cobra.NoArgs,
		RunE:              runLoaders,
		DisableAutoGenTag: true,
	}
	enumVarP(cmd.Flags(), "output", "o", outputFormats, "output format")
	return cmd
}

func runLoaders(cmd *cobra.Command, _ []string) error {
	output, err := getEnum(cmd.Flags(), "output")
	if err != nil {
		return fmt.Errorf("getting output flag failed: %w", err)
	}
	env, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	return render(cmd.OutOrStdout(), output, loaderRows(env.Loaders(), env.Process.System()))
}

type loaderRow struct {
	Name     string `json:"name"`
	Parent   string `json:"parent"`
	Parallel bool   `json:"parallel,omitempty"`
	System   bool   `json:"system,omitempty"`
	Packages int    `json:"packages,omitempty"`
}

func loaderRows(loaders []*loader.Loader, system *loader.Loader) table {
	t := table{header: []any{"Loader", "Parent", "Parallel", "System", "Packages"}}
	for _, l := range loaders {
		parent := loader.BootstrapName
		if p := l.Parent(); p != nil {
			parent = p.Name()
		}
		row := loaderRow{
			Name:     l.Name(),
			Parent:   parent,
			Parallel: l.IsParallelCapable(),
			System:   l == system,
			Packages: len(l.Packages()),
		}
		t.items = append(t.items, row)
		t.rows = append(t.rows, []any{row.Name, row.Parent, row.Parallel, row.System, row.Packages})
	}
	return t
}
