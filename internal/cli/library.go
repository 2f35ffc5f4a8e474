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
	"strings"

	"github.com/spf13/cobra"

	"dirpx.dev/ldx/natives"
)

func newLibraryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "library {name|path}...",
		Aliases: []string{"lib"},
		Short:   "Load native libraries on behalf of a loader",
		Args:    cobra.MinimumNArgs(1),
		Example: strings.TrimSpace(`
library zip
library --loader app /opt/acme/lib/libacme.so
`),
		RunE:              runLibrary,
		DisableAutoGenTag: true,
	}
	cmd.Flags().StringP("loader", "l", "", "loader to load for (default: the system loader)")
	enumVarP(cmd.Flags(), "output", "o", outputFormats, "output format")
	return cmd
}

func runLibrary(cmd *cobra.Command, args []string) error {
	name, err := cmd.Flags().GetString("loader")
	if err != nil {
		return fmt.Errorf("getting loader flag failed: %w", err)
	}
	output, err := getEnum(cmd.Flags(), "output")
	if err != nil {
		return fmt.Errorf("getting output flag failed: %w", err)
	}

	env, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	l, err := env.Loader(name)
	if err != nil {
		return err
	}
	for _, lib := range args {
		ok, err := l.LoadLibrary(cmd.Context(), lib)
		if err != nil {
			return fmt.Errorf("loading %s for %s failed: %w", lib, l.Name(), err)
		}
		if !ok {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: not present, skipped\n", lib)
		}
	}

	return render(cmd.OutOrStdout(), output, libraryRows(l.Libraries()))
}

type libraryRow struct {
	Name    string `json:"name"`
	Loader  string `json:"loader"`
	Builtin bool   `json:"builtin,omitempty"`
}

func libraryRows(libs []*natives.Handle) table {
	t := table{header: []any{"Library", "Loader", "Builtin"}}
	for _, h := range libs {
		row := libraryRow{Name: h.Name, Loader: h.OwnerName, Builtin: h.Builtin}
		t.items = append(t.items, row)
		t.rows = append(t.rows, []any{row.Name, row.Loader, row.Builtin})
	}
	return t
}
