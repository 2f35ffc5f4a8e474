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

	"dirpx.dev/ldx/typedesc"
)

func newResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "resolve {name}...",
		Aliases: []string{"r"},
		Short:   "Resolve type names through a loader",
		Args:    cobra.MinimumNArgs(1),
		Example: strings.TrimSpace(`
resolve com.acme.Main
resolve --loader platform --link com.acme.Main com.acme.Util
resolve -o yaml com.acme.Main
`),
		RunE:              runResolve,
		DisableAutoGenTag: true,
	}
	cmd.Flags().StringP("loader", "l", "", "loader to resolve through (default: the system loader)")
	cmd.Flags().Bool("link", false, "link the resolved types")
	enumVarP(cmd.Flags(), "output", "o", outputFormats, "output format")
	return cmd
}

func runResolve(cmd *cobra.Command, args []string) error {
	name, err := cmd.Flags().GetString("loader")
	if err != nil {
		return fmt.Errorf("getting loader flag failed: %w", err)
	}
	link, err := cmd.Flags().GetBool("link")
	if err != nil {
		return fmt.Errorf("getting link flag failed: %w", err)
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

	descs := make([]*typedesc.Descriptor, 0, len(args))
	for _, typeName := range args {
		d, err := l.Resolve(cmd.Context(), typeName, link)
		if err != nil {
			return fmt.Errorf("resolving %s through %s failed: %w", typeName, l.Name(), err)
		}
		descs = append(descs, d)
	}

	return render(cmd.OutOrStdout(), output, typeRows(descs))
}

type typeRow struct {
	Name       string `json:"name"`
	Loader     string `json:"loader"`
	Package    string `json:"package,omitempty"`
	State      string `json:"state"`
	Digest     string `json:"digest"`
	CodeSource string `json:"codeSource,omitempty"`
	Signers    int    `json:"signers,omitempty"`
}

func typeRows(descs []*typedesc.Descriptor) table {
	t := table{header: []any{"Name", "Loader", "State", "Digest"}}
	for _, d := range descs {
		row := typeRow{
			Name:       d.Name(),
			Loader:     d.LoaderName(),
			Package:    d.Package(),
			State:      d.State().String(),
			Digest:     d.Digest().String(),
			CodeSource: d.CodeSource(),
			Signers:    len(d.Signers()),
		}
		t.items = append(t.items, row)
		t.rows = append(t.rows, []any{row.Name, row.Loader, row.State, row.Digest})
	}
	return t
}
