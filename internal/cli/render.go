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
	"encoding/json"
	"fmt"
	"io"

	prettytable "github.com/jedib0t/go-pretty/v6/table"
	"sigs.k8s.io/yaml"
)

var outputFormats = []string{"table", "json", "yaml"}

// table is command output: rows for the table format and items for the
// structured formats.
type table struct {
	header []any
	rows   [][]any
	items  []any
}

func render(w io.Writer, output string, t table) error {
	switch output {
	case "table":
		tw := prettytable.NewWriter()
		tw.SetOutputMirror(w)
		tw.AppendHeader(t.header)
		for _, r := range t.rows {
			tw.AppendRow(r)
		}
		style := prettytable.StyleLight
		style.Options.DrawBorder = false
		tw.SetStyle(style)
		tw.Render()
		return nil
	case "json":
		enc := json.NewEncoder(w)
		for _, item := range t.items {
			if err := enc.Encode(item); err != nil {
				return fmt.Errorf("encoding output failed: %w", err)
			}
		}
		return nil
	case "yaml":
		data, err := yaml.Marshal(t.items)
		if err != nil {
			return fmt.Errorf("encoding output failed: %w", err)
		}
		_, err = w.Write(data)
		return err
	default:
		return fmt.Errorf("unknown output format: %q", output)
	}
}
