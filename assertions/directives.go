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

package assertions

import (
	"fmt"
	"strings"

	"dirpx.dev/ldx/apis"
)

// Directives is an apis.DirectiveSource over a fixed set of directives.
type Directives apis.Directives

// Directives returns d.
func (d Directives) Directives() apis.Directives { return apis.Directives(d) }

// DesiredAssertionStatus answers from d the way a configured Store does,
// so a parsed command line can also serve as the system assertion status.
func (d Directives) DesiredAssertionStatus(name string) bool {
	return status(d.Classes, d.Packages, d.Default, name)
}

// ParseDirectives parses command-line style assertion switches:
//
//	-ea, -enableassertions          enable by default
//	-da, -disableassertions         disable by default
//	-ea:com.acme...                 a package and its subpackages
//	-ea:...                         the unnamed package
//	-ea:com.acme.Main               one type
//
// Later switches override earlier ones for the same target.
func ParseDirectives(args []string) (Directives, error) {
	d := Directives{Packages: map[string]bool{}, Classes: map[string]bool{}}
	for _, arg := range args {
		sw, target, hasTarget := strings.Cut(arg, ":")
		var enabled bool
		switch sw {
		case "-ea", "-enableassertions":
			enabled = true
		case "-da", "-disableassertions":
			enabled = false
		default:
			return Directives{}, fmt.Errorf("assertions: unknown directive %q", arg)
		}
		switch {
		case !hasTarget || target == "":
			d.Default = enabled
		case target == "...":
			d.Packages[""] = enabled
		case strings.HasSuffix(target, "..."):
			d.Packages[strings.TrimSuffix(target, "...")] = enabled
		default:
			d.Classes[target] = enabled
		}
	}
	return d, nil
}
