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
	"slices"
	"strings"

	"github.com/spf13/pflag"
)

const enumType = "enum"

// enumFlag is a string flag restricted to a fixed set of values. The first
// value is the default.
type enumFlag struct {
	value   string
	options []string
}

func (f *enumFlag) String() string { return f.value }

func (f *enumFlag) Set(s string) error {
	if !slices.Contains(f.options, s) {
		return fmt.Errorf("must be one of %s", strings.Join(f.options, ", "))
	}
	f.value = s
	return nil
}

func (f *enumFlag) Type() string { return enumType }

func enumVar(fs *pflag.FlagSet, name string, options []string, usage string) {
	enumVarP(fs, name, "", options, usage)
}

func enumVarP(fs *pflag.FlagSet, name, shorthand string, options []string, usage string) {
	f := &enumFlag{value: options[0], options: slices.Clone(options)}
	fs.VarP(f, name, shorthand, fmt.Sprintf("%s (%s)", usage, strings.Join(options, ", ")))
}

func getEnum(fs *pflag.FlagSet, name string) (string, error) {
	flag := fs.Lookup(name)
	if flag == nil {
		return "", fmt.Errorf("flag accessed but not defined: %s", name)
	}
	if flag.Value.Type() != enumType {
		return "", fmt.Errorf("trying to get %s value of flag of type %s", enumType, flag.Value.Type())
	}
	return flag.Value.String(), nil
}
