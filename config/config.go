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

// Package config builds the apis.Config a loader process is created with.
//
// The knobs are read once, when a process is built: OnlyIfPresent by the
// native library table, SystemAssertions by loaders whose assertion
// directives were never configured, and MaxUnwrap by the
// parallel-capability registry when it normalizes find hook types.
package config

import (
	"dirpx.dev/ldx/apis"
)

const (
	// DefaultOnlyIfPresent makes LoadLibrary of a missing file an
	// UnsatisfiedLink error.
	DefaultOnlyIfPresent = false
	// DefaultSystemAssertions leaves assertions disabled for types of
	// unconfigured loaders.
	DefaultSystemAssertions = false
	// DefaultMaxUnwrap is the pointer depth stripped from a find hook type
	// before it is looked up in the parallel-capability registry.
	DefaultMaxUnwrap = 8
)

// NewConfig returns the defaults with opts applied. A negative MaxUnwrap
// falls back to DefaultMaxUnwrap.
func NewConfig(opts ...Option) apis.Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.MaxUnwrap < 0 {
		cfg.MaxUnwrap = DefaultMaxUnwrap
	}
	return cfg
}

// DefaultConfig is the configuration of processes built without one: strict
// library loading, assertions off.
func DefaultConfig() apis.Config {
	return apis.Config{
		OnlyIfPresent:    DefaultOnlyIfPresent,
		SystemAssertions: DefaultSystemAssertions,
		MaxUnwrap:        DefaultMaxUnwrap,
	}
}

// Option adjusts an apis.Config before a process is built from it.
type Option func(*apis.Config)

// WithOnlyIfPresent makes LoadLibrary report false, rather than fail, when
// an explicit library path does not exist. Short names that cannot be
// located still fail.
func WithOnlyIfPresent(only bool) Option {
	return func(c *apis.Config) {
		c.OnlyIfPresent = only
	}
}

// WithSystemAssertions sets the desired assertion status answered for every
// type of a loader whose directives were never configured.
func WithSystemAssertions(enabled bool) Option {
	return func(c *apis.Config) {
		c.SystemAssertions = enabled
	}
}

// WithMaxUnwrap bounds how many pointer levels of a find hook type are
// stripped for parallel-capability lookups, so *T and **T register as T.
// A negative value resets to the default.
func WithMaxUnwrap(max int) Option {
	return func(c *apis.Config) {
		if max < 0 {
			c.MaxUnwrap = DefaultMaxUnwrap
			return
		}
		c.MaxUnwrap = max
	}
}
