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
	"log/slog"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

var logLevels = []string{"warn", "debug", "info", "error"}

// RegisterLoggingFlags adds the logging flags to cmd and its children.
func RegisterLoggingFlags(cmd *cobra.Command) {
	enumVar(cmd.PersistentFlags(), "loglevel", logLevels, "set the log level")
	enumVarP(cmd.PersistentFlags(), "logformat", "f", []string{"text", "json"}, "set the log format")
}

// GetBaseLogger builds the logger selected by the logging flags. Logs go to
// the command's error stream.
func GetBaseLogger(cmd *cobra.Command) (*slog.Logger, error) {
	level, err := GetLoggerLevel(cmd)
	if err != nil {
		return nil, err
	}

	format, err := getEnum(cmd.Flags(), "logformat")
	if err != nil {
		return nil, err
	}
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
			Level: level,
		})
	case "text":
		handler = tint.NewHandler(cmd.ErrOrStderr(), &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
		})
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}

	return slog.New(handler), nil
}

// GetLoggerLevel returns the level selected by --loglevel.
func GetLoggerLevel(cmd *cobra.Command) (slog.Level, error) {
	logLevel, err := getEnum(cmd.Flags(), "loglevel")
	if err != nil {
		return slog.LevelWarn, err
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return slog.LevelWarn, err
	}
	return level, nil
}
