// Copyright (c) 2024, The Kubeka Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package logx provides the verbosity-aware logging and console coloring
// used throughout kubeka's node/tree subsystem: the verbosity level
// chosen on the command line, and a small set of color helpers for the reserved
// "::STARTING"/"::COMMAND"/"::ROLLBACK"/"::EXITCODE" status lines.
package logx

import (
	"log/slog"
	"os"

	"github.com/muesli/termenv"
)

// UserLevel is the [slog.Level] selected by the command-line verbosity
// flags. It is set once during startup and is process-wide, read-mostly
// state. It is not installed on any logger: no output in this module is
// filtered by it.
var UserLevel slog.Level = slog.LevelInfo

// LevelFromFlags maps the three-way verbosity flags accepted by the CLI
// (-vv, -v, -q) onto a [slog.Level].
// veryVerbose takes precedence over verbose, which takes precedence over
// quiet; with none set, the default is [slog.LevelInfo].
func LevelFromFlags(veryVerbose, verbose, quiet bool) slog.Level {
	switch {
	case veryVerbose:
		return slog.LevelDebug
	case verbose:
		return slog.LevelInfo - 1
	case quiet:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

var profile = termenv.ColorProfile()

func colorize(s string, c termenv.Color) string {
	if profile == termenv.Ascii {
		return s
	}
	return termenv.String(s).Foreground(c).String()
}

// SuccessColor renders s in the color used for successful status, degrading
// to plain text when stdout is not a color-capable terminal.
func SuccessColor(s string) string {
	return colorize(s, profile.Color("#2eb086"))
}

// ErrorColor renders s in the color used for failure status.
func ErrorColor(s string) string {
	return colorize(s, profile.Color("#e0544a"))
}

// CmdColor renders s in the color used to echo a command being run.
func CmdColor(s string) string {
	return colorize(s, profile.Color("#5f87ff"))
}

// WarnColor renders s in the color used for warnings.
func WarnColor(s string) string {
	return colorize(s, profile.Color("#d7af00"))
}

// IsTerminal reports whether stdout looks like an interactive terminal,
// which callers use to decide whether to enable progress-style output.
func IsTerminal() bool {
	return profile != termenv.Ascii
}

func init() {
	// Allow forcing plain output for tests and non-interactive pipelines.
	if os.Getenv("KUBEKA_NO_COLOR") != "" {
		profile = termenv.Ascii
	}
}
