// Copyright (c) 2024, The Kubeka Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package kbcli is the minimal command-line front end that wires the
flags spec section 6 requires into the A-H pipeline. Argument parsing
itself is explicitly out of scope for the core (spec section 1 treats
it as an external collaborator with only its interface specified), so
this package deliberately stays on the standard library's flag package
rather than adopting a third-party CLI framework; see DESIGN.md for
that choice's justification. "~"-relative --path entries are expanded
with github.com/mitchellh/go-homedir, following
cogentcore-core/cmd/core/cmd/setup.go; the default search path is
/etc/kubeka alone, with no home-directory default.
*/
package kbcli

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"

	"github.com/lelanthran/kubeka/internal/logx"
)

// Mode is the mutually-exclusive run mode spec section 6 requires
// exactly one of (outside of --help).
type Mode int

const (
	ModeNone Mode = iota
	ModeDaemon
	ModeLint
	ModeJob
)

// stringList accumulates a repeatable flag's values in order, the flag
// package's documented pattern for implementing "may repeat" options
// like --path and --file.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// Config is the parsed result of a kubeka invocation's command line.
type Config struct {
	Mode Mode
	Job  string

	Paths []string
	Files []string

	Werror      bool
	VeryVerbose bool
	Verbose     bool
	Quiet       bool
	Format      string

	Help bool
}

// Parse parses args (typically os.Args[1:]) into a Config, resolving
// "~"-relative --path entries via go-homedir and defaulting to
// /etc/kubeka when no --path or --file is given.
func Parse(args []string) (*Config, error) {
	fs := flag.NewFlagSet("kubeka", flag.ContinueOnError)

	daemon := fs.Bool("daemon", false, "run in daemon mode, scheduling PERIODIC roots")
	lint := fs.Bool("lint", false, "validate configuration and report, without running anything")
	job := fs.String("job", "", "run a single ENTRYPOINT by ID and exit")

	var paths, files stringList
	fs.Var(&paths, "path", "search directory for *.kubeka files (repeatable)")
	fs.Var(&files, "file", "an explicit *.kubeka file to load (repeatable)")

	werror := fs.Bool("Werror", false, "treat warnings as fatal")
	veryVerbose := fs.Bool("vv", false, "very verbose output")
	verbose := fs.Bool("v", false, "verbose output")
	quiet := fs.Bool("q", false, "quiet output")
	format := fs.String("format", "text", "lint report format: text, yaml, or toml")
	help := fs.Bool("help", false, "print usage and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	c := &Config{
		Files:       []string(files),
		Werror:      *werror,
		VeryVerbose: *veryVerbose,
		Verbose:     *verbose,
		Quiet:       *quiet,
		Format:      *format,
		Help:        *help,
	}

	for _, p := range paths {
		expanded, err := homedir.Expand(p)
		if err != nil {
			return nil, fmt.Errorf("expanding --path %q: %w", p, err)
		}
		c.Paths = append(c.Paths, expanded)
	}
	if len(c.Paths) == 0 && len(c.Files) == 0 {
		c.Paths = []string{"/etc/kubeka"}
	}

	if c.Help {
		return c, nil
	}

	modes := 0
	if *daemon {
		c.Mode = ModeDaemon
		modes++
	}
	if *lint {
		c.Mode = ModeLint
		modes++
	}
	if *job != "" {
		c.Mode = ModeJob
		c.Job = *job
		modes++
	}
	if modes != 1 {
		return nil, fmt.Errorf("exactly one of --daemon, --lint, or --job must be given")
	}

	logx.UserLevel = logx.LevelFromFlags(*veryVerbose, *verbose, *quiet)
	return c, nil
}

// DiscoverFiles walks each of paths for regular files with a ".kubeka"
// extension, and appends files (each taken as-is, no extension check)
// to the result, matching spec section 6's "path may repeat" model.
func DiscoverFiles(paths, files []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		err := filepath.WalkDir(p, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if strings.HasSuffix(path, ".kubeka") {
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %q: %w", p, err)
		}
	}
	out = append(out, files...)
	return out, nil
}

// Usage prints the command's usage text to w.
func Usage(w io.Writer) {
	fmt.Fprint(w, `kubeka - continuous deployment orchestrator

Usage:
  kubeka --daemon  [--path DIR]... [--file FILE]... [--Werror] [-v|-vv|-q]
  kubeka --lint    [--path DIR]... [--file FILE]... [--Werror] [--format text|yaml|toml]
  kubeka --job ID  [--path DIR]... [--file FILE]... [--Werror]
  kubeka --help

Exactly one of --daemon, --lint, or --job must be given.
`)
}
