// Copyright (c) 2024, The Kubeka Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package errs extends the standard library errors package with the
// typed error-kind taxonomy kubeka uses to report parse, semantic, link,
// resolution, execution and internal failures, plus the nerrors/nwarnings
// accumulator threaded through the parser, registry, tree builder,
// evaluator and executor.
package errs

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
)

// Kind discriminates the error taxonomy described in the node/tree
// subsystem's error handling design.
type Kind int

const (
	// Parse covers syntax-level failures in a *.kubeka file: missing
	// closing bracket, a CR byte, an over-long line, an unknown node
	// type, or malformed "NAME = VALUE" syntax.
	Parse Kind = iota
	// Semantic covers per-node validation failures: missing ID/MESSAGE,
	// an EXEC/EMITS/JOBS XOR violation, a malformed PERIOD, a write to a
	// read-only key, or an out-of-bounds index.
	Semantic
	// Link covers cross-node reference failures: an unknown ID, an
	// emitted signal with no handler, a reference cycle, or a duplicate
	// ID across source files.
	Link
	// Resolution covers evaluator failures: an unresolved "$<...>"
	// reference, a call to an undefined built-in, or a malformed
	// reference missing its closing '>'.
	Resolution
	// Execution covers shell/rollback failures and the isolation
	// syscalls (pipe/fork/chdir/setuid) that back them.
	Execution
	// Internal covers allocation failures and other invariant
	// violations that should never happen; always logged with the
	// call site.
	Internal
	// Warning covers non-fatal conditions: missing rollback, an
	// unrecognized input line, an empty file, or missing file/line
	// info. Fatal only under --Werror.
	Warning
)

func (k Kind) String() string {
	switch k {
	case Parse:
		return "ParseError"
	case Semantic:
		return "SemanticError"
	case Link:
		return "LinkError"
	case Resolution:
		return "ResolutionError"
	case Execution:
		return "ExecutionError"
	case Internal:
		return "InternalError"
	case Warning:
		return "Warning"
	default:
		return "UnknownError"
	}
}

// Located is a kind-tagged error carrying the file/line or node-ID
// location every user-visible kubeka error must report exactly once.
type Located struct {
	Kind     Kind
	Location string // "<fname>:<line>" (or "<fname>" for whole-file problems); execution errors also carry the node's "<fname>:<line>", not its ID
	Err      error
}

func (e *Located) Error() string {
	if e.Location == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Location, e.Kind, e.Err)
}

func (e *Located) Unwrap() error { return e.Err }

// New builds a [Located] error of the given kind and location.
func New(kind Kind, location string, format string, args ...any) *Located {
	return &Located{Kind: kind, Location: location, Err: fmt.Errorf(format, args...)}
}

// CallerInfo returns file:line information about the caller of the
// function that called CallerInfo, used to annotate InternalError log
// lines the way [Log] does for every other kind.
func CallerInfo() string {
	pc, file, line, _ := runtime.Caller(2)
	fn := runtime.FuncForPC(pc)
	name := "unknown"
	if fn != nil {
		name = fn.Name()
	}
	return name + " " + file + ":" + strconv.Itoa(line)
}

// Log logs err at the level appropriate for its kind (Warn for Warning,
// Error otherwise) if it is non-nil, and returns it unchanged. Internal
// errors are always annotated with the caller's location.
func Log(err error) error {
	if err == nil {
		return nil
	}
	var le *Located
	if errors.As(err, &le) {
		if le.Kind == Warning {
			slog.Warn(err.Error())
			return err
		}
		if le.Kind == Internal {
			slog.Error(err.Error() + " | " + CallerInfo())
			return err
		}
	}
	slog.Error(err.Error())
	return err
}

// Counter threads nerrors/nwarnings through a pipeline stage the way
// spec section 7 describes: errors accumulate toward a fatal lint
// verdict, warnings are fatal only under --Werror.
type Counter struct {
	Werror   bool
	errors   []error
	warnings []error
}

// Add records err, classifying it as an error or a warning by its Kind
// (defaulting to error for untyped errors), and logs it exactly once.
func (c *Counter) Add(err error) {
	if err == nil {
		return
	}
	Log(err)
	var le *Located
	if errors.As(err, &le) && le.Kind == Warning {
		c.warnings = append(c.warnings, err)
		return
	}
	c.errors = append(c.errors, err)
}

// NErrors returns the number of accumulated errors.
func (c *Counter) NErrors() int { return len(c.errors) }

// NWarnings returns the number of accumulated warnings.
func (c *Counter) NWarnings() int { return len(c.warnings) }

// Failed reports whether the accumulated state should be treated as a
// failure: any error, or any warning when Werror is set.
func (c *Counter) Failed() bool {
	return len(c.errors) > 0 || (c.Werror && len(c.warnings) > 0)
}

// Err joins every accumulated error and warning into a single error,
// mirroring cli/config.go's use of errors.Join to fold together
// independently detected failures. Returns nil if nothing was recorded.
func (c *Counter) Err() error {
	all := make([]error, 0, len(c.errors)+len(c.warnings))
	all = append(all, c.errors...)
	all = append(all, c.warnings...)
	return errors.Join(all...)
}

// Merge folds another Counter's accumulated errors and warnings into c,
// used when a stage fans out across files or nodes and needs to combine
// per-item counters without halting the overall iteration.
func (c *Counter) Merge(o *Counter) {
	c.errors = append(c.errors, o.errors...)
	c.warnings = append(c.warnings, o.warnings...)
}
