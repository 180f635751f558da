// Copyright (c) 2024, The Kubeka Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package executor implements stage G of the pipeline: dispatching an
instantiated, evaluated tree in the fixed order spec section 4.7
requires -- handlers, then EXEC, then jobs -- and performing
reverse-order rollback when a job fails. The reserved "::STARTING",
"::COMMAND", "::ROLLBACK" status lines are printed here rather than
left to the caller, mirroring base/exec/config.go's PrintCmd, which
folds command echoing into the same layer that runs the command.
*/
package executor

import (
	"fmt"
	"io"
	"strings"

	"github.com/lelanthran/kubeka/internal/errs"
	"github.com/lelanthran/kubeka/internal/logx"
	"github.com/lelanthran/kubeka/node"
	"github.com/lelanthran/kubeka/shell"
)

// Executor dispatches instantiated nodes against a single output
// stream and error counter, matching the single-writer discipline
// spec section 5 requires of the reserved stdout channels.
type Executor struct {
	Out     io.Writer
	Counter *errs.Counter
}

// New returns an Executor writing its reserved status lines to out.
func New(out io.Writer, counter *errs.Counter) *Executor {
	return &Executor{Out: out, Counter: counter}
}

// Run dispatches n per spec section 4.7: handlers whose HANDLES
// intersects n's own EMITS, then any EXEC commands (OR-ing exit
// codes), then n's jobs children sequentially with reverse-order
// rollback on the first failure. It returns n's resulting exit code.
func (e *Executor) Run(n *node.Node) int {
	fmt.Fprintf(e.Out, "::STARTING:%s:%s\n", n.ID(), n.Message())

	switch {
	case len(n.Handlers) > 0:
		return e.runHandlers(n)
	case len(n.Sym.Get(node.KeyExec)) > 0:
		return e.runExec(n)
	case len(n.Jobs) > 0:
		return e.runJobs(n)
	default:
		e.Counter.Add(errs.New(errs.Execution, n.Location(),
			"node %q has none of EXEC, EMITS-with-handlers, or JOBS to run", n.ID()))
		return 1
	}
}

func (e *Executor) runHandlers(n *node.Node) int {
	emitted := n.Emits()
	rc := 0
	for _, h := range n.Handlers {
		if !h.HandlesAny(emitted) {
			continue
		}
		rc |= e.Run(h)
	}
	return rc
}

func (e *Executor) runExec(n *node.Node) int {
	wd, err := shell.ResolveWorkDir(n)
	if err != nil {
		e.Counter.Add(err)
		return 1
	}
	defer wd.Cleanup()

	rc := 0
	for _, cmd := range n.Sym.Get(node.KeyExec) {
		res, err := shell.Run(n, wd, cmd)
		if err != nil {
			e.Counter.Add(err)
			rc |= 1
			continue
		}
		e.report("COMMAND", cmd, res)
		rc |= res.ExitCode
	}
	return rc
}

func (e *Executor) runJobs(n *node.Node) int {
	for i, job := range n.Jobs {
		rc := e.Run(job)
		if rc != 0 {
			e.rollback(n, i)
			return rc
		}
	}
	return 0
}

// rollback walks n's jobs from index i down to 0, running each's
// ROLLBACK commands via ShellRunner. A job with no ROLLBACK is a
// warning, not an error, per spec section 4.7's rollback contract; a
// failing rollback command is reported but does not stop the
// remaining rollback commands from being attempted.
func (e *Executor) rollback(n *node.Node, i int) {
	for idx := i; idx >= 0; idx-- {
		job := n.Jobs[idx]
		cmds := job.Sym.Get(node.KeyRollback)
		if len(cmds) == 0 {
			e.Counter.Add(errs.New(errs.Warning, job.Location(), "job %q has no ROLLBACK to run", job.ID()))
			continue
		}
		wd, err := shell.ResolveWorkDir(job)
		if err != nil {
			e.Counter.Add(err)
			continue
		}
		for _, cmd := range cmds {
			res, err := shell.Run(job, wd, cmd)
			if err != nil {
				e.Counter.Add(err)
				continue
			}
			e.report("ROLLBACK", cmd, res)
		}
		wd.Cleanup()
	}
}

// report prints a reserved "::COMMAND" or "::ROLLBACK" status line,
// keeping the prefix and field layout byte-for-byte even when the
// command text itself is colorized, per spec section 5's output
// channel requirement.
func (e *Executor) report(prefix, cmd string, res *shell.Result) {
	fmt.Fprintf(e.Out, "::%s:%s:%d:%d bytes\n-----\n%s\n-----\n",
		prefix, logx.CmdColor(cmd), res.ExitCode, len(res.Output), strings.TrimRight(string(res.Output), "\n"))
}
