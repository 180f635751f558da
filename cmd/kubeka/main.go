// Copyright (c) 2024, The Kubeka Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command kubeka wires the parse/validate/instantiate/evaluate/execute
// pipeline (stages A-H) together behind the three run modes spec
// section 6 describes: --lint, --job, and --daemon.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lelanthran/kubeka/eval"
	"github.com/lelanthran/kubeka/executor"
	"github.com/lelanthran/kubeka/internal/errs"
	"github.com/lelanthran/kubeka/internal/kbcli"
	"github.com/lelanthran/kubeka/ktree"
	"github.com/lelanthran/kubeka/node"
	"github.com/lelanthran/kubeka/registry"
	"github.com/lelanthran/kubeka/scheduler"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, out *os.File) int {
	cfg, err := kbcli.Parse(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		kbcli.Usage(os.Stderr)
		return finish(out, 1)
	}
	if cfg.Help {
		kbcli.Usage(out)
		return finish(out, 0)
	}

	counter := &errs.Counter{Werror: cfg.Werror}

	fnames, err := kbcli.DiscoverFiles(cfg.Paths, cfg.Files)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return finish(out, 1)
	}

	var parsed []*node.Node
	for _, fname := range fnames {
		nodes, _ := node.ReadFile(fname, counter)
		parsed = append(parsed, nodes...)
	}

	reg := registry.Coalesce(parsed, counter)
	reg.Validate(counter)

	switch cfg.Mode {
	case kbcli.ModeLint:
		return finish(out, runLint(cfg, reg, counter))
	case kbcli.ModeJob:
		return finish(out, runJob(cfg, reg, counter))
	case kbcli.ModeDaemon:
		return finish(out, runDaemon(cfg, reg, counter))
	default:
		return finish(out, 1)
	}
}

func runLint(cfg *kbcli.Config, reg *registry.Registry, counter *errs.Counter) int {
	rep := reg.Report(counter.NErrors(), counter.NWarnings())
	switch cfg.Format {
	case "yaml":
		rep.WriteYAML(os.Stdout)
	case "toml":
		rep.WriteTOML(os.Stdout)
	default:
		for _, n := range rep.Nodes {
			fmt.Fprintf(os.Stdout, "%s\t%s\t%s\t%v\n", n.ID, n.Type, n.Location, n.Keys)
		}
	}
	if counter.Failed() {
		return 1
	}
	return 0
}

func runJob(cfg *kbcli.Config, reg *registry.Registry, counter *errs.Counter) int {
	if counter.Failed() {
		return 1
	}
	src := reg.Lookup(cfg.Job)
	if src == nil {
		fmt.Fprintln(os.Stderr, reg.UnknownIDError("--job", cfg.Job))
		return 1
	}

	tree := ktree.Instantiate(src, reg, counter)
	if tree == nil || counter.NErrors() > 0 {
		return 1
	}
	eval.Eval(tree, eval.DefaultBuiltins(), counter)
	if counter.NErrors() > 0 {
		return 1
	}

	ex := executor.New(os.Stdout, counter)
	rc := ex.Run(tree)
	if counter.Failed() && rc == 0 {
		rc = 1
	}
	return rc
}

func runDaemon(cfg *kbcli.Config, reg *registry.Registry, counter *errs.Counter) int {
	if counter.Failed() {
		return 1
	}

	workers := launchPeriodicWorkers(reg, counter)

	watcher, err := scheduler.NewWatcher(cfg.Paths)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hot-reload watch disabled: %v\n", err)
	} else {
		defer watcher.Close()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	var reload <-chan string
	if watcher != nil {
		reload = watcher.Reload
	}

	for {
		select {
		case <-sig:
			return stopWorkers(workers)
		case changed, ok := <-reload:
			if !ok {
				reload = nil
				continue
			}
			fmt.Fprintf(os.Stdout, "::RELOAD:%s\n", changed)
			stopWorkers(workers)
			reg, counter = reparse(cfg)
			workers = launchPeriodicWorkers(reg, counter)
		}
	}
}

// launchPeriodicWorkers instantiates and launches one scheduler.Worker
// per PERIODIC root in reg, the bulk of what runDaemon does at startup
// and again whenever the Watcher signals a reload.
func launchPeriodicWorkers(reg *registry.Registry, counter *errs.Counter) []*scheduler.Worker {
	var workers []*scheduler.Worker
	for _, src := range reg.Nodes() {
		if src.Typ != node.Periodic {
			continue
		}
		tree := ktree.Instantiate(src, reg, counter)
		if tree == nil {
			continue
		}
		eval.Eval(tree, eval.DefaultBuiltins(), counter)
		ex := executor.New(os.Stdout, counter)
		w := scheduler.NewWorker(tree, ex)
		if err := w.Launch(); err != nil {
			counter.Add(err)
			continue
		}
		workers = append(workers, w)
	}
	return workers
}

// stopWorkers cancels every worker and returns the highest exit code
// seen, the same shutdown sequence runDaemon used to run inline before
// it also needed to run it on every reload.
func stopWorkers(workers []*scheduler.Worker) int {
	rc := 0
	for _, w := range workers {
		w.Cancel()
		if s := w.Status(); s.ExitCode > rc {
			rc = s.ExitCode
		}
	}
	return rc
}

// reparse re-discovers *.kubeka files under cfg's search paths and
// rebuilds the registry from scratch, the same sequence run() performs
// at startup, so a reload picks up added, removed, or edited files.
func reparse(cfg *kbcli.Config) (*registry.Registry, *errs.Counter) {
	counter := &errs.Counter{Werror: cfg.Werror}

	fnames, err := kbcli.DiscoverFiles(cfg.Paths, cfg.Files)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return registry.Coalesce(nil, counter), counter
	}

	var parsed []*node.Node
	for _, fname := range fnames {
		nodes, _ := node.ReadFile(fname, counter)
		parsed = append(parsed, nodes...)
	}

	reg := registry.Coalesce(parsed, counter)
	reg.Validate(counter)
	return reg, counter
}

func finish(out *os.File, rc int) int {
	fmt.Fprintf(out, "::EXITCODE:%d\n", rc)
	return rc
}
