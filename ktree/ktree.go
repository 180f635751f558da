// Copyright (c) 2024, The Kubeka Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package ktree implements the tree builder (stage D of the pipeline):
recursive instantiation of a registry's flat source nodes into an
independently-owned runnable tree, resolving JOBS and EMITS references
against the registry, and rejecting reference cycles by walking the
new tree's own ancestor chain as it descends. The recursive-descent
shape, and the "stop descending, don't halt the whole build" error
policy, follow node/parser.go's per-line error accumulation rather than
a panic/recover style, matching spec section 4.9's propagation policy.
*/
package ktree

import (
	"strings"

	"github.com/lelanthran/kubeka/internal/errs"
	"github.com/lelanthran/kubeka/node"
	"github.com/lelanthran/kubeka/registry"
)

// Instantiate materializes src into a freshly-owned root node, copying
// its symbol table and recursively resolving its JOBS and EMITS
// dependents against reg. It returns nil if any dependent anywhere in
// the tree fails (an unknown ID, an unhandled signal, or a cycle). A
// failed dependent does not stop the walk: its siblings, including those
// after a cycle, are still instantiated so every failure is recorded on
// counter before nil is returned.
func Instantiate(src *node.Node, reg *registry.Registry, counter *errs.Counter) *node.Node {
	return instantiate(src, nil, map[string]bool{}, reg, counter)
}

// instantiate does the recursive work; ancestors is the set of IDs on
// the path from the tree root to the node currently being built,
// separate from parent (a mere back-reference) so cycle detection does
// not depend on walking live pointers while the tree is still being
// assembled.
func instantiate(src *node.Node, parent *node.Node, ancestors map[string]bool, reg *registry.Registry, counter *errs.Counter) *node.Node {
	id := src.ID()
	if ancestors[id] {
		counter.Add(errs.New(errs.Link, src.Location(),
			"reference cycle: %q reappears as its own ancestor", id))
		return nil
	}

	n := &node.Node{Typ: src.Typ, Sym: src.Sym.Copy(), Parent: parent}

	childAncestors := make(map[string]bool, len(ancestors)+1)
	for k := range ancestors {
		childAncestors[k] = true
	}
	childAncestors[id] = true

	ok := true

	for _, jobID := range src.Sym.Get(node.KeyJobs) {
		jobID = strings.TrimSpace(jobID)
		if jobID == "" {
			continue
		}
		jobSrc := reg.Lookup(jobID)
		if jobSrc == nil {
			counter.Add(reg.UnknownIDError(src.Location(), jobID))
			ok = false
			continue
		}
		child := instantiate(jobSrc, n, childAncestors, reg, counter)
		if child == nil {
			ok = false
			continue
		}
		n.AddJob(child)
	}

	for _, sig := range src.Emits() {
		sig = strings.TrimSpace(sig)
		if sig == "" {
			continue
		}
		handlers := reg.HandlersFor([]string{sig})
		if len(handlers) == 0 {
			counter.Add(errs.New(errs.Link, src.Location(),
				"signal %q emitted by %q has no registered handler", sig, id))
			ok = false
			continue
		}
		for _, h := range handlers {
			child := instantiate(h, n, childAncestors, reg, counter)
			if child == nil {
				ok = false
				continue
			}
			n.AddHandler(child)
		}
	}

	if !ok {
		return nil
	}
	n.Flags |= node.Instantiated
	return n
}
