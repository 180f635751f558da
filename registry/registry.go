// Copyright (c) 2024, The Kubeka Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package registry implements the node registry's dedup-by-ID and
per-node validation pass (stage C of the pipeline): a duplicate ID does
not replace the existing node, it is reported and discarded; every
deduplicated node is then checked for the ID/MESSAGE/XOR invariants
and, for PERIODIC nodes, a well-formed PERIOD.
*/
package registry

import (
	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"github.com/lelanthran/kubeka/internal/errs"
	"github.com/lelanthran/kubeka/node"
)

// Registry is the deduplicated, validated set of source nodes a tree
// builder resolves JOBS/EMITS references against.
type Registry struct {
	byID  map[string]*node.Node
	order []string
}

// Coalesce inserts each parsed node into a registry keyed by ID. A
// collision does not replace the existing node: it records both
// source locations as a LinkError and discards the incoming node,
// matching spec section 4.3 exactly.
func Coalesce(parsed []*node.Node, counter *errs.Counter) *Registry {
	r := &Registry{byID: make(map[string]*node.Node, len(parsed))}
	for _, n := range parsed {
		id := n.ID()
		if existing, dup := r.byID[id]; dup {
			counter.Add(errs.New(errs.Link, n.Location(),
				"duplicate ID %q, already defined at %s", id, existing.Location()))
			continue
		}
		r.byID[id] = n
		r.order = append(r.order, id)
	}
	return r
}

// Lookup returns the source node registered under id, or nil if none
// exists.
func (r *Registry) Lookup(id string) *node.Node {
	return r.byID[id]
}

// Nodes returns every registered node in insertion order.
func (r *Registry) Nodes() []*node.Node {
	out := make([]*node.Node, len(r.order))
	for i, id := range r.order {
		out[i] = r.byID[id]
	}
	return out
}

// HandlersFor returns every registered node whose HANDLES set
// intersects sigs, used by the tree builder to resolve an EMITS entry
// into handler children at instantiation time (spec's "Open question
// -- EMITS vs signal children filtering" resolves this to a global
// registry lookup, not the local tree).
func (r *Registry) HandlersFor(sigs []string) []*node.Node {
	var out []*node.Node
	for _, id := range r.order {
		n := r.byID[id]
		if n.HandlesAny(sigs) {
			out = append(out, n)
		}
	}
	return out
}

// suggestID returns the closest registered ID to want by Jaro-Winkler
// similarity, for "unknown ID, did you mean ...?" error messages. It
// returns "" if the registry is empty or nothing is close enough to be
// a plausible typo.
func (r *Registry) suggestID(want string) string {
	best, bestScore := "", 0.0
	jw := metrics.NewJaroWinkler()
	for _, id := range r.order {
		score := strutil.Similarity(want, id, jw)
		if score > bestScore {
			best, bestScore = id, score
		}
	}
	if bestScore < 0.75 {
		return ""
	}
	return best
}

// Validate runs the per-node checks of spec section 4.3 over every
// node in r, accumulating failures on counter without halting on the
// first bad node.
func (r *Registry) Validate(counter *errs.Counter) {
	for _, id := range r.order {
		validateNode(r.byID[id], counter)
	}
}

func validateNode(n *node.Node, counter *errs.Counter) {
	loc := n.Location()
	if n.ID() == "" {
		counter.Add(errs.New(errs.Semantic, loc, "node is missing required key ID"))
	}
	if n.Message() == "" {
		counter.Add(errs.New(errs.Semantic, loc, "node %q is missing required key MESSAGE", n.ID()))
	}

	present := []string{}
	for _, k := range []string{node.KeyExec, node.KeyEmits, node.KeyJobs} {
		if n.Sym.Exists(k) {
			present = append(present, k)
		}
	}
	if len(present) != 1 {
		counter.Add(errs.New(errs.Semantic, loc,
			"node %q must have exactly one of EXEC, EMITS, JOBS (has %v)", n.ID(), present))
	}

	if n.Typ == node.Periodic {
		validatePeriodic(n, counter)
	}
}

func validatePeriodic(n *node.Node, counter *errs.Counter) {
	loc := n.Location()
	vals := n.Sym.Get(node.KeyPeriod)
	if len(vals) != 1 {
		counter.Add(errs.New(errs.Semantic, loc,
			"periodic node %q must have exactly one PERIOD value (has %d)", n.ID(), len(vals)))
		return
	}
	if _, _, err := node.ParsePeriod(vals[0]); err != nil {
		counter.Add(errs.New(errs.Semantic, loc, "periodic node %q: %v", n.ID(), err))
	}
}

// UnknownIDError formats an "unknown ID" LinkError, suggesting the closest
// registered ID when one is plausible.
func (r *Registry) UnknownIDError(loc, id string) error {
	if s := r.suggestID(id); s != "" {
		return errs.New(errs.Link, loc, "unknown ID %q, did you mean %q?", id, s)
	}
	return errs.New(errs.Link, loc, "unknown ID %q", id)
}
