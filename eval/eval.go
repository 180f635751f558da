// Copyright (c) 2024, The Kubeka Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package eval implements the evaluator (stage E): a post-order walk of
an instantiated tree that resolves every "$<...>" reference in every
node's symbol table, writing the substituted value back in place. The
two-byte open / single-byte close grammar and the "stop at the first
unterminated reference" error policy mirror node/parser.go's own
line-oriented scanning rather than a full parser generator, since the
language is deliberately not an expression language (spec's own
Non-goals rule that out).
*/
package eval

import (
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"github.com/lelanthran/kubeka/internal/errs"
	"github.com/lelanthran/kubeka/node"
)

const (
	openSeq    = "$<"
	closeByte  = '>'
	maxSubPass = 64
)

// Builtin is a named function callable from a config value via
// "$<name args...>", receiving the raw argument string and the node
// the call appears on. Extensible: callers register additional entries
// before running Eval.
type Builtin func(args string, n *node.Node) (string, error)

// DefaultBuiltins returns the fixed dispatch table spec section 4.5
// requires at minimum: setenv and getenv, the two trivial environment
// built-ins the config language treats as external collaborators.
func DefaultBuiltins() map[string]Builtin {
	return map[string]Builtin{
		"setenv": builtinSetenv,
		"getenv": builtinGetenv,
	}
}

// Eval walks root post-order (handlers, then jobs, then root itself)
// resolving every "$<...>" reference in the value list of every key
// except the read-only '_' keys, which are left untouched, against
// builtins and the parent-chain symbol lookup, per spec section 4.5.
// Failures are recorded on counter; Eval keeps walking the rest of the
// tree rather than aborting on the first unresolved reference, so a
// lint run reports every problem in one pass.
func Eval(root *node.Node, builtins map[string]Builtin, counter *errs.Counter) {
	for _, h := range root.Handlers {
		Eval(h, builtins, counter)
	}
	for _, j := range root.Jobs {
		Eval(j, builtins, counter)
	}
	evalNode(root, builtins, counter)
}

func evalNode(n *node.Node, builtins map[string]Builtin, counter *errs.Counter) {
	for _, key := range n.Sym.Keys() {
		if strings.HasPrefix(key, "_") {
			continue
		}
		vals := n.Sym.Get(key)
		for i, v := range vals {
			resolved, err := resolveFixedPoint(v, n, builtins)
			if err != nil {
				counter.Add(errs.New(errs.Resolution, n.Location(), "key %q: %v", key, err))
				continue
			}
			vals[i] = resolved
		}
	}
}

// resolveFixedPoint repeatedly resolves the next "$<...>" reference in
// s until none remain, bounding the loop at maxSubPass so a built-in
// that returns text containing another reference cannot loop forever.
func resolveFixedPoint(s string, n *node.Node, builtins map[string]Builtin) (string, error) {
	for pass := 0; pass < maxSubPass; pass++ {
		next, changed, err := resolveOnce(s, n, builtins)
		if err != nil {
			return "", err
		}
		if !changed {
			return next, nil
		}
		s = next
	}
	return "", errs.New(errs.Resolution, n.Location(), "too many substitution passes (possible reference loop)")
}

func resolveOnce(s string, n *node.Node, builtins map[string]Builtin) (string, bool, error) {
	start := strings.Index(s, openSeq)
	if start < 0 {
		return s, false, nil
	}
	rest := s[start+len(openSeq):]
	end := strings.IndexByte(rest, closeByte)
	if end < 0 {
		return "", false, errs.New(errs.Resolution, n.Location(), "unterminated reference %q: missing closing '>'", s[start:])
	}
	ref := rest[:end]
	tail := rest[end+1:]

	value, err := resolveRef(ref, n, builtins)
	if err != nil {
		return "", false, err
	}
	return s[:start] + value + tail, true, nil
}

// resolveRef dispatches a single reference body (the text between
// "$<" and ">") to either a built-in call, detected by the presence of
// whitespace, or a symbol lookup up the parent chain.
func resolveRef(ref string, n *node.Node, builtins map[string]Builtin) (string, error) {
	if name, args, isCall := strings.Cut(ref, " "); isCall {
		fn, ok := builtins[name]
		if !ok {
			if s := suggestBuiltin(name, builtins); s != "" {
				return "", errs.New(errs.Resolution, n.Location(),
					"call to undefined built-in %q, did you mean %q?", name, s)
			}
			return "", errs.New(errs.Resolution, n.Location(), "call to undefined built-in %q", name)
		}
		return fn(strings.TrimSpace(args), n)
	}
	return projectUpChain(strings.TrimSpace(ref), n)
}

// projectUpChain looks up a key reference in n's symbol table, walking
// to Parent on a miss, per spec section 4.5's "symbol resolution walks
// the parent chain" rule.
func projectUpChain(ref string, n *node.Node) (string, error) {
	for cur := n; cur != nil; cur = cur.Parent {
		v, err := cur.Sym.Project(ref)
		if err == nil {
			return v, nil
		}
		if cur.Parent == nil {
			return "", err
		}
	}
	return "", errs.New(errs.Resolution, n.Location(), "unresolved reference to key %q", ref)
}

// suggestBuiltin returns the closest registered built-in name to want
// by Jaro-Winkler similarity, the same "did you mean ...?" treatment
// registry.Registry gives unknown IDs, applied here to unknown
// built-in calls.
func suggestBuiltin(want string, builtins map[string]Builtin) string {
	best, bestScore := "", 0.0
	jw := metrics.NewJaroWinkler()
	for name := range builtins {
		score := strutil.Similarity(want, name, jw)
		if score > bestScore {
			best, bestScore = name, score
		}
	}
	if bestScore < 0.6 {
		return ""
	}
	return best
}
