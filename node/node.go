// Copyright (c) 2024, The Kubeka Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package node defines the declarative unit of work kubeka trees are
// built from: its type, its well-known symbol-table keys, and the
// ownership shape (children own nothing of their parent) used by both
// the flat source registry and instantiated trees. The parent/child
// split into separate ownership (children) and lookup (a non-owning
// parent handle) mirrors cogentcore.org/core/tree.NodeBase's Kids/Par
// shape, generalized to kubeka's two distinct child roles.
package node

import (
	"fmt"

	"github.com/lelanthran/kubeka/symtab"
)

// Well-known symbol table keys, see the glossary in spec.md.
const (
	KeyID       = "ID"
	KeyMessage  = "MESSAGE"
	KeyJobs     = "JOBS"
	KeyExec     = "EXEC"
	KeyEmits    = "EMITS"
	KeyHandles  = "HANDLES"
	KeyRollback = "ROLLBACK"
	KeyWDir     = "WDIR"
	KeyWUser    = "WUSER"
	KeyPeriod   = "PERIOD"
	KeyCounter  = "COUNTER"

	KeyFilename = "_FILENAME"
	KeyLine     = "_LINE"
)

// Type is the tagged discriminant of a node: PERIODIC, JOB, or
// ENTRYPOINT, used exhaustively by validation and by the scheduler.
type Type int

const (
	// Job is a step that runs as part of a parent's ordered jobs list.
	Job Type = iota
	// Entrypoint is a runnable root with no schedule, triggered by a
	// single-shot CLI invocation.
	Entrypoint
	// Periodic is a runnable root fired on a timer by a scheduler
	// worker.
	Periodic
)

func (t Type) String() string {
	switch t {
	case Job:
		return "job"
	case Entrypoint:
		return "entrypoint"
	case Periodic:
		return "periodic"
	default:
		return "unknown"
	}
}

// ParseType maps a "[typename]" node header to a Type.
func ParseType(s string) (Type, bool) {
	switch s {
	case "job":
		return Job, true
	case "entrypoint":
		return Entrypoint, true
	case "periodic":
		return Periodic, true
	default:
		return 0, false
	}
}

// Flag is a bitset of per-node state flags.
type Flag uint32

const (
	// Instantiated marks a node that the tree builder has successfully
	// materialized (children resolved, no cycle detected).
	Instantiated Flag = 1 << iota
)

// Has reports whether f is set on the node's flags.
func (n *Node) Has(f Flag) bool { return n.Flags&f != 0 }

// Node is a declarative unit of work, either a source node held by the
// flat registry or a tree node materialized by the tree builder. Jobs
// and Handlers are two distinct, ordered owned-child lists fired
// separately by the executor; Parent is a non-owning back-reference
// used only for upward symbol lookup and ancestor-cycle search.
type Node struct {
	Typ      Type
	Sym      *symtab.Table
	Parent   *Node
	Jobs     []*Node
	Handlers []*Node
	Flags    Flag
}

// New returns an empty node of the given type with an initialized,
// empty symbol table.
func New(typ Type) *Node {
	return &Node{Typ: typ, Sym: symtab.New()}
}

// ID returns the node's ID key, or "" if unset.
func (n *Node) ID() string { return n.Sym.GetString(KeyID) }

// Message returns the node's MESSAGE key, or "" if unset.
func (n *Node) Message() string { return n.Sym.GetString(KeyMessage) }

// Filename returns the _FILENAME the node was parsed from.
func (n *Node) Filename() string { return n.Sym.GetString(KeyFilename) }

// Line returns the _LINE the node's header appeared on.
func (n *Node) Line() string { return n.Sym.GetString(KeyLine) }

// Location renders "<fname>:<line>" for error messages, per spec
// section 7's requirement that every parse/semantic/link error carry
// its source location.
func (n *Node) Location() string {
	return fmt.Sprintf("%s:%s", n.Filename(), n.Line())
}

// AddJob appends child to n's ordered job-children list and sets
// child's Parent, establishing the invariant that n owns child.
func (n *Node) AddJob(child *Node) {
	child.Parent = n
	n.Jobs = append(n.Jobs, child)
}

// AddHandler appends child to n's ordered handler-children list and
// sets child's Parent, establishing the invariant that n owns child.
func (n *Node) AddHandler(child *Node) {
	child.Parent = n
	n.Handlers = append(n.Handlers, child)
}

// Emits returns the set of signal names n's EMITS key lists.
func (n *Node) Emits() []string { return n.Sym.Get(KeyEmits) }

// Handles returns the set of signal names n's HANDLES key lists.
func (n *Node) Handles() []string { return n.Sym.Get(KeyHandles) }

// HandlesAny reports whether n's HANDLES set intersects sigs.
func (n *Node) HandlesAny(sigs []string) bool {
	want := make(map[string]bool, len(sigs))
	for _, s := range sigs {
		want[s] = true
	}
	for _, h := range n.Handles() {
		if want[h] {
			return true
		}
	}
	return false
}

// String renders a short diagnostic identifier for n, used in error
// messages that dump both sides of a cycle or a duplicate ID.
func (n *Node) String() string {
	return fmt.Sprintf("%s[%s] (%s)", n.Typ, n.ID(), n.Location())
}
