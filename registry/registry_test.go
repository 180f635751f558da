// Copyright (c) 2024, The Kubeka Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package registry_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lelanthran/kubeka/internal/errs"
	"github.com/lelanthran/kubeka/node"
	"github.com/lelanthran/kubeka/registry"
)

func mkNode(t *testing.T, typ node.Type, fname string, line int, kv map[string]string) *node.Node {
	t.Helper()
	n := node.New(typ)
	n.Sym.Force(node.KeyFilename, fname)
	n.Sym.Force(node.KeyLine, "0")
	_ = line
	for k, v := range kv {
		require.NoError(t, n.Sym.Set(k, v, false))
	}
	return n
}

func TestCoalesceDedupIdempotent(t *testing.T) {
	a := mkNode(t, node.Job, "f1", 1, map[string]string{"ID": "x", "MESSAGE": "m", "EXEC": "echo"})
	b := mkNode(t, node.Job, "f2", 2, map[string]string{"ID": "x", "MESSAGE": "m2", "EXEC": "echo"})

	c1 := &errs.Counter{}
	reg1 := registry.Coalesce([]*node.Node{a, b}, c1)
	assert.Equal(t, 1, c1.NErrors())
	assert.Len(t, reg1.Nodes(), 1)

	// coalescing an already-deduped set again changes nothing (P4)
	c2 := &errs.Counter{}
	reg2 := registry.Coalesce(reg1.Nodes(), c2)
	assert.Equal(t, 0, c2.NErrors())
	assert.Equal(t, reg1.Nodes()[0].ID(), reg2.Nodes()[0].ID())
	assert.Len(t, reg2.Nodes(), len(reg1.Nodes()))
}

func TestValidateXOR(t *testing.T) {
	bad := mkNode(t, node.Job, "f", 1, map[string]string{
		"ID": "a", "MESSAGE": "m", "EXEC": "echo", "JOBS": "b",
	})
	c := &errs.Counter{}
	reg := registry.Coalesce([]*node.Node{bad}, c)
	reg.Validate(c)
	assert.Equal(t, 1, c.NErrors())
}

func TestValidateMissingFields(t *testing.T) {
	bad := node.New(node.Job)
	bad.Sym.Force(node.KeyFilename, "f")
	bad.Sym.Force(node.KeyLine, "1")
	require.NoError(t, bad.Sym.Set("EXEC", "echo", false))

	c := &errs.Counter{}
	reg := registry.Coalesce([]*node.Node{bad}, c)
	reg.Validate(c)
	assert.GreaterOrEqual(t, c.NErrors(), 1)
}

func TestValidatePeriodic(t *testing.T) {
	good := mkNode(t, node.Periodic, "f", 1, map[string]string{
		"ID": "p", "MESSAGE": "m", "EXEC": "echo", "PERIOD": "3h",
	})
	c := &errs.Counter{}
	reg := registry.Coalesce([]*node.Node{good}, c)
	reg.Validate(c)
	assert.Equal(t, 0, c.NErrors())

	bad := mkNode(t, node.Periodic, "f", 2, map[string]string{
		"ID": "p2", "MESSAGE": "m", "EXEC": "echo", "PERIOD": "nope",
	})
	c2 := &errs.Counter{}
	reg2 := registry.Coalesce([]*node.Node{bad}, c2)
	reg2.Validate(c2)
	assert.Equal(t, 1, c2.NErrors())
}

func TestHandlersFor(t *testing.T) {
	h := mkNode(t, node.Job, "f", 1, map[string]string{
		"ID": "h", "MESSAGE": "m", "EXEC": "echo", "HANDLES": "sig1",
	})
	c := &errs.Counter{}
	reg := registry.Coalesce([]*node.Node{h}, c)
	found := reg.HandlersFor([]string{"sig1", "sig2"})
	require.Len(t, found, 1)
	assert.Equal(t, "h", found[0].ID())
}

func TestUnknownIDSuggestion(t *testing.T) {
	a := mkNode(t, node.Job, "f", 1, map[string]string{"ID": "build-release", "MESSAGE": "m", "EXEC": "echo"})
	c := &errs.Counter{}
	reg := registry.Coalesce([]*node.Node{a}, c)
	err := reg.UnknownIDError("f:1", "build-relese")
	assert.ErrorContains(t, err, "build-release")
}

func TestReportYAML(t *testing.T) {
	a := mkNode(t, node.Job, "f", 1, map[string]string{"ID": "a", "MESSAGE": "m", "EXEC": "echo"})
	c := &errs.Counter{}
	reg := registry.Coalesce([]*node.Node{a}, c)

	rep := reg.Report(0, 0)
	require.Len(t, rep.Nodes, 1)
	assert.Equal(t, "a", rep.Nodes[0].ID)

	var buf bytes.Buffer
	require.NoError(t, rep.WriteYAML(&buf))
	assert.Contains(t, buf.String(), "id: a")
}

func TestReportTOML(t *testing.T) {
	a := mkNode(t, node.Job, "f", 1, map[string]string{"ID": "a", "MESSAGE": "m", "EXEC": "echo"})
	c := &errs.Counter{}
	reg := registry.Coalesce([]*node.Node{a}, c)

	rep := reg.Report(0, 0)
	var buf bytes.Buffer
	require.NoError(t, rep.WriteTOML(&buf))
	assert.Contains(t, buf.String(), `id = 'a'`)
}
