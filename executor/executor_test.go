// Copyright (c) 2024, The Kubeka Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package executor_test

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lelanthran/kubeka/executor"
	"github.com/lelanthran/kubeka/internal/errs"
	"github.com/lelanthran/kubeka/node"
)

func init() {
	os.Setenv("KUBEKA_NO_COLOR", "1")
}

func mkNode(t *testing.T, typ node.Type, kv map[string]string) *node.Node {
	t.Helper()
	n := node.New(typ)
	n.Sym.Force(node.KeyFilename, "f")
	n.Sym.Force(node.KeyLine, "1")
	for k, v := range kv {
		require.NoError(t, n.Sym.Set(k, v, false))
	}
	return n
}

func TestRunExecSuccess(t *testing.T) {
	n := mkNode(t, node.Job, map[string]string{"ID": "a", "MESSAGE": "m", "EXEC": "echo hi"})
	var buf bytes.Buffer
	ex := executor.New(&buf, &errs.Counter{})
	rc := ex.Run(n)
	assert.Equal(t, 0, rc)
	assert.Contains(t, buf.String(), "::STARTING:a:m")
	assert.Contains(t, buf.String(), "::COMMAND:echo hi:0:")
}

func TestRunExecFailurePropagates(t *testing.T) {
	n := mkNode(t, node.Job, map[string]string{"ID": "a", "MESSAGE": "m", "EXEC": "false"})
	var buf bytes.Buffer
	ex := executor.New(&buf, &errs.Counter{})
	rc := ex.Run(n)
	assert.Equal(t, 1, rc)
}

func TestRunMultipleExecOrsExitCodes(t *testing.T) {
	n := mkNode(t, node.Job, map[string]string{"ID": "a", "MESSAGE": "m"})
	require.NoError(t, n.Sym.Set("EXEC", "[true, true, false]", false))
	var buf bytes.Buffer
	ex := executor.New(&buf, &errs.Counter{})
	rc := ex.Run(n)
	assert.Equal(t, 1, rc)
}

func TestRunJobsSequentialSuccess(t *testing.T) {
	root := mkNode(t, node.Entrypoint, map[string]string{"ID": "root", "MESSAGE": "m"})
	a := mkNode(t, node.Job, map[string]string{"ID": "a", "MESSAGE": "m", "EXEC": "true"})
	b := mkNode(t, node.Job, map[string]string{"ID": "b", "MESSAGE": "m", "EXEC": "true"})
	root.AddJob(a)
	root.AddJob(b)

	var buf bytes.Buffer
	ex := executor.New(&buf, &errs.Counter{})
	rc := ex.Run(root)
	assert.Equal(t, 0, rc)
}

func TestRunJobsRollbackReverseOrder(t *testing.T) {
	root := mkNode(t, node.Entrypoint, map[string]string{"ID": "root", "MESSAGE": "m"})
	j1 := mkNode(t, node.Job, map[string]string{"ID": "j1", "MESSAGE": "m", "EXEC": "true", "ROLLBACK": "echo rb1"})
	j2 := mkNode(t, node.Job, map[string]string{"ID": "j2", "MESSAGE": "m", "EXEC": "true", "ROLLBACK": "echo rb2"})
	j3 := mkNode(t, node.Job, map[string]string{"ID": "j3", "MESSAGE": "m", "EXEC": "false"})
	root.AddJob(j1)
	root.AddJob(j2)
	root.AddJob(j3)

	var buf bytes.Buffer
	ex := executor.New(&buf, &errs.Counter{})
	rc := ex.Run(root)
	assert.Equal(t, 1, rc)

	out := buf.String()
	cmdIdx := indexOf(out, "::COMMAND:false:")
	rb2Idx := indexOf(out, "::ROLLBACK:echo rb2:")
	rb1Idx := indexOf(out, "::ROLLBACK:echo rb1:")
	require.True(t, cmdIdx >= 0 && rb2Idx >= 0 && rb1Idx >= 0)
	assert.Less(t, cmdIdx, rb2Idx)
	assert.Less(t, rb2Idx, rb1Idx)
}

func TestRunJobsMissingRollbackIsWarningNotError(t *testing.T) {
	root := mkNode(t, node.Entrypoint, map[string]string{"ID": "root", "MESSAGE": "m"})
	j1 := mkNode(t, node.Job, map[string]string{"ID": "j1", "MESSAGE": "m", "EXEC": "true", "ROLLBACK": "echo rb1"})
	j2 := mkNode(t, node.Job, map[string]string{"ID": "j2", "MESSAGE": "m", "EXEC": "false"})
	root.AddJob(j1)
	root.AddJob(j2)

	var buf bytes.Buffer
	c := &errs.Counter{}
	ex := executor.New(&buf, c)
	rc := ex.Run(root)
	assert.Equal(t, 1, rc)
	assert.Equal(t, 0, c.NErrors())
	assert.Equal(t, 1, c.NWarnings(), "only j2 (the failing job itself) is missing ROLLBACK")
}

func TestRunHandlersFilteredByEmits(t *testing.T) {
	root := mkNode(t, node.Entrypoint, map[string]string{"ID": "root", "MESSAGE": "m", "EMITS": "built"})
	h := mkNode(t, node.Job, map[string]string{"ID": "h", "MESSAGE": "m", "EXEC": "echo handled", "HANDLES": "built"})
	root.AddHandler(h)

	var buf bytes.Buffer
	ex := executor.New(&buf, &errs.Counter{})
	rc := ex.Run(root)
	assert.Equal(t, 0, rc)
	assert.Contains(t, buf.String(), "::COMMAND:echo handled:0:")
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
