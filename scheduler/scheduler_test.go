// Copyright (c) 2024, The Kubeka Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scheduler_test

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lelanthran/kubeka/executor"
	"github.com/lelanthran/kubeka/internal/errs"
	"github.com/lelanthran/kubeka/node"
	"github.com/lelanthran/kubeka/scheduler"
)

func init() {
	os.Setenv("KUBEKA_NO_COLOR", "1")
}

func mkNode(t *testing.T, kv map[string]string) *node.Node {
	t.Helper()
	n := node.New(node.Periodic)
	n.Sym.Force(node.KeyFilename, "f")
	n.Sym.Force(node.KeyLine, "1")
	for k, v := range kv {
		require.NoError(t, n.Sym.Set(k, v, false))
	}
	return n
}

func TestWorkerTicksAndDecrementsCounter(t *testing.T) {
	root := mkNode(t, map[string]string{
		"ID": "tick", "MESSAGE": "m", "EXEC": "true", "PERIOD": "1s", "COUNTER": "2",
	})
	var buf bytes.Buffer
	ex := executor.New(&buf, &errs.Counter{})
	w := scheduler.NewWorker(root, ex)

	require.NoError(t, w.Launch())
	time.Sleep(2500 * time.Millisecond)
	w.Cancel()

	status := w.Status()
	assert.True(t, status.Completed)
	assert.Equal(t, 0, status.ExitCode)
	assert.Equal(t, "0", root.Sym.GetString("COUNTER"))
}

func TestWorkerCancelIsPromptWithoutFiring(t *testing.T) {
	root := mkNode(t, map[string]string{
		"ID": "slow", "MESSAGE": "m", "EXEC": "true", "PERIOD": "1h",
	})
	var buf bytes.Buffer
	ex := executor.New(&buf, &errs.Counter{})
	w := scheduler.NewWorker(root, ex)

	require.NoError(t, w.Launch())
	start := time.Now()
	w.Cancel()
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 2*time.Second)
	assert.False(t, bytes.Contains(buf.Bytes(), []byte("::STARTING")))
}

func TestWorkerLaunchRejectsBadPeriod(t *testing.T) {
	root := mkNode(t, map[string]string{
		"ID": "bad", "MESSAGE": "m", "EXEC": "true", "PERIOD": "nonsense",
	})
	var buf bytes.Buffer
	ex := executor.New(&buf, &errs.Counter{})
	w := scheduler.NewWorker(root, ex)
	assert.Error(t, w.Launch())
}
