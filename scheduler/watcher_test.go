// Copyright (c) 2024, The Kubeka Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scheduler_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lelanthran/kubeka/scheduler"
)

func TestWatcherSignalsOnKubekaWrite(t *testing.T) {
	dir := t.TempDir()
	fname := filepath.Join(dir, "a.kubeka")
	require.NoError(t, os.WriteFile(fname, []byte("x"), 0o644))

	w, err := scheduler.NewWatcher([]string{dir})
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(fname, []byte("y"), 0o644))

	select {
	case changed := <-w.Reload:
		assert.Equal(t, fname, changed)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload signal")
	}
}

func TestWatcherIgnoresNonKubekaFiles(t *testing.T) {
	dir := t.TempDir()
	fname := filepath.Join(dir, "readme.txt")
	require.NoError(t, os.WriteFile(fname, []byte("x"), 0o644))

	w, err := scheduler.NewWatcher([]string{dir})
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(fname, []byte("y"), 0o644))

	select {
	case changed := <-w.Reload:
		t.Fatalf("unexpected reload signal for %s", changed)
	case <-time.After(500 * time.Millisecond):
	}
}

func TestNewWatcherErrorsOnMissingPath(t *testing.T) {
	_, err := scheduler.NewWatcher([]string{filepath.Join(t.TempDir(), "does-not-exist")})
	assert.Error(t, err)
}
