// Copyright (c) 2024, The Kubeka Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package symtab_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lelanthran/kubeka/symtab"
)

func TestSetCreatesAndReplaces(t *testing.T) {
	tb := symtab.New()
	require.NoError(t, tb.Set("ID", "root", false))
	assert.Equal(t, "root", tb.GetString("ID"))

	require.NoError(t, tb.Set("ID[0]", "root2", false))
	assert.Equal(t, "root2", tb.GetString("ID"))
}

func TestSetRequiresIndexZeroFirst(t *testing.T) {
	tb := symtab.New()
	err := tb.Set("ID[2]", "x", false)
	assert.Error(t, err)
}

func TestSetOutOfRange(t *testing.T) {
	tb := symtab.New()
	require.NoError(t, tb.Set("ID", "a", false))
	err := tb.Set("ID[3]", "b", false)
	assert.Error(t, err)
}

func TestReadOnlyProtection(t *testing.T) {
	tb := symtab.New()
	err := tb.Set("_FILENAME", "x.kubeka", false)
	assert.Error(t, err)
	assert.False(t, tb.Exists("_FILENAME"))

	require.NoError(t, tb.Set("_FILENAME", "x.kubeka", true))
	assert.Equal(t, "x.kubeka", tb.GetString("_FILENAME"))

	err = tb.Set("_FILENAME", "y.kubeka", false)
	assert.Error(t, err)
	assert.Equal(t, "x.kubeka", tb.GetString("_FILENAME"))
}

func TestAppendArrayAndIndex(t *testing.T) {
	tb := symtab.New()
	require.NoError(t, tb.Append("JOBS[]", "a", false))
	require.NoError(t, tb.Append("JOBS[]", "b", false))
	// an absent key is created as [""] before the first append
	assert.Equal(t, []string{"", "a", "b"}, tb.Get("JOBS"))

	require.NoError(t, tb.Append("JOBS[0]", "suffix", false))
	assert.Equal(t, " suffix", tb.Get("JOBS")[0])
}

func TestAppendCreatesEmptyFirst(t *testing.T) {
	tb := symtab.New()
	require.NoError(t, tb.Append("MESSAGE[0]", "hello", false))
	assert.Equal(t, " hello", tb.GetString("MESSAGE"))
}

func TestBracketedValueLiteral(t *testing.T) {
	tb := symtab.New()
	require.NoError(t, tb.Set("EMITS", "[sig1, sig2, sig3]", false))
	assert.Equal(t, []string{"sig1", "sig2", "sig3"}, tb.Get("EMITS"))
}

func TestProjections(t *testing.T) {
	tb := symtab.New()
	require.NoError(t, tb.Set("EMITS", "[sig1, sig2, sig3]", false))

	v, err := tb.Project("EMITS[#]")
	require.NoError(t, err)
	assert.Equal(t, "3", v)

	v, err = tb.Project("EMITS[*]")
	require.NoError(t, err)
	assert.Equal(t, "sig1 sig2 sig3", v)

	v, err = tb.Project("EMITS[@]")
	require.NoError(t, err)
	assert.Equal(t, "[sig1, sig2, sig3]", v)

	v, err = tb.Project("EMITS[1]")
	require.NoError(t, err)
	assert.Equal(t, "sig2", v)
}

func TestProjectUnresolved(t *testing.T) {
	tb := symtab.New()
	_, err := tb.Project("MISSING")
	assert.Error(t, err)
}

func TestCopyIsDeep(t *testing.T) {
	tb := symtab.New()
	require.NoError(t, tb.Set("JOBS", "[a, b]", false))

	cp := tb.Copy()
	require.NoError(t, cp.Set("JOBS[0]", "z", false))

	assert.Equal(t, "a", tb.GetString("JOBS"))
	assert.Equal(t, "z", cp.GetString("JOBS"))
}

func TestDel(t *testing.T) {
	tb := symtab.New()
	require.NoError(t, tb.Set("ID", "a", false))
	require.NoError(t, tb.Set("MESSAGE", "m", false))
	tb.Del("ID")
	assert.False(t, tb.Exists("ID"))
	assert.Equal(t, []string{"MESSAGE"}, tb.Keys())
}

func TestDump(t *testing.T) {
	tb := symtab.New()
	require.NoError(t, tb.Set("ID", "a", false))
	buf := &bytes.Buffer{}
	require.NoError(t, tb.Dump(buf, 2))
	assert.Equal(t, "  ID = [a]\n", buf.String())
}

func TestDumpTOML(t *testing.T) {
	tb := symtab.New()
	require.NoError(t, tb.Set("ID", "a", false))
	buf := &bytes.Buffer{}
	require.NoError(t, tb.DumpTOML(buf))
	assert.Contains(t, buf.String(), "ID = ")
}

func TestRoundTripScalar(t *testing.T) {
	for _, v := range []string{"hello", "a b c", "123", "true"} {
		tb := symtab.New()
		require.NoError(t, tb.Set("K", v, false))
		assert.Equal(t, v, tb.GetString("K"))
	}
}
