// Copyright (c) 2024, The Kubeka Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package node

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/lelanthran/kubeka/internal/errs"
)

// maxLineBytes is the 1 MiB per-line cap described in spec section 4.2.
const maxLineBytes = 1 << 20

// ReadFile reads one *.kubeka file into a flat list of nodes, classifying
// each line as a node header ("[type]"), a "NAME = VALUE" set, or a
// "NAME += VALUE" append, and populating each node's symbol table as it
// goes. Errors and warnings are recorded on counter rather than
// returned directly, so that a malformed line does not prevent the rest
// of the file -- or the rest of the file set -- from being processed.
// ReadFile returns true if it recorded neither an error nor a warning.
func ReadFile(fname string, counter *errs.Counter) ([]*Node, bool) {
	data, err := os.ReadFile(fname)
	if err != nil {
		counter.Add(errs.New(errs.Parse, fname, "cannot read file: %v", err))
		return nil, false
	}

	lines := strings.Split(string(data), "\n")
	endsWithNewline := len(lines) > 0 && lines[len(lines)-1] == ""
	if endsWithNewline {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		counter.Add(errs.New(errs.Warning, fname, "empty file"))
		return nil, false
	}

	ok := true
	var out []*Node
	var current *Node

	for i, raw := range lines {
		lineNo := i + 1
		loc := fmt.Sprintf("%s:%d", fname, lineNo)

		if !endsWithNewline && i == len(lines)-1 {
			counter.Add(errs.New(errs.Parse, loc, "missing trailing newline (exceeded line cap)"))
			ok = false
			continue
		}
		if len(raw) > maxLineBytes {
			counter.Add(errs.New(errs.Parse, loc, "line exceeds %d byte cap", maxLineBytes))
			ok = false
			continue
		}
		if strings.ContainsRune(raw, '\r') {
			counter.Add(errs.New(errs.Parse, loc, "illegal carriage return in line (ILSEQ)"))
			ok = false
			continue
		}

		line := stripComment(raw)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "["):
			n, err := openNode(line, fname, lineNo)
			if err != nil {
				counter.Add(errs.New(errs.Parse, loc, "%v", err))
				ok = false
				continue
			}
			out = append(out, n)
			current = n

		case strings.Contains(line, "+="):
			name, value, found := strings.Cut(line, "+=")
			if !found {
				counter.Add(errs.New(errs.Parse, loc, "malformed append syntax"))
				ok = false
				continue
			}
			if current == nil {
				counter.Add(errs.New(errs.Parse, loc, "%q outside of any node", line))
				ok = false
				continue
			}
			if err := current.Sym.Append(strings.TrimSpace(name), strings.TrimSpace(value), false); err != nil {
				counter.Add(locate(err, loc))
				ok = false
			}

		case strings.Contains(line, "="):
			name, value, found := strings.Cut(line, "=")
			if !found {
				counter.Add(errs.New(errs.Parse, loc, "malformed assignment syntax"))
				ok = false
				continue
			}
			if current == nil {
				counter.Add(errs.New(errs.Parse, loc, "%q outside of any node", line))
				ok = false
				continue
			}
			if err := current.Sym.Set(strings.TrimSpace(name), strings.TrimSpace(value), false); err != nil {
				counter.Add(locate(err, loc))
				ok = false
			}

		default:
			counter.Add(errs.New(errs.Warning, loc, "unrecognized pattern: %q", line))
			ok = false
		}
	}
	return out, ok
}

// stripComment removes everything from the first '#' onward, including
// a '#' inside quotes. Per the design notes, quote/escape-aware scanning
// is treated as an open question the original never resolved; this is
// the simple, unquoted version spec.md requires.
func stripComment(s string) string {
	if i := strings.IndexByte(s, '#'); i >= 0 {
		return s[:i]
	}
	return s
}

// openNode parses a "[typename]" header line into a freshly created
// node with _FILENAME and _LINE force-seeded, per the read-only
// protection invariant: user input can never set these two keys.
func openNode(line, fname string, lineNo int) (*Node, error) {
	if !strings.HasSuffix(line, "]") {
		return nil, fmt.Errorf("missing closing ] in node header %q", line)
	}
	typeName := strings.TrimSpace(line[1 : len(line)-1])
	typ, ok := ParseType(typeName)
	if !ok {
		return nil, fmt.Errorf("unknown node type %q", typeName)
	}
	n := New(typ)
	n.Sym.Force(KeyFilename, fname)
	n.Sym.Force(KeyLine, strconv.Itoa(lineNo))
	return n, nil
}

// locate rewrites an error produced deeper in the symbol table (which
// has no notion of file/line) so it carries the parser's location,
// while preserving its original kind.
func locate(err error, loc string) error {
	var le *errs.Located
	if e, ok := err.(*errs.Located); ok {
		le = e
	}
	if le == nil {
		return errs.New(errs.Semantic, loc, "%v", err)
	}
	return &errs.Located{Kind: le.Kind, Location: loc, Err: le.Err}
}
