// Copyright (c) 2024, The Kubeka Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package symtab implements the ordered, multi-valued symbol table that
backs every kubeka node. Every stored value is a list of strings (never
nested); a "scalar" is simply a one-element list. Keys carry two
independent axes:

  - class: read-only (name begins with '_') vs. user-settable, and
  - type: the bracket-addressing syntax used to reach into the value
    list (INDEX, ARRAY, COUNT, CONCAT, FORMAT).

The ordering of insertion is preserved so that callers (notably
[symtab.Table.Keys] and [symtab.Table.Dump]) can iterate deterministically,
the same guarantee cogentcore.org/core/base/ordmap.Map provides for its
slice-backed index; symtab adapts that slice+map technique directly rather
than wrapping the generic type, because Table's values have addressing
semantics ordmap has no notion of.
*/
package symtab

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jinzhu/copier"
	"github.com/pelletier/go-toml/v2"

	"github.com/lelanthran/kubeka/internal/errs"
)

// Type selects the addressing mode carried by a bracketed key
// reference, per the node file format's typed key syntax.
type Type int

const (
	// Index addresses a single element: K or K[0] is element 0, K[n]
	// is element n.
	Index Type = iota
	// Array appends a new element: K[].
	Array
	// Count projects the number of elements: K[#]. Read-side only.
	Count
	// Concat projects a space-joined string of all elements: K[*].
	// Read-side only.
	Concat
	// Format projects a bracketed, comma-joined string of all
	// elements: K[@]. Read-side only.
	Format
)

// Ref is a parsed key reference: the bare name plus its addressing type
// and, for Index, the target element.
type Ref struct {
	Name  string
	Type  Type
	Index int
}

// ReadOnly reports whether the referenced key's class is read-only,
// i.e. its name begins with '_'.
func (r Ref) ReadOnly() bool {
	return strings.HasPrefix(r.Name, "_")
}

// ParseRef parses the bracket syntax of a key reference, e.g. "K",
// "K[3]", "K[]", "K[#]", "K[*]", "K[@]".
func ParseRef(raw string) (Ref, error) {
	open := strings.IndexByte(raw, '[')
	if open < 0 {
		return Ref{Name: raw, Type: Index, Index: 0}, nil
	}
	if !strings.HasSuffix(raw, "]") {
		return Ref{}, errs.New(errs.Parse, "", "malformed key reference %q: missing closing ]", raw)
	}
	name := raw[:open]
	inner := raw[open+1 : len(raw)-1]
	switch inner {
	case "":
		return Ref{Name: name, Type: Array}, nil
	case "#":
		return Ref{Name: name, Type: Count}, nil
	case "*":
		return Ref{Name: name, Type: Concat}, nil
	case "@":
		return Ref{Name: name, Type: Format}, nil
	default:
		n, err := strconv.Atoi(inner)
		if err != nil {
			return Ref{}, errs.New(errs.Parse, "", "malformed key reference %q: index must be digits, [], [#], [*] or [@]", raw)
		}
		if n < 0 {
			return Ref{}, errs.New(errs.Parse, "", "malformed key reference %q: negative index", raw)
		}
		return Ref{Name: name, Type: Index, Index: n}, nil
	}
}

// Table is an ordered multi-valued map of key to list-of-strings, with
// read-only protection for keys beginning with '_'.
type Table struct {
	order []string
	index map[string]int
	vals  [][]string
}

// New returns an empty Table ready for use.
func New() *Table {
	return &Table{index: make(map[string]int)}
}

// Copy returns a deep copy of t: the instantiated-node copy required by
// the tree builder when it materializes a source node's symbol table
// into an independently owned instance. Deep-copying the value slices is
// delegated to github.com/jinzhu/copier so each instantiation's edits
// (substitution, COUNTER decrements) never alias the source registry's
// symbol table.
func (t *Table) Copy() *Table {
	if t == nil {
		return New()
	}
	nt := &Table{
		order: append([]string(nil), t.order...),
		index: make(map[string]int, len(t.index)),
	}
	for k, v := range t.index {
		nt.index[k] = v
	}
	if err := copier.CopyWithOption(&nt.vals, &t.vals, copier.Option{DeepCopy: true}); err != nil {
		// copier only fails on type mismatches, which cannot happen
		// between two [][]string; a failure here is a programming error.
		nt.vals = make([][]string, len(t.vals))
		for i, v := range t.vals {
			nt.vals[i] = append([]string(nil), v...)
		}
	}
	return nt
}

// Del removes key entirely from the table, if present.
func (t *Table) Del(key string) {
	i, ok := t.index[key]
	if !ok {
		return
	}
	delete(t.index, key)
	t.order = append(t.order[:i], t.order[i+1:]...)
	t.vals = append(t.vals[:i], t.vals[i+1:]...)
	for k, idx := range t.index {
		if idx > i {
			t.index[k] = idx - 1
		}
	}
}

// Exists reports whether key currently has a value.
func (t *Table) Exists(key string) bool {
	_, ok := t.index[key]
	return ok
}

// Get returns the full value list for key, or nil if absent. The
// returned slice shares storage with the table: assigning to one of its
// elements changes the stored value (the evaluator substitutes in place
// this way), while appending to it does not.
func (t *Table) Get(key string) []string {
	i, ok := t.index[key]
	if !ok {
		return nil
	}
	return t.vals[i]
}

// GetString returns the first element of key's value, or "" if the key
// is absent or its value is empty.
func (t *Table) GetString(key string) string {
	v := t.Get(key)
	if len(v) == 0 {
		return ""
	}
	return v[0]
}

// GetInt parses the first element of key's value as an integer,
// returning 0 if the key is absent.
func (t *Table) GetInt(key string) (int, error) {
	v := t.GetString(key)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

// Keys returns the keys of the table in insertion order.
func (t *Table) Keys() []string {
	return append([]string(nil), t.order...)
}

// Len returns the number of keys in the table.
func (t *Table) Len() int { return len(t.order) }

// parseValueLiteral turns the raw text to the right of '=' or '+=' into
// a value list: a bracketed literal "[a, b, c]" splits on commas with
// each element trimmed, anything else is a single-element list.
func parseValueLiteral(raw string) ([]string, error) {
	if strings.HasPrefix(raw, "[") {
		if !strings.HasSuffix(raw, "]") {
			return nil, errs.New(errs.Parse, "", "malformed bracketed value %q: missing closing ]", raw)
		}
		inner := raw[1 : len(raw)-1]
		if strings.TrimSpace(inner) == "" {
			return []string{}, nil
		}
		parts := strings.Split(inner, ",")
		out := make([]string, len(parts))
		for i, p := range parts {
			out[i] = strings.TrimSpace(p)
		}
		return out, nil
	}
	return []string{strings.TrimSpace(raw)}, nil
}

func (t *Table) addNew(name string, val []string) {
	t.index[name] = len(t.order)
	t.order = append(t.order, name)
	t.vals = append(t.vals, val)
}

// Set implements the set(key, value, force) semantics described in
// spec section 4.1: the bracket syntax of key is parsed to derive class
// and type; read-only keys (leading '_') are rejected unless force is
// true; the raw value is parsed per [parseValueLiteral]; a first write
// must address index 0, and subsequent writes must be INDEX and in
// range, replacing that single element.
func (t *Table) Set(key, rawValue string, force bool) error {
	ref, err := ParseRef(key)
	if err != nil {
		return err
	}
	if ref.ReadOnly() && !force {
		return errs.New(errs.Semantic, "", "key %q is read-only", ref.Name)
	}
	if ref.Type != Index {
		return errs.New(errs.Semantic, "", "key %q: only plain K or K[n] syntax is valid in an assignment", key)
	}
	val, err := parseValueLiteral(rawValue)
	if err != nil {
		return err
	}
	i, exists := t.index[ref.Name]
	if !exists {
		if ref.Index != 0 {
			return errs.New(errs.Semantic, "", "key %q: first write must be to index 0", key)
		}
		t.addNew(ref.Name, val)
		return nil
	}
	cur := t.vals[i]
	if ref.Index >= len(cur) {
		return errs.New(errs.Semantic, "", "key %q: index %d out of range (len %d)", ref.Name, ref.Index, len(cur))
	}
	if len(val) != 1 {
		return errs.New(errs.Semantic, "", "key %q: indexed replacement must be a single value", key)
	}
	cur[ref.Index] = val[0]
	return nil
}

// Append implements the append(key, value, force) semantics of spec
// section 4.1: only INDEX or ARRAY addressing is allowed. K[] appends a
// new element; K[n] concatenates the value onto element n, separated by
// a single space; the list is created as [""] if previously absent.
func (t *Table) Append(key, rawValue string, force bool) error {
	ref, err := ParseRef(key)
	if err != nil {
		return err
	}
	if ref.ReadOnly() && !force {
		return errs.New(errs.Semantic, "", "key %q is read-only", ref.Name)
	}
	if ref.Type != Index && ref.Type != Array {
		return errs.New(errs.Semantic, "", "key %q: only K, K[n] or K[] syntax is valid in an append", key)
	}
	val, err := parseValueLiteral(rawValue)
	if err != nil {
		return err
	}
	i, exists := t.index[ref.Name]
	if !exists {
		t.addNew(ref.Name, []string{""})
		i = t.index[ref.Name]
	}
	cur := t.vals[i]
	if ref.Type == Array {
		cur = append(cur, val...)
		t.vals[i] = cur
		return nil
	}
	if ref.Index >= len(cur) {
		return errs.New(errs.Semantic, "", "key %q: index %d out of range (len %d)", ref.Name, ref.Index, len(cur))
	}
	if len(val) != 1 {
		return errs.New(errs.Semantic, "", "key %q: indexed append must be a single value", key)
	}
	cur[ref.Index] = cur[ref.Index] + " " + val[0]
	return nil
}

// Force sets key to a single-element value regardless of its class,
// the internal path the parser uses to seed read-only keys like
// _FILENAME and _LINE at node creation. User input can never reach
// this path.
func (t *Table) Force(key, value string) {
	i, exists := t.index[key]
	if !exists {
		t.addNew(key, []string{value})
		return
	}
	t.vals[i] = []string{value}
}

// Project resolves the read-side value of a key reference: a plain
// key or K[n] returns the addressed element, K[#] the element count,
// K[*] the space-joined elements, and K[@] a bracketed comma-joined
// projection, matching the evaluator's symbol resolution rules.
func (t *Table) Project(key string) (string, error) {
	ref, err := ParseRef(key)
	if err != nil {
		return "", err
	}
	v, ok := t.index[ref.Name]
	if !ok {
		return "", errs.New(errs.Resolution, "", "unresolved reference to key %q", ref.Name)
	}
	list := t.vals[v]
	switch ref.Type {
	case Index:
		if ref.Index >= len(list) {
			return "", errs.New(errs.Resolution, "", "key %q: index %d out of range (len %d)", ref.Name, ref.Index, len(list))
		}
		return list[ref.Index], nil
	case Count:
		return strconv.Itoa(len(list)), nil
	case Concat:
		return strings.Join(list, " "), nil
	case Format:
		return "[" + strings.Join(list, ", ") + "]", nil
	default:
		return "", errs.New(errs.Resolution, "", "key %q: %v is not a valid read projection", ref.Name, ref.Type)
	}
}

// Dump writes a human-readable rendering of t to w, each key indented
// by indent spaces, matching the original implementation's kbsym_dump
// debugging aid, kept as a first-class operation per spec section 4.1.
func (t *Table) Dump(w io.Writer, indent int) error {
	pad := strings.Repeat(" ", indent)
	for i, k := range t.order {
		if _, err := fmt.Fprintf(w, "%s%s = [%s]\n", pad, k, strings.Join(t.vals[i], ", ")); err != nil {
			return err
		}
	}
	return nil
}

// DumpTOML renders t as a TOML table of key -> array-of-strings, an
// alternative structured format to [Table.Dump] suited to machine
// consumption (e.g. `kubeka --lint --format=toml`).
func (t *Table) DumpTOML(w io.Writer) error {
	m := make(map[string][]string, len(t.order))
	for i, k := range t.order {
		m[k] = t.vals[i]
	}
	enc := toml.NewEncoder(w)
	return enc.Encode(m)
}
