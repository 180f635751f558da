// Copyright (c) 2024, The Kubeka Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package registry

import (
	"io"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// LintEntry is one node's summary in a structured lint report.
type LintEntry struct {
	ID       string   `yaml:"id" toml:"id"`
	Type     string   `yaml:"type" toml:"type"`
	Location string   `yaml:"location" toml:"location"`
	Keys     []string `yaml:"keys" toml:"keys"`
}

// LintReport is the machine-readable rendering of a registry's
// contents for `--lint --format=yaml` or `--lint --format=toml`, an
// alternative to the plain-text summary printed by default.
type LintReport struct {
	NErrors   int         `yaml:"nerrors" toml:"nerrors"`
	NWarnings int         `yaml:"nwarnings" toml:"nwarnings"`
	Nodes     []LintEntry `yaml:"nodes" toml:"nodes"`
}

// Report builds a LintReport describing r's contents alongside
// counter's accumulated totals.
func (r *Registry) Report(nerrors, nwarnings int) LintReport {
	rep := LintReport{NErrors: nerrors, NWarnings: nwarnings}
	for _, id := range r.order {
		n := r.byID[id]
		rep.Nodes = append(rep.Nodes, LintEntry{
			ID:       n.ID(),
			Type:     n.Typ.String(),
			Location: n.Location(),
			Keys:     n.Sym.Keys(),
		})
	}
	return rep
}

// WriteYAML renders rep as YAML to w.
func (rep LintReport) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(rep)
}

// WriteTOML renders rep as TOML to w, the structured alternative
// symtab.Table.DumpTOML also offers for a table's own contents.
func (rep LintReport) WriteTOML(w io.Writer) error {
	return toml.NewEncoder(w).Encode(rep)
}
