// Copyright (c) 2024, The Kubeka Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eval

import (
	"os"
	"strings"

	"github.com/lelanthran/kubeka/internal/errs"
	"github.com/lelanthran/kubeka/node"
)

// builtinSetenv implements "$<setenv NAME=VALUE>", mutating the
// process environment per spec section 4.9's note that this built-in
// is globally mutable and not thread-safe against concurrent readers.
// It returns VALUE, so the reference also substitutes to the value
// just assigned.
func builtinSetenv(args string, n *node.Node) (string, error) {
	name, value, ok := strings.Cut(args, "=")
	if !ok {
		return "", errs.New(errs.Resolution, n.Location(), "setenv: expected NAME=VALUE, got %q", args)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errs.New(errs.Resolution, n.Location(), "setenv: empty NAME in %q", args)
	}
	if err := os.Setenv(name, value); err != nil {
		return "", errs.New(errs.Resolution, n.Location(), "setenv %q: %v", name, err)
	}
	return value, nil
}

// builtinGetenv implements "$<getenv NAME>", returning the current
// process environment value for NAME or "" if unset.
func builtinGetenv(args string, n *node.Node) (string, error) {
	name := strings.TrimSpace(args)
	if name == "" {
		return "", errs.New(errs.Resolution, n.Location(), "getenv: missing NAME")
	}
	return os.Getenv(name), nil
}
