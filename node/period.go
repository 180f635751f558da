// Copyright (c) 2024, The Kubeka Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package node

import (
	"regexp"
	"strconv"
	"time"
)

var periodPattern = regexp.MustCompile(`^(\d+)(s|sec|secs|second|seconds|m|min|mins|minute|minutes|h|hr|hrs|hour|hours|d|day|days)$`)

// ParsePeriod parses a PERIOD value of the form "<digits><unit>" into its
// unit and the multiplier n given by the digits, so that one period lasts
// unit*n, per spec section 4.3's validation rule and section 4.8's
// scheduler semantics. unit is always one of time.Second, time.Minute,
// time.Hour, or 24*time.Hour.
func ParsePeriod(s string) (unit time.Duration, n uint32, err error) {
	m := periodPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, errInvalidPeriod(s)
	}
	v, err := strconv.ParseUint(m[1], 10, 32)
	if err != nil {
		return 0, 0, errInvalidPeriod(s)
	}
	switch m[2][0] {
	case 's':
		unit = time.Second
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	}
	return unit, uint32(v), nil
}

func errInvalidPeriod(s string) error {
	return &periodError{s}
}

type periodError struct{ raw string }

func (e *periodError) Error() string {
	return "invalid PERIOD value " + strconv.Quote(e.raw) + ": expected <digits><unit> with unit in s/m/h/d or a long form"
}
