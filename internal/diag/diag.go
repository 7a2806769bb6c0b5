// diag.go - stderr diagnostics and event tallies
//
// Copyright (c) 2026 MSX Picoverse contributors
// License: GPLv3 or later

// Package diag carries the firmware's diagnostics: stderr lines prefixed
// with the emitting module's name, and monotonic counters tests can read
// back. Nothing here is reachable from the core-0 hot loop.
package diag

import (
	"fmt"
	"os"
	"sync/atomic"
)

// Logf writes one diagnostic line to stderr, prefixed by the module name.
func Logf(module, format string, args ...any) {
	fmt.Fprintf(os.Stderr, module+": "+format+"\n", args...)
}

// Counter is a monotonic event tally. The zero value is ready to use.
type Counter struct {
	n atomic.Uint64
}

// Add increments the tally by delta.
func (c *Counter) Add(delta uint64) { c.n.Add(delta) }

// Load returns the current tally.
func (c *Counter) Load() uint64 { return c.n.Load() }
