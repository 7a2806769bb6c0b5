// scanner.go - chunked directory scan of the removable medium
//
// Copyright (c) 2026 MSX Picoverse contributors
// License: GPLv3 or later

package storage

import (
	"context"
	"io/fs"
	"sort"
	"strings"

	"golang.org/x/sync/semaphore"
)

// Record is one catalogue entry found on the medium.
type Record struct {
	Name string
	Size int64
}

// Scanner walks the medium's filesystem for ROM images, 8 entries per
// step so core 1's loop stays responsive to sector traffic. Each step
// needs the storage controller; if playback or a sector transfer holds
// it, the step is deferred, not queued.
type Scanner struct {
	fsys    fs.FS
	sem     *semaphore.Weighted
	pending []fs.DirEntry
	records []Record
	done    bool
}

// EntriesPerStep bounds how much directory work one cooperative step does.
const EntriesPerStep = 8

// NewScanner prepares a scan of fsys's root directory.
func NewScanner(fsys fs.FS, sem *semaphore.Weighted) *Scanner {
	return &Scanner{fsys: fsys, sem: sem}
}

// Done reports whether the scan has finished.
func (s *Scanner) Done() bool { return s.done }

// Records returns the entries found so far, sorted by name once done.
func (s *Scanner) Records() []Record { return s.records }

// Step performs one chunk of scanning. It returns true if it made
// progress, false if the scan is finished or the controller was busy.
func (s *Scanner) Step() bool {
	if s.done {
		return false
	}
	if !s.sem.TryAcquire(1) {
		return false
	}
	defer s.sem.Release(1)

	if s.pending == nil {
		entries, err := fs.ReadDir(s.fsys, ".")
		if err != nil {
			s.done = true
			return false
		}
		s.pending = entries
	}

	n := EntriesPerStep
	if n > len(s.pending) {
		n = len(s.pending)
	}
	for _, e := range s.pending[:n] {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !isROMName(name) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		s.records = append(s.records, Record{Name: name, Size: info.Size()})
	}
	s.pending = s.pending[n:]
	if len(s.pending) == 0 {
		sort.Slice(s.records, func(i, j int) bool {
			return s.records[i].Name < s.records[j].Name
		})
		s.done = true
	}
	return true
}

// RunToCompletion drives Step until the scan finishes or ctx ends. Used by
// tools; the firmware's core-1 loop calls Step itself.
func (s *Scanner) RunToCompletion(ctx context.Context) {
	for !s.done && ctx.Err() == nil {
		s.Step()
	}
}

func isROMName(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".rom") || strings.HasSuffix(lower, ".dsk")
}
