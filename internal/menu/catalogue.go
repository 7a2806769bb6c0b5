// catalogue.go - core-1 catalogue behind the menu register bank
//
// Copyright (c) 2026 MSX Picoverse contributors
// License: GPLv3 or later

// Package menu is the host-side control surface for ROM selection: a small
// MMIO-style register bank inside the Disk mapper's window that the host
// driver uses to query record counts, request catalogue pages, select a
// file and drive an incremental search. Core 0 only recognises the
// registers and forwards the requests; the catalogue itself lives on
// core 1 next to the directory scanner that feeds it.
package menu

import (
	"strings"
	"sync/atomic"

	"github.com/paniksystem/msxpicoverse/internal/storage"
	"github.com/paniksystem/msxpicoverse/internal/xcore"
)

// Page geometry: one staged page is PageEntries records of EntryLen bytes,
// exactly one transfer buffer's worth.
const (
	EntryLen    = 32
	PageEntries = xcore.SectorSize / EntryLen
)

// Catalogue answers menu opcodes on core 1. Records arrive from the
// scanner once its walk completes; pages are staged into an internal
// buffer core 0 streams out through the DATA register.
type Catalogue struct {
	records  []storage.Record // written once by SetRecords, then read-only
	filtered []int            // indices matching the current search prefix
	query    []byte

	count     atomic.Uint32
	selected  atomic.Uint32
	scanDone  atomic.Bool
	pageReady atomic.Bool

	page [xcore.SectorSize]byte
}

// NewCatalogue returns an empty catalogue; it reports zero records until
// the scanner hands over its results.
func NewCatalogue() *Catalogue {
	return &Catalogue{}
}

// SetRecords installs the scan results and resets the search filter.
func (c *Catalogue) SetRecords(records []storage.Record) {
	c.records = records
	c.query = c.query[:0]
	c.refilter()
	c.scanDone.Store(true)
}

// Count returns the number of records matching the current filter.
func (c *Catalogue) Count() uint32 { return c.count.Load() }

// Selected returns the most recently selected record index.
func (c *Catalogue) Selected() uint32 { return c.selected.Load() }

// ScanDone reports whether the directory walk has completed.
func (c *Catalogue) ScanDone() bool { return c.scanDone.Load() }

// PageReady reports whether a staged page is available to stream.
func (c *Catalogue) PageReady() bool { return c.pageReady.Load() }

// ClearPageReady is the consumer-side clear, called by core 0 when it
// requests a fresh page.
func (c *Catalogue) ClearPageReady() { c.pageReady.Store(false) }

// PageByte returns byte i of the staged page. Only meaningful between a
// PageReady observation and the next page request.
func (c *Catalogue) PageByte(i int) byte {
	if i < 0 || i >= len(c.page) {
		return 0
	}
	return c.page[i]
}

// HandleOp services one forwarded menu opcode. It reports false for
// opcodes that belong to another core-1 consumer.
func (c *Catalogue) HandleOp(op, arg uint32) bool {
	switch op {
	case xcore.OpMenuPage:
		c.stagePage(int(arg))
	case xcore.OpMenuSelect:
		if arg < uint32(len(c.filtered)) {
			c.selected.Store(uint32(c.filtered[arg]))
		}
	case xcore.OpMenuSearch:
		c.search(byte(arg))
	default:
		return false
	}
	return true
}

// search appends one key to the incremental query; zero clears it.
func (c *Catalogue) search(key byte) {
	if key == 0 {
		c.query = c.query[:0]
	} else {
		c.query = append(c.query, key)
	}
	c.refilter()
}

func (c *Catalogue) refilter() {
	q := strings.ToLower(string(c.query))
	c.filtered = c.filtered[:0]
	for i, r := range c.records {
		if q == "" || strings.Contains(strings.ToLower(r.Name), q) {
			c.filtered = append(c.filtered, i)
		}
	}
	c.count.Store(uint32(len(c.filtered)))
}

// stagePage renders filtered records [page*PageEntries, ...) into the page
// buffer: each entry is the name, zero-padded, with the record's size in
// kilobytes in the last two bytes little-endian.
func (c *Catalogue) stagePage(page int) {
	for i := range c.page {
		c.page[i] = 0
	}
	base := page * PageEntries
	for i := 0; i < PageEntries; i++ {
		if base+i >= len(c.filtered) {
			break
		}
		rec := c.records[c.filtered[base+i]]
		entry := c.page[i*EntryLen : (i+1)*EntryLen]
		copy(entry[:EntryLen-2], rec.Name)
		kb := rec.Size / 1024
		if kb > 0xFFFF {
			kb = 0xFFFF
		}
		entry[EntryLen-2] = byte(kb)
		entry[EntryLen-1] = byte(kb >> 8)
	}
	c.pageReady.Store(true)
}
