// surface.go - core-0 recognition of the menu register bank
//
// Copyright (c) 2026 MSX Picoverse contributors
// License: GPLv3 or later

package menu

import (
	"github.com/paniksystem/msxpicoverse/internal/xcore"
)

// Register bank: 16 addresses at the top of the Disk mapper's window,
// above the IDE overlay's sub-range.
const (
	bankLo = 0x7F00
	bankHi = 0x7F0F
)

// Register offsets (addr & 0x0F).
const (
	regCountLo = 0 // read: filtered record count, low byte
	regCountHi = 1 // read: filtered record count, high byte
	regStatus  = 2 // read: bit0 page-ready, bit1 scan-done
	regPage    = 3 // write: request catalogue page N
	regSelect  = 4 // write: select filtered record N
	regSearch  = 5 // write: append search key, 0 clears
	regData    = 6 // read: next staged page byte, auto-advancing
)

const (
	statusPageReady = 0x01
	statusScanDone  = 0x02
)

// Surface is the dispatcher interceptor for the menu registers. All it does
// on core 0 is read the catalogue's published atomics and forward writes as
// commands; the hot loop never waits for core 1 to answer.
type Surface struct {
	ch     *xcore.Channel
	cat    *Catalogue
	cursor int
}

// NewSurface binds the register bank to the channel and catalogue.
func NewSurface(ch *xcore.Channel, cat *Catalogue) *Surface {
	return &Surface{ch: ch, cat: cat}
}

// InRange reports whether addr falls in the menu register bank.
func (s *Surface) InRange(addr uint16) bool {
	return addr >= bankLo && addr <= bankHi
}

// HandleWrite forwards a recognised register write to core 1. Menu
// commands travel on their own slot: a page request landing while the IDE
// overlay has a sector command in flight must not touch the disk slot.
func (s *Surface) HandleWrite(addr uint16, data byte) {
	switch addr & 0x0F {
	case regPage:
		s.cat.ClearPageReady()
		s.cursor = 0
		s.ch.PostMenu(xcore.OpMenuPage, uint32(data))
	case regSelect:
		s.ch.PostMenu(xcore.OpMenuSelect, uint32(data))
	case regSearch:
		s.ch.PostMenu(xcore.OpMenuSearch, uint32(data))
	}
}

// HandleRead answers a register read from the catalogue's published state.
func (s *Surface) HandleRead(addr uint16) (byte, bool) {
	switch addr & 0x0F {
	case regCountLo:
		return byte(s.cat.Count()), true
	case regCountHi:
		return byte(s.cat.Count() >> 8), true
	case regStatus:
		var st byte
		if s.cat.PageReady() {
			st |= statusPageReady
		}
		if s.cat.ScanDone() {
			st |= statusScanDone
		}
		return st, true
	case regData:
		if !s.cat.PageReady() {
			return 0xFF, true
		}
		b := s.cat.PageByte(s.cursor)
		s.cursor++
		return b, true
	}
	return 0xFF, true
}
