// variant.go - the nine mapper pure functions, dispatched once at startup
//
// Copyright (c) 2026 MSX Picoverse contributors
// License: GPLv3 or later

// Package mapper implements the bank register file, the nine mapper
// variants (ten selector IDs — Plain16 and Plain32 share one pure function,
// differing only in header-declared ROM length), and the dispatch loop that
// drains writes and answers reads.
//
// A mapper is a window predicate plus an offset function plus a
// write-recognition table, chosen once at startup and never re-dispatched
// per cycle.
package mapper

// ID is the flash header's mapper selector, 1 through 10.
type ID uint8

const (
	Plain16 ID = iota + 1
	Plain32
	KonamiSCC
	Konami
	ASCII8
	ASCII16
	Linear48
	NEO8
	NEO16
	Disk
)

const (
	bank8K  = 8 * 1024
	bank16K = 16 * 1024
)

// Interceptor lets a component other than the active mapper claim part of
// the ROM window. Handlers are passed into the dispatcher constructor, so
// there is no cyclic ownership. Only the Disk variant installs any: the IDE
// overlay and the menu register bank.
type Interceptor interface {
	// InRange reports whether addr belongs to the interceptor, not the
	// mapper's own ROM/bank logic.
	InRange(addr uint16) bool
	HandleWrite(addr uint16, data byte)
	// HandleRead returns the byte to drive and whether the interceptor
	// wants to drive it at all (false means fall through to tri-state).
	HandleRead(addr uint16) (data byte, drive bool)
}

// Variant fully describes one mapper: its ROM window, its write-recognition
// table, its address-to-offset function, and its register file shape.
type Variant struct {
	ID       ID
	Name     string
	InWindow func(addr uint16) bool
	// Offset maps an in-window address to a ROM-relative byte offset using
	// the current bank registers. Never called outside InWindow.
	Offset func(addr uint16, regs *BankFile) int
	// HandleWrite updates regs for a write recognized by this mapper's
	// write-recognition table; no-op if addr matches nothing.
	HandleWrite func(regs *BankFile, addr uint16, data byte)
	RegCount    int
	RegWidth    Width
	// NeedsPoll marks mappers that can see a write burst longer than
	// busfe.WriteFIFODepth-1 with no intervening read; only Disk does
	// today, because IDE task-file setup bursts 8-9 writes.
	NeedsPoll bool
}

func inRange(addr, lo, hi uint16) bool { return addr >= lo && addr <= hi }

func plainWindow(addr uint16) bool { return inRange(addr, 0x4000, 0xBFFF) }
func plainOffset(addr uint16, _ *BankFile) int {
	return int(addr) - 0x4000
}

func linear48Window(addr uint16) bool { return inRange(addr, 0x0000, 0xBFFF) }
func linear48Offset(addr uint16, _ *BankFile) int {
	return int(addr)
}

// konamiFamilyOffset implements `R[(a-0x4000)/8K]*8K + (a mod 8K)`, shared
// by KonamiSCC and Konami.
func konamiFamilyOffset(addr uint16, regs *BankFile) int {
	rel := int(addr) - 0x4000
	bank := rel / bank8K
	return int(regs.Get(bank))*bank8K + rel%bank8K
}

func konamiSCCWrite(regs *BankFile, addr uint16, data byte) {
	switch {
	case inRange(addr, 0x5000, 0x57FF):
		regs.Set(0, uint16(data))
	case inRange(addr, 0x7000, 0x77FF):
		regs.Set(1, uint16(data))
	case inRange(addr, 0x9000, 0x97FF):
		regs.Set(2, uint16(data))
	case inRange(addr, 0xB000, 0xB7FF):
		regs.Set(3, uint16(data))
	}
}

func konamiWrite(regs *BankFile, addr uint16, data byte) {
	switch {
	case inRange(addr, 0x6000, 0x67FF):
		regs.Set(1, uint16(data))
	case inRange(addr, 0x8000, 0x87FF):
		regs.Set(2, uint16(data))
	case inRange(addr, 0xA000, 0xA7FF):
		regs.Set(3, uint16(data))
	}
	// R0 is fixed at 0: no address range targets it.
}

func ascii8Offset(addr uint16, regs *BankFile) int {
	rel := int(addr) - 0x4000
	bank := rel / bank8K
	return int(regs.Get(bank))*bank8K + rel%bank8K
}

func ascii8Write(regs *BankFile, addr uint16, data byte) {
	switch {
	case inRange(addr, 0x6000, 0x67FF):
		regs.Set(0, uint16(data))
	case inRange(addr, 0x6800, 0x6FFF):
		regs.Set(1, uint16(data))
	case inRange(addr, 0x7000, 0x77FF):
		regs.Set(2, uint16(data))
	case inRange(addr, 0x7800, 0x7FFF):
		regs.Set(3, uint16(data))
	}
}

func ascii16Offset(addr uint16, regs *BankFile) int {
	idx := int((addr >> 15) & 1)
	return int(regs.Get(idx))*bank16K + int(addr&0x3FFF)
}

func ascii16Write(regs *BankFile, addr uint16, data byte) {
	switch {
	case inRange(addr, 0x6000, 0x67FF):
		regs.Set(0, uint16(data))
	case inRange(addr, 0x7000, 0x77FF):
		regs.Set(1, uint16(data))
	}
}

// neoWriteRange recognizes one of the NEO8/NEO16 mirrored write-recognition
// regions. The decode regions sit at 0x5000..0x7FFF and repeat at 0x1000,
// 0x9000 and 0xD000, so every mirror folds to the same masked address via
// &0x3FFF. regionSize is 0x800 for NEO8 (six regions) or 0x1000 for NEO16
// (three regions); it returns the register index and ok=true if addr hits
// the decode window at all.
func neoWriteRange(addr uint16, regionSize uint16) (reg int, ok bool) {
	masked := addr & 0x3FFF
	if masked < 0x1000 {
		return 0, false
	}
	rel := masked - 0x1000
	idx := int(rel / regionSize)
	span := int(regionSize)
	if idx*span >= 0x3000 {
		return 0, false
	}
	return idx, true
}

func neoWrite(regs *BankFile, addr uint16, data byte, regionSize uint16) {
	reg, ok := neoWriteRange(addr, regionSize)
	if !ok {
		return
	}
	if addr&1 == 0 {
		regs.SetLowByte(reg, data)
	} else {
		regs.SetHighByte(reg, data)
	}
}

func neo8Write(regs *BankFile, addr uint16, data byte) { neoWrite(regs, addr, data, 0x800) }
func neo8Offset(addr uint16, regs *BankFile) int {
	bank := int(addr >> 13)
	return int(regs.Get(bank)&0x0FFF)*bank8K + int(addr)%bank8K
}

func neo16Write(regs *BankFile, addr uint16, data byte) { neoWrite(regs, addr, data, 0x1000) }
func neo16Offset(addr uint16, regs *BankFile) int {
	bank := int(addr >> 14)
	return int(regs.Get(bank)&0x0FFF)*bank16K + int(addr)%bank16K
}

// diskControlReg is the Sunrise disk mapper's single page/enable register.
const diskControlReg = 0x4104

// reverse3 reverses a 3-bit field (swaps bit 2 and bit 0, leaves bit 1).
// The host driver sends the page bits reversed; latch them reversed back.
// Compatibility hack, keep byte-for-byte.
func reverse3(x byte) byte {
	return (x & 0b010) | ((x & 0b001) << 2) | ((x & 0b100) >> 2)
}

// diskIDEEnableBit is where diskWrite keeps the overlay-enable flag in
// register 0, above the 3-bit segment.
const diskIDEEnableBit = 0b1000

func diskWindow(addr uint16) bool { return inRange(addr, 0x4000, 0x7FFF) }
func diskOffset(addr uint16, regs *BankFile) int {
	segment := DiskSegment(regs)
	return segment*bank16K + int(addr&0x3FFF)
}

func diskWrite(regs *BankFile, addr uint16, data byte) {
	if addr != diskControlReg {
		return
	}
	rawPage := (data >> 5) & 0b111
	segment := reverse3(rawPage)
	ideEnable := data & 1
	// Segment (bits 2:0) and IDE-overlay-enable (bit 3) both live in
	// register 0, so the write handler stays a pure function of (regs,
	// addr, data) and the power-on value 0 means page 0 with the overlay
	// off.
	regs.Set(0, uint16(segment)|uint16(ideEnable)<<3)
}

// DiskSegment and DiskIDEEnabled read back the two fields diskWrite packs
// into the Disk variant's register file, for the IDE overlay to consult.
func DiskSegment(regs *BankFile) int     { return int(regs.Get(0) & 0b111) }
func DiskIDEEnabled(regs *BankFile) bool { return regs.Get(0)&diskIDEEnableBit != 0 }

// Variants is the full table, keyed by header selector.
var Variants = map[ID]Variant{
	Plain16: {
		ID: Plain16, Name: "Plain16", InWindow: plainWindow, Offset: plainOffset,
		HandleWrite: func(*BankFile, uint16, byte) {}, RegCount: 0, RegWidth: Width8,
	},
	Plain32: {
		ID: Plain32, Name: "Plain32", InWindow: plainWindow, Offset: plainOffset,
		HandleWrite: func(*BankFile, uint16, byte) {}, RegCount: 0, RegWidth: Width8,
	},
	Linear48: {
		ID: Linear48, Name: "Linear48", InWindow: linear48Window, Offset: linear48Offset,
		HandleWrite: func(*BankFile, uint16, byte) {}, RegCount: 0, RegWidth: Width8,
	},
	KonamiSCC: {
		ID: KonamiSCC, Name: "KonamiSCC", InWindow: plainWindow, Offset: konamiFamilyOffset,
		HandleWrite: konamiSCCWrite, RegCount: 4, RegWidth: Width8,
	},
	Konami: {
		ID: Konami, Name: "Konami", InWindow: plainWindow, Offset: konamiFamilyOffset,
		HandleWrite: konamiWrite, RegCount: 4, RegWidth: Width8,
	},
	ASCII8: {
		ID: ASCII8, Name: "ASCII8", InWindow: plainWindow, Offset: ascii8Offset,
		HandleWrite: ascii8Write, RegCount: 4, RegWidth: Width8,
	},
	ASCII16: {
		ID: ASCII16, Name: "ASCII16", InWindow: plainWindow, Offset: ascii16Offset,
		HandleWrite: ascii16Write, RegCount: 2, RegWidth: Width8,
	},
	NEO8: {
		ID: NEO8, Name: "NEO8", InWindow: linear48Window, Offset: neo8Offset,
		HandleWrite: neo8Write, RegCount: 6, RegWidth: Width12,
	},
	NEO16: {
		ID: NEO16, Name: "NEO16", InWindow: linear48Window, Offset: neo16Offset,
		HandleWrite: neo16Write, RegCount: 3, RegWidth: Width12,
	},
	Disk: {
		ID: Disk, Name: "Disk", InWindow: diskWindow, Offset: diskOffset,
		HandleWrite: diskWrite, RegCount: 2, RegWidth: Width8, NeedsPoll: true,
	},
}

// Select returns the Variant for a header mapper selector, and false if the
// selector is not one of the ten defined IDs. An unknown selector means the
// flash header is corrupt and the caller should halt.
func Select(id uint8) (Variant, bool) {
	v, ok := Variants[ID(id)]
	return v, ok
}
