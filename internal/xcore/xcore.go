// xcore.go - the cross-core command slots and completion flags
//
// Copyright (c) 2026 MSX Picoverse contributors
// License: GPLv3 or later

// Package xcore is the shared mutable state between the bus loop (core 0)
// and the background core (core 1). Every field has exactly one writer; the
// writer publishes with a release store and the reader observes with an
// acquire load. No mutex anywhere: core 0 must never block on core 1, and
// the Go atomics used here are at least as strong as the release/acquire
// pairs the real firmware issues around each hand-off.
//
// Core 0 has two independent producers of work for core 1 — the IDE
// overlay and the menu surface — so the channel carries one command slot
// per producer. Sharing a slot would let a menu write clobber a pending
// sector command while the overlay sits in its busy phase.
//
// Each slot is single-shot: the producer stores the opcode and argument
// first and flips pending last; core 1 reads the fields only after seeing
// pending, then clears it on consumption. Completion travels back the same
// way through the per-direction ready/failed flags.
package xcore

import "sync/atomic"

// Opcodes core 0 posts to core 1.
const (
	// OpNone is the empty command slot.
	OpNone uint32 = iota
	// OpReadSector asks core 1 to fill Sector with LBA arg's 512 bytes.
	OpReadSector
	// OpWriteSector asks core 1 to flush Sector to LBA arg.
	OpWriteSector
	// OpIdentify asks core 1 to fill Sector with the ATA IDENTIFY block.
	OpIdentify
	// OpMenuPage asks core 1 to stage catalogue page arg.
	OpMenuPage
	// OpMenuSelect asks core 1 to select catalogue record arg.
	OpMenuSelect
	// OpMenuSearch asks core 1 to run an incremental search keyed by arg.
	OpMenuSearch
)

// SectorSize is the ATA sector and transfer-buffer size.
const SectorSize = 512

// Slot is a single-shot command mailbox with exactly one producer and one
// consumer.
type Slot struct {
	op      atomic.Uint32
	arg     atomic.Uint32
	pending atomic.Bool
}

// Post publishes a command: fields first, pending flag last.
func (s *Slot) Post(op, arg uint32) {
	s.op.Store(op)
	s.arg.Store(arg)
	s.pending.Store(true)
}

// Poll consumes the pending command, if any. Called only by the consumer.
func (s *Slot) Poll() (op, arg uint32, ok bool) {
	if !s.pending.Load() {
		return OpNone, 0, false
	}
	op = s.op.Load()
	arg = s.arg.Load()
	s.pending.Store(false)
	return op, arg, true
}

// Pending reports whether a command is waiting, without consuming it.
func (s *Slot) Pending() bool { return s.pending.Load() }

// Channel is the whole cross-core surface. One instance lives for the
// lifetime of the firmware; both cores hold the same pointer.
type Channel struct {
	// disk carries sector and identify commands from the IDE overlay. The
	// overlay never issues a second command before observing completion,
	// so the slot is never overwritten while pending.
	disk Slot

	// menu carries the control-surface commands from the menu register
	// bank. Same single producer, but the host may rattle the registers
	// faster than core 1 drains them; an overwritten menu command is the
	// newest request winning, which is the behaviour the host driver
	// expects from a page/search register.
	menu Slot

	readReady   atomic.Bool
	readFailed  atomic.Bool
	writeReady  atomic.Bool
	writeFailed atomic.Bool

	// identifyPending gates USB enumeration: the USB side does not report
	// a unit until the first IDENTIFY has been answered.
	identifyPending atomic.Bool

	// statusMirror is the IDE status byte, written only by the overlay
	// state machine, readable by diagnostics on core 1.
	statusMirror atomic.Uint32

	// Sector is the 512-byte transfer buffer. Ownership alternates:
	// core 1 owns it from Post until the matching ready flag is set,
	// core 0 owns it otherwise. The ready flags are the fences.
	Sector [SectorSize]byte
}

// Post publishes a disk command to core 1. It must not be called while a
// previous disk command is still pending; the overlay state machine
// guarantees that by never issuing a second command before observing
// completion.
func (c *Channel) Post(op, arg uint32) { c.disk.Post(op, arg) }

// Poll consumes the pending disk command, if any. Called only by core 1.
func (c *Channel) Poll() (op, arg uint32, ok bool) { return c.disk.Poll() }

// PostMenu publishes a menu command to core 1 on its own slot, so menu
// traffic can never disturb an in-flight disk command.
func (c *Channel) PostMenu(op, arg uint32) { c.menu.Post(op, arg) }

// PollMenu consumes the pending menu command, if any. Called only by core 1.
func (c *Channel) PollMenu() (op, arg uint32, ok bool) { return c.menu.Poll() }

// SignalRead reports sector-read completion from core 1. failed=true sets
// the failure flag instead of the ready flag; exactly one of the two is
// raised per command.
func (c *Channel) SignalRead(failed bool) {
	if failed {
		c.readFailed.Store(true)
	} else {
		c.readReady.Store(true)
	}
}

// SignalWrite reports sector-write completion from core 1.
func (c *Channel) SignalWrite(failed bool) {
	if failed {
		c.writeFailed.Store(true)
	} else {
		c.writeReady.Store(true)
	}
}

// TakeReadResult consumes the read-completion flags. Called only by core 0.
func (c *Channel) TakeReadResult() (done, failed bool) {
	if c.readFailed.Load() {
		c.readFailed.Store(false)
		return true, true
	}
	if c.readReady.Load() {
		c.readReady.Store(false)
		return true, false
	}
	return false, false
}

// TakeWriteResult consumes the write-completion flags. Called only by core 0.
func (c *Channel) TakeWriteResult() (done, failed bool) {
	if c.writeFailed.Load() {
		c.writeFailed.Store(false)
		return true, true
	}
	if c.writeReady.Load() {
		c.writeReady.Store(false)
		return true, false
	}
	return false, false
}

// DropCompletions discards any in-flight completion, for device reset: a
// late completion from core 1 must not resurrect an aborted transfer.
func (c *Channel) DropCompletions() {
	c.readReady.Store(false)
	c.readFailed.Store(false)
	c.writeReady.Store(false)
	c.writeFailed.Store(false)
}

// SetIdentifyPending and IdentifyPending manage the USB-enumeration gate.
func (c *Channel) SetIdentifyPending(v bool) { c.identifyPending.Store(v) }
func (c *Channel) IdentifyPending() bool     { return c.identifyPending.Load() }

// MirrorStatus publishes the IDE status byte for core-1 diagnostics.
func (c *Channel) MirrorStatus(s byte) { c.statusMirror.Store(uint32(s)) }

// Status returns the last mirrored IDE status byte.
func (c *Channel) Status() byte { return byte(c.statusMirror.Load()) }
