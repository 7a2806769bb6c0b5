// busfe.go - simulated PIO bus front-end: Read Responder + Write Captor
//
// Copyright (c) 2026 MSX Picoverse contributors
// License: GPLv3 or later

// Package busfe models the two cooperating PIO state machines of the bus
// front-end. Real PIO hardware cannot be targeted from Go, so the Read
// Responder and Write Captor are modeled as the FIFOs they actually are:
// fixed-depth, single-producer/single-consumer channels. The WAIT line is a
// boolean the simulated host polls, exactly as the real pin behaves.
//
// This package never interprets an address or a data byte; it only moves
// bytes between the "host" side (StrobeRead / StrobeWrite, called by test
// harnesses and, ultimately, nothing else — a real cartridge has no software
// host side) and the "dispatcher" side (PopWrite / PopReadBlocking /
// PopReadNonBlocking / PushToken, called by internal/mapper).
package busfe

import (
	"context"
	"sync/atomic"

	"github.com/paniksystem/msxpicoverse/internal/token"
)

// ReadFIFODepth and WriteFIFODepth mirror the RP2040 PIO's per-state-machine
// FIFO depth (4 words, unjoined). A write burst longer than WriteFIFODepth-1
// outpaces the blocking dispatch loop and requires the polling loop.
const (
	ReadFIFODepth  = 4
	WriteFIFODepth = 4
)

// Bus is the simulated PIO block: one Read Responder, one Write Captor,
// and the WAIT line they share.
type Bus struct {
	readAddr  chan uint16
	tokenOut  chan token.Response
	writeFIFO chan uint32

	// waitAsserted is true from the read-strobe edge until the token is
	// pushed: WAIT is held low continuously while a read cycle is in flight.
	waitAsserted atomic.Bool
}

// New creates a Bus with the standard RP2040 FIFO depths.
func New() *Bus {
	return &Bus{
		readAddr:  make(chan uint16, ReadFIFODepth),
		tokenOut:  make(chan token.Response, 1),
		writeFIFO: make(chan uint32, WriteFIFODepth),
	}
}

// WaitAsserted reports whether WAIT is currently held low.
func (b *Bus) WaitAsserted() bool { return b.waitAsserted.Load() }

// HoldWait and ReleaseWait assert WAIT outside any read cycle. Used while
// the ROM cache is DMA-populated at startup, so the host freezes instead of
// fetching from a half-initialised cartridge.
func (b *Bus) HoldWait()    { b.waitAsserted.Store(true) }
func (b *Bus) ReleaseWait() { b.waitAsserted.Store(false) }

// StrobeRead simulates one full host read cycle: assert slot-select, latch
// the address, assert WAIT, and block until the dispatcher produces a
// token. It is the host side of the Read Responder contract and is used by
// test harnesses standing in for the host CPU.
func (b *Bus) StrobeRead(addr uint16) token.Response {
	b.waitAsserted.Store(true)
	b.readAddr <- addr
	tok := <-b.tokenOut
	b.waitAsserted.Store(false)
	return tok
}

// StrobeWrite simulates one host write cycle. It never blocks: a full write
// FIFO drops the event silently, matching the real Write Captor's failure
// semantics. The bool result exists only so
// tests can assert on drops; real hardware has no way to report this to the
// host.
func (b *Bus) StrobeWrite(addr uint16, data byte) (accepted bool) {
	ev := token.WriteEvent{Addr: addr, Data: data}
	select {
	case b.writeFIFO <- ev.Pack():
		return true
	default:
		return false
	}
}

// PopWrite non-blockingly pops the next write event, if any.
func (b *Bus) PopWrite() (token.WriteEvent, bool) {
	select {
	case w := <-b.writeFIFO:
		return token.Unpack(w), true
	default:
		return token.WriteEvent{}, false
	}
}

// PopReadBlocking blocks until the next read address is available. This is
// the only blocking operation core 0 ever performs, and only mapper variants
// that cannot experience a write burst overlapping a read may use it.
func (b *Bus) PopReadBlocking() uint16 {
	return <-b.readAddr
}

// PopReadContext blocks like PopReadBlocking but also returns (0, false)
// when ctx is cancelled. The real firmware's bus loop never exits; this
// variant exists so the Go model can shut down cleanly under test and on
// fatal errors elsewhere in the process.
func (b *Bus) PopReadContext(ctx context.Context) (uint16, bool) {
	select {
	case addr := <-b.readAddr:
		return addr, true
	case <-ctx.Done():
		return 0, false
	}
}

// PopReadNonBlocking pops the next read address without blocking, for the
// poll-dispatch loop used by mappers that can see long write bursts.
func (b *Bus) PopReadNonBlocking() (uint16, bool) {
	select {
	case addr := <-b.readAddr:
		return addr, true
	default:
		return 0, false
	}
}

// PushToken delivers the dispatcher's response for the most recently popped
// read address. WAIT is deasserted by the host side (StrobeRead) once it
// receives the token, not by this call.
func (b *Bus) PushToken(tok token.Response) {
	b.tokenOut <- tok
}
