// dispatch.go - the core-0 bus dispatch loops
//
// Copyright (c) 2026 MSX Picoverse contributors
// License: GPLv3 or later

package mapper

import (
	"context"

	"github.com/paniksystem/msxpicoverse/internal/busfe"
	"github.com/paniksystem/msxpicoverse/internal/romsrc"
	"github.com/paniksystem/msxpicoverse/internal/token"
)

// Dispatcher is the core-0 hot loop: it drains pending writes through the
// active variant's write handler, answers each read address with a response
// token, and never touches the filesystem, USB or audio stacks. The variant
// is fixed at construction; the loop shape (blocking vs polling) is chosen
// once from the variant's NeedsPoll flag, never per cycle.
type Dispatcher struct {
	bus      *busfe.Bus
	v        Variant
	regs     *BankFile
	src      *romsrc.Source
	iceptors []Interceptor
}

// NewDispatcher binds a variant to its bus, register file and ROM source.
// Interceptors are consulted in order before the variant's own logic, first
// matching range wins; pass none for plain ROM mappers.
func NewDispatcher(bus *busfe.Bus, v Variant, regs *BankFile, src *romsrc.Source, iceptors ...Interceptor) *Dispatcher {
	return &Dispatcher{bus: bus, v: v, regs: regs, src: src, iceptors: iceptors}
}

// Regs exposes the bank register file, for tests and the overlay readback.
func (d *Dispatcher) Regs() *BankFile { return d.regs }

// drainWrites consumes every pending write event. Writes always beat reads:
// this runs to exhaustion before any read is answered.
func (d *Dispatcher) drainWrites() {
	for {
		ev, ok := d.bus.PopWrite()
		if !ok {
			return
		}
		d.handleWrite(ev.Addr, ev.Data)
	}
}

func (d *Dispatcher) handleWrite(addr uint16, data byte) {
	for _, ic := range d.iceptors {
		if ic.InRange(addr) {
			ic.HandleWrite(addr, data)
			return
		}
	}
	d.v.HandleWrite(d.regs, addr, data)
}

// serveRead builds the response token for one read address. Outside the
// variant's ROM window the data pins stay tri-stated and the host's
// pull-ups read back 0xFF.
func (d *Dispatcher) serveRead(addr uint16) token.Response {
	for _, ic := range d.iceptors {
		if ic.InRange(addr) {
			data, drive := ic.HandleRead(addr)
			return token.NewResponse(drive, data)
		}
	}
	if !d.v.InWindow(addr) {
		return token.NewResponse(false, 0xFF)
	}
	r := d.v.Offset(addr, d.regs)
	return token.NewResponse(true, d.src.Read(r))
}

// Run executes the dispatch loop until ctx is cancelled. The real firmware
// never returns from here; cancellation exists for tests and for fatal
// errors elsewhere in the process.
func (d *Dispatcher) Run(ctx context.Context) {
	if d.v.NeedsPoll {
		d.pollingLoop(ctx)
		return
	}
	d.blockingLoop(ctx)
}

// blockingLoop is the simple dispatch shape: drain writes, block for the
// next read, drain the writes that accumulated while blocked, answer.
// A write whose strobe fell before the current read's strobe is always
// applied before that read's address is consumed, because the PIO FIFOs
// preserve strobe order and both drains run before the token is built.
func (d *Dispatcher) blockingLoop(ctx context.Context) {
	for {
		d.drainWrites()
		addr, ok := d.bus.PopReadContext(ctx)
		if !ok {
			return
		}
		d.drainWrites()
		d.bus.PushToken(d.serveRead(addr))
	}
}

// pollingLoop never blocks on the read FIFO. Mappers whose hosts burst more
// writes than the write FIFO holds (IDE task-file setup is 8-9 back-to-back
// writes) must keep draining between every peek, or the Write Captor
// silently drops events there is no way to recover.
func (d *Dispatcher) pollingLoop(ctx context.Context) {
	for {
		d.drainWrites()
		addr, ok := d.bus.PopReadNonBlocking()
		if !ok {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		d.drainWrites()
		d.bus.PushToken(d.serveRead(addr))
	}
}
