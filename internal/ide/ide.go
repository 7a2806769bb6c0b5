// ide.go - ATA task-file overlay on the Disk mapper's ROM window
//
// Copyright (c) 2026 MSX Picoverse contributors
// License: GPLv3 or later

// Package ide implements the IDE overlay: a state machine that, when the
// Disk mapper's overlay-enable bit is set, claims the 0x7C00-0x7EFF
// sub-range of the ROM window and turns accesses there into ATA task-file
// and data-register I/O. Sector traffic itself is serviced by core 1; this
// package only runs the host-visible register surface and hands sector
// commands across the xcore channel.
//
// The overlay is an interceptor from the dispatcher's point of view: the
// dispatcher consults it before the mapper's own ROM/bank logic on every
// access, and the overlay steps its state machine as a side effect of each
// access it claims. Core 0 never blocks in here.
package ide

import (
	"github.com/paniksystem/msxpicoverse/internal/mapper"
	"github.com/paniksystem/msxpicoverse/internal/xcore"
)

// Overlay address sub-ranges inside the Disk mapper's window.
const (
	dataLo = 0x7C00 // 16-bit data register, mirrored across 0x7C00-0x7DFF
	dataHi = 0x7DFF
	regLo  = 0x7E00 // task-file registers, mirrored every 16 bytes
	regHi  = 0x7EFF
)

// Task-file register offsets (addr & 0x0F within the register range).
const (
	regErrorFeature  = 1  // read: error, write: feature
	regSectorCount   = 2  // sectors per command
	regSector        = 3  // LBA[7:0]
	regCylinderLow   = 4  // LBA[15:8]
	regCylinderHigh  = 5  // LBA[23:16]
	regDeviceHead    = 6  // LBA[27:24] + flags
	regStatusCommand = 7  // read: status, write: command
	regAltDevControl = 14 // read: alt-status, write: device control
)

// ATA status bits.
const (
	StatusERR  = 0x01
	StatusDRQ  = 0x08
	StatusDSC  = 0x10
	StatusDRDY = 0x40
	StatusBSY  = 0x80
)

// ATA error bits.
const ErrorABRT = 0x04

// ATA commands the overlay recognises. Everything else aborts.
const (
	cmdDeviceReset  = 0x08
	cmdReadSectors  = 0x20
	cmdReadNoRetry  = 0x21
	cmdWriteSectors = 0x30
	cmdWriteNoRetry = 0x31
	cmdExecDiag     = 0x90
	cmdIdentify     = 0xEC
)

// devControlSRST is the soft-reset bit in the device-control register.
const devControlSRST = 0x04

// Phase is the overlay's transfer state.
type Phase int

const (
	Idle Phase = iota
	ReadData
	WriteData
	Busy
)

// Overlay is the IDE context: shadow task-file registers, the 512-byte
// sector buffer with its cursors, and the transfer phase. It is mutated
// only from core 0; core 1 is reached exclusively through the channel.
type Overlay struct {
	regs *mapper.BankFile
	ch   *xcore.Channel

	feature     byte
	sectorCount byte
	sector      byte
	cylLow      byte
	cylHigh     byte
	devHead     byte

	status byte
	errReg byte

	// 16-bit data-register split latch: even access stages one byte, the
	// following odd access completes the word.
	latch      byte
	latchValid bool

	buf       [xcore.SectorSize]byte
	cursor    int
	remaining int // sectors left in the current multi-sector command
	nextLBA   uint32
	busyWrite bool // current Busy is a write-flush, not a read-fill

	phase Phase
}

// New creates an overlay bound to the Disk mapper's register file (for the
// overlay-enable bit) and the cross-core channel.
func New(regs *mapper.BankFile, ch *xcore.Channel) *Overlay {
	o := &Overlay{regs: regs, ch: ch}
	o.reset()
	return o
}

// reset is the device-reset/diag action: clear error, report ready, drop
// any in-flight transfer. A late completion from core 1 is discarded.
func (o *Overlay) reset() {
	o.errReg = 0
	o.setStatus(StatusDRDY | StatusDSC)
	o.phase = Idle
	o.latchValid = false
	o.cursor = 0
	o.remaining = 0
	o.busyWrite = false
	o.ch.DropCompletions()
}

func (o *Overlay) setStatus(s byte) {
	o.status = s
	o.ch.MirrorStatus(s)
}

// Phase returns the current transfer phase, for tests and diagnostics.
func (o *Overlay) Phase() Phase { return o.phase }

// InRange reports whether the overlay claims addr. False whenever the
// control register's overlay-enable bit is clear, so the dispatcher falls
// through to the ROM path and the sub-range behaves as plain banked ROM.
func (o *Overlay) InRange(addr uint16) bool {
	if !mapper.DiskIDEEnabled(o.regs) {
		return false
	}
	return addr >= dataLo && addr <= regHi
}

// lba assembles the 28-bit block address from the shadow task file.
func (o *Overlay) lba() uint32 {
	return uint32(o.sector) |
		uint32(o.cylLow)<<8 |
		uint32(o.cylHigh)<<16 |
		uint32(o.devHead&0x0F)<<24
}

// poll advances the Busy phase if core 1 has signalled completion. Called
// at the top of every overlay access; never blocks.
func (o *Overlay) poll() {
	if o.phase != Busy {
		return
	}
	if o.busyWrite {
		done, failed := o.ch.TakeWriteResult()
		if !done {
			return
		}
		o.busyWrite = false
		if failed {
			o.fail()
			return
		}
		if o.remaining == 0 {
			o.setStatus(StatusDRDY)
			o.phase = Idle
			return
		}
		o.cursor = 0
		o.setStatus(StatusDRDY | StatusDRQ)
		o.phase = WriteData
		return
	}
	done, failed := o.ch.TakeReadResult()
	if !done {
		return
	}
	if failed {
		o.fail()
		return
	}
	copy(o.buf[:], o.ch.Sector[:])
	o.cursor = 0
	o.latchValid = false
	o.setStatus(StatusDRDY | StatusDRQ)
	o.phase = ReadData
}

// fail surfaces a core-1 read/write failure to the host: ERR in status,
// ABRT in the error register, back to Idle. The host retries per ATA.
func (o *Overlay) fail() {
	o.errReg |= ErrorABRT
	o.setStatus(StatusDRDY | StatusERR)
	o.phase = Idle
	o.remaining = 0
}

// HandleWrite services one host write inside the overlay range.
func (o *Overlay) HandleWrite(addr uint16, data byte) {
	o.poll()
	if addr >= dataLo && addr <= dataHi {
		o.writeData(addr, data)
		return
	}
	switch addr & 0x0F {
	case regErrorFeature:
		o.feature = data
	case regSectorCount:
		o.sectorCount = data
	case regSector:
		o.sector = data
	case regCylinderLow:
		o.cylLow = data
	case regCylinderHigh:
		o.cylHigh = data
	case regDeviceHead:
		o.devHead = data
	case regStatusCommand:
		o.exec(data)
	case regAltDevControl:
		if data&devControlSRST != 0 {
			o.reset()
		}
	}
}

// writeData is the WriteData-phase data register: even access latches the
// low byte, odd access completes the 16-bit word and commits both bytes.
func (o *Overlay) writeData(addr uint16, data byte) {
	if o.phase != WriteData {
		return
	}
	if addr&1 == 0 {
		o.latch = data
		o.latchValid = true
		return
	}
	if !o.latchValid || o.cursor >= xcore.SectorSize {
		return
	}
	o.buf[o.cursor] = o.latch
	o.buf[o.cursor+1] = data
	o.latchValid = false
	o.cursor += 2
	if o.cursor == xcore.SectorSize {
		copy(o.ch.Sector[:], o.buf[:])
		o.remaining--
		o.busyWrite = true
		o.setStatus(StatusBSY)
		o.phase = Busy
		o.ch.Post(xcore.OpWriteSector, o.nextLBA)
		o.nextLBA++
	}
}

// HandleRead services one host read inside the overlay range. The bool
// result reports whether the overlay drives the data bus for this address.
func (o *Overlay) HandleRead(addr uint16) (byte, bool) {
	o.poll()
	if addr >= dataLo && addr <= dataHi {
		return o.readData(addr), true
	}
	switch addr & 0x0F {
	case regErrorFeature:
		return o.errReg, true
	case regSectorCount:
		return o.sectorCount, true
	case regSector:
		return o.sector, true
	case regCylinderLow:
		return o.cylLow, true
	case regCylinderHigh:
		return o.cylHigh, true
	case regDeviceHead:
		return o.devHead, true
	case regStatusCommand, regAltDevControl:
		return o.status, true
	}
	return 0xFF, false
}

// readData is the ReadData-phase data register: even access returns the
// low byte and stages the high byte in the latch, odd access returns the
// latch and advances the cursor one word. Outside ReadData the host sees
// the status byte's worth of nothing: 0xFF.
func (o *Overlay) readData(addr uint16) byte {
	if o.phase != ReadData || o.cursor >= xcore.SectorSize {
		return 0xFF
	}
	if addr&1 == 0 {
		o.latch = o.buf[o.cursor+1]
		o.latchValid = true
		return o.buf[o.cursor]
	}
	if !o.latchValid {
		return 0xFF
	}
	v := o.latch
	o.latchValid = false
	o.cursor += 2
	if o.cursor == xcore.SectorSize {
		o.remaining--
		if o.remaining == 0 {
			o.setStatus(StatusDRDY)
			o.phase = Idle
		} else {
			o.setStatus(StatusBSY)
			o.phase = Busy
			o.ch.Post(xcore.OpReadSector, o.nextLBA)
			o.nextLBA++
		}
	}
	return v
}

// exec dispatches a command-register write. Completion flags are dropped
// before a new command is posted: a completion left over from an aborted
// transfer must never satisfy this one.
func (o *Overlay) exec(cmd byte) {
	switch cmd {
	case cmdReadSectors, cmdReadNoRetry:
		o.ch.DropCompletions()
		o.remaining = int(o.sectorCount)
		if o.remaining == 0 {
			o.remaining = 256
		}
		o.nextLBA = o.lba()
		o.busyWrite = false
		o.setStatus(StatusBSY)
		o.phase = Busy
		o.ch.Post(xcore.OpReadSector, o.nextLBA)
		o.nextLBA++
	case cmdWriteSectors, cmdWriteNoRetry:
		o.ch.DropCompletions()
		o.remaining = int(o.sectorCount)
		if o.remaining == 0 {
			o.remaining = 256
		}
		o.nextLBA = o.lba()
		o.cursor = 0
		o.latchValid = false
		o.setStatus(StatusDRDY | StatusDRQ)
		o.phase = WriteData
	case cmdIdentify:
		o.ch.DropCompletions()
		o.remaining = 1
		o.busyWrite = false
		o.setStatus(StatusBSY)
		o.phase = Busy
		o.ch.Post(xcore.OpIdentify, 0)
	case cmdDeviceReset, cmdExecDiag:
		o.reset()
	default:
		o.errReg |= ErrorABRT
		o.setStatus(StatusDRDY | StatusERR)
		o.phase = Idle
	}
}
