// translator.go - core-1 ATA command translation against removable storage
//
// Copyright (c) 2026 MSX Picoverse contributors
// License: GPLv3 or later

// Package storage is the core-1 side of the disk path: it translates the
// sector commands the IDE overlay posts across the xcore channel into
// reads and writes against the attached removable medium, and it scans
// that medium's directory for the ROM catalogue. Both compete for the one
// storage controller; a weighted semaphore arbitrates, and the scanner
// always yields to sector traffic and playback.
package storage

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/paniksystem/msxpicoverse/internal/diag"
	"github.com/paniksystem/msxpicoverse/internal/xcore"
)

// Medium is the attached removable storage: a USB mass-storage unit or SD
// card, already enumerated and exposed as flat sector-addressable bytes.
type Medium interface {
	io.ReaderAt
	io.WriterAt
	// Sectors returns the medium's capacity in 512-byte sectors.
	Sectors() uint32
}

// ErrNoMedium is reported while no storage is mounted.
var ErrNoMedium = errors.New("storage: no medium mounted")

// IdentifyGrace is how long an IDENTIFY against an unmounted medium stalls
// busy before the failure is surfaced to the host.
const IdentifyGrace = 500 * time.Millisecond

// Translator owns the medium on core 1 and answers OpReadSector,
// OpWriteSector and OpIdentify. Menu opcodes are not its business; HandleOp
// returns false for them so the core-1 loop can route onward.
type Translator struct {
	ch     *xcore.Channel
	medium Medium
	sem    *semaphore.Weighted

	model  string
	serial string

	// Failures is tallied per failed sector read, sector write or
	// IDENTIFY, for diagnostics.
	Failures diag.Counter
}

// NewTranslator binds the channel to a medium. medium may be nil (nothing
// mounted); sector commands then fail and IDENTIFY stalls through the
// grace interval first.
func NewTranslator(ch *xcore.Channel, medium Medium, sem *semaphore.Weighted, model, serial string) *Translator {
	return &Translator{ch: ch, medium: medium, sem: sem, model: model, serial: serial}
}

// HandleOp services one posted command. It reports false if the opcode
// belongs to another core-1 consumer.
func (t *Translator) HandleOp(op, arg uint32) bool {
	switch op {
	case xcore.OpReadSector:
		t.readSector(arg)
	case xcore.OpWriteSector:
		t.writeSector(arg)
	case xcore.OpIdentify:
		t.identify()
	default:
		return false
	}
	return true
}

func (t *Translator) readSector(lba uint32) {
	if t.medium == nil || lba >= t.medium.Sectors() {
		t.Failures.Add(1)
		t.ch.SignalRead(true)
		return
	}
	_ = t.sem.Acquire(context.Background(), 1)
	_, err := t.medium.ReadAt(t.ch.Sector[:], int64(lba)*xcore.SectorSize)
	t.sem.Release(1)
	if err != nil {
		diag.Logf("storage", "read lba %d: %v", lba, err)
		t.Failures.Add(1)
		t.ch.SignalRead(true)
		return
	}
	t.ch.SignalRead(false)
}

func (t *Translator) writeSector(lba uint32) {
	if t.medium == nil || lba >= t.medium.Sectors() {
		t.Failures.Add(1)
		t.ch.SignalWrite(true)
		return
	}
	_ = t.sem.Acquire(context.Background(), 1)
	_, err := t.medium.WriteAt(t.ch.Sector[:], int64(lba)*xcore.SectorSize)
	t.sem.Release(1)
	if err != nil {
		diag.Logf("storage", "write lba %d: %v", lba, err)
		t.Failures.Add(1)
		t.ch.SignalWrite(true)
		return
	}
	t.ch.SignalWrite(false)
}

// identify fills the transfer buffer with the ATA IDENTIFY DEVICE block.
// With nothing mounted it holds the host in BSY for the grace interval and
// then fails, which the overlay surfaces as ERR/ABRT.
func (t *Translator) identify() {
	if t.medium == nil {
		time.Sleep(IdentifyGrace)
		t.Failures.Add(1)
		t.ch.SignalRead(true)
		return
	}
	buf := t.ch.Sector[:]
	for i := range buf {
		buf[i] = 0
	}
	// Word 0: non-removable ATA device, fixed.
	binary.LittleEndian.PutUint16(buf[0:], 0x0040)
	putIdentifyString(buf[20:40], t.serial)                      // words 10-19
	putIdentifyString(buf[46:54], "1.0")                         // words 23-26, firmware rev
	putIdentifyString(buf[54:94], t.model)                       // words 27-46
	binary.LittleEndian.PutUint16(buf[98:], 0x0200)              // word 49: LBA supported
	binary.LittleEndian.PutUint32(buf[120:], t.medium.Sectors()) // words 60-61
	t.ch.SetIdentifyPending(false)
	t.ch.SignalRead(false)
}

// putIdentifyString encodes s into an IDENTIFY field: space-padded ASCII
// with each byte pair swapped, per the ATA string convention.
func putIdentifyString(dst []byte, s string) {
	for i := range dst {
		dst[i] = ' '
	}
	copy(dst, s)
	for i := 0; i+1 < len(dst); i += 2 {
		dst[i], dst[i+1] = dst[i+1], dst[i]
	}
}
