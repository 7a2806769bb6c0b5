// ide_bus_test.go - full disk path over the simulated bus, two goroutines
// standing in for the two cores; run with -race.
//
// Copyright (c) 2026 MSX Picoverse contributors
// License: GPLv3 or later

package ide

import (
	"bytes"
	"context"
	"testing"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/paniksystem/msxpicoverse/internal/busfe"
	"github.com/paniksystem/msxpicoverse/internal/mapper"
	"github.com/paniksystem/msxpicoverse/internal/menu"
	"github.com/paniksystem/msxpicoverse/internal/romsrc"
	"github.com/paniksystem/msxpicoverse/internal/storage"
	"github.com/paniksystem/msxpicoverse/internal/xcore"
)

type memMedium struct {
	data []byte
}

func (m *memMedium) ReadAt(p []byte, off int64) (int, error) {
	return copy(p, m.data[off:]), nil
}

func (m *memMedium) WriteAt(p []byte, off int64) (int, error) {
	return copy(m.data[off:], p), nil
}

func (m *memMedium) Sectors() uint32 { return uint32(len(m.data) / xcore.SectorSize) }

// startMachine wires the Disk variant end to end the way the firmware
// does: overlay and menu surface both installed, polling dispatcher on one
// goroutine, the core-1 loop serving both command slots on another.
func startMachine(t *testing.T, medium storage.Medium) (*busfe.Bus, *menu.Catalogue) {
	t.Helper()
	bus := busfe.New()
	v, _ := mapper.Select(uint8(mapper.Disk))
	regs := mapper.NewBankFile(v.RegCount, v.RegWidth)
	ch := &xcore.Channel{}
	cat := menu.NewCatalogue()
	cat.SetRecords([]storage.Record{{Name: "boot.dsk", Size: 720 * 1024}})

	rom := make([]byte, 128*1024)
	src, err := romsrc.Prepare(bytes.NewReader(rom), len(rom), len(rom), true)
	if err != nil {
		t.Fatal(err)
	}
	disp := mapper.NewDispatcher(bus, v, regs, src, New(regs, ch), menu.NewSurface(ch, cat))
	tr := storage.NewTranslator(ch, medium, semaphore.NewWeighted(1), "E2E DISK", "E2E00001")

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go disp.Run(ctx)
	go func() {
		for ctx.Err() == nil {
			if op, arg, ok := ch.Poll(); ok {
				tr.HandleOp(op, arg)
				continue
			}
			if op, arg, ok := ch.PollMenu(); ok {
				cat.HandleOp(op, arg)
				continue
			}
			time.Sleep(10 * time.Microsecond)
		}
	}()
	return bus, cat
}

func write(t *testing.T, bus *busfe.Bus, addr uint16, data byte) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !bus.StrobeWrite(addr, data) {
		if time.Now().After(deadline) {
			t.Fatalf("write %#04x dropped: FIFO never drained", addr)
		}
	}
}

// waitReady polls the status register until BSY clears.
func waitReady(t *testing.T, bus *busfe.Bus) byte {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		st := bus.StrobeRead(0x7E07).Data()
		if st&StatusBSY == 0 {
			return st
		}
		if time.Now().After(deadline) {
			t.Fatal("device stuck busy")
		}
	}
}

func TestEndToEndSectorRead(t *testing.T) {
	medium := &memMedium{data: make([]byte, 16*xcore.SectorSize)}
	for i := range medium.data {
		medium.data[i] = byte(i % 251)
	}
	bus, _ := startMachine(t, medium)

	// Task-file burst: overlay enable, then LBA 3, one sector, READ.
	write(t, bus, 0x4104, 0x01)
	write(t, bus, 0x7E02, 1)
	write(t, bus, 0x7E03, 3)
	write(t, bus, 0x7E04, 0)
	write(t, bus, 0x7E05, 0)
	write(t, bus, 0x7E06, 0xE0)
	write(t, bus, 0x7E07, 0x20)

	st := waitReady(t, bus)
	if st != StatusDRDY|StatusDRQ {
		t.Fatalf("status = %#02x, want DRDY|DRQ", st)
	}

	base := 3 * xcore.SectorSize
	for w := 0; w < 256; w++ {
		lo := bus.StrobeRead(0x7C00).Data()
		hi := bus.StrobeRead(0x7C01).Data()
		if lo != medium.data[base+2*w] || hi != medium.data[base+2*w+1] {
			t.Fatalf("word %d = %02x %02x, want %02x %02x",
				w, lo, hi, medium.data[base+2*w], medium.data[base+2*w+1])
		}
	}
	if st := bus.StrobeRead(0x7E07).Data(); st != StatusDRDY {
		t.Errorf("status after transfer = %#02x, want DRDY", st)
	}
}

func TestEndToEndSectorWrite(t *testing.T) {
	medium := &memMedium{data: make([]byte, 16*xcore.SectorSize)}
	bus, _ := startMachine(t, medium)

	write(t, bus, 0x4104, 0x01)
	write(t, bus, 0x7E02, 1)
	write(t, bus, 0x7E03, 7)
	write(t, bus, 0x7E07, 0x30)

	if st := waitReady(t, bus); st != StatusDRDY|StatusDRQ {
		t.Fatalf("status = %#02x, want DRDY|DRQ", st)
	}
	for w := 0; w < 256; w++ {
		write(t, bus, 0x7C00, byte(w))
		write(t, bus, 0x7C01, byte(w>>4))
	}

	if st := waitReady(t, bus); st != StatusDRDY {
		t.Fatalf("status after flush = %#02x, want DRDY", st)
	}
	base := 7 * xcore.SectorSize
	for w := 0; w < 256; w++ {
		if medium.data[base+2*w] != byte(w) || medium.data[base+2*w+1] != byte(w>>4) {
			t.Fatalf("word %d not persisted", w)
		}
	}
}

func TestEndToEndROMStillServedOutsideOverlay(t *testing.T) {
	medium := &memMedium{data: make([]byte, 4*xcore.SectorSize)}
	bus, _ := startMachine(t, medium)

	write(t, bus, 0x4104, 0x01)
	// 0x4000-0x7BFF stays banked ROM even with the overlay live.
	tok := bus.StrobeRead(0x5000)
	if !tok.Drives() {
		t.Error("ROM window read not driven with the overlay enabled")
	}
}

// TestMenuWriteDoesNotClobberPendingIDECommand pins the two-producer
// discipline: a menu-bank write landing while the overlay has a sector
// command in flight must neither discard that command nor leak it to the
// catalogue. Deterministic version, no goroutines: the test plays core 1.
func TestMenuWriteDoesNotClobberPendingIDECommand(t *testing.T) {
	v, _ := mapper.Select(uint8(mapper.Disk))
	regs := mapper.NewBankFile(v.RegCount, v.RegWidth)
	v.HandleWrite(regs, 0x4104, 0x01)
	ch := &xcore.Channel{}
	o := New(regs, ch)
	cat := menu.NewCatalogue()
	cat.SetRecords([]storage.Record{{Name: "boot.dsk", Size: 720 * 1024}})
	surface := menu.NewSurface(ch, cat)

	// Issue a read; the overlay goes Busy with the command pending on the
	// disk slot, unconsumed.
	o.HandleWrite(0x7E02, 1)
	o.HandleWrite(0x7E03, 5)
	o.HandleWrite(0x7E07, 0x20)
	if o.Phase() != Busy {
		t.Fatalf("phase = %v, want Busy", o.Phase())
	}

	// Menu traffic arrives before core 1 has taken the disk command.
	surface.HandleWrite(0x7F03, 2) // page request
	surface.HandleWrite(0x7F05, 'b')

	// The disk command must still be there, intact.
	op, arg, ok := ch.Poll()
	if !ok || op != xcore.OpReadSector || arg != 5 {
		t.Fatalf("disk slot = (%d, %d, %v), want OpReadSector lba 5 untouched", op, arg, ok)
	}

	// The menu commands travelled on their own slot (latest wins).
	op, arg, ok = ch.PollMenu()
	if !ok || op != xcore.OpMenuSearch || arg != 'b' {
		t.Fatalf("menu slot = (%d, %d, %v), want the search key", op, arg, ok)
	}

	// Complete the read: the overlay must come out of Busy, not hang.
	for i := range ch.Sector {
		ch.Sector[i] = 0xCD
	}
	ch.SignalRead(false)
	st, _ := o.HandleRead(0x7E07)
	if st != StatusDRDY|StatusDRQ {
		t.Fatalf("status = %#02x, want DRDY|DRQ after completion", st)
	}
	if got := readWord(o); got != 0xCDCD {
		t.Errorf("first data word = %#04x, want 0xCDCD", got)
	}
}

// TestMenuTrafficDuringSectorReadOverBus drives the same interleaving end
// to end with both interceptors installed and a live core-1 loop.
func TestMenuTrafficDuringSectorReadOverBus(t *testing.T) {
	medium := &memMedium{data: make([]byte, 16*xcore.SectorSize)}
	for i := range medium.data {
		medium.data[i] = byte(i)
	}
	bus, cat := startMachine(t, medium)

	write(t, bus, 0x4104, 0x01)
	write(t, bus, 0x7E02, 1)
	write(t, bus, 0x7E03, 2)
	write(t, bus, 0x7E07, 0x20)
	// Menu request immediately behind the READ command, while the sector
	// fetch is most likely still in flight.
	write(t, bus, 0x7F03, 0)

	st := waitReady(t, bus)
	if st != StatusDRDY|StatusDRQ {
		t.Fatalf("status = %#02x, want DRDY|DRQ; the read command was lost", st)
	}

	base := 2 * xcore.SectorSize
	for w := 0; w < 256; w++ {
		lo := bus.StrobeRead(0x7C00).Data()
		hi := bus.StrobeRead(0x7C01).Data()
		if lo != medium.data[base+2*w] || hi != medium.data[base+2*w+1] {
			t.Fatalf("word %d = %02x %02x, want %02x %02x",
				w, lo, hi, medium.data[base+2*w], medium.data[base+2*w+1])
		}
	}

	// And the menu page request was serviced too.
	deadline := time.Now().Add(2 * time.Second)
	for bus.StrobeRead(0x7F02).Data()&0x01 == 0 {
		if time.Now().After(deadline) {
			t.Fatal("menu page never staged")
		}
		time.Sleep(time.Millisecond)
	}
	if got := cat.Count(); got != 1 {
		t.Errorf("catalogue count = %d, want 1", got)
	}
}
