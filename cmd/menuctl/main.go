// main.go - interactive driver for the menu register bank
//
// Copyright (c) 2026 MSX Picoverse contributors
// License: GPLv3 or later

// menuctl stands in for the host-side menu driver during development: it
// spins up the Disk-mapper bus engine against a directory of ROM images and
// maps single keystrokes onto the menu register bank, the same writes the
// real menu ROM issues over the cartridge bus. Keys act immediately; the
// terminal runs raw, no Enter.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/term"

	"github.com/paniksystem/msxpicoverse/internal/busfe"
	"github.com/paniksystem/msxpicoverse/internal/diag"
	"github.com/paniksystem/msxpicoverse/internal/ide"
	"github.com/paniksystem/msxpicoverse/internal/mapper"
	"github.com/paniksystem/msxpicoverse/internal/menu"
	"github.com/paniksystem/msxpicoverse/internal/romsrc"
	"github.com/paniksystem/msxpicoverse/internal/storage"
	"github.com/paniksystem/msxpicoverse/internal/xcore"
)

// Menu register addresses on the bus.
const (
	addrCountLo = 0x7F00
	addrCountHi = 0x7F01
	addrStatus  = 0x7F02
	addrPage    = 0x7F03
	addrSelect  = 0x7F04
	addrSearch  = 0x7F05
	addrData    = 0x7F06
)

func main() {
	dir := "."
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	bus := busfe.New()
	variant, _ := mapper.Select(uint8(mapper.Disk))
	regs := mapper.NewBankFile(variant.RegCount, variant.RegWidth)
	ch := &xcore.Channel{}
	sem := semaphore.NewWeighted(1)
	cat := menu.NewCatalogue()

	src, err := romsrc.Prepare(emptyROM{}, 0, 0, false)
	if err != nil {
		diag.Logf("menuctl", "rom source: %v", err)
		os.Exit(1)
	}
	disp := mapper.NewDispatcher(bus, variant, regs, src,
		ide.New(regs, ch),
		menu.NewSurface(ch, cat),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go disp.Run(ctx)
	go core1(ctx, ch, cat, dir, sem)

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		diag.Logf("menuctl", "failed to set raw mode: %v", err)
		os.Exit(1)
	}
	defer term.Restore(fd, oldState)

	fmt.Print("menuctl: n=next page, p=prev page, a-z=search, 0=clear search, q=quit\r\n")

	page := byte(0)
	showPage(bus, page)
	var key [1]byte
	for {
		if _, err := os.Stdin.Read(key[:]); err != nil {
			return
		}
		switch k := key[0]; {
		case k == 'q' || k == 3: // q or ctrl-C
			return
		case k == 'n':
			page++
			showPage(bus, page)
		case k == 'p':
			if page > 0 {
				page--
			}
			showPage(bus, page)
		case k == '0':
			bus.StrobeWrite(addrSearch, 0)
			page = 0
			showPage(bus, page)
		case k >= 'a' && k <= 'z':
			bus.StrobeWrite(addrSearch, k)
			page = 0
			showPage(bus, page)
		case k >= '1' && k <= '9':
			bus.StrobeWrite(addrSelect, k-'1')
			fmt.Printf("selected record %d\r\n", k-'1')
		}
	}
}

// showPage requests a catalogue page and prints it once core 1 stages it.
func showPage(bus *busfe.Bus, page byte) {
	bus.StrobeWrite(addrPage, page)
	deadline := time.Now().Add(time.Second)
	for bus.StrobeRead(addrStatus).Data()&0x01 == 0 {
		if time.Now().After(deadline) {
			fmt.Print("page not ready\r\n")
			return
		}
		time.Sleep(time.Millisecond)
	}
	count := uint16(bus.StrobeRead(addrCountLo).Data()) |
		uint16(bus.StrobeRead(addrCountHi).Data())<<8
	fmt.Printf("-- page %d, %d records --\r\n", page, count)
	for i := 0; i < menu.PageEntries; i++ {
		var entry [menu.EntryLen]byte
		for j := range entry {
			entry[j] = bus.StrobeRead(addrData).Data()
		}
		name := trimZero(entry[:menu.EntryLen-2])
		if name == "" {
			break
		}
		kb := uint16(entry[menu.EntryLen-2]) | uint16(entry[menu.EntryLen-1])<<8
		fmt.Printf("  %s (%d KB)\r\n", name, kb)
	}
}

func trimZero(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// core1 services menu commands and runs the directory scan to completion.
func core1(ctx context.Context, ch *xcore.Channel, cat *menu.Catalogue, dir string, sem *semaphore.Weighted) {
	scanner := storage.NewScanner(os.DirFS(dir), sem)
	scanner.RunToCompletion(ctx)
	cat.SetRecords(scanner.Records())
	for ctx.Err() == nil {
		if op, arg, ok := ch.PollMenu(); ok {
			cat.HandleOp(op, arg)
			continue
		}
		time.Sleep(time.Millisecond)
	}
}

// emptyROM backs the menu-mode ROM source; menuctl never reads ROM bytes.
type emptyROM struct{}

func (emptyROM) ReadAt(p []byte, off int64) (int, error) {
	for i := range p {
		p[i] = 0xFF
	}
	return len(p), nil
}
