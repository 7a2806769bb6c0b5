// main.go - firmware entry point: core 0 + core 1 under one supervisor
//
// Copyright (c) 2026 MSX Picoverse contributors
// License: GPLv3 or later

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/paniksystem/msxpicoverse/internal/audio"
	"github.com/paniksystem/msxpicoverse/internal/busfe"
	"github.com/paniksystem/msxpicoverse/internal/cart"
	"github.com/paniksystem/msxpicoverse/internal/diag"
	"github.com/paniksystem/msxpicoverse/internal/ide"
	"github.com/paniksystem/msxpicoverse/internal/mapper"
	"github.com/paniksystem/msxpicoverse/internal/menu"
	"github.com/paniksystem/msxpicoverse/internal/romsrc"
	"github.com/paniksystem/msxpicoverse/internal/storage"
	"github.com/paniksystem/msxpicoverse/internal/xcore"
)

// cacheSize is the SRAM budget available for the ROM cache. In the
// IDE-with-mapper-RAM mode that same region is the mapper's workspace
// instead, so the Disk variant runs with caching off.
const cacheSize = 128 * 1024

const sampleRate = 44100

func usage() {
	fmt.Fprintf(os.Stderr, "usage: corefw <flash-image> [disk-image]\n")
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	flashPath := os.Args[1]

	flash, err := os.Open(flashPath)
	if err != nil {
		diag.Logf("corefw", "open flash image: %v", err)
		os.Exit(1)
	}
	defer flash.Close()

	hdr, err := cart.ParseHeader(flash, 0)
	if err != nil {
		// Header corruption: halt rather than guess at a mapper.
		diag.Logf("corefw", "flash header: %v", err)
		os.Exit(1)
	}
	variant, ok := mapper.Select(hdr.Mapper)
	if !ok {
		diag.Logf("corefw", "flash header: unknown mapper selector %d", hdr.Mapper)
		os.Exit(1)
	}
	diag.Logf("corefw", "rom %q, mapper %s, %d bytes", hdr.Name, variant.Name, hdr.Length)

	bus := busfe.New()

	// WAIT stays low for the whole cache copy; the host must not fetch
	// from a half-initialised cartridge.
	bus.HoldWait()
	rom := io.NewSectionReader(flash, int64(hdr.Offset), int64(hdr.Length))
	src, err := romsrc.Prepare(rom, int(hdr.Length), cacheSize, !variant.NeedsPoll)
	bus.ReleaseWait()
	if err != nil {
		diag.Logf("corefw", "prepare rom source: %v", err)
		os.Exit(1)
	}
	regs := mapper.NewBankFile(variant.RegCount, variant.RegWidth)
	ch := &xcore.Channel{}
	storageSem := semaphore.NewWeighted(1)

	var medium storage.Medium
	if len(os.Args) > 2 {
		fm, err := storage.OpenFileMedium(os.Args[2])
		if err != nil {
			diag.Logf("corefw", "open disk image: %v", err)
			os.Exit(1)
		}
		defer fm.Close()
		medium = fm
	}

	var iceptors []mapper.Interceptor
	cat := menu.NewCatalogue()
	if variant.ID == mapper.Disk {
		ch.SetIdentifyPending(true)
		iceptors = append(iceptors,
			ide.New(regs, ch),
			menu.NewSurface(ch, cat),
		)
	}
	disp := mapper.NewDispatcher(bus, variant, regs, src, iceptors...)

	translator := storage.NewTranslator(ch, medium, storageSem, "PICOVERSE CF", "PV000001")

	sink, err := audio.NewSink(sampleRate, storageSem)
	if err != nil {
		// Headless hosts have no audio device; the bus engine does not
		// care, so run without the sink.
		diag.Logf("corefw", "audio device unavailable: %v", err)
		sink = nil
	} else {
		// The synth chip streams continuously; until a channel is keyed
		// its wavetable is empty and the DAC carries silence.
		sink.SetSource(audio.NewWavetable(nil))
		sink.Start()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		disp.Run(ctx)
		return nil
	})
	g.Go(func() error {
		runCore1(ctx, ch, translator, cat, storageSem)
		return nil
	})

	if err := g.Wait(); err != nil {
		diag.Logf("corefw", "fatal: %v", err)
		os.Exit(1)
	}
	if sink != nil {
		sink.Close()
	}
}

// runCore1 is the cooperative background loop: route posted commands to
// their consumer, interleave directory-scan steps, sleep briefly when idle.
func runCore1(ctx context.Context, ch *xcore.Channel, tr *storage.Translator, cat *menu.Catalogue, sem *semaphore.Weighted) {
	scanner := newMediumScanner(sem)
	handedOver := false
	for ctx.Err() == nil {
		if op, arg, ok := ch.Poll(); ok {
			tr.HandleOp(op, arg)
			continue
		}
		if op, arg, ok := ch.PollMenu(); ok {
			cat.HandleOp(op, arg)
			continue
		}
		if scanner != nil && !scanner.Done() {
			if scanner.Step() {
				continue
			}
			// Controller busy: fall through to the idle sleep.
		} else if scanner != nil && !handedOver {
			cat.SetRecords(scanner.Records())
			handedOver = true
		}
		time.Sleep(time.Millisecond)
	}
}

// newMediumScanner scans the current working directory for ROM images. A
// real unit scans the mounted medium's filesystem; the working directory is
// the development stand-in for it.
func newMediumScanner(sem *semaphore.Weighted) *storage.Scanner {
	return storage.NewScanner(os.DirFS("."), sem)
}
