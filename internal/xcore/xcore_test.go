// xcore_test.go - command slot and completion flag discipline
//
// Copyright (c) 2026 MSX Picoverse contributors
// License: GPLv3 or later

package xcore

import (
	"sync"
	"testing"
)

func TestCommandSlotSingleShot(t *testing.T) {
	ch := &Channel{}

	if _, _, ok := ch.Poll(); ok {
		t.Fatal("empty slot polled a command")
	}

	ch.Post(OpReadSector, 42)
	op, arg, ok := ch.Poll()
	if !ok || op != OpReadSector || arg != 42 {
		t.Fatalf("Poll = (%d, %d, %v)", op, arg, ok)
	}
	if _, _, ok := ch.Poll(); ok {
		t.Fatal("command consumed twice")
	}
}

func TestCompletionFlagsConsumeOnce(t *testing.T) {
	ch := &Channel{}

	if done, _ := ch.TakeReadResult(); done {
		t.Fatal("completion reported with no signal")
	}

	ch.SignalRead(false)
	done, failed := ch.TakeReadResult()
	if !done || failed {
		t.Fatalf("TakeReadResult = (%v, %v), want (true, false)", done, failed)
	}
	if done, _ := ch.TakeReadResult(); done {
		t.Fatal("completion observed twice")
	}

	ch.SignalRead(true)
	done, failed = ch.TakeReadResult()
	if !done || !failed {
		t.Fatalf("failed completion = (%v, %v), want (true, true)", done, failed)
	}
}

func TestWriteFlagsIndependentOfReadFlags(t *testing.T) {
	ch := &Channel{}
	ch.SignalWrite(false)
	if done, _ := ch.TakeReadResult(); done {
		t.Fatal("write completion leaked into the read flags")
	}
	done, failed := ch.TakeWriteResult()
	if !done || failed {
		t.Fatalf("TakeWriteResult = (%v, %v)", done, failed)
	}
}

func TestDropCompletionsDiscardsLateSignals(t *testing.T) {
	ch := &Channel{}
	ch.SignalRead(false)
	ch.SignalWrite(true)
	ch.DropCompletions()
	if done, _ := ch.TakeReadResult(); done {
		t.Error("read completion survived a drop")
	}
	if done, _ := ch.TakeWriteResult(); done {
		t.Error("write completion survived a drop")
	}
}

// TestProducerConsumerHandOff drives the slot across two goroutines the way
// the two cores share it; run with -race.
func TestProducerConsumerHandOff(t *testing.T) {
	ch := &Channel{}
	const rounds = 1000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			op, arg, ok := ch.Poll()
			if !ok {
				i--
				continue
			}
			if op != OpReadSector {
				t.Errorf("round %d: op = %d", i, op)
				return
			}
			ch.Sector[0] = byte(arg)
			ch.SignalRead(false)
		}
	}()

	for i := 0; i < rounds; i++ {
		ch.Post(OpReadSector, uint32(i))
		for {
			done, failed := ch.TakeReadResult()
			if done {
				if failed {
					t.Fatalf("round %d failed", i)
				}
				break
			}
		}
		if ch.Sector[0] != byte(i) {
			t.Fatalf("round %d: sector byte %d, want %d", i, ch.Sector[0], byte(i))
		}
	}
	wg.Wait()
}

func TestMenuSlotIndependentOfDiskSlot(t *testing.T) {
	ch := &Channel{}

	// A menu post while a disk command is pending must not disturb it.
	ch.Post(OpReadSector, 7)
	ch.PostMenu(OpMenuPage, 2)

	op, arg, ok := ch.Poll()
	if !ok || op != OpReadSector || arg != 7 {
		t.Fatalf("disk slot = (%d, %d, %v), want the pending OpReadSector 7", op, arg, ok)
	}
	op, arg, ok = ch.PollMenu()
	if !ok || op != OpMenuPage || arg != 2 {
		t.Fatalf("menu slot = (%d, %d, %v), want OpMenuPage 2", op, arg, ok)
	}

	// And the other way round.
	ch.PostMenu(OpMenuSearch, 'a')
	ch.Post(OpWriteSector, 9)
	if op, _, _ := ch.PollMenu(); op != OpMenuSearch {
		t.Errorf("menu slot = %d, want OpMenuSearch", op)
	}
	if op, _, _ := ch.Poll(); op != OpWriteSector {
		t.Errorf("disk slot = %d, want OpWriteSector", op)
	}
}

func TestSlotPendingPeek(t *testing.T) {
	var s Slot
	if s.Pending() {
		t.Fatal("fresh slot pending")
	}
	s.Post(OpIdentify, 0)
	if !s.Pending() {
		t.Fatal("posted slot not pending")
	}
	s.Poll()
	if s.Pending() {
		t.Fatal("slot still pending after consumption")
	}
}

func TestStatusMirror(t *testing.T) {
	ch := &Channel{}
	ch.MirrorStatus(0x58)
	if got := ch.Status(); got != 0x58 {
		t.Errorf("Status = %#02x, want 0x58", got)
	}
}

func TestIdentifyPendingGate(t *testing.T) {
	ch := &Channel{}
	if ch.IdentifyPending() {
		t.Fatal("gate set at creation")
	}
	ch.SetIdentifyPending(true)
	if !ch.IdentifyPending() {
		t.Fatal("gate not set")
	}
	ch.SetIdentifyPending(false)
	if ch.IdentifyPending() {
		t.Fatal("gate not cleared")
	}
}
