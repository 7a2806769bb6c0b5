// romsrc_test.go
//
// Copyright (c) 2026 MSX Picoverse contributors
// License: GPLv3 or later

package romsrc

import (
	"bytes"
	"errors"
	"testing"
)

func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i * 7)
	}
	return b
}

func TestFullyCachedImage(t *testing.T) {
	rom := pattern(1024)
	src, err := Prepare(bytes.NewReader(rom), len(rom), 4096, true)
	if err != nil {
		t.Fatal(err)
	}
	if src.CachedLen() != len(rom) {
		t.Fatalf("cached %d, want the whole image %d", src.CachedLen(), len(rom))
	}
	for _, r := range []int{0, 1, 511, 1023} {
		if got := src.Read(r); got != rom[r] {
			t.Errorf("Read(%d) = %#02x, want %#02x", r, got, rom[r])
		}
	}
}

func TestPartialCacheFallsThroughToBacking(t *testing.T) {
	rom := pattern(8192)
	src, err := Prepare(bytes.NewReader(rom), len(rom), 1024, true)
	if err != nil {
		t.Fatal(err)
	}
	if src.CachedLen() != 1024 {
		t.Fatalf("cached %d, want 1024", src.CachedLen())
	}
	// Below the cache boundary and above it must agree with the image.
	for _, r := range []int{0, 1023, 1024, 8191} {
		if got := src.Read(r); got != rom[r] {
			t.Errorf("Read(%d) = %#02x, want %#02x", r, got, rom[r])
		}
	}
}

func TestCacheDisabled(t *testing.T) {
	rom := pattern(512)
	src, err := Prepare(bytes.NewReader(rom), len(rom), 4096, false)
	if err != nil {
		t.Fatal(err)
	}
	if src.CachedLen() != 0 {
		t.Fatalf("cached %d with caching disabled", src.CachedLen())
	}
	if got := src.Read(100); got != rom[100] {
		t.Errorf("Read(100) = %#02x, want %#02x", got, rom[100])
	}
}

func TestReadPastImageReturnsFiller(t *testing.T) {
	rom := pattern(256)
	src, err := Prepare(bytes.NewReader(rom), len(rom), 4096, true)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range []int{256, 1 << 20, -1} {
		if got := src.Read(r); got != FillerByte {
			t.Errorf("Read(%d) = %#02x, want filler", r, got)
		}
	}
}

type failingReader struct{}

func (failingReader) ReadAt(p []byte, off int64) (int, error) {
	return 0, errors.New("backing store offline")
}

func TestPrepareSurfacesCopyError(t *testing.T) {
	if _, err := Prepare(failingReader{}, 512, 512, true); err == nil {
		t.Fatal("Prepare swallowed a backing-store error")
	}
}
