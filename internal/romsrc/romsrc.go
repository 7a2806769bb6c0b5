// romsrc.go - unified ROM byte source: SRAM cache over a slow backing store
//
// Copyright (c) 2026 MSX Picoverse contributors
// License: GPLv3 or later

// Package romsrc implements the unified ROM byte source: a
// single random-access byte source that transparently fronts a slow backing
// store (on-chip flash, execute-in-place, or an external USB/SD staging
// buffer) with a fast on-chip SRAM cache.
package romsrc

import "io"

// FillerByte is returned for any offset at or beyond the available length,
// matching the host's default pulled-up bus read.
const FillerByte = 0xFF

// Source is a (cache, cached length, full length) tuple.
// Reads below CachedLen are served from cache; reads in
// [CachedLen, FullLen) are served from the backing store; reads at or past
// FullLen return FillerByte.
type Source struct {
	cache     []byte
	cachedLen int
	fullLen   int
	backing   io.ReaderAt
}

// Prepare chooses between full-SRAM residency and a partial
// cache. With caching disabled nothing is copied and every read goes to
// the backing store. With caching enabled, if the whole image fits the
// cache budget the entire image is copied to SRAM and reads never touch
// the backing store again; otherwise the first cacheSize bytes are cached
// and the remainder is served from backing on every read.
//
// The copy is byte-width by construction (see copyFromBacking): the DMA
// engine this models corrupts unaligned source addresses under a
// word-width transfer, so there is no faster path to reach for here.
func Prepare(backing io.ReaderAt, fullLen, cacheSize int, cacheEnable bool) (*Source, error) {
	s := &Source{backing: backing, fullLen: fullLen}

	if !cacheEnable {
		return s, nil
	}

	toCache := cacheSize
	if fullLen < toCache {
		toCache = fullLen
	}
	if toCache <= 0 {
		return s, nil
	}

	cache := make([]byte, toCache)
	if err := copyFromBacking(cache, backing); err != nil {
		return nil, err
	}
	s.cache = cache
	s.cachedLen = toCache
	return s, nil
}

// copyFromBacking performs the SRAM population as a byte-width transfer.
// Word-width transfers force a masked source address on the real DMA
// engine; reading one byte at a time keeps the source offset exact.
func copyFromBacking(dst []byte, backing io.ReaderAt) error {
	for i := range dst {
		var b [1]byte
		if _, err := backing.ReadAt(b[:], int64(i)); err != nil {
			return err
		}
		dst[i] = b[0]
	}
	return nil
}

// CachedLen returns the number of bytes resident in SRAM.
func (s *Source) CachedLen() int { return s.cachedLen }

// FullLen returns the full image length.
func (s *Source) FullLen() int { return s.fullLen }

// Read returns the byte at ROM-relative offset r, or FillerByte if r falls
// outside the image.
func (s *Source) Read(r int) byte {
	if r < 0 || r >= s.fullLen {
		return FillerByte
	}
	if r < s.cachedLen {
		return s.cache[r]
	}
	var b [1]byte
	if _, err := s.backing.ReadAt(b[:], int64(r)); err != nil {
		return FillerByte
	}
	return b[0]
}
