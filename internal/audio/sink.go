// sink.go - oto-backed DAC sink
//
// Copyright (c) 2026 MSX Picoverse contributors
// License: GPLv3 or later

package audio

import (
	"context"
	"encoding/binary"
	"math"
	"sync"
	"sync/atomic"

	"github.com/ebitengine/oto/v3"
	"golang.org/x/sync/semaphore"
)

// sourceBox wraps a SampleSource so the hot Read path can swap sources
// with a single atomic pointer load, no lock.
type sourceBox struct {
	src SampleSource
}

// Sink streams samples from a SampleSource out through the audio device.
// The synth chip's output stream is always on and costs nothing on the
// storage side; playback of decoded media from the medium additionally
// holds the storage semaphore so directory scans defer for its duration.
type Sink struct {
	ctx    *oto.Context
	player *oto.Player
	source atomic.Pointer[sourceBox]
	sem    *semaphore.Weighted

	mu         sync.Mutex // setup/control only, never the Read path
	playing    bool
	holdingSem bool
}

// NewSink opens the audio device at sampleRate, mono float32.
func NewSink(sampleRate int, sem *semaphore.Weighted) (*Sink, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
		BufferSize:   4,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-ready

	s := &Sink{ctx: ctx, sem: sem}
	s.player = ctx.NewPlayer(s)
	return s, nil
}

// SetSource installs the sample source the device pulls from. Safe to call
// while playing.
func (s *Sink) SetSource(src SampleSource) {
	s.source.Store(&sourceBox{src: src})
}

// Read fills p with little-endian float32 samples pulled from the current
// source. It is called from the audio device's own goroutine; with no
// source installed it produces silence.
func (s *Sink) Read(p []byte) (int, error) {
	box := s.source.Load()
	if box == nil {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}
	n := len(p) / 4 * 4
	for i := 0; i < n; i += 4 {
		bits := math.Float32bits(box.src.ReadSample())
		binary.LittleEndian.PutUint32(p[i:], bits)
	}
	return n, nil
}

// Start begins streaming the synth chip's output. No storage involved.
func (s *Sink) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.playing {
		s.player.Play()
		s.playing = true
	}
}

// StartPlayback begins playback of a source decoded from the medium. It
// blocks until the storage controller is free and holds it until Stop, so
// the scanner and playback never contend for the controller.
func (s *Sink) StartPlayback(ctx context.Context, src SampleSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.holdingSem {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			return err
		}
		s.holdingSem = true
	}
	s.SetSource(src)
	if !s.playing {
		s.player.Play()
		s.playing = true
	}
	return nil
}

// Stop pauses output and releases the storage controller if playback held it.
func (s *Sink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playing {
		s.player.Pause()
		s.playing = false
	}
	if s.holdingSem {
		s.sem.Release(1)
		s.holdingSem = false
	}
}

// Close stops output and tears the device down.
func (s *Sink) Close() error {
	s.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.player.Close()
}
