// medium.go - flat-file medium for disk images
//
// Copyright (c) 2026 MSX Picoverse contributors
// License: GPLv3 or later

package storage

import (
	"os"

	"github.com/paniksystem/msxpicoverse/internal/xcore"
)

// FileMedium exposes a disk-image file as a sector-addressable Medium.
type FileMedium struct {
	*os.File
	sectors uint32
}

// OpenFileMedium opens path as the attached storage unit.
func OpenFileMedium(path string) (*FileMedium, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &FileMedium{File: f, sectors: uint32(st.Size() / xcore.SectorSize)}, nil
}

// Sectors returns the image capacity in 512-byte sectors.
func (m *FileMedium) Sectors() uint32 { return m.sectors }
