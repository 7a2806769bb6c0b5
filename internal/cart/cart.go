// cart.go - flash-resident ROM image header
//
// Copyright (c) 2026 MSX Picoverse contributors
// License: GPLv3 or later

// Package cart reads the typed header record that follows the firmware
// image in flash and precedes the ROM image itself:
//
//	[ firmware image (fixed, aligned) ]
//	[ header: name (50B, zero-padded) | mapper (1B) | length (4B LE) | offset (4B LE) ]
//	[ ROM image ]
package cart

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// NameLen is the fixed, zero-padded width of the header's name field.
const NameLen = 50

// HeaderLen is the on-disk size of a Header record: NameLen + mapper(1) +
// length(4) + offset(4).
const HeaderLen = NameLen + 1 + 4 + 4

// MinMapperID and MaxMapperID bound the mapper selector field: valid
// selectors are 1 through 10 inclusive.
const (
	MinMapperID = 1
	MaxMapperID = 10
)

// ErrBadMapper is returned when the header's mapper selector falls outside
// {1..10}. This is header corruption: the caller is expected to halt rather
// than guess at a mapper.
var ErrBadMapper = errors.New("cart: mapper selector out of range")

// ErrTruncated is returned when fewer than HeaderLen bytes are available at
// the header offset.
var ErrTruncated = errors.New("cart: truncated header")

// Header is the parsed flash header record.
type Header struct {
	Name   string
	Mapper uint8
	Length uint32
	Offset uint32
}

// ParseHeader reads and validates a Header starting at byte offset off of r.
// The ROM image's own length must not exceed the caller-supplied ROM-source
// capacity for the chosen mapper; that check is the caller's responsibility
// (it depends on the mapper, not on the header alone).
func ParseHeader(r io.ReaderAt, off int64) (Header, error) {
	buf := make([]byte, HeaderLen)
	n, err := r.ReadAt(buf, off)
	if n < HeaderLen {
		if err == nil {
			err = ErrTruncated
		}
		return Header{}, fmt.Errorf("cart: read header: %w", err)
	}

	nameField := buf[:NameLen]
	name := string(bytes.TrimRight(nameField, "\x00"))

	mapperID := buf[NameLen]
	length := binary.LittleEndian.Uint32(buf[NameLen+1 : NameLen+5])
	offset := binary.LittleEndian.Uint32(buf[NameLen+5 : NameLen+9])

	if mapperID < MinMapperID || mapperID > MaxMapperID {
		return Header{}, fmt.Errorf("%w: got %d", ErrBadMapper, mapperID)
	}

	return Header{
		Name:   name,
		Mapper: mapperID,
		Length: length,
		Offset: offset,
	}, nil
}
