// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package blocks implements the MDF 4.1 block taxonomy: the shared 24-byte
// block header, the typed blocks (##ID, ##HD, ##DG, ##CG, ##CN, ##CC, ##TX,
// ##MD, ##SI, ##DT, ##DV, ##DL, ##SD), their on-disk parsing and
// serialization, and the conversion engine.
//
// All links are absolute file offsets; zero means "none". Blocks are
// aligned to 8 bytes on disk, zero-padded, little-endian.
package blocks // import "github.com/go-lpc/mdf/blocks"

import (
	"golang.org/x/xerrors"

	"github.com/go-lpc/mdf/internal/bitio"
)

// Block magics handled by this package.
const (
	MagicID = "##ID" // not an actual block header; the 64-byte file preamble
	MagicHD = "##HD"
	MagicDG = "##DG"
	MagicCG = "##CG"
	MagicCN = "##CN"
	MagicCC = "##CC"
	MagicTX = "##TX"
	MagicMD = "##MD"
	MagicSI = "##SI"
	MagicDT = "##DT"
	MagicDV = "##DV"
	MagicDL = "##DL"
	MagicSD = "##SD"
	MagicDZ = "##DZ" // recognized, not supported
)

// HeaderSize is the size of the common block header in bytes.
const HeaderSize = 24

// Header is the 24-byte header shared by every MDF 4 block: a 4-byte ASCII
// magic, 4 reserved bytes, the total block length (header + links +
// payload) and the number of links.
type Header struct {
	ID        string
	Length    uint64
	LinkCount uint64
}

// ParseHeader decodes the common block header at the beginning of buf and,
// if want is non-empty, validates the magic against it.
func ParseHeader(buf []byte, want string) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, shortBuf(len(buf), HeaderSize)
	}
	h := Header{
		ID:        string(buf[:4]),
		Length:    bitio.ReadU64(buf[8:16]),
		LinkCount: bitio.ReadU64(buf[16:24]),
	}
	if want != "" && h.ID != want {
		return Header{}, &MagicError{Got: h.ID, Want: want}
	}
	if h.Length < HeaderSize+8*h.LinkCount {
		return Header{}, xerrors.Errorf("blocks: %s block length %d below %d links + header: %w",
			h.ID, h.Length, h.LinkCount, errBadLength,
		)
	}
	return h, nil
}

func (h Header) encode(buf []byte) {
	copy(buf[:4], h.ID)
	bitio.PutU32(buf[4:8], 0)
	bitio.PutU64(buf[8:16], h.Length)
	bitio.PutU64(buf[16:24], h.LinkCount)
}

// Align rounds n up to the next multiple of 8.
func Align(n uint64) uint64 {
	return (n + 7) &^ 7
}

// Pad appends zero bytes to buf up to the next multiple of 8.
func Pad(buf []byte) []byte {
	for len(buf)%8 != 0 {
		buf = append(buf, 0)
	}
	return buf
}

// checkRegion verifies that [off, off+n) lies within data.
func checkRegion(data []byte, off uint64, n uint64) error {
	end := off + n
	if end < off || uint64(len(data)) < end {
		return shortBuf(len(data), int(end))
	}
	return nil
}
