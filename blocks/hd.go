// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package blocks

import (
	"math"

	"github.com/go-lpc/mdf/internal/bitio"
)

// HeaderBlockSize is the fixed size of a ##HD block.
const HeaderBlockSize = 104

// HeaderBlock is the ##HD block: the root of the block graph, holding the
// absolute measurement start time and the link to the first data group.
type HeaderBlock struct {
	Header Header

	FirstDG    uint64
	FirstFH    uint64
	FirstCH    uint64
	FirstAT    uint64
	FirstEV    uint64
	CommentMD  uint64

	StartTimeNS   uint64 // ns since the Unix epoch, UTC
	TZOffsetMin   int16
	DSTOffsetMin  int16
	TimeFlags     uint8
	TimeClass     uint8
	Flags         uint8
	StartAngle    float64
	StartDistance float64
}

// NewHeaderBlock returns a ##HD block with all links null.
func NewHeaderBlock() *HeaderBlock {
	return &HeaderBlock{
		Header: Header{ID: MagicHD, Length: HeaderBlockSize, LinkCount: 6},
	}
}

// ParseHeaderBlock decodes a ##HD block at the beginning of buf.
func ParseHeaderBlock(buf []byte) (*HeaderBlock, error) {
	hdr, err := ParseHeader(buf, MagicHD)
	if err != nil {
		return nil, err
	}
	if len(buf) < HeaderBlockSize {
		return nil, shortBuf(len(buf), HeaderBlockSize)
	}
	return &HeaderBlock{
		Header:        hdr,
		FirstDG:       bitio.ReadU64(buf[24:32]),
		FirstFH:       bitio.ReadU64(buf[32:40]),
		FirstCH:       bitio.ReadU64(buf[40:48]),
		FirstAT:       bitio.ReadU64(buf[48:56]),
		FirstEV:       bitio.ReadU64(buf[56:64]),
		CommentMD:     bitio.ReadU64(buf[64:72]),
		StartTimeNS:   bitio.ReadU64(buf[72:80]),
		TZOffsetMin:   int16(bitio.ReadU16(buf[80:82])),
		DSTOffsetMin:  int16(bitio.ReadU16(buf[82:84])),
		TimeFlags:     buf[84],
		TimeClass:     buf[85],
		Flags:         buf[86],
		StartAngle:    bitio.ReadF64(buf[88:96]),
		StartDistance: bitio.ReadF64(buf[96:104]),
	}, nil
}

// Serialize encodes the ##HD block to its fixed 104 bytes.
func (hd *HeaderBlock) Serialize() ([]byte, error) {
	if hd.Header.ID != MagicHD {
		return nil, &SerializationError{Msg: "header block must have ID \"##HD\", found " + hd.Header.ID}
	}
	buf := make([]byte, HeaderBlockSize)
	hd.Header.encode(buf)
	bitio.PutU64(buf[24:32], hd.FirstDG)
	bitio.PutU64(buf[32:40], hd.FirstFH)
	bitio.PutU64(buf[40:48], hd.FirstCH)
	bitio.PutU64(buf[48:56], hd.FirstAT)
	bitio.PutU64(buf[56:64], hd.FirstEV)
	bitio.PutU64(buf[64:72], hd.CommentMD)
	bitio.PutU64(buf[72:80], hd.StartTimeNS)
	bitio.PutU16(buf[80:82], uint16(hd.TZOffsetMin))
	bitio.PutU16(buf[82:84], uint16(hd.DSTOffsetMin))
	buf[84] = hd.TimeFlags
	buf[85] = hd.TimeClass
	buf[86] = hd.Flags
	bitio.PutU64(buf[88:96], math.Float64bits(hd.StartAngle))
	bitio.PutU64(buf[96:104], math.Float64bits(hd.StartDistance))
	return buf, nil
}
