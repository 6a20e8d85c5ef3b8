// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package blocks

import "github.com/go-lpc/mdf/internal/bitio"

// DataGroupSize is the fixed size of a ##DG block.
const DataGroupSize = 64

// DataGroup is the ##DG block: a collection of channel groups sharing one
// data region. RecordIDLen is the number of record-id bytes prefixing each
// record (0, 1, 2, 4 or 8).
type DataGroup struct {
	Header Header

	NextDG    uint64
	FirstCG   uint64
	Data      uint64 // ##DT, ##DV or ##DL
	CommentMD uint64

	RecordIDLen uint8
}

// NewDataGroup returns a ##DG block with all links null.
func NewDataGroup() *DataGroup {
	return &DataGroup{
		Header: Header{ID: MagicDG, Length: DataGroupSize, LinkCount: 4},
	}
}

// ParseDataGroup decodes a ##DG block at the beginning of buf.
func ParseDataGroup(buf []byte) (*DataGroup, error) {
	hdr, err := ParseHeader(buf, MagicDG)
	if err != nil {
		return nil, err
	}
	if len(buf) < DataGroupSize {
		return nil, shortBuf(len(buf), DataGroupSize)
	}
	return &DataGroup{
		Header:      hdr,
		NextDG:      bitio.ReadU64(buf[24:32]),
		FirstCG:     bitio.ReadU64(buf[32:40]),
		Data:        bitio.ReadU64(buf[40:48]),
		CommentMD:   bitio.ReadU64(buf[48:56]),
		RecordIDLen: buf[56],
	}, nil
}

// Serialize encodes the ##DG block to its fixed 64 bytes.
func (dg *DataGroup) Serialize() ([]byte, error) {
	if dg.Header.ID != MagicDG {
		return nil, &SerializationError{Msg: "data group must have ID \"##DG\", found " + dg.Header.ID}
	}
	buf := make([]byte, DataGroupSize)
	dg.Header.encode(buf)
	bitio.PutU64(buf[24:32], dg.NextDG)
	bitio.PutU64(buf[32:40], dg.FirstCG)
	bitio.PutU64(buf[40:48], dg.Data)
	bitio.PutU64(buf[48:56], dg.CommentMD)
	buf[56] = dg.RecordIDLen
	return buf, nil
}
