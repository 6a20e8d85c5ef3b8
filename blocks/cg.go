// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package blocks

import "github.com/go-lpc/mdf/internal/bitio"

// ChannelGroupSize is the fixed size of a ##CG block.
const ChannelGroupSize = 104

// ChannelGroup is the ##CG block: a set of channels sharing one record
// layout and cycle count.
type ChannelGroup struct {
	Header Header

	NextCG          uint64
	FirstCN         uint64
	AcqNameTX       uint64
	AcqSourceSI     uint64
	FirstSR         uint64
	CommentMD       uint64

	RecordID            uint64
	CycleCount          uint64
	Flags               uint16
	PathSeparator       uint16
	SamplesByteNr       uint32
	InvalidationBytesNr uint32
}

// NewChannelGroup returns a ##CG block with all links null.
func NewChannelGroup() *ChannelGroup {
	return &ChannelGroup{
		Header: Header{ID: MagicCG, Length: ChannelGroupSize, LinkCount: 6},
	}
}

// ParseChannelGroup decodes a ##CG block at the beginning of buf.
func ParseChannelGroup(buf []byte) (*ChannelGroup, error) {
	hdr, err := ParseHeader(buf, MagicCG)
	if err != nil {
		return nil, err
	}
	if len(buf) < ChannelGroupSize {
		return nil, shortBuf(len(buf), ChannelGroupSize)
	}
	return &ChannelGroup{
		Header:              hdr,
		NextCG:              bitio.ReadU64(buf[24:32]),
		FirstCN:             bitio.ReadU64(buf[32:40]),
		AcqNameTX:           bitio.ReadU64(buf[40:48]),
		AcqSourceSI:         bitio.ReadU64(buf[48:56]),
		FirstSR:             bitio.ReadU64(buf[56:64]),
		CommentMD:           bitio.ReadU64(buf[64:72]),
		RecordID:            bitio.ReadU64(buf[72:80]),
		CycleCount:          bitio.ReadU64(buf[80:88]),
		Flags:               bitio.ReadU16(buf[88:90]),
		PathSeparator:       bitio.ReadU16(buf[90:92]),
		SamplesByteNr:       bitio.ReadU32(buf[96:100]),
		InvalidationBytesNr: bitio.ReadU32(buf[100:104]),
	}, nil
}

// Serialize encodes the ##CG block to its fixed 104 bytes.
func (cg *ChannelGroup) Serialize() ([]byte, error) {
	if cg.Header.ID != MagicCG {
		return nil, &SerializationError{Msg: "channel group must have ID \"##CG\", found " + cg.Header.ID}
	}
	buf := make([]byte, ChannelGroupSize)
	cg.Header.encode(buf)
	bitio.PutU64(buf[24:32], cg.NextCG)
	bitio.PutU64(buf[32:40], cg.FirstCN)
	bitio.PutU64(buf[40:48], cg.AcqNameTX)
	bitio.PutU64(buf[48:56], cg.AcqSourceSI)
	bitio.PutU64(buf[56:64], cg.FirstSR)
	bitio.PutU64(buf[64:72], cg.CommentMD)
	bitio.PutU64(buf[72:80], cg.RecordID)
	bitio.PutU64(buf[80:88], cg.CycleCount)
	bitio.PutU16(buf[88:90], cg.Flags)
	bitio.PutU16(buf[90:92], cg.PathSeparator)
	bitio.PutU32(buf[96:100], cg.SamplesByteNr)
	bitio.PutU32(buf[100:104], cg.InvalidationBytesNr)
	return buf, nil
}

// RecordSize returns the total on-disk size of one record of this group,
// including the record id and the invalidation region.
func (cg *ChannelGroup) RecordSize(recordIDLen uint8) int {
	return int(recordIDLen) + int(cg.SamplesByteNr) + int(cg.InvalidationBytesNr)
}
