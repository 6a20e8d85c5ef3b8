// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package blocks

import (
	"math"

	"github.com/go-lpc/mdf/internal/bitio"
)

// ChannelSize is the fixed size of a ##CN block.
const ChannelSize = 160

// Channel types.
const (
	ChannelTypeFixed  = 0
	ChannelTypeVLSD   = 1
	ChannelTypeMaster = 2
)

// Sync types.
const (
	SyncTypeNone = 0
	SyncTypeTime = 1
)

// Channel flags.
const (
	ChannelFlagAllInvalid   = 0x01 // bit 0: every sample is invalid
	ChannelFlagInvalBitUsed = 0x02 // bit 1: per-record invalidation bit in use
)

// Channel is the ##CN block: one time-series signal within a channel
// group.
type Channel struct {
	Header Header

	NextCN       uint64
	Component    uint64
	NameTX       uint64
	SourceSI     uint64
	ConversionCC uint64
	Data         uint64 // non-zero for VLSD channels: ##SD or ##DL of ##SD
	UnitTX       uint64
	CommentMD    uint64

	ChannelType       uint8
	SyncType          uint8
	DataType          DataType
	BitOffset         uint8 // 0-7
	ByteOffset        uint32
	BitCount          uint32
	Flags             uint32
	PosInvalidationBit uint32
	Precision         uint8
	AttachmentNr      uint16

	MinRawValue   float64
	MaxRawValue   float64
	LowerLimit    float64
	UpperLimit    float64
	LowerExtLimit float64
	UpperExtLimit float64
}

// NewChannel returns a ##CN block with all links null.
func NewChannel() *Channel {
	return &Channel{
		Header: Header{ID: MagicCN, Length: ChannelSize, LinkCount: 8},
	}
}

// ParseChannel decodes a ##CN block at the beginning of buf.
func ParseChannel(buf []byte) (*Channel, error) {
	hdr, err := ParseHeader(buf, MagicCN)
	if err != nil {
		return nil, err
	}
	if len(buf) < ChannelSize {
		return nil, shortBuf(len(buf), ChannelSize)
	}
	return &Channel{
		Header:             hdr,
		NextCN:             bitio.ReadU64(buf[24:32]),
		Component:          bitio.ReadU64(buf[32:40]),
		NameTX:             bitio.ReadU64(buf[40:48]),
		SourceSI:           bitio.ReadU64(buf[48:56]),
		ConversionCC:       bitio.ReadU64(buf[56:64]),
		Data:               bitio.ReadU64(buf[64:72]),
		UnitTX:             bitio.ReadU64(buf[72:80]),
		CommentMD:          bitio.ReadU64(buf[80:88]),
		ChannelType:        buf[88],
		SyncType:           buf[89],
		DataType:           DataType(buf[90]),
		BitOffset:          buf[91],
		ByteOffset:         bitio.ReadU32(buf[92:96]),
		BitCount:           bitio.ReadU32(buf[96:100]),
		Flags:              bitio.ReadU32(buf[100:104]),
		PosInvalidationBit: bitio.ReadU32(buf[104:108]),
		Precision:          buf[108],
		AttachmentNr:       bitio.ReadU16(buf[110:112]),
		MinRawValue:        bitio.ReadF64(buf[112:120]),
		MaxRawValue:        bitio.ReadF64(buf[120:128]),
		LowerLimit:         bitio.ReadF64(buf[128:136]),
		UpperLimit:         bitio.ReadF64(buf[136:144]),
		LowerExtLimit:      bitio.ReadF64(buf[144:152]),
		UpperExtLimit:      bitio.ReadF64(buf[152:160]),
	}, nil
}

// Serialize encodes the ##CN block to its fixed 160 bytes.
func (cn *Channel) Serialize() ([]byte, error) {
	if cn.Header.ID != MagicCN {
		return nil, &SerializationError{Msg: "channel must have ID \"##CN\", found " + cn.Header.ID}
	}
	buf := make([]byte, ChannelSize)
	cn.Header.encode(buf)
	bitio.PutU64(buf[24:32], cn.NextCN)
	bitio.PutU64(buf[32:40], cn.Component)
	bitio.PutU64(buf[40:48], cn.NameTX)
	bitio.PutU64(buf[48:56], cn.SourceSI)
	bitio.PutU64(buf[56:64], cn.ConversionCC)
	bitio.PutU64(buf[64:72], cn.Data)
	bitio.PutU64(buf[72:80], cn.UnitTX)
	bitio.PutU64(buf[80:88], cn.CommentMD)
	buf[88] = cn.ChannelType
	buf[89] = cn.SyncType
	buf[90] = uint8(cn.DataType)
	buf[91] = cn.BitOffset
	bitio.PutU32(buf[92:96], cn.ByteOffset)
	bitio.PutU32(buf[96:100], cn.BitCount)
	bitio.PutU32(buf[100:104], cn.Flags)
	bitio.PutU32(buf[104:108], cn.PosInvalidationBit)
	buf[108] = cn.Precision
	bitio.PutU16(buf[110:112], cn.AttachmentNr)
	bitio.PutU64(buf[112:120], math.Float64bits(cn.MinRawValue))
	bitio.PutU64(buf[120:128], math.Float64bits(cn.MaxRawValue))
	bitio.PutU64(buf[128:136], math.Float64bits(cn.LowerLimit))
	bitio.PutU64(buf[136:144], math.Float64bits(cn.UpperLimit))
	bitio.PutU64(buf[144:152], math.Float64bits(cn.LowerExtLimit))
	bitio.PutU64(buf[152:160], math.Float64bits(cn.UpperExtLimit))
	return buf, nil
}

// DataBytes returns the number of whole bytes the channel occupies within
// a record's data region.
func (cn *Channel) DataBytes() int {
	if cn.DataType.IsString() || cn.DataType.IsByteLike() {
		return int(cn.BitCount) / 8
	}
	n := (int(cn.BitOffset) + int(cn.BitCount) + 7) / 8
	if n < 1 {
		n = 1
	}
	return n
}
