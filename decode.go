// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mdf

import (
	"math"

	"github.com/go-lpc/mdf/blocks"
	"github.com/go-lpc/mdf/internal/bitio"
)

// Sample is one decoded channel sample. Valid is false when the record's
// invalidation bit marks the value invalid; Value then still holds the
// decoded (and, where the channel has one, converted) value.
type Sample struct {
	Value blocks.Value
	Valid bool
}

// Valid reports whether the channel's sample in rec is valid, honoring
// the invalidation short-circuits of cn_flags: bit 0 set means every
// sample is invalid, bits 0 and 1 both clear means every sample is valid,
// otherwise the bit at PosInvalidationBit within the record's
// invalidation region decides.
func Valid(rec []byte, recordIDLen, samplesByteNr int, cn *blocks.Channel) bool {
	if cn.Flags&blocks.ChannelFlagAllInvalid != 0 {
		return false
	}
	if cn.Flags&(blocks.ChannelFlagAllInvalid|blocks.ChannelFlagInvalBitUsed) == 0 {
		return true
	}
	off := recordIDLen + samplesByteNr + int(cn.PosInvalidationBit>>3)
	bit := uint(cn.PosInvalidationBit & 0x07)
	if off >= len(rec) {
		return true
	}
	return rec[off]>>bit&1 == 0
}

// Decode extracts the channel's raw value from one record, without
// checking invalidation bits. Undecodable samples yield Unknown.
//
// For VLSD channels rec must be the variable-length payload itself, not
// the fixed-size record.
func Decode(rec []byte, recordIDLen int, cn *blocks.Channel) blocks.Value {
	var slice []byte
	if cn.ChannelType == blocks.ChannelTypeVLSD && cn.Data != 0 {
		slice = rec
	} else {
		base := recordIDLen + int(cn.ByteOffset)
		n := cn.DataBytes()
		if base+n > len(rec) {
			return blocks.Unknown
		}
		slice = rec[base : base+n]
	}

	bitOff := int(cn.BitOffset)
	bits := int(cn.BitCount)

	switch cn.DataType {
	case blocks.UnsignedIntegerLE, blocks.UnsignedIntegerBE:
		big := cn.DataType == blocks.UnsignedIntegerBE
		v, err := bitio.Extract(slice, 0, bitOff, bits, big)
		if err != nil {
			return blocks.Unknown
		}
		return blocks.UnsignedValue(v)

	case blocks.SignedIntegerLE, blocks.SignedIntegerBE:
		big := cn.DataType == blocks.SignedIntegerBE
		v, err := bitio.ExtractSigned(slice, 0, bitOff, bits, big)
		if err != nil {
			return blocks.Unknown
		}
		return blocks.SignedValue(v)

	case blocks.FloatLE, blocks.FloatBE:
		big := cn.DataType == blocks.FloatBE
		switch bits {
		case 32:
			v, err := bitio.Extract(slice, 0, 0, 32, big)
			if err != nil {
				return blocks.Unknown
			}
			return blocks.FloatValue(float64(math.Float32frombits(uint32(v))))
		case 64:
			v, err := bitio.Extract(slice, 0, 0, 64, big)
			if err != nil {
				return blocks.Unknown
			}
			return blocks.FloatValue(math.Float64frombits(v))
		}
		return blocks.Unknown

	case blocks.StringLatin1, blocks.StringUTF8, blocks.StringUTF16LE, blocks.StringUTF16BE:
		var enc bitio.Encoding
		switch cn.DataType {
		case blocks.StringLatin1:
			enc = bitio.Latin1
		case blocks.StringUTF8:
			enc = bitio.UTF8
		case blocks.StringUTF16LE:
			enc = bitio.UTF16LE
		case blocks.StringUTF16BE:
			enc = bitio.UTF16BE
		}
		s, err := bitio.DecodeString(slice, enc)
		if err != nil {
			return blocks.Unknown
		}
		return blocks.StringValue(s)

	case blocks.ByteArray:
		return blocks.BytesValue(slice)
	case blocks.MimeSample:
		return blocks.MimeSampleValue(slice)
	case blocks.MimeStream:
		return blocks.MimeStreamValue(slice)
	}
	return blocks.Unknown
}

// Samples decodes every record of the channel, applies its conversion and
// reports per-sample validity.
func (ch *Channel) Samples() ([]Sample, error) {
	conv, err := ch.Conversion()
	if err != nil {
		return nil, err
	}
	recordIDLen := int(ch.dg.Block.RecordIDLen)
	samplesByteNr := int(ch.cg.Block.SamplesByteNr)

	var stream *signalStream
	if ch.Block.ChannelType == blocks.ChannelTypeVLSD && ch.Block.Data != 0 {
		stream, err = ch.file.signalStream(ch.Block.Data)
		if err != nil {
			return nil, err
		}
	}

	it, err := ch.cg.Records()
	if err != nil {
		return nil, err
	}

	var out []Sample
	for {
		rec, ok := it.Next()
		if !ok {
			break
		}
		valid := Valid(rec, recordIDLen, samplesByteNr, ch.Block)

		var v blocks.Value
		if stream != nil {
			base := recordIDLen + int(ch.Block.ByteOffset)
			if base+8 > len(rec) {
				v = blocks.Unknown
			} else {
				off := bitio.ReadU64(rec[base : base+8])
				payload, err := stream.entryAt(off)
				if err != nil {
					return nil, err
				}
				v = Decode(payload, 0, ch.Block)
			}
		} else {
			v = Decode(rec, recordIDLen, ch.Block)
		}

		if conv != nil {
			v, err = conv.Apply(v)
			if err != nil {
				return nil, err
			}
		}
		out = append(out, Sample{Value: v, Valid: valid})
	}
	return out, nil
}

// Values decodes and converts every record of the channel, ignoring
// invalidation bits.
func (ch *Channel) Values() ([]blocks.Value, error) {
	samples, err := ch.Samples()
	if err != nil {
		return nil, err
	}
	vals := make([]blocks.Value, len(samples))
	for i, s := range samples {
		vals[i] = s.Value
	}
	return vals, nil
}
