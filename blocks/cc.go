// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package blocks

import (
	"math"

	"github.com/go-lpc/mdf/internal/bitio"
)

// ConversionType is the cc_type enumeration of a ##CC block.
type ConversionType uint8

const (
	Identity            ConversionType = 0
	Linear              ConversionType = 1
	Rational            ConversionType = 2
	Algebraic           ConversionType = 3
	TableLookupInterp   ConversionType = 4
	TableLookupNoInterp ConversionType = 5
	RangeLookup         ConversionType = 6
	ValueToText         ConversionType = 7
	RangeToText         ConversionType = 8
	TextToValue         ConversionType = 9
	TextToText          ConversionType = 10
	BitfieldText        ConversionType = 11
)

// Conversion flags.
const (
	ccFlagPhysRange = 0x02 // physical range limits present
)

// Conversion is the ##CC block: the raw coefficients and links of one
// conversion rule, plus the resolved dependencies filled in by Resolve.
//
// Once resolved, Apply never touches the file again; the resolved form is
// what the index serializes.
type Conversion struct {
	Header Header `json:"header"`

	NameTX    uint64 `json:"name_tx,omitempty"`
	UnitMD    uint64 `json:"unit_md,omitempty"`
	CommentMD uint64 `json:"comment_md,omitempty"`
	InverseCC uint64 `json:"inverse_cc,omitempty"`

	// Ref holds the cc_ref links: text blocks or nested conversions.
	Ref []uint64 `json:"ref,omitempty"`

	Type        ConversionType `json:"type"`
	Precision   uint8          `json:"precision,omitempty"`
	Flags       uint16         `json:"flags,omitempty"`
	RefCount    uint16         `json:"ref_count,omitempty"`
	ValCount    uint16         `json:"val_count,omitempty"`
	PhyRangeMin float64        `json:"phy_range_min,omitempty"`
	PhyRangeMax float64        `json:"phy_range_max,omitempty"`
	Val         []float64      `json:"val,omitempty"`

	// Resolved dependencies, by cc_ref index.
	Formula     string              `json:"formula,omitempty"`
	Texts       map[int]string      `json:"texts,omitempty"`
	Nested      map[int]*Conversion `json:"nested,omitempty"`
	NestedNames map[int]string      `json:"nested_names,omitempty"`
}

// NewConversion returns a ##CC block of the given type with the given
// coefficients.
func NewConversion(ct ConversionType, val ...float64) *Conversion {
	cc := &Conversion{
		Type:     ct,
		Val:      val,
		ValCount: uint16(len(val)),
	}
	cc.Header = Header{ID: MagicCC, Length: cc.size(), LinkCount: 4}
	return cc
}

func (cc *Conversion) size() uint64 {
	n := uint64(HeaderSize) + 8*(4+uint64(len(cc.Ref))) + 8
	if cc.Flags&ccFlagPhysRange != 0 {
		n += 16
	}
	n += 8 * uint64(len(cc.Val))
	return n
}

// ParseConversion decodes a ##CC block at the beginning of buf.
func ParseConversion(buf []byte) (*Conversion, error) {
	hdr, err := ParseHeader(buf, MagicCC)
	if err != nil {
		return nil, err
	}
	if uint64(len(buf)) < hdr.Length {
		return nil, shortBuf(len(buf), int(hdr.Length))
	}
	if hdr.LinkCount < 4 {
		return nil, &SerializationError{Msg: "conversion with fewer than 4 links"}
	}
	off := HeaderSize
	cc := &Conversion{Header: hdr}
	cc.NameTX = bitio.ReadU64(buf[off : off+8])
	cc.UnitMD = bitio.ReadU64(buf[off+8 : off+16])
	cc.CommentMD = bitio.ReadU64(buf[off+16 : off+24])
	cc.InverseCC = bitio.ReadU64(buf[off+24 : off+32])
	off += 32

	if hdr.LinkCount > 4 {
		cc.Ref = make([]uint64, 0, hdr.LinkCount-4)
		for i := uint64(4); i < hdr.LinkCount; i++ {
			cc.Ref = append(cc.Ref, bitio.ReadU64(buf[off:off+8]))
			off += 8
		}
	}

	if uint64(off)+8 > hdr.Length {
		return nil, shortBuf(len(buf), off+8)
	}
	cc.Type = ConversionType(buf[off])
	cc.Precision = buf[off+1]
	cc.Flags = bitio.ReadU16(buf[off+2 : off+4])
	cc.RefCount = bitio.ReadU16(buf[off+4 : off+6])
	cc.ValCount = bitio.ReadU16(buf[off+6 : off+8])
	off += 8

	if cc.Flags&ccFlagPhysRange != 0 {
		if uint64(off)+16 > hdr.Length {
			return nil, shortBuf(len(buf), off+16)
		}
		cc.PhyRangeMin = bitio.ReadF64(buf[off : off+8])
		cc.PhyRangeMax = bitio.ReadF64(buf[off+8 : off+16])
		off += 16
	}

	if uint64(off)+8*uint64(cc.ValCount) > hdr.Length {
		return nil, shortBuf(len(buf), off+8*int(cc.ValCount))
	}
	if cc.ValCount > 0 {
		cc.Val = make([]float64, 0, cc.ValCount)
		for i := 0; i < int(cc.ValCount); i++ {
			cc.Val = append(cc.Val, bitio.ReadF64(buf[off:off+8]))
			off += 8
		}
	}
	return cc, nil
}

// Serialize encodes the ##CC block: header, 4 fixed links, cc_ref links,
// type fields, optional physical range and coefficients.
func (cc *Conversion) Serialize() ([]byte, error) {
	if cc.Header.ID != MagicCC {
		return nil, &SerializationError{Msg: "conversion must have ID \"##CC\", found " + cc.Header.ID}
	}
	n := cc.size()
	buf := make([]byte, n)
	hdr := cc.Header
	hdr.Length = n
	hdr.LinkCount = 4 + uint64(len(cc.Ref))
	hdr.encode(buf)

	off := HeaderSize
	bitio.PutU64(buf[off:off+8], cc.NameTX)
	bitio.PutU64(buf[off+8:off+16], cc.UnitMD)
	bitio.PutU64(buf[off+16:off+24], cc.CommentMD)
	bitio.PutU64(buf[off+24:off+32], cc.InverseCC)
	off += 32
	for _, ref := range cc.Ref {
		bitio.PutU64(buf[off:off+8], ref)
		off += 8
	}
	buf[off] = uint8(cc.Type)
	buf[off+1] = cc.Precision
	bitio.PutU16(buf[off+2:off+4], cc.Flags)
	bitio.PutU16(buf[off+4:off+6], uint16(len(cc.Ref)))
	bitio.PutU16(buf[off+6:off+8], uint16(len(cc.Val)))
	off += 8
	if cc.Flags&ccFlagPhysRange != 0 {
		bitio.PutU64(buf[off:off+8], math.Float64bits(cc.PhyRangeMin))
		bitio.PutU64(buf[off+8:off+16], math.Float64bits(cc.PhyRangeMax))
		off += 16
	}
	for _, v := range cc.Val {
		bitio.PutU64(buf[off:off+8], math.Float64bits(v))
		off += 8
	}
	return buf, nil
}
