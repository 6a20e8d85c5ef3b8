// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mdf

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-lpc/mdf/blocks"
)

func TestDecode(t *testing.T) {
	mkch := func(dt blocks.DataType, byteOff uint32, bitOff uint8, bits uint32) *blocks.Channel {
		cn := blocks.NewChannel()
		cn.DataType = dt
		cn.ByteOffset = byteOff
		cn.BitOffset = bitOff
		cn.BitCount = bits
		return cn
	}

	f32 := make([]byte, 4)
	binary.LittleEndian.PutUint32(f32, math.Float32bits(1.5))
	f64be := make([]byte, 8)
	binary.BigEndian.PutUint64(f64be, math.Float64bits(-2.25))

	for _, tc := range []struct {
		name string
		rec  []byte
		idn  int
		cn   *blocks.Channel
		want blocks.Value
	}{
		{
			name: "u8",
			rec:  []byte{0x2a},
			cn:   mkch(blocks.UnsignedIntegerLE, 0, 0, 8),
			want: blocks.UnsignedValue(0x2a),
		},
		{
			name: "u16-le",
			rec:  []byte{0x34, 0x12},
			cn:   mkch(blocks.UnsignedIntegerLE, 0, 0, 16),
			want: blocks.UnsignedValue(0x1234),
		},
		{
			name: "u16-be",
			rec:  []byte{0x12, 0x34},
			cn:   mkch(blocks.UnsignedIntegerBE, 0, 0, 16),
			want: blocks.UnsignedValue(0x1234),
		},
		{
			name: "i8-negative",
			rec:  []byte{0xff},
			cn:   mkch(blocks.SignedIntegerLE, 0, 0, 8),
			want: blocks.SignedValue(-1),
		},
		{
			name: "i16-be",
			rec:  []byte{0xff, 0xfe},
			cn:   mkch(blocks.SignedIntegerBE, 0, 0, 16),
			want: blocks.SignedValue(-2),
		},
		{
			name: "single-bit-set",
			rec:  []byte{0b0010_0000},
			cn:   mkch(blocks.UnsignedIntegerLE, 0, 5, 1),
			want: blocks.UnsignedValue(1),
		},
		{
			name: "single-bit-clear",
			rec:  []byte{0b1101_1111},
			cn:   mkch(blocks.UnsignedIntegerLE, 0, 5, 1),
			want: blocks.UnsignedValue(0),
		},
		{
			name: "f32-le",
			rec:  f32,
			cn:   mkch(blocks.FloatLE, 0, 0, 32),
			want: blocks.FloatValue(1.5),
		},
		{
			name: "f64-be",
			rec:  f64be,
			cn:   mkch(blocks.FloatBE, 0, 0, 64),
			want: blocks.FloatValue(-2.25),
		},
		{
			name: "f16-rejected",
			rec:  []byte{0, 0},
			cn:   mkch(blocks.FloatLE, 0, 0, 16),
			want: blocks.Unknown,
		},
		{
			name: "byte-offset",
			rec:  []byte{0xff, 0xff, 0x07},
			cn:   mkch(blocks.UnsignedIntegerLE, 2, 0, 8),
			want: blocks.UnsignedValue(7),
		},
		{
			name: "record-id-skipped",
			rec:  []byte{0xaa, 0xbb, 0x2a},
			idn:  2,
			cn:   mkch(blocks.UnsignedIntegerLE, 0, 0, 8),
			want: blocks.UnsignedValue(0x2a),
		},
		{
			name: "string-utf8",
			rec:  []byte{'h', 'i', 0, 0},
			cn:   mkch(blocks.StringUTF8, 0, 0, 32),
			want: blocks.StringValue("hi"),
		},
		{
			name: "string-utf16le",
			rec:  []byte{'h', 0, 'i', 0},
			cn:   mkch(blocks.StringUTF16LE, 0, 0, 32),
			want: blocks.StringValue("hi"),
		},
		{
			name: "short-record",
			rec:  []byte{0x01},
			cn:   mkch(blocks.UnsignedIntegerLE, 4, 0, 32),
			want: blocks.Unknown,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := Decode(tc.rec, tc.idn, tc.cn)
			if got.Kind() != tc.want.Kind() {
				t.Fatalf("invalid kind: got=%v, want=%v", got.Kind(), tc.want.Kind())
			}
			switch tc.want.Kind() {
			case blocks.KindUnsigned:
				if got.Uint() != tc.want.Uint() {
					t.Fatalf("got=%v, want=%v", got, tc.want)
				}
			case blocks.KindSigned:
				if got.Int() != tc.want.Int() {
					t.Fatalf("got=%v, want=%v", got, tc.want)
				}
			case blocks.KindFloat:
				if got.Float() != tc.want.Float() {
					t.Fatalf("got=%v, want=%v", got, tc.want)
				}
			case blocks.KindString:
				if got.Str() != tc.want.Str() {
					t.Fatalf("got=%v, want=%v", got, tc.want)
				}
			}
		})
	}
}

func TestValidity(t *testing.T) {
	cn := blocks.NewChannel()
	cn.DataType = blocks.UnsignedIntegerLE
	cn.BitCount = 8

	// flags clear: always valid
	if !Valid([]byte{0, 0xff}, 0, 1, cn) {
		t.Fatalf("flags clear: expected valid")
	}

	// all-invalid flag short-circuits
	cn.Flags = blocks.ChannelFlagAllInvalid
	if Valid([]byte{0, 0}, 0, 1, cn) {
		t.Fatalf("all-invalid flag: expected invalid")
	}

	// per-record bit
	cn.Flags = blocks.ChannelFlagInvalBitUsed
	cn.PosInvalidationBit = 3
	rec := []byte{0x42, 0b0000_1000} // 1 data byte + 1 invalidation byte
	if Valid(rec, 0, 1, cn) {
		t.Fatalf("invalidation bit set: expected invalid")
	}
	rec[1] = 0
	if !Valid(rec, 0, 1, cn) {
		t.Fatalf("invalidation bit clear: expected valid")
	}
}
