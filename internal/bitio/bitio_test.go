// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bitio

import (
	"testing"
)

func TestExtract(t *testing.T) {
	for _, tc := range []struct {
		name    string
		buf     []byte
		byteOff int
		bitOff  int
		bits    int
		big     bool
		want    uint64
	}{
		{
			name: "u8",
			buf:  []byte{0xab},
			bits: 8,
			want: 0xab,
		},
		{
			name: "u16-le",
			buf:  []byte{0x34, 0x12},
			bits: 16,
			want: 0x1234,
		},
		{
			name: "u16-be",
			buf:  []byte{0x12, 0x34},
			bits: 16,
			big:  true,
			want: 0x1234,
		},
		{
			name: "u32-le",
			buf:  []byte{0x78, 0x56, 0x34, 0x12},
			bits: 32,
			want: 0x12345678,
		},
		{
			name: "u64-le",
			buf:  []byte{8, 7, 6, 5, 4, 3, 2, 1},
			bits: 64,
			want: 0x0102030405060708,
		},
		{
			name:   "single-bit-offset-0",
			buf:    []byte{0b00000001},
			bits:   1,
			want:   1,
		},
		{
			name:   "single-bit-offset-5",
			buf:    []byte{0b00100000},
			bitOff: 5,
			bits:   1,
			want:   1,
		},
		{
			name:   "single-bit-offset-5-clear",
			buf:    []byte{0b11011111},
			bitOff: 5,
			bits:   1,
			want:   0,
		},
		{
			name:   "nibble-straddling-bytes",
			buf:    []byte{0b11000000, 0b00000011},
			bitOff: 6,
			bits:   4,
			want:   0b1111,
		},
		{
			name:    "byte-offset",
			buf:     []byte{0xff, 0x2a},
			byteOff: 1,
			bits:    8,
			want:    0x2a,
		},
		{
			name:   "12-bits-le",
			buf:    []byte{0xab, 0x0c},
			bits:   12,
			want:   0xcab,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Extract(tc.buf, tc.byteOff, tc.bitOff, tc.bits, tc.big)
			if err != nil {
				t.Fatalf("could not extract: %+v", err)
			}
			if got != tc.want {
				t.Fatalf("invalid extraction: got=%#x, want=%#x", got, tc.want)
			}
		})
	}
}

func TestExtractShortBuffer(t *testing.T) {
	_, err := Extract([]byte{0x01}, 0, 4, 8, false)
	if err == nil {
		t.Fatalf("expected an error for a field past the buffer end")
	}
}

func TestExtractSigned(t *testing.T) {
	for _, tc := range []struct {
		name   string
		buf    []byte
		bitOff int
		bits   int
		big    bool
		want   int64
	}{
		{
			name: "i8-negative",
			buf:  []byte{0xff},
			bits: 8,
			want: -1,
		},
		{
			name: "i8-positive",
			buf:  []byte{0x7f},
			bits: 8,
			want: 127,
		},
		{
			name: "i16-le",
			buf:  []byte{0xfe, 0xff},
			bits: 16,
			want: -2,
		},
		{
			name: "i16-be",
			buf:  []byte{0xff, 0xfe},
			bits: 16,
			big:  true,
			want: -2,
		},
		{
			name:   "i4-negative",
			buf:    []byte{0b11110000},
			bitOff: 4,
			bits:   4,
			want:   -1,
		},
		{
			name:   "i4-positive",
			buf:    []byte{0b01110000},
			bitOff: 4,
			bits:   4,
			want:   7,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractSigned(tc.buf, 0, tc.bitOff, tc.bits, tc.big)
			if err != nil {
				t.Fatalf("could not extract: %+v", err)
			}
			if got != tc.want {
				t.Fatalf("invalid extraction: got=%d, want=%d", got, tc.want)
			}
		})
	}
}

func TestDecodeString(t *testing.T) {
	for _, tc := range []struct {
		name string
		buf  []byte
		enc  Encoding
		want string
	}{
		{
			name: "utf8",
			buf:  []byte("hello\x00\x00"),
			enc:  UTF8,
			want: "hello",
		},
		{
			name: "latin1",
			buf:  []byte{'c', 'a', 'f', 0xe9, 0x00},
			enc:  Latin1,
			want: "café",
		},
		{
			name: "utf16le",
			buf:  []byte{'h', 0, 'i', 0, 0, 0},
			enc:  UTF16LE,
			want: "hi",
		},
		{
			name: "utf16be",
			buf:  []byte{0, 'h', 0, 'i'},
			enc:  UTF16BE,
			want: "hi",
		},
		{
			name: "empty",
			buf:  nil,
			enc:  UTF8,
			want: "",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeString(tc.buf, tc.enc)
			if err != nil {
				t.Fatalf("could not decode: %+v", err)
			}
			if got != tc.want {
				t.Fatalf("invalid string: got=%q, want=%q", got, tc.want)
			}
		})
	}
}
