// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bitio provides the primitive codec for MDF files: fixed-width
// scalar reads and writes in either endianness, bit-field extraction with
// sub-byte offsets and string decoding for the four MDF text encodings.
package bitio // import "github.com/go-lpc/mdf/internal/bitio"

import (
	"encoding/binary"
	"math"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/xerrors"
)

// ReadU16 reads a little-endian uint16 from p.
func ReadU16(p []byte) uint16 { return binary.LittleEndian.Uint16(p) }

// ReadU32 reads a little-endian uint32 from p.
func ReadU32(p []byte) uint32 { return binary.LittleEndian.Uint32(p) }

// ReadU64 reads a little-endian uint64 from p.
func ReadU64(p []byte) uint64 { return binary.LittleEndian.Uint64(p) }

// ReadF64 reads a little-endian IEEE 754 float64 from p.
func ReadF64(p []byte) float64 { return math.Float64frombits(binary.LittleEndian.Uint64(p)) }

// PutU16 writes v to p in little-endian order.
func PutU16(p []byte, v uint16) { binary.LittleEndian.PutUint16(p, v) }

// PutU32 writes v to p in little-endian order.
func PutU32(p []byte, v uint32) { binary.LittleEndian.PutUint32(p, v) }

// PutU64 writes v to p in little-endian order.
func PutU64(p []byte, v uint64) { binary.LittleEndian.PutUint64(p, v) }

// PutF64 writes v to p in little-endian order.
func PutF64(p []byte, v float64) { binary.LittleEndian.PutUint64(p, math.Float64bits(v)) }

// foldLE folds up to 8 bytes of buf into a word, least significant byte
// first.
func foldLE(buf []byte) uint64 {
	var v uint64
	for i := len(buf) - 1; i >= 0; i-- {
		v = v<<8 | uint64(buf[i])
	}
	return v
}

// foldBE folds up to 8 bytes of buf into a word, most significant byte
// first.
func foldBE(buf []byte) uint64 {
	var v uint64
	for _, b := range buf {
		v = v<<8 | uint64(b)
	}
	return v
}

// Mask returns the bit mask selecting the n lowest bits.
func Mask(n int) uint64 {
	if n >= 64 {
		return ^uint64(0)
	}
	return 1<<uint(n) - 1
}

// Extract reads a bit field of bits bits starting at (byteOff, bitOff)
// within buf and returns it as an unsigned 64-bit word.
//
// bitOff must be in [0,8) and bits in (0,64]. The field spans
// ceil((bitOff+bits)/8) bytes; big selects the byte order in which those
// bytes are folded before shifting.
func Extract(buf []byte, byteOff, bitOff, bits int, big bool) (uint64, error) {
	n := (bitOff + bits + 7) / 8
	if n < 1 {
		n = 1
	}
	if byteOff+n > len(buf) {
		return 0, xerrors.Errorf("bitio: bit field [%d:+%db] past end of %d-byte buffer", byteOff, bits, len(buf))
	}
	raw := buf[byteOff : byteOff+n]
	// aligned power-of-two widths take the scalar path.
	if bitOff == 0 {
		switch bits {
		case 8:
			return uint64(raw[0]), nil
		case 16:
			if big {
				return uint64(binary.BigEndian.Uint16(raw)), nil
			}
			return uint64(binary.LittleEndian.Uint16(raw)), nil
		case 32:
			if big {
				return uint64(binary.BigEndian.Uint32(raw)), nil
			}
			return uint64(binary.LittleEndian.Uint32(raw)), nil
		case 64:
			if big {
				return binary.BigEndian.Uint64(raw), nil
			}
			return binary.LittleEndian.Uint64(raw), nil
		}
	}
	var v uint64
	if n > 8 {
		// bitOff+bits > 64: the ninth byte supplies the top bits.
		var extra byte
		if big {
			v, extra = foldBE(raw[1:]), raw[0]
		} else {
			v, extra = foldLE(raw[:8]), raw[8]
		}
		return (v>>uint(bitOff) | uint64(extra)<<uint(64-bitOff)) & Mask(bits), nil
	}
	if big {
		v = foldBE(raw)
	} else {
		v = foldLE(raw)
	}
	return v >> uint(bitOff) & Mask(bits), nil
}

// ExtractSigned reads a bit field like Extract and sign-extends it to 64
// bits.
func ExtractSigned(buf []byte, byteOff, bitOff, bits int, big bool) (int64, error) {
	v, err := Extract(buf, byteOff, bitOff, bits, big)
	if err != nil {
		return 0, err
	}
	if bits < 64 && v&(1<<uint(bits-1)) != 0 {
		v |= ^Mask(bits)
	}
	return int64(v), nil
}

// Encoding enumerates the string encodings of MDF text payloads.
type Encoding int

const (
	Latin1 Encoding = iota
	UTF8
	UTF16LE
	UTF16BE
)

// DecodeString decodes buf under the given encoding and strips trailing
// NUL characters.
func DecodeString(buf []byte, enc Encoding) (string, error) {
	switch enc {
	case UTF8:
		return strings.TrimRight(string(buf), "\x00"), nil
	case Latin1:
		s, err := charmap.ISO8859_1.NewDecoder().Bytes(buf)
		if err != nil {
			return "", xerrors.Errorf("bitio: could not decode Latin-1 string: %w", err)
		}
		return strings.TrimRight(string(s), "\x00"), nil
	case UTF16LE:
		dec := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
		s, err := dec.Bytes(buf)
		if err != nil {
			return "", xerrors.Errorf("bitio: could not decode UTF-16LE string: %w", err)
		}
		return strings.TrimRight(string(s), "\x00"), nil
	case UTF16BE:
		dec := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder()
		s, err := dec.Bytes(buf)
		if err != nil {
			return "", xerrors.Errorf("bitio: could not decode UTF-16BE string: %w", err)
		}
		return strings.TrimRight(string(s), "\x00"), nil
	}
	return "", xerrors.Errorf("bitio: unknown string encoding %d", int(enc))
}
