// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package blocks

import "fmt"

// ValueKind discriminates the variants of Value.
type ValueKind uint8

const (
	KindUnknown ValueKind = iota
	KindUnsigned
	KindSigned
	KindFloat
	KindString
	KindBytes
	KindMimeSample
	KindMimeStream
)

// Value is the decoded value of one channel sample: a tagged union over
// unsigned/signed integers, floats, strings and byte payloads.
type Value struct {
	kind ValueKind
	u    uint64
	i    int64
	f    float64
	s    string
	b    []byte
}

// Unknown is the zero Value.
var Unknown = Value{kind: KindUnknown}

// UnsignedValue returns a Value holding an unsigned integer.
func UnsignedValue(v uint64) Value { return Value{kind: KindUnsigned, u: v} }

// SignedValue returns a Value holding a signed integer.
func SignedValue(v int64) Value { return Value{kind: KindSigned, i: v} }

// FloatValue returns a Value holding a float.
func FloatValue(v float64) Value { return Value{kind: KindFloat, f: v} }

// StringValue returns a Value holding a string.
func StringValue(v string) Value { return Value{kind: KindString, s: v} }

// BytesValue returns a Value holding a raw byte array.
func BytesValue(v []byte) Value { return Value{kind: KindBytes, b: v} }

// MimeSampleValue returns a Value holding a MIME sample payload.
func MimeSampleValue(v []byte) Value { return Value{kind: KindMimeSample, b: v} }

// MimeStreamValue returns a Value holding a MIME stream payload.
func MimeStreamValue(v []byte) Value { return Value{kind: KindMimeStream, b: v} }

// Kind returns the variant of v.
func (v Value) Kind() ValueKind { return v.kind }

// Uint returns the unsigned integer payload.
func (v Value) Uint() uint64 { return v.u }

// Int returns the signed integer payload.
func (v Value) Int() int64 { return v.i }

// Float returns the float payload.
func (v Value) Float() float64 { return v.f }

// Str returns the string payload.
func (v Value) Str() string { return v.s }

// Bytes returns the byte payload of byte-array and MIME values.
func (v Value) Bytes() []byte { return v.b }

// Numeric extracts a float64 from numeric variants. ok is false for
// strings, bytes and unknown values.
func (v Value) Numeric() (f float64, ok bool) {
	switch v.kind {
	case KindUnsigned:
		return float64(v.u), true
	case KindSigned:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	}
	return 0, false
}

// IsInteger reports whether v holds a signed or unsigned integer.
func (v Value) IsInteger() bool {
	return v.kind == KindUnsigned || v.kind == KindSigned
}

func (v Value) String() string {
	switch v.kind {
	case KindUnsigned:
		return fmt.Sprintf("%d", v.u)
	case KindSigned:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%v", v.f)
	case KindString:
		return fmt.Sprintf("%q", v.s)
	case KindBytes, KindMimeSample, KindMimeStream:
		return fmt.Sprintf("%x", v.b)
	}
	return "<unknown>"
}
