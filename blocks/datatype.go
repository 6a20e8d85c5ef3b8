// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package blocks

import "fmt"

// DataType is the cn_data_type enumeration of a channel.
type DataType uint8

const (
	UnsignedIntegerLE DataType = 0
	UnsignedIntegerBE DataType = 1
	SignedIntegerLE   DataType = 2
	SignedIntegerBE   DataType = 3
	FloatLE           DataType = 4
	FloatBE           DataType = 5
	StringLatin1      DataType = 6
	StringUTF8        DataType = 7
	StringUTF16LE     DataType = 8
	StringUTF16BE     DataType = 9
	ByteArray         DataType = 10
	MimeSample        DataType = 11
	MimeStream        DataType = 12
	CANOpenDate       DataType = 13
	CANOpenTime       DataType = 14
	ComplexLE         DataType = 15
	ComplexBE         DataType = 16
)

// IsString reports whether dt is one of the four string encodings.
func (dt DataType) IsString() bool {
	switch dt {
	case StringLatin1, StringUTF8, StringUTF16LE, StringUTF16BE:
		return true
	}
	return false
}

// IsByteLike reports whether dt is stored as whole verbatim bytes.
func (dt DataType) IsByteLike() bool {
	switch dt {
	case ByteArray, MimeSample, MimeStream, CANOpenDate, CANOpenTime:
		return true
	}
	return false
}

func (dt DataType) String() string {
	switch dt {
	case UnsignedIntegerLE:
		return "uint-le"
	case UnsignedIntegerBE:
		return "uint-be"
	case SignedIntegerLE:
		return "int-le"
	case SignedIntegerBE:
		return "int-be"
	case FloatLE:
		return "float-le"
	case FloatBE:
		return "float-be"
	case StringLatin1:
		return "string-latin1"
	case StringUTF8:
		return "string-utf8"
	case StringUTF16LE:
		return "string-utf16le"
	case StringUTF16BE:
		return "string-utf16be"
	case ByteArray:
		return "byte-array"
	case MimeSample:
		return "mime-sample"
	case MimeStream:
		return "mime-stream"
	case CANOpenDate:
		return "canopen-date"
	case CANOpenTime:
		return "canopen-time"
	case ComplexLE:
		return "complex-le"
	case ComplexBE:
		return "complex-be"
	}
	return fmt.Sprintf("DataType(%d)", uint8(dt))
}
