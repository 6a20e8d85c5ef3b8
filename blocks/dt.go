// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package blocks

// DataBlock is a ##DT or ##DV block: a contiguous run of fixed-size
// records. Data borrows from the buffer handed to ParseDataBlock.
type DataBlock struct {
	Header Header
	Data   []byte
}

// ParseDataBlock decodes a ##DT or ##DV block at the beginning of buf.
// ##DZ (compressed) blocks are rejected.
func ParseDataBlock(buf []byte) (*DataBlock, error) {
	hdr, err := ParseHeader(buf, "")
	if err != nil {
		return nil, err
	}
	switch hdr.ID {
	case MagicDT, MagicDV:
	default:
		return nil, &MagicError{Got: hdr.ID, Want: MagicDT}
	}
	if uint64(len(buf)) < hdr.Length {
		return nil, shortBuf(len(buf), int(hdr.Length))
	}
	return &DataBlock{Header: hdr, Data: buf[HeaderSize:hdr.Length]}, nil
}

// Records returns the fixed-size records of the block. A trailing partial
// record (padding) is dropped.
func (dt *DataBlock) Records(size int) [][]byte {
	n := len(dt.Data) / size
	recs := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		recs = append(recs, dt.Data[i*size:(i+1)*size])
	}
	return recs
}
