// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package blocks

import "github.com/go-lpc/mdf/internal/bitio"

// SignalData is the ##SD block: the out-of-band stream of variable-length
// signal values, a back-to-back sequence of [u32 length][bytes...]
// entries. Data borrows from the buffer handed to ParseSignalData.
type SignalData struct {
	Header Header
	Data   []byte
}

// ParseSignalData decodes a ##SD block at the beginning of buf.
func ParseSignalData(buf []byte) (*SignalData, error) {
	hdr, err := ParseHeader(buf, MagicSD)
	if err != nil {
		return nil, err
	}
	if uint64(len(buf)) < hdr.Length {
		return nil, shortBuf(len(buf), int(hdr.Length))
	}
	return &SignalData{Header: hdr, Data: buf[HeaderSize:hdr.Length]}, nil
}

// EntryAt returns the VLSD payload stored at the given offset within the
// stream. Zero-length entries are valid and yield an empty payload.
func (sd *SignalData) EntryAt(off uint64) ([]byte, error) {
	if err := checkRegion(sd.Data, off, 4); err != nil {
		return nil, err
	}
	n := uint64(bitio.ReadU32(sd.Data[off : off+4]))
	if err := checkRegion(sd.Data, off+4, n); err != nil {
		return nil, err
	}
	return sd.Data[off+4 : off+4+n], nil
}
