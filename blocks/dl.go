// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package blocks

import "github.com/go-lpc/mdf/internal/bitio"

// DataList is the ##DL block: an ordered list of links to data blocks
// (##DT, ##DV or ##SD fragments), chained through Next.
type DataList struct {
	Header Header
	Next   uint64
	Links  []uint64

	Flags       uint8
	EqualLength uint64 // common fragment length when Flags bit 0 is set
}

// NewDataList returns a ##DL block referencing the given fragments, all of
// equalLength bytes except possibly the last.
func NewDataList(links []uint64, equalLength uint64) *DataList {
	nlinks := uint64(len(links)) + 1 // +1 for Next
	n := Align(HeaderSize + 8*nlinks + 16)
	return &DataList{
		Header:      Header{ID: MagicDL, Length: n, LinkCount: nlinks},
		Links:       links,
		Flags:       1,
		EqualLength: equalLength,
	}
}

// ParseDataList decodes a ##DL block at the beginning of buf.
func ParseDataList(buf []byte) (*DataList, error) {
	hdr, err := ParseHeader(buf, MagicDL)
	if err != nil {
		return nil, err
	}
	if uint64(len(buf)) < hdr.Length {
		return nil, shortBuf(len(buf), int(hdr.Length))
	}
	if hdr.LinkCount < 1 {
		return nil, &SerializationError{Msg: "data list with no links"}
	}
	off := HeaderSize
	next := bitio.ReadU64(buf[off : off+8])
	off += 8
	links := make([]uint64, 0, hdr.LinkCount-1)
	for i := uint64(1); i < hdr.LinkCount; i++ {
		links = append(links, bitio.ReadU64(buf[off:off+8]))
		off += 8
	}
	dl := &DataList{Header: hdr, Next: next, Links: links}
	if uint64(off)+1 <= hdr.Length {
		dl.Flags = buf[off]
	}
	if dl.Flags&1 != 0 && uint64(off)+16 <= hdr.Length {
		dl.EqualLength = bitio.ReadU64(buf[off+8 : off+16])
	}
	return dl, nil
}

// Serialize encodes the ##DL block: header, next link, fragment links,
// flags and the common fragment length.
func (dl *DataList) Serialize() ([]byte, error) {
	if dl.Header.ID != MagicDL {
		return nil, &SerializationError{Msg: "data list must have ID \"##DL\", found " + dl.Header.ID}
	}
	nlinks := uint64(len(dl.Links)) + 1
	if dl.Header.LinkCount != nlinks {
		return nil, &SerializationError{Msg: "data list link count mismatch"}
	}
	n := Align(HeaderSize + 8*nlinks + 16)
	buf := make([]byte, n)
	hdr := dl.Header
	hdr.Length = n
	hdr.encode(buf)
	off := HeaderSize
	bitio.PutU64(buf[off:off+8], dl.Next)
	off += 8
	for _, link := range dl.Links {
		bitio.PutU64(buf[off:off+8], link)
		off += 8
	}
	buf[off] = dl.Flags
	bitio.PutU64(buf[off+8:off+16], dl.EqualLength)
	return buf, nil
}
