// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mdf

import (
	"golang.org/x/xerrors"

	"github.com/go-lpc/mdf/blocks"
	"github.com/go-lpc/mdf/internal/bitio"
)

// fragments walks the data link of a data group (a lone ##DT/##DV or a
// ##DL chain) and returns the data blocks in file order.
func (f *File) fragments(addr uint64) ([]*blocks.DataBlock, error) {
	var frags []*blocks.DataBlock
	for addr != 0 {
		if err := checkAddr(f.data, addr, blocks.HeaderSize); err != nil {
			return nil, err
		}
		hdr, err := blocks.ParseHeader(f.data[addr:], "")
		if err != nil {
			return nil, err
		}
		switch hdr.ID {
		case blocks.MagicDT, blocks.MagicDV:
			dt, err := blocks.ParseDataBlock(f.data[addr:])
			if err != nil {
				return nil, err
			}
			frags = append(frags, dt)
			addr = 0

		case blocks.MagicDL:
			dl, err := blocks.ParseDataList(f.data[addr:])
			if err != nil {
				return nil, err
			}
			for _, link := range dl.Links {
				if err := checkAddr(f.data, link, blocks.HeaderSize); err != nil {
					return nil, err
				}
				dt, err := blocks.ParseDataBlock(f.data[link:])
				if err != nil {
					return nil, err
				}
				frags = append(frags, dt)
			}
			addr = dl.Next

		default:
			return nil, &blocks.MagicError{Got: hdr.ID, Want: blocks.MagicDT}
		}
	}
	return frags, nil
}

// RecordIter iterates over the fixed-size records of a channel group,
// concatenating fragments transparently without copying. Records are
// yielded in file order.
type RecordIter struct {
	frags [][]byte
	size  int
	fi    int
	ri    int
}

// Records returns an iterator over the group's records.
func (cg *ChannelGroup) Records() (*RecordIter, error) {
	size := cg.Block.RecordSize(cg.dg.Block.RecordIDLen)
	if size <= 0 {
		return nil, xerrors.Errorf("mdf: channel group with zero record size")
	}
	frags, err := cg.file.fragments(cg.dg.Block.Data)
	if err != nil {
		return nil, xerrors.Errorf("mdf: could not walk data region: %w", err)
	}
	it := &RecordIter{size: size}
	for _, frag := range frags {
		it.frags = append(it.frags, frag.Data)
	}
	return it, nil
}

// Next returns the next record, or false when the iteration is done. A
// trailing partial record within a fragment is skipped.
func (it *RecordIter) Next() ([]byte, bool) {
	for it.fi < len(it.frags) {
		frag := it.frags[it.fi]
		if (it.ri+1)*it.size <= len(frag) {
			rec := frag[it.ri*it.size : (it.ri+1)*it.size]
			it.ri++
			return rec, true
		}
		it.fi++
		it.ri = 0
	}
	return nil, false
}

// signalStream is the logical concatenation of the ##SD data regions
// reachable from a VLSD channel's data link. VLSD offsets stored in
// records index into this stream.
type signalStream struct {
	segs   [][]byte
	starts []uint64 // logical start offset of each segment
	size   uint64
}

// signalStream walks a VLSD data link: a lone ##SD or a ##DL chain of
// ##SD blocks.
func (f *File) signalStream(addr uint64) (*signalStream, error) {
	ss := &signalStream{}
	push := func(sd *blocks.SignalData) {
		ss.starts = append(ss.starts, ss.size)
		ss.segs = append(ss.segs, sd.Data)
		ss.size += uint64(len(sd.Data))
	}
	for addr != 0 {
		if err := checkAddr(f.data, addr, blocks.HeaderSize); err != nil {
			return nil, err
		}
		hdr, err := blocks.ParseHeader(f.data[addr:], "")
		if err != nil {
			return nil, err
		}
		switch hdr.ID {
		case blocks.MagicSD:
			sd, err := blocks.ParseSignalData(f.data[addr:])
			if err != nil {
				return nil, err
			}
			push(sd)
			addr = 0

		case blocks.MagicDL:
			dl, err := blocks.ParseDataList(f.data[addr:])
			if err != nil {
				return nil, err
			}
			for _, link := range dl.Links {
				if err := checkAddr(f.data, link, blocks.HeaderSize); err != nil {
					return nil, err
				}
				sd, err := blocks.ParseSignalData(f.data[link:])
				if err != nil {
					return nil, err
				}
				push(sd)
			}
			addr = dl.Next

		default:
			return nil, &blocks.MagicError{Got: hdr.ID, Want: blocks.MagicSD}
		}
	}
	return ss, nil
}

// entryAt returns the VLSD payload ([u32 length][bytes...]) at the given
// logical stream offset. Zero-length entries yield an empty payload.
func (ss *signalStream) entryAt(off uint64) ([]byte, error) {
	for i := len(ss.segs) - 1; i >= 0; i-- {
		if off < ss.starts[i] {
			continue
		}
		rel := off - ss.starts[i]
		seg := ss.segs[i]
		if rel+4 > uint64(len(seg)) {
			return nil, xerrors.Errorf("mdf: VLSD entry at %#x past end of signal data", off)
		}
		n := uint64(bitio.ReadU32(seg[rel : rel+4]))
		if rel+4+n > uint64(len(seg)) {
			return nil, xerrors.Errorf("mdf: VLSD entry at %#x truncated (%d bytes)", off, n)
		}
		return seg[rel+4 : rel+4+n], nil
	}
	return nil, xerrors.Errorf("mdf: VLSD offset %#x outside signal data stream", off)
}
