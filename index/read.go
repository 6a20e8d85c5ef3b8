// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package index

import (
	"golang.org/x/xerrors"

	"github.com/go-lpc/mdf"
	"github.com/go-lpc/mdf/blocks"
	"github.com/go-lpc/mdf/internal/bitio"
)

// Validate checks the index against the recording behind the reader,
// when the reader knows its size.
func (ix *Index) Validate(r ByteRangeReader) error {
	s, ok := r.(Sizer)
	if !ok {
		return nil
	}
	size, err := s.Size()
	if err != nil {
		return err
	}
	if size != ix.FileSize {
		return xerrors.Errorf("index: file size mismatch: index has %d bytes, target has %d", ix.FileSize, size)
	}
	return nil
}

// ReadChannelValues fetches the minimal byte ranges covering one
// channel, decodes each record's field and applies the channel's
// resolved conversion. The original file is never parsed; conversions
// come embedded in the index.
func (ix *Index) ReadChannelValues(group, channel int, r ByteRangeReader) ([]blocks.Value, error) {
	g, c, err := ix.channel(group, channel)
	if err != nil {
		return nil, err
	}
	if err := ix.Validate(r); err != nil {
		return nil, err
	}

	fields, err := ix.readChannelFields(g, c, r)
	if err != nil {
		return nil, err
	}

	cn := c.block()
	cn.ByteOffset = 0

	vlsd := c.ChannelType == blocks.ChannelTypeVLSD && len(c.VLSDFragments) > 0

	values := make([]blocks.Value, 0, len(fields))
	for _, field := range fields {
		var v blocks.Value
		if vlsd {
			if len(field) < 8 {
				v = blocks.Unknown
			} else {
				payload, err := ix.readVLSDEntry(c, bitio.ReadU64(field), r)
				if err != nil {
					return nil, err
				}
				v = mdf.Decode(payload, 0, cn)
			}
		} else {
			v = mdf.Decode(field, 0, cn)
		}
		if c.Conversion != nil {
			v, err = c.Conversion.Apply(v)
			if err != nil {
				return nil, err
			}
		}
		values = append(values, v)
	}
	return values, nil
}

// readChannelFields fetches the channel's per-record bytes, issuing one
// ReadRange per coalesced range and restriping the records afterwards.
func (ix *Index) readChannelFields(g *Group, c *Channel, r ByteRangeReader) ([][]byte, error) {
	records := g.recordRanges(c, 0, g.CycleCount)
	merged := coalesce(append([]Range(nil), records...))

	bufs := make([][]byte, len(merged))
	for i, m := range merged {
		buf, err := r.ReadRange(m.Offset, m.Length)
		if err != nil {
			return nil, err
		}
		if uint64(len(buf)) != m.Length {
			return nil, xerrors.Errorf("index: short range read at %#x: want %d bytes, got %d", m.Offset, m.Length, len(buf))
		}
		bufs[i] = buf
	}

	fields := make([][]byte, 0, len(records))
	mi := 0
	for _, rec := range records {
		for mi < len(merged) && rec.Offset >= merged[mi].Offset+merged[mi].Length {
			mi++
		}
		if mi == len(merged) || rec.Offset < merged[mi].Offset {
			return nil, xerrors.Errorf("index: record range at %#x outside fetched ranges", rec.Offset)
		}
		rel := rec.Offset - merged[mi].Offset
		fields = append(fields, bufs[mi][rel:rel+rec.Length])
	}
	return fields, nil
}

// readVLSDEntry reads one [u32 length][payload] entry at the given
// logical offset of the channel's signal-data stream.
func (ix *Index) readVLSDEntry(c *Channel, off uint64, r ByteRangeReader) ([]byte, error) {
	var base uint64
	for _, frag := range c.VLSDFragments {
		if off < base+frag.Length {
			rel := off - base
			if rel+4 > frag.Length {
				return nil, xerrors.Errorf("index: VLSD entry at %#x past end of signal data", off)
			}
			hdr, err := r.ReadRange(frag.Offset+rel, 4)
			if err != nil {
				return nil, err
			}
			n := uint64(bitio.ReadU32(hdr))
			if rel+4+n > frag.Length {
				return nil, xerrors.Errorf("index: VLSD entry at %#x truncated (%d bytes)", off, n)
			}
			if n == 0 {
				return nil, nil
			}
			return r.ReadRange(frag.Offset+rel+4, n)
		}
		base += frag.Length
	}
	return nil, xerrors.Errorf("index: VLSD offset %#x outside signal data stream", off)
}

// ReadChannelValuesByName resolves the channel by name across all groups
// and reads its values.
func (ix *Index) ReadChannelValuesByName(name string, r ByteRangeReader) ([]blocks.Value, error) {
	g, c := ix.FindChannelByNameGlobal(name)
	if g < 0 {
		return nil, xerrors.Errorf("index: channel %q not found", name)
	}
	return ix.ReadChannelValues(g, c, r)
}
