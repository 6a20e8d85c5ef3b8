// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package index

import "golang.org/x/xerrors"

// Range is one (offset, length) byte range within the recording.
type Range struct {
	Offset uint64
	Length uint64
}

// GetChannelByteRanges returns the exact byte ranges holding the
// channel's bytes across all fragments, adjacent ranges coalesced.
func (ix *Index) GetChannelByteRanges(group, channel int) ([]Range, error) {
	g, err := ix.group(group)
	if err != nil {
		return nil, err
	}
	return ix.GetChannelByteRangesForRecords(group, channel, 0, g.CycleCount)
}

// GetChannelByteRangesForRecords restricts the byte ranges to the record
// interval [start, start+count).
func (ix *Index) GetChannelByteRangesForRecords(group, channel int, start, count uint64) ([]Range, error) {
	g, c, err := ix.channel(group, channel)
	if err != nil {
		return nil, err
	}
	if start+count > g.CycleCount {
		return nil, xerrors.Errorf("index: record range [%d,+%d) exceeds %d records", start, count, g.CycleCount)
	}
	return coalesce(g.recordRanges(c, start, count)), nil
}

// recordRanges emits one range per record for the channel's field within
// the record interval, in record order.
func (g *Group) recordRanges(c *Channel, start, count uint64) []Range {
	stride := g.stride()
	fieldOff := uint64(g.RecordIDLen) + uint64(c.ByteOffset)
	fieldLen := c.channelBytes()

	var out []Range
	var done uint64 // records emitted so far
	var seen uint64 // records walked across fragments
	for _, frag := range g.Fragments {
		if done == count {
			break
		}
		n := frag.Length / stride
		lo := start
		if seen > lo {
			lo = seen
		}
		hi := start + count
		if seen+n < hi {
			hi = seen + n
		}
		for r := lo; r < hi; r++ {
			rel := r - seen
			out = append(out, Range{
				Offset: frag.Offset + rel*stride + fieldOff,
				Length: fieldLen,
			})
			done++
		}
		seen += n
	}
	return out
}

// coalesce merges adjacent ranges; per-record ranges are adjacent when
// the channel occupies the whole record.
func coalesce(rs []Range) []Range {
	if len(rs) == 0 {
		return rs
	}
	out := rs[:1]
	for _, r := range rs[1:] {
		last := &out[len(out)-1]
		if last.Offset+last.Length == r.Offset {
			last.Length += r.Length
			continue
		}
		out = append(out, r)
	}
	return out
}

// GetChannelByteSummary returns the total bytes to fetch and the number
// of distinct ranges for a channel, for sizing the I/O pattern up front.
func (ix *Index) GetChannelByteSummary(group, channel int) (total uint64, ranges int, err error) {
	rs, err := ix.GetChannelByteRanges(group, channel)
	if err != nil {
		return 0, 0, err
	}
	for _, r := range rs {
		total += r.Length
	}
	return total, len(rs), nil
}

// GetChannelByteRangesByName resolves the channel by name across all
// groups and returns its byte ranges.
func (ix *Index) GetChannelByteRangesByName(name string) ([]Range, error) {
	g, c := ix.FindChannelByNameGlobal(name)
	if g < 0 {
		return nil, xerrors.Errorf("index: channel %q not found", name)
	}
	return ix.GetChannelByteRanges(g, c)
}
