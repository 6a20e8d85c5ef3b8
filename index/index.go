// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package index builds self-contained indexes of MDF files: record
// geometry, fragment locations and fully resolved conversions, enough to
// replay channel reads through a byte-range transport without ever
// re-parsing (or even holding) the original file.
package index // import "github.com/go-lpc/mdf/index"

import (
	"os"

	"github.com/goccy/go-json"
	"golang.org/x/xerrors"

	"github.com/go-lpc/mdf"
	"github.com/go-lpc/mdf/blocks"
)

// Fragment locates the record bytes of one data-block fragment: the file
// offset of the block's data region (past the 24-byte header) and its
// length.
type Fragment struct {
	Offset uint64 `json:"offset"`
	Length uint64 `json:"length"`
}

// Channel carries everything needed to decode one channel's samples from
// raw record bytes, including the fully resolved conversion.
type Channel struct {
	Name    string `json:"name,omitempty"`
	Unit    string `json:"unit,omitempty"`
	Comment string `json:"comment,omitempty"`

	ChannelType        uint8           `json:"channel_type,omitempty"`
	SyncType           uint8           `json:"sync_type,omitempty"`
	DataType           blocks.DataType `json:"data_type"`
	ByteOffset         uint32          `json:"byte_offset"`
	BitOffset          uint8           `json:"bit_offset,omitempty"`
	BitCount           uint32          `json:"bit_count"`
	Flags              uint32          `json:"flags,omitempty"`
	PosInvalidationBit uint32          `json:"pos_invalidation_bit,omitempty"`

	Conversion *blocks.Conversion `json:"conversion,omitempty"`

	// VLSDFragments locate the signal-data stream of a VLSD channel.
	VLSDFragments []Fragment `json:"vlsd_fragments,omitempty"`
}

// Group carries one channel group's record geometry and fragment list.
type Group struct {
	Name    string `json:"name,omitempty"`
	Comment string `json:"comment,omitempty"`

	RecordIDLen         uint8  `json:"record_id_len,omitempty"`
	SamplesByteNr       uint32 `json:"samples_byte_nr"`
	InvalidationBytesNr uint32 `json:"invalidation_bytes_nr,omitempty"`
	CycleCount          uint64 `json:"cycle_count"`

	Channels  []Channel  `json:"channels"`
	Fragments []Fragment `json:"fragments"`
}

// Index is the serializable artifact: file geometry plus per-group,
// per-channel metadata with resolved conversions.
type Index struct {
	Version     int     `json:"version"`
	FileSize    uint64  `json:"file_size"`
	StartTimeNS int64   `json:"start_time_ns"`
	Groups      []Group `json:"groups"`
}

// FormatVersion is the index serialization version.
const FormatVersion = 1

// stride returns the total record size of the group.
func (g *Group) stride() uint64 {
	return uint64(g.RecordIDLen) + uint64(g.SamplesByteNr) + uint64(g.InvalidationBytesNr)
}

// channelBytes returns how many bytes of each record the channel
// occupies.
func (c *Channel) channelBytes() uint64 {
	if c.DataType.IsString() || c.DataType.IsByteLike() {
		return uint64(c.BitCount) / 8
	}
	n := (uint64(c.BitOffset) + uint64(c.BitCount) + 7) / 8
	if n < 1 {
		n = 1
	}
	return n
}

// block returns the ##CN view equivalent to the indexed channel, for the
// record decoder.
func (c *Channel) block() *blocks.Channel {
	cn := blocks.NewChannel()
	cn.ChannelType = c.ChannelType
	cn.SyncType = c.SyncType
	cn.DataType = c.DataType
	cn.ByteOffset = c.ByteOffset
	cn.BitOffset = c.BitOffset
	cn.BitCount = c.BitCount
	cn.Flags = c.Flags
	cn.PosInvalidationBit = c.PosInvalidationBit
	if c.ChannelType == blocks.ChannelTypeVLSD && len(c.VLSDFragments) > 0 {
		cn.Data = c.VLSDFragments[0].Offset // non-zero marks the VLSD decode path
	}
	return cn
}

// FromFile parses the named MDF file, resolves every channel conversion
// and flattens the data regions into fragment lists.
func FromFile(path string) (*Index, error) {
	f, err := mdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := os.Stat(path)
	if err != nil {
		return nil, xerrors.Errorf("index: could not stat %q: %w", path, err)
	}

	ix, err := FromMDF(f)
	if err != nil {
		return nil, err
	}
	ix.FileSize = uint64(fi.Size())
	return ix, nil
}

// FromMDF builds an index from an already parsed file.
func FromMDF(f *mdf.File) (*Index, error) {
	ix := &Index{
		Version:     FormatVersion,
		FileSize:    uint64(len(f.Bytes())),
		StartTimeNS: f.StartTimeNS(),
	}
	for _, dg := range f.Groups {
		for _, cg := range dg.ChannelGroups {
			g, err := indexGroup(f, dg, cg)
			if err != nil {
				return nil, err
			}
			ix.Groups = append(ix.Groups, *g)
		}
	}
	return ix, nil
}

func indexGroup(f *mdf.File, dg *mdf.DataGroup, cg *mdf.ChannelGroup) (*Group, error) {
	name, err := cg.Name()
	if err != nil {
		return nil, err
	}
	comment, err := cg.Comment()
	if err != nil {
		return nil, err
	}
	g := &Group{
		Name:                name,
		Comment:             comment,
		RecordIDLen:         dg.Block.RecordIDLen,
		SamplesByteNr:       cg.Block.SamplesByteNr,
		InvalidationBytesNr: cg.Block.InvalidationBytesNr,
		CycleCount:          cg.Block.CycleCount,
	}

	g.Fragments, err = walkFragments(f.Bytes(), dg.Block.Data, blocks.MagicDT)
	if err != nil {
		return nil, err
	}

	for _, ch := range cg.Channels {
		c, err := indexChannel(f, ch)
		if err != nil {
			return nil, err
		}
		g.Channels = append(g.Channels, *c)
	}
	return g, nil
}

func indexChannel(f *mdf.File, ch *mdf.Channel) (*Channel, error) {
	name, err := ch.Name()
	if err != nil {
		return nil, err
	}
	unit, err := ch.Unit()
	if err != nil {
		return nil, err
	}
	comment, err := ch.Comment()
	if err != nil {
		return nil, err
	}
	conv, err := ch.Conversion()
	if err != nil {
		return nil, err
	}
	c := &Channel{
		Name:               name,
		Unit:               unit,
		Comment:            comment,
		ChannelType:        ch.Block.ChannelType,
		SyncType:           ch.Block.SyncType,
		DataType:           ch.Block.DataType,
		ByteOffset:         ch.Block.ByteOffset,
		BitOffset:          ch.Block.BitOffset,
		BitCount:           ch.Block.BitCount,
		Flags:              ch.Block.Flags,
		PosInvalidationBit: ch.Block.PosInvalidationBit,
		Conversion:         conv,
	}
	if ch.Block.ChannelType == blocks.ChannelTypeVLSD && ch.Block.Data != 0 {
		c.VLSDFragments, err = walkFragments(f.Bytes(), ch.Block.Data, blocks.MagicSD)
		if err != nil {
			return nil, err
		}
	}
	return c, nil
}

// walkFragments expands a data link (a lone block or a ##DL chain) into
// the (offset, length) list of its data regions. want selects the leaf
// block kind (##DT/##DV for record data, ##SD for signal data).
func walkFragments(data []byte, addr uint64, want string) ([]Fragment, error) {
	var frags []Fragment
	push := func(addr uint64) error {
		if addr+blocks.HeaderSize > uint64(len(data)) {
			return xerrors.Errorf("index: block at %#x past end of file", addr)
		}
		hdr, err := blocks.ParseHeader(data[addr:], "")
		if err != nil {
			return err
		}
		switch {
		case hdr.ID == blocks.MagicSD && want == blocks.MagicSD:
		case (hdr.ID == blocks.MagicDT || hdr.ID == blocks.MagicDV) && want == blocks.MagicDT:
		default:
			return &blocks.MagicError{Got: hdr.ID, Want: want}
		}
		frags = append(frags, Fragment{
			Offset: addr + blocks.HeaderSize,
			Length: hdr.Length - blocks.HeaderSize,
		})
		return nil
	}

	for addr != 0 {
		if addr+blocks.HeaderSize > uint64(len(data)) {
			return nil, xerrors.Errorf("index: block at %#x past end of file", addr)
		}
		hdr, err := blocks.ParseHeader(data[addr:], "")
		if err != nil {
			return nil, err
		}
		if hdr.ID == blocks.MagicDL {
			dl, err := blocks.ParseDataList(data[addr:])
			if err != nil {
				return nil, err
			}
			for _, link := range dl.Links {
				if err := push(link); err != nil {
					return nil, err
				}
			}
			addr = dl.Next
			continue
		}
		if err := push(addr); err != nil {
			return nil, err
		}
		addr = 0
	}
	return frags, nil
}

// Save writes the index as pretty-printed JSON.
func (ix *Index) Save(path string) error {
	buf, err := json.MarshalIndent(ix, "", "  ")
	if err != nil {
		return xerrors.Errorf("index: could not marshal index: %w", err)
	}
	err = os.WriteFile(path, buf, 0644)
	if err != nil {
		return xerrors.Errorf("index: could not write %q: %w", path, err)
	}
	return nil
}

// Load reads an index back from its JSON form.
func Load(path string) (*Index, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Errorf("index: could not read %q: %w", path, err)
	}
	var ix Index
	err = json.Unmarshal(buf, &ix)
	if err != nil {
		return nil, xerrors.Errorf("index: could not unmarshal %q: %w", path, err)
	}
	if ix.Version != FormatVersion {
		return nil, xerrors.Errorf("index: unsupported index version %d", ix.Version)
	}
	return &ix, nil
}

// group returns the i-th group.
func (ix *Index) group(i int) (*Group, error) {
	if i < 0 || i >= len(ix.Groups) {
		return nil, xerrors.Errorf("index: invalid group index %d", i)
	}
	return &ix.Groups[i], nil
}

// channel returns the (group, channel) pair addressed by indices.
func (ix *Index) channel(g, c int) (*Group, *Channel, error) {
	grp, err := ix.group(g)
	if err != nil {
		return nil, nil, err
	}
	if c < 0 || c >= len(grp.Channels) {
		return nil, nil, xerrors.Errorf("index: invalid channel index %d in group %d", c, g)
	}
	return grp, &grp.Channels[c], nil
}

// GroupSummary is one row of ListChannelGroups.
type GroupSummary struct {
	Index    int
	Name     string
	Channels int
}

// ChannelSummary is one row of ListChannels.
type ChannelSummary struct {
	Index    int
	Name     string
	DataType blocks.DataType
}

// ListChannelGroups returns (index, name, channel count) for each group.
func (ix *Index) ListChannelGroups() []GroupSummary {
	out := make([]GroupSummary, len(ix.Groups))
	for i, g := range ix.Groups {
		out[i] = GroupSummary{Index: i, Name: g.Name, Channels: len(g.Channels)}
	}
	return out
}

// ListChannels returns (index, name, data type) for the channels of a
// group.
func (ix *Index) ListChannels(group int) ([]ChannelSummary, error) {
	g, err := ix.group(group)
	if err != nil {
		return nil, err
	}
	out := make([]ChannelSummary, len(g.Channels))
	for i, c := range g.Channels {
		out[i] = ChannelSummary{Index: i, Name: c.Name, DataType: c.DataType}
	}
	return out, nil
}

// FindChannelGroupByName returns the index of the named group, or -1.
func (ix *Index) FindChannelGroupByName(name string) int {
	for i, g := range ix.Groups {
		if g.Name == name {
			return i
		}
	}
	return -1
}

// FindChannelByName returns the index of the named channel within a
// group, or -1.
func (ix *Index) FindChannelByName(group int, name string) int {
	if group < 0 || group >= len(ix.Groups) {
		return -1
	}
	for i, c := range ix.Groups[group].Channels {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// FindChannelByNameGlobal returns the first (group, channel) pair with
// the given channel name, or (-1, -1).
func (ix *Index) FindChannelByNameGlobal(name string) (int, int) {
	for g, grp := range ix.Groups {
		for c, ch := range grp.Channels {
			if ch.Name == name {
				return g, c
			}
		}
	}
	return -1, -1
}

// FindAllChannelsByName returns every (group, channel) pair with the
// given channel name.
func (ix *Index) FindAllChannelsByName(name string) [][2]int {
	var out [][2]int
	for g, grp := range ix.Groups {
		for c, ch := range grp.Channels {
			if ch.Name == name {
				out = append(out, [2]int{g, c})
			}
		}
	}
	return out
}
