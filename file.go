// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mdf

import (
	"golang.org/x/xerrors"

	"github.com/go-lpc/mdf/blocks"
	"github.com/go-lpc/mdf/internal/mmap"
)

// File is a parsed MDF 4.1 file. The file is memory-mapped; every block
// view and record slice borrows from the mapping and is only valid until
// Close.
type File struct {
	mm   *mmap.Handle
	data []byte

	ID     *blocks.Identification
	Header *blocks.HeaderBlock
	Groups []*DataGroup
}

// DataGroup is a parsed ##DG with its channel groups.
type DataGroup struct {
	Block         *blocks.DataGroup
	ChannelGroups []*ChannelGroup
}

// ChannelGroup is a parsed ##CG with its channels.
type ChannelGroup struct {
	file  *File
	dg    *DataGroup
	Block *blocks.ChannelGroup

	Channels []*Channel
}

// Channel is a parsed ##CN. Name, unit, comment, source and conversion
// are resolved lazily on first request.
type Channel struct {
	file *File
	dg   *DataGroup
	cg   *ChannelGroup

	Block *blocks.Channel

	conv     *blocks.Conversion
	convErr  error
	convDone bool
}

// Open memory-maps and parses the named MDF file.
func Open(path string) (*File, error) {
	mm, err := mmap.Open(path)
	if err != nil {
		return nil, xerrors.Errorf("mdf: could not map %q: %w", path, err)
	}
	f, err := FromBytes(mm.Bytes())
	if err != nil {
		_ = mm.Close()
		return nil, err
	}
	f.mm = mm
	return f, nil
}

// FromBytes parses an MDF file held in memory. The returned File borrows
// from data.
func FromBytes(data []byte) (*File, error) {
	id, err := blocks.ParseIdentification(data)
	if err != nil {
		return nil, xerrors.Errorf("mdf: could not parse identification: %w", err)
	}
	if len(data) < blocks.IdentificationSize+blocks.HeaderBlockSize {
		return nil, xerrors.Errorf("mdf: file too small for header block (%d bytes)", len(data))
	}
	hd, err := blocks.ParseHeaderBlock(data[blocks.IdentificationSize:])
	if err != nil {
		return nil, xerrors.Errorf("mdf: could not parse header block: %w", err)
	}

	f := &File{data: data, ID: id, Header: hd}

	for addr := hd.FirstDG; addr != 0; {
		if err := checkAddr(data, addr, blocks.DataGroupSize); err != nil {
			return nil, err
		}
		dgb, err := blocks.ParseDataGroup(data[addr:])
		if err != nil {
			return nil, xerrors.Errorf("mdf: could not parse data group at %#x: %w", addr, err)
		}
		dg := &DataGroup{Block: dgb}

		for cgAddr := dgb.FirstCG; cgAddr != 0; {
			if err := checkAddr(data, cgAddr, blocks.ChannelGroupSize); err != nil {
				return nil, err
			}
			cgb, err := blocks.ParseChannelGroup(data[cgAddr:])
			if err != nil {
				return nil, xerrors.Errorf("mdf: could not parse channel group at %#x: %w", cgAddr, err)
			}
			cg := &ChannelGroup{file: f, dg: dg, Block: cgb}

			for cnAddr := cgb.FirstCN; cnAddr != 0; {
				if err := checkAddr(data, cnAddr, blocks.ChannelSize); err != nil {
					return nil, err
				}
				cnb, err := blocks.ParseChannel(data[cnAddr:])
				if err != nil {
					return nil, xerrors.Errorf("mdf: could not parse channel at %#x: %w", cnAddr, err)
				}
				cg.Channels = append(cg.Channels, &Channel{file: f, dg: dg, cg: cg, Block: cnb})
				cnAddr = cnb.NextCN
			}

			dg.ChannelGroups = append(dg.ChannelGroups, cg)
			cgAddr = cgb.NextCG
		}

		f.Groups = append(f.Groups, dg)
		addr = dgb.NextDG
	}

	return f, nil
}

func checkAddr(data []byte, addr, size uint64) error {
	if addr+size < addr || uint64(len(data)) < addr+size {
		return xerrors.Errorf("mdf: block at %#x (+%d) past end of %d-byte file", addr, size, len(data))
	}
	return nil
}

// Close unmaps the file. All views borrowed from it become invalid.
func (f *File) Close() error {
	if f.mm == nil {
		return nil
	}
	return f.mm.Close()
}

// Bytes returns the raw mapped file contents.
func (f *File) Bytes() []byte { return f.data }

// StartTimeNS returns the absolute measurement start time in nanoseconds
// since the Unix epoch, or 0 when unset.
func (f *File) StartTimeNS() int64 {
	return int64(f.Header.StartTimeNS)
}

// ChannelGroups returns all channel groups of the file, across data
// groups, in file order.
func (f *File) ChannelGroups() []*ChannelGroup {
	var cgs []*ChannelGroup
	for _, dg := range f.Groups {
		cgs = append(cgs, dg.ChannelGroups...)
	}
	return cgs
}

// Name returns the acquisition name of the channel group.
func (cg *ChannelGroup) Name() (string, error) {
	return blocks.ReadText(cg.file.data, cg.Block.AcqNameTX)
}

// Comment returns the comment of the channel group.
func (cg *ChannelGroup) Comment() (string, error) {
	return blocks.ReadText(cg.file.data, cg.Block.CommentMD)
}

// Source returns the acquisition source of the channel group, or nil.
func (cg *ChannelGroup) Source() (*blocks.Source, error) {
	return blocks.ReadSource(cg.file.data, cg.Block.AcqSourceSI)
}

// DataGroup returns the parent data group.
func (cg *ChannelGroup) DataGroup() *DataGroup { return cg.dg }

// Channel returns the named channel of the group, or nil.
func (cg *ChannelGroup) Channel(name string) (*Channel, error) {
	for _, ch := range cg.Channels {
		n, err := ch.Name()
		if err != nil {
			return nil, err
		}
		if n == name {
			return ch, nil
		}
	}
	return nil, nil
}

// Name returns the channel name.
func (ch *Channel) Name() (string, error) {
	return blocks.ReadText(ch.file.data, ch.Block.NameTX)
}

// Unit returns the physical unit of the channel.
func (ch *Channel) Unit() (string, error) {
	return blocks.ReadText(ch.file.data, ch.Block.UnitTX)
}

// Comment returns the channel comment.
func (ch *Channel) Comment() (string, error) {
	return blocks.ReadText(ch.file.data, ch.Block.CommentMD)
}

// Source returns the signal source of the channel, or nil.
func (ch *Channel) Source() (*blocks.Source, error) {
	return blocks.ReadSource(ch.file.data, ch.Block.SourceSI)
}

// IsMaster reports whether the channel is the time master of its group.
func (ch *Channel) IsMaster() bool {
	return ch.Block.ChannelType == blocks.ChannelTypeMaster &&
		ch.Block.SyncType == blocks.SyncTypeTime
}

// Conversion returns the resolved conversion of the channel, or nil when
// the channel has none. The resolution is performed once and cached.
func (ch *Channel) Conversion() (*blocks.Conversion, error) {
	if ch.convDone {
		return ch.conv, ch.convErr
	}
	ch.convDone = true
	addr := ch.Block.ConversionCC
	if addr == 0 {
		return nil, nil
	}
	if err := checkAddr(ch.file.data, addr, blocks.HeaderSize); err != nil {
		ch.convErr = err
		return nil, err
	}
	cc, err := blocks.ParseConversion(ch.file.data[addr:])
	if err != nil {
		ch.convErr = xerrors.Errorf("mdf: could not parse conversion at %#x: %w", addr, err)
		return nil, ch.convErr
	}
	err = cc.Resolve(ch.file.data, addr)
	if err != nil {
		ch.convErr = xerrors.Errorf("mdf: could not resolve conversion at %#x: %w", addr, err)
		return nil, ch.convErr
	}
	ch.conv = cc
	return ch.conv, nil
}
