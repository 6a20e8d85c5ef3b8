// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mdf

import (
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"github.com/go-lpc/mdf/blocks"
	"github.com/go-lpc/mdf/writer"
)

// Merge concatenates the records of the input files into dst. All inputs
// must share the layout of the first one: same groups in order, with
// matching channel names, types and record geometry.
func Merge(dst string, srcs ...string) error {
	if len(srcs) == 0 {
		return xerrors.Errorf("mdf: no input files to merge")
	}

	files := make([]*File, len(srcs))
	var grp errgroup.Group
	for i, src := range srcs {
		i, src := i, src
		grp.Go(func() error {
			f, err := Open(src)
			if err != nil {
				return xerrors.Errorf("mdf: could not open %q: %w", src, err)
			}
			files[i] = f
			return nil
		})
	}
	err := grp.Wait()
	defer func() {
		for _, f := range files {
			if f != nil {
				_ = f.Close()
			}
		}
	}()
	if err != nil {
		return err
	}

	ref := files[0]
	for i, f := range files[1:] {
		if err := sameLayout(ref, f); err != nil {
			return xerrors.Errorf("mdf: %q does not match layout of %q: %w", srcs[i+1], srcs[0], err)
		}
	}

	w, err := writer.New(dst)
	if err != nil {
		return err
	}
	if err := w.Init(); err != nil {
		return err
	}
	if err := w.SetStartTime(ref.Header.StartTimeNS); err != nil {
		return err
	}

	refCGs := ref.ChannelGroups()
	for gi, refCG := range refCGs {
		dgID, err := w.AddDataGroup(func(b *blocks.DataGroup) {
			b.RecordIDLen = refCG.dg.Block.RecordIDLen
		})
		if err != nil {
			return err
		}
		cgID, err := w.AddChannelGroup(dgID, func(b *blocks.ChannelGroup) {
			b.RecordID = refCG.Block.RecordID
			b.InvalidationBytesNr = refCG.Block.InvalidationBytesNr
		})
		if err != nil {
			return err
		}
		for _, ch := range refCG.Channels {
			name, err := ch.Name()
			if err != nil {
				return err
			}
			src := *ch.Block
			_, err = w.AddChannel(cgID, name, func(b *blocks.Channel) {
				b.ChannelType = src.ChannelType
				b.SyncType = src.SyncType
				b.DataType = src.DataType
				b.BitOffset = src.BitOffset
				b.ByteOffset = src.ByteOffset
				b.BitCount = src.BitCount
				b.Flags = src.Flags
				b.PosInvalidationBit = src.PosInvalidationBit
			})
			if err != nil {
				return err
			}
		}

		if err := w.StartDataBlock(cgID); err != nil {
			return err
		}
		for _, f := range files {
			cg := f.ChannelGroups()[gi]
			if err := appendRecords(f, w, cgID, cg); err != nil {
				return err
			}
		}
		if err := w.FinishDataBlock(cgID); err != nil {
			return err
		}
	}
	return w.Close()
}

// appendRecords copies every record of cg into the writer's open data
// block, raw values unconverted.
func appendRecords(f *File, w *writer.Writer, cgID string, cg *ChannelGroup) error {
	recordIDLen := int(cg.dg.Block.RecordIDLen)
	samplesByteNr := int(cg.Block.SamplesByteNr)

	streams := make([]*signalStream, len(cg.Channels))
	var err error
	for i, ch := range cg.Channels {
		if ch.Block.ChannelType != blocks.ChannelTypeVLSD || ch.Block.Data == 0 {
			continue
		}
		streams[i], err = f.signalStream(ch.Block.Data)
		if err != nil {
			return err
		}
	}

	it, err := cg.Records()
	if err != nil {
		return err
	}
	for {
		rec, ok := it.Next()
		if !ok {
			break
		}
		values := make([]blocks.Value, len(cg.Channels))
		valid := make([]bool, len(cg.Channels))
		for i, ch := range cg.Channels {
			values[i], err = rawValue(streams[i], ch.Block, rec, recordIDLen)
			if err != nil {
				return err
			}
			valid[i] = Valid(rec, recordIDLen, samplesByteNr, ch.Block)
		}
		if err := w.WriteRecordWithValidity(cgID, values, valid); err != nil {
			return err
		}
	}
	return nil
}

// sameLayout verifies that b's channel groups match a's: same count,
// record geometry, and per-channel names and formats.
func sameLayout(a, b *File) error {
	acgs, bcgs := a.ChannelGroups(), b.ChannelGroups()
	if len(acgs) != len(bcgs) {
		return xerrors.Errorf("channel group count mismatch: %d vs %d", len(acgs), len(bcgs))
	}
	for i := range acgs {
		ag, bg := acgs[i], bcgs[i]
		if ag.dg.Block.RecordIDLen != bg.dg.Block.RecordIDLen {
			return xerrors.Errorf("group %d: record id length mismatch", i)
		}
		if ag.Block.SamplesByteNr != bg.Block.SamplesByteNr ||
			ag.Block.InvalidationBytesNr != bg.Block.InvalidationBytesNr {
			return xerrors.Errorf("group %d: record geometry mismatch", i)
		}
		if len(ag.Channels) != len(bg.Channels) {
			return xerrors.Errorf("group %d: channel count mismatch", i)
		}
		for j := range ag.Channels {
			ac, bc := ag.Channels[j], bg.Channels[j]
			an, err := ac.Name()
			if err != nil {
				return err
			}
			bn, err := bc.Name()
			if err != nil {
				return err
			}
			if an != bn {
				return xerrors.Errorf("group %d channel %d: name mismatch %q vs %q", i, j, an, bn)
			}
			if ac.Block.DataType != bc.Block.DataType ||
				ac.Block.ByteOffset != bc.Block.ByteOffset ||
				ac.Block.BitOffset != bc.Block.BitOffset ||
				ac.Block.BitCount != bc.Block.BitCount {
				return xerrors.Errorf("group %d channel %d: format mismatch", i, j)
			}
		}
	}
	return nil
}
