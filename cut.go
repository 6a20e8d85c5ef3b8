// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mdf

import (
	"golang.org/x/xerrors"

	"github.com/go-lpc/mdf/blocks"
	"github.com/go-lpc/mdf/internal/bitio"
	"github.com/go-lpc/mdf/writer"
)

// CutByTime copies the records of src whose master-channel value lies in
// [start, end] into a new file at dst, preserving the group and channel
// structure. Groups without a master channel are copied whole. Raw values
// are carried over unconverted.
func CutByTime(src, dst string, start, end float64) error {
	f, err := Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := writer.New(dst)
	if err != nil {
		return err
	}
	if err := w.Init(); err != nil {
		return err
	}
	if err := w.SetStartTime(f.Header.StartTimeNS); err != nil {
		return err
	}

	for _, dg := range f.Groups {
		dgID, err := w.AddDataGroup(func(b *blocks.DataGroup) {
			b.RecordIDLen = dg.Block.RecordIDLen
		})
		if err != nil {
			return err
		}
		for _, cg := range dg.ChannelGroups {
			err := cutGroup(f, w, dgID, dg, cg, start, end)
			if err != nil {
				return err
			}
		}
	}
	return w.Close()
}

func cutGroup(f *File, w *writer.Writer, dgID string, dg *DataGroup, cg *ChannelGroup, start, end float64) error {
	cgID, err := w.AddChannelGroup(dgID, func(b *blocks.ChannelGroup) {
		b.RecordID = cg.Block.RecordID
		b.InvalidationBytesNr = cg.Block.InvalidationBytesNr
	})
	if err != nil {
		return err
	}

	master := -1
	for i, ch := range cg.Channels {
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
		if ch.IsMaster() && master < 0 {
			master = i
		}
	}

	if err := w.StartDataBlock(cgID); err != nil {
		return err
	}

	recordIDLen := int(dg.Block.RecordIDLen)
	samplesByteNr := int(cg.Block.SamplesByteNr)

	streams := make([]*signalStream, len(cg.Channels))
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

		if master >= 0 {
			t, err := masterValue(f, cg.Channels[master], rec, recordIDLen)
			if err != nil {
				return err
			}
			if t < start {
				continue
			}
			if t > end {
				break
			}
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
	return w.FinishDataBlock(cgID)
}

// rawValue decodes one channel's raw value from a record, following the
// VLSD stream when needed.
func rawValue(stream *signalStream, cn *blocks.Channel, rec []byte, recordIDLen int) (blocks.Value, error) {
	if stream == nil {
		return Decode(rec, recordIDLen, cn), nil
	}
	base := recordIDLen + int(cn.ByteOffset)
	if base+8 > len(rec) {
		return blocks.Unknown, nil
	}
	payload, err := stream.entryAt(bitio.ReadU64(rec[base : base+8]))
	if err != nil {
		return blocks.Unknown, err
	}
	return Decode(payload, 0, cn), nil
}

// masterValue decodes and converts the master channel's sample to a
// float.
func masterValue(f *File, ch *Channel, rec []byte, recordIDLen int) (float64, error) {
	v := Decode(rec, recordIDLen, ch.Block)
	conv, err := ch.Conversion()
	if err != nil {
		return 0, err
	}
	if conv != nil {
		v, err = conv.Apply(v)
		if err != nil {
			return 0, err
		}
	}
	t, ok := v.Numeric()
	if !ok {
		return 0, xerrors.Errorf("mdf: master channel yields non-numeric value %v", v)
	}
	return t, nil
}
