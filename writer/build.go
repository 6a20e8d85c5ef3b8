// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package writer

import (
	"golang.org/x/xerrors"

	"github.com/go-lpc/mdf/blocks"
)

// Link indices within the blocks the builder patches.
const (
	hdLinkFirstDG = 0

	dgLinkNext    = 0
	dgLinkFirstCG = 1
	dgLinkData    = 2

	cgLinkNext    = 0
	cgLinkFirstCN = 1

	cnLinkNext       = 0
	cnLinkName       = 2
	cnLinkConversion = 4
	cnLinkData       = 5
	cnLinkUnit       = 6
)

// Init writes the identification preamble and the header block. The
// header's links are left null until data groups are added.
func (w *Writer) Init() error {
	id, err := blocks.NewIdentification().Serialize()
	if err != nil {
		return err
	}
	if _, err := w.WriteBlockWithID(id, "id_block"); err != nil {
		return err
	}
	hd, err := blocks.NewHeaderBlock().Serialize()
	if err != nil {
		return err
	}
	if _, err := w.WriteBlockWithID(hd, "hd_block"); err != nil {
		return err
	}
	return nil
}

// SetStartTime patches the measurement start time (ns since the Unix
// epoch) into the header block.
func (w *Writer) SetStartTime(ns uint64) error {
	return w.patchU64("hd_block", 72, ns)
}

// AddDataGroup appends a data group block, linking it from the header
// block (first group) or from the previous data group.
func (w *Writer) AddDataGroup(mutate func(*blocks.DataGroup)) (string, error) {
	dg := blocks.NewDataGroup()
	if mutate != nil {
		mutate(dg)
	}
	id := w.nextID("dg")
	buf, err := dg.Serialize()
	if err != nil {
		return "", err
	}
	if _, err := w.WriteBlockWithID(buf, id); err != nil {
		return "", err
	}
	if w.lastDG == "" {
		if err := w.UpdateBlockLink("hd_block", hdLinkFirstDG, id); err != nil {
			return "", err
		}
	} else {
		if err := w.UpdateBlockLink(w.lastDG, dgLinkNext, id); err != nil {
			return "", err
		}
	}
	w.lastDG = id
	w.dgBlock[id] = dg
	return id, nil
}

// AddChannelGroup appends a channel group to the given data group,
// chaining it after any previous group.
func (w *Writer) AddChannelGroup(dgID string, mutate func(*blocks.ChannelGroup)) (string, error) {
	if _, ok := w.pos[dgID]; !ok {
		return "", &blocks.LinkError{Msg: "data group " + dgID + " not found"}
	}
	cg := blocks.NewChannelGroup()
	if mutate != nil {
		mutate(cg)
	}
	id := w.nextID("cg")
	buf, err := cg.Serialize()
	if err != nil {
		return "", err
	}
	if _, err := w.WriteBlockWithID(buf, id); err != nil {
		return "", err
	}
	if prev, ok := w.lastCG[dgID]; ok {
		if err := w.UpdateBlockLink(prev, cgLinkNext, id); err != nil {
			return "", err
		}
	} else {
		if err := w.UpdateBlockLink(dgID, dgLinkFirstCG, id); err != nil {
			return "", err
		}
	}
	w.lastCG[dgID] = id
	w.cgToDG[id] = dgID
	w.cgBlock[id] = cg
	return id, nil
}

// AddChannel appends a channel to the given channel group. The mutator
// customizes the default block; a zero byte offset is auto-assigned by
// appending after the group's last channel, and a zero bit count defaults
// from the data type. The channel name is written as a ##TX block.
func (w *Writer) AddChannel(cgID, name string, mutate func(*blocks.Channel)) (string, error) {
	if _, ok := w.pos[cgID]; !ok {
		return "", &blocks.LinkError{Msg: "channel group " + cgID + " not found"}
	}
	cn := blocks.NewChannel()
	if mutate != nil {
		mutate(cn)
	}
	if cn.BitCount == 0 {
		cn.BitCount = defaultBitCount(cn)
	}
	if cn.ByteOffset == 0 {
		cn.ByteOffset = w.nextByteOffset(cgID)
	}

	id := w.nextID("cn")
	buf, err := cn.Serialize()
	if err != nil {
		return "", err
	}
	if _, err := w.WriteBlockWithID(buf, id); err != nil {
		return "", err
	}

	if name != "" {
		tx, err := blocks.NewTextBlock(name).Serialize()
		if err != nil {
			return "", err
		}
		txID := "tx_name_" + id
		if _, err := w.WriteBlockWithID(tx, txID); err != nil {
			return "", err
		}
		if err := w.UpdateBlockLink(id, cnLinkName, txID); err != nil {
			return "", err
		}
	}

	if prev, ok := w.lastCN[cgID]; ok {
		if err := w.UpdateBlockLink(prev, cnLinkNext, id); err != nil {
			return "", err
		}
	} else {
		if err := w.UpdateBlockLink(cgID, cgLinkFirstCN, id); err != nil {
			return "", err
		}
	}
	w.lastCN[cgID] = id
	w.cgChans[cgID] = append(w.cgChans[cgID], &chanInfo{id: id, block: cn})
	return id, nil
}

func defaultBitCount(cn *blocks.Channel) uint32 {
	if cn.ChannelType == blocks.ChannelTypeVLSD {
		return 64 // the record holds a u64 offset into the signal data
	}
	switch cn.DataType {
	case blocks.UnsignedIntegerLE, blocks.UnsignedIntegerBE,
		blocks.SignedIntegerLE, blocks.SignedIntegerBE:
		return 32
	default:
		return 64
	}
}

// nextByteOffset returns the first free byte offset within the group's
// record data region.
func (w *Writer) nextByteOffset(cgID string) uint32 {
	var next uint32
	for _, ci := range w.cgChans[cgID] {
		end := ci.block.ByteOffset + uint32(ci.block.DataBytes())
		if end > next {
			next = end
		}
	}
	return next
}

// SetTimeChannel marks the channel as the time master of its group,
// patching channel_type and sync_type in place.
func (w *Writer) SetTimeChannel(cnID string) error {
	found := false
	for _, chans := range w.cgChans {
		for _, ci := range chans {
			if ci.id != cnID {
				continue
			}
			ci.block.ChannelType = blocks.ChannelTypeMaster
			ci.block.SyncType = blocks.SyncTypeTime
			found = true
		}
	}
	if !found {
		return &blocks.LinkError{Msg: "channel " + cnID + " not found"}
	}
	if err := w.patchU8(cnID, 88, blocks.ChannelTypeMaster); err != nil {
		return err
	}
	return w.patchU8(cnID, 89, blocks.SyncTypeTime)
}

// SetChannelUnit writes the unit as a ##TX block and links it from the
// channel.
func (w *Writer) SetChannelUnit(cnID, unit string) error {
	tx, err := blocks.NewTextBlock(unit).Serialize()
	if err != nil {
		return err
	}
	txID := "tx_unit_" + cnID
	if _, err := w.WriteBlockWithID(tx, txID); err != nil {
		return err
	}
	return w.UpdateBlockLink(cnID, cnLinkUnit, txID)
}

// AddConversion writes the conversion block and links it from the
// channel. refTexts, when non-nil, are written as ##TX blocks first and
// their addresses fill cc.Ref in order (an empty string leaves the link
// null).
func (w *Writer) AddConversion(cnID string, cc *blocks.Conversion, refTexts []string) (string, error) {
	if _, ok := w.pos[cnID]; !ok {
		return "", &blocks.LinkError{Msg: "channel " + cnID + " not found"}
	}
	if refTexts != nil {
		cc.Ref = make([]uint64, len(refTexts))
		for i, text := range refTexts {
			if text == "" {
				continue
			}
			tx, err := blocks.NewTextBlock(text).Serialize()
			if err != nil {
				return "", err
			}
			pos, err := w.WriteBlock(tx)
			if err != nil {
				return "", err
			}
			cc.Ref[i] = pos
		}
	}
	cc.Header.LinkCount = 4 + uint64(len(cc.Ref))

	id := w.nextID("cc")
	buf, err := cc.Serialize()
	if err != nil {
		return "", err
	}
	if _, err := w.WriteBlockWithID(buf, id); err != nil {
		return "", err
	}
	if err := w.UpdateBlockLink(cnID, cnLinkConversion, id); err != nil {
		return "", err
	}
	return id, nil
}

// WriteSimpleFile writes a minimal MDF file with one data group, one
// channel group and two unsigned 32-bit channels, without records.
func WriteSimpleFile(path string) error {
	w, err := New(path)
	if err != nil {
		return err
	}
	if err := w.Init(); err != nil {
		return err
	}
	dg, err := w.AddDataGroup(nil)
	if err != nil {
		return err
	}
	cg, err := w.AddChannelGroup(dg, nil)
	if err != nil {
		return err
	}
	_, err = w.AddChannel(cg, "channel-1", func(cn *blocks.Channel) {
		cn.DataType = blocks.UnsignedIntegerLE
		cn.BitCount = 32
	})
	if err != nil {
		return err
	}
	_, err = w.AddChannel(cg, "channel-2", func(cn *blocks.Channel) {
		cn.DataType = blocks.UnsignedIntegerLE
		cn.BitCount = 32
	})
	if err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return xerrors.Errorf("writer: could not close %q: %w", path, err)
	}
	return nil
}
