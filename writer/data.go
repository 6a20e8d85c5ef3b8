// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package writer

import (
	"math"

	"golang.org/x/xerrors"

	"github.com/go-lpc/mdf/blocks"
	"github.com/go-lpc/mdf/internal/bitio"
)

// maxDataBlockSize is the fragmentation threshold of an open ##DT block,
// header included.
const maxDataBlockSize = 4 << 20

// openDataBlock tracks one channel group's open ##DT while records are
// appended.
type openDataBlock struct {
	dgID string

	startPos    uint64 // header offset of the current fragment
	recordSize  int
	recordIDLen int
	recordID    uint64
	invalBytes  int
	dataBytes   int

	count int    // records in the current fragment
	total uint64 // records across all fragments

	chans []*chanInfo
	vlsd  map[int][]byte // channel index -> accumulated signal data

	positions []uint64 // fragment header offsets
	sizes     []uint64 // finalized fragment sizes
}

// StartDataBlock opens a ##DT block for the channel group at the current
// position. Record geometry is derived from the group's channels and its
// data size is patched into the ##CG block; the ##DG data link is pointed
// at the new ##DT.
func (w *Writer) StartDataBlock(cgID string) error {
	if _, dup := w.open[cgID]; dup {
		return &blocks.SerializationError{Msg: "data block already open for channel group " + cgID}
	}
	dgID, ok := w.cgToDG[cgID]
	if !ok {
		return &blocks.LinkError{Msg: "channel group " + cgID + " not found"}
	}
	dg := w.dgBlock[dgID]
	cg := w.cgBlock[cgID]
	chans := w.cgChans[cgID]
	if len(chans) == 0 {
		return &blocks.SerializationError{Msg: "no channels in channel group " + cgID}
	}

	dataBytes := 0
	for _, ci := range chans {
		end := int(ci.block.ByteOffset) + ci.block.DataBytes()
		if end > dataBytes {
			dataBytes = end
		}
	}
	recordIDLen := int(dg.RecordIDLen)
	invalBytes := int(cg.InvalidationBytesNr)
	recordSize := recordIDLen + dataBytes + invalBytes

	if err := w.patchU32(cgID, 96, uint32(dataBytes)); err != nil {
		return err
	}
	cg.SamplesByteNr = uint32(dataBytes)

	dtID, dtPos, err := w.writeDataHeader()
	if err != nil {
		return err
	}
	if err := w.UpdateBlockLink(dgID, dgLinkData, dtID); err != nil {
		return err
	}

	w.open[cgID] = &openDataBlock{
		dgID:        dgID,
		startPos:    dtPos,
		recordSize:  recordSize,
		recordIDLen: recordIDLen,
		recordID:    cg.RecordID,
		invalBytes:  invalBytes,
		dataBytes:   dataBytes,
		chans:       chans,
		vlsd:        make(map[int][]byte),
		positions:   []uint64{dtPos},
	}
	return nil
}

// writeDataHeader emits a ##DT header with a placeholder length.
func (w *Writer) writeDataHeader() (string, uint64, error) {
	var buf [blocks.HeaderSize]byte
	hdr := blocks.Header{ID: blocks.MagicDT, Length: blocks.HeaderSize}
	copy(buf[:4], hdr.ID)
	bitio.PutU64(buf[8:16], hdr.Length)
	id := w.nextID("dt")
	pos, err := w.WriteBlockWithID(buf[:], id)
	if err != nil {
		return "", 0, err
	}
	return id, pos, nil
}

// rotate closes the current fragment and opens a new one; called when a
// record would push the open block past the fragmentation threshold.
// Records are never split across fragments.
func (w *Writer) rotate(cgID string, dt *openDataBlock) error {
	size := uint64(blocks.HeaderSize + dt.recordSize*dt.count)
	if err := w.UpdateLink(dt.startPos+8, size); err != nil {
		return err
	}
	dt.sizes = append(dt.sizes, size)
	dt.total += uint64(dt.count)

	_, pos, err := w.writeDataHeader()
	if err != nil {
		return err
	}
	dt.startPos = pos
	dt.count = 0
	dt.positions = append(dt.positions, pos)
	return nil
}

// WriteRecord encodes one record, all samples valid.
func (w *Writer) WriteRecord(cgID string, values []blocks.Value) error {
	return w.WriteRecordWithValidity(cgID, values, nil)
}

// WriteRecordWithValidity encodes one record. valid, when non-nil, holds
// one flag per channel; channels using an invalidation bit get their bit
// set for invalid samples.
func (w *Writer) WriteRecordWithValidity(cgID string, values []blocks.Value, valid []bool) error {
	dt, ok := w.open[cgID]
	if !ok {
		return &blocks.SerializationError{Msg: "no open data block for channel group " + cgID}
	}
	if len(values) != len(dt.chans) {
		return &blocks.SerializationError{Msg: "value count mismatch"}
	}
	if valid != nil && len(valid) != len(dt.chans) {
		return &blocks.SerializationError{Msg: "validity count mismatch"}
	}

	if blocks.HeaderSize+dt.recordSize*(dt.count+1) > maxDataBlockSize {
		if err := w.rotate(cgID, dt); err != nil {
			return err
		}
	}

	buf := make([]byte, dt.recordSize)
	putRecordID(buf, dt.recordIDLen, dt.recordID)

	for i, ci := range dt.chans {
		off := dt.recordIDLen + int(ci.block.ByteOffset)
		if err := w.encodeValue(buf, off, dt, i, ci.block, values[i]); err != nil {
			return err
		}
		if valid != nil && !valid[i] && ci.block.Flags&blocks.ChannelFlagInvalBitUsed != 0 {
			pos := ci.block.PosInvalidationBit
			idx := dt.recordIDLen + dt.dataBytes + int(pos>>3)
			if idx < len(buf) {
				buf[idx] |= 1 << (pos & 7)
			}
		}
	}

	if _, err := w.w.Write(buf); err != nil {
		return xerrors.Errorf("writer: could not write record: %w", err)
	}
	w.off += uint64(len(buf))
	dt.count++
	return nil
}

func putRecordID(buf []byte, n int, id uint64) {
	for i := 0; i < n; i++ {
		buf[i] = byte(id >> (8 * i))
	}
}

// encodeValue places one channel's value into the record buffer. Output
// is always little-endian; values whose type does not match the channel
// leave the field zeroed.
func (w *Writer) encodeValue(buf []byte, off int, dt *openDataBlock, idx int, cn *blocks.Channel, v blocks.Value) error {
	if cn.ChannelType == blocks.ChannelTypeVLSD {
		return w.encodeVLSD(buf, off, dt, idx, v)
	}
	n := (int(cn.BitCount) + 7) / 8
	switch cn.DataType {
	case blocks.UnsignedIntegerLE:
		if v.Kind() != blocks.KindUnsigned {
			return nil
		}
		putUintN(buf[off:], v.Uint(), n)
	case blocks.SignedIntegerLE:
		if v.Kind() != blocks.KindSigned {
			return nil
		}
		putUintN(buf[off:], uint64(v.Int()), n)
	case blocks.FloatLE:
		if v.Kind() != blocks.KindFloat {
			return nil
		}
		switch cn.BitCount {
		case 32:
			bitio.PutU32(buf[off:off+4], math.Float32bits(float32(v.Float())))
		case 64:
			bitio.PutU64(buf[off:off+8], math.Float64bits(v.Float()))
		}
	case blocks.StringLatin1, blocks.StringUTF8:
		if v.Kind() != blocks.KindString {
			return nil
		}
		copy(buf[off:off+cn.DataBytes()], v.Str())
	case blocks.ByteArray, blocks.MimeSample, blocks.MimeStream:
		switch v.Kind() {
		case blocks.KindBytes, blocks.KindMimeSample, blocks.KindMimeStream:
			copy(buf[off:off+cn.DataBytes()], v.Bytes())
		}
	}
	return nil
}

// encodeVLSD appends the value to the channel's signal-data stream and
// stores the entry's stream offset in the record.
func (w *Writer) encodeVLSD(buf []byte, off int, dt *openDataBlock, idx int, v blocks.Value) error {
	var payload []byte
	switch v.Kind() {
	case blocks.KindString:
		payload = []byte(v.Str())
	case blocks.KindBytes, blocks.KindMimeSample, blocks.KindMimeStream:
		payload = v.Bytes()
	default:
		return &blocks.SerializationError{Msg: "VLSD channel requires a string or byte value"}
	}
	stream := dt.vlsd[idx]
	pos := uint64(len(stream))
	var ln [4]byte
	bitio.PutU32(ln[:], uint32(len(payload)))
	stream = append(stream, ln[:]...)
	stream = append(stream, payload...)
	dt.vlsd[idx] = stream
	bitio.PutU64(buf[off:off+8], pos)
	return nil
}

func putUintN(buf []byte, v uint64, n int) {
	if n > 8 {
		n = 8
	}
	for i := 0; i < n; i++ {
		buf[i] = byte(v >> (8 * i))
	}
}

// WriteRecords appends the given records in order.
func (w *Writer) WriteRecords(cgID string, records [][]blocks.Value) error {
	for _, rec := range records {
		if err := w.WriteRecord(cgID, rec); err != nil {
			return err
		}
	}
	return nil
}

// WriteRecordU64 is the fast path for channel groups whose channels are
// all little-endian unsigned integers: no per-value dispatch.
func (w *Writer) WriteRecordU64(cgID string, values []uint64) error {
	dt, ok := w.open[cgID]
	if !ok {
		return &blocks.SerializationError{Msg: "no open data block for channel group " + cgID}
	}
	if len(values) != len(dt.chans) {
		return &blocks.SerializationError{Msg: "value count mismatch"}
	}
	if blocks.HeaderSize+dt.recordSize*(dt.count+1) > maxDataBlockSize {
		if err := w.rotate(cgID, dt); err != nil {
			return err
		}
	}
	buf := make([]byte, dt.recordSize)
	putRecordID(buf, dt.recordIDLen, dt.recordID)
	for i, ci := range dt.chans {
		if ci.block.DataType != blocks.UnsignedIntegerLE {
			return &blocks.SerializationError{Msg: "WriteRecordU64 requires unsigned little-endian channels"}
		}
		off := dt.recordIDLen + int(ci.block.ByteOffset)
		putUintN(buf[off:], values[i], (int(ci.block.BitCount)+7)/8)
	}
	if _, err := w.w.Write(buf); err != nil {
		return xerrors.Errorf("writer: could not write record: %w", err)
	}
	w.off += uint64(len(buf))
	dt.count++
	return nil
}

// FinishDataBlock closes the open ##DT of the channel group: the last
// fragment's length is patched, the group's cycle count updated, any
// VLSD streams emitted as ##SD blocks, and, when more than one fragment
// exists, a ##DL listing them replaces the lone ##DT as the data group's
// data link.
func (w *Writer) FinishDataBlock(cgID string) error {
	dt, ok := w.open[cgID]
	if !ok {
		return &blocks.SerializationError{Msg: "no open data block for channel group " + cgID}
	}
	delete(w.open, cgID)

	size := uint64(blocks.HeaderSize + dt.recordSize*dt.count)
	if err := w.UpdateLink(dt.startPos+8, size); err != nil {
		return err
	}
	dt.sizes = append(dt.sizes, size)
	dt.total += uint64(dt.count)

	if err := w.patchU64(cgID, 80, dt.total); err != nil {
		return err
	}
	w.cgBlock[cgID].CycleCount = dt.total

	for i, ci := range dt.chans {
		stream, ok := dt.vlsd[i]
		if !ok {
			continue
		}
		buf := make([]byte, blocks.HeaderSize+len(stream))
		hdr := blocks.Header{ID: blocks.MagicSD, Length: uint64(len(buf))}
		copy(buf[:4], hdr.ID)
		bitio.PutU64(buf[8:16], hdr.Length)
		copy(buf[blocks.HeaderSize:], stream)
		sdID := w.nextID("sd")
		if _, err := w.WriteBlockWithID(buf, sdID); err != nil {
			return err
		}
		if err := w.UpdateBlockLink(ci.id, cnLinkData, sdID); err != nil {
			return err
		}
	}

	if len(dt.positions) > 1 {
		dl := blocks.NewDataList(dt.positions, dt.sizes[0])
		buf, err := dl.Serialize()
		if err != nil {
			return err
		}
		dlID := w.nextID("dl")
		if _, err := w.WriteBlockWithID(buf, dlID); err != nil {
			return err
		}
		if err := w.UpdateBlockLink(dt.dgID, dgLinkData, dlID); err != nil {
			return err
		}
	}
	return nil
}
