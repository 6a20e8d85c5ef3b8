// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mdf

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-lpc/mdf/blocks"
	"github.com/go-lpc/mdf/writer"
)

func tmpfile(t *testing.T, name string) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "mdf-")
	if err != nil {
		t.Fatalf("could not create tmp dir: %+v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return filepath.Join(dir, name)
}

func TestWriteReadLinearConversion(t *testing.T) {
	fname := tmpfile(t, "linear.mf4")

	w, err := writer.New(fname)
	if err != nil {
		t.Fatalf("could not create writer: %+v", err)
	}
	if err := w.Init(); err != nil {
		t.Fatalf("could not init: %+v", err)
	}
	dg, err := w.AddDataGroup(nil)
	if err != nil {
		t.Fatalf("could not add data group: %+v", err)
	}
	cg, err := w.AddChannelGroup(dg, nil)
	if err != nil {
		t.Fatalf("could not add channel group: %+v", err)
	}
	cn, err := w.AddChannel(cg, "speed", func(b *blocks.Channel) {
		b.DataType = blocks.FloatLE
		b.BitCount = 64
	})
	if err != nil {
		t.Fatalf("could not add channel: %+v", err)
	}
	_, err = w.AddConversion(cn, blocks.NewConversion(blocks.Linear, 10, 2), nil)
	if err != nil {
		t.Fatalf("could not add conversion: %+v", err)
	}

	if err := w.StartDataBlock(cg); err != nil {
		t.Fatalf("could not start data block: %+v", err)
	}
	for _, v := range []float64{0, 1, 2} {
		if err := w.WriteRecord(cg, []blocks.Value{blocks.FloatValue(v)}); err != nil {
			t.Fatalf("could not write record: %+v", err)
		}
	}
	if err := w.FinishDataBlock(cg); err != nil {
		t.Fatalf("could not finish data block: %+v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("could not close writer: %+v", err)
	}

	f, err := Open(fname)
	if err != nil {
		t.Fatalf("could not open %q: %+v", fname, err)
	}
	defer f.Close()

	cgs := f.ChannelGroups()
	if len(cgs) != 1 {
		t.Fatalf("invalid channel group count: got=%d, want=1", len(cgs))
	}
	if got, want := cgs[0].Block.CycleCount, uint64(3); got != want {
		t.Fatalf("invalid cycle count: got=%d, want=%d", got, want)
	}

	ch := cgs[0].Channels[0]
	name, err := ch.Name()
	if err != nil {
		t.Fatalf("could not read name: %+v", err)
	}
	if name != "speed" {
		t.Fatalf("invalid name: got=%q, want=%q", name, "speed")
	}

	vals, err := ch.Values()
	if err != nil {
		t.Fatalf("could not decode values: %+v", err)
	}
	want := []float64{10, 12, 14}
	if len(vals) != len(want) {
		t.Fatalf("invalid value count: got=%d, want=%d", len(vals), len(want))
	}
	for i, v := range vals {
		if v.Kind() != blocks.KindFloat || v.Float() != want[i] {
			t.Fatalf("value[%d]: got=%v, want=%v", i, v, want[i])
		}
	}
}

func TestWriteReadRawValues(t *testing.T) {
	fname := tmpfile(t, "raw.mf4")

	w, err := writer.New(fname)
	if err != nil {
		t.Fatalf("could not create writer: %+v", err)
	}
	if err := w.Init(); err != nil {
		t.Fatalf("could not init: %+v", err)
	}
	dg, err := w.AddDataGroup(func(b *blocks.DataGroup) { b.RecordIDLen = 2 })
	if err != nil {
		t.Fatalf("could not add data group: %+v", err)
	}
	cg, err := w.AddChannelGroup(dg, func(b *blocks.ChannelGroup) { b.RecordID = 7 })
	if err != nil {
		t.Fatalf("could not add channel group: %+v", err)
	}
	tm, err := w.AddChannel(cg, "time", func(b *blocks.Channel) {
		b.DataType = blocks.FloatLE
		b.BitCount = 64
	})
	if err != nil {
		t.Fatalf("could not add channel: %+v", err)
	}
	if err := w.SetTimeChannel(tm); err != nil {
		t.Fatalf("could not set time channel: %+v", err)
	}
	_, err = w.AddChannel(cg, "count", func(b *blocks.Channel) {
		b.DataType = blocks.UnsignedIntegerLE
		b.BitCount = 16
	})
	if err != nil {
		t.Fatalf("could not add channel: %+v", err)
	}
	_, err = w.AddChannel(cg, "delta", func(b *blocks.Channel) {
		b.DataType = blocks.SignedIntegerLE
		b.BitCount = 32
	})
	if err != nil {
		t.Fatalf("could not add channel: %+v", err)
	}

	if err := w.StartDataBlock(cg); err != nil {
		t.Fatalf("could not start data block: %+v", err)
	}
	recs := [][]blocks.Value{
		{blocks.FloatValue(0.5), blocks.UnsignedValue(1), blocks.SignedValue(-1)},
		{blocks.FloatValue(1.5), blocks.UnsignedValue(0xffff), blocks.SignedValue(42)},
	}
	if err := w.WriteRecords(cg, recs); err != nil {
		t.Fatalf("could not write records: %+v", err)
	}
	if err := w.FinishDataBlock(cg); err != nil {
		t.Fatalf("could not finish data block: %+v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("could not close writer: %+v", err)
	}

	f, err := Open(fname)
	if err != nil {
		t.Fatalf("could not open: %+v", err)
	}
	defer f.Close()

	cgr := f.ChannelGroups()[0]
	if got := cgr.dg.Block.RecordIDLen; got != 2 {
		t.Fatalf("invalid record id len: got=%d, want=2", got)
	}

	for i, want := range recs {
		for j, wv := range want {
			ch := cgr.Channels[j]
			vals, err := ch.Values()
			if err != nil {
				t.Fatalf("could not decode channel %d: %+v", j, err)
			}
			got := vals[i]
			switch wv.Kind() {
			case blocks.KindFloat:
				if got.Float() != wv.Float() {
					t.Fatalf("rec[%d] ch[%d]: got=%v, want=%v", i, j, got, wv)
				}
			case blocks.KindUnsigned:
				if got.Uint() != wv.Uint() {
					t.Fatalf("rec[%d] ch[%d]: got=%v, want=%v", i, j, got, wv)
				}
			case blocks.KindSigned:
				if got.Int() != wv.Int() {
					t.Fatalf("rec[%d] ch[%d]: got=%v, want=%v", i, j, got, wv)
				}
			}
		}
	}

	if !cgr.Channels[0].IsMaster() {
		t.Fatalf("time channel not marked master")
	}
}

func TestWriteReadInvalidationMidStream(t *testing.T) {
	fname := tmpfile(t, "inval.mf4")

	w, err := writer.New(fname)
	if err != nil {
		t.Fatalf("could not create writer: %+v", err)
	}
	if err := w.Init(); err != nil {
		t.Fatalf("could not init: %+v", err)
	}
	dg, err := w.AddDataGroup(nil)
	if err != nil {
		t.Fatalf("could not add data group: %+v", err)
	}
	cg, err := w.AddChannelGroup(dg, func(b *blocks.ChannelGroup) {
		b.InvalidationBytesNr = 1
	})
	if err != nil {
		t.Fatalf("could not add channel group: %+v", err)
	}
	_, err = w.AddChannel(cg, "value", func(b *blocks.Channel) {
		b.DataType = blocks.UnsignedIntegerLE
		b.BitCount = 8
		b.Flags = blocks.ChannelFlagInvalBitUsed
		b.PosInvalidationBit = 0
	})
	if err != nil {
		t.Fatalf("could not add channel: %+v", err)
	}

	if err := w.StartDataBlock(cg); err != nil {
		t.Fatalf("could not start data block: %+v", err)
	}
	for i := 0; i < 5; i++ {
		err := w.WriteRecordWithValidity(cg,
			[]blocks.Value{blocks.UnsignedValue(uint64(i))},
			[]bool{i != 2},
		)
		if err != nil {
			t.Fatalf("could not write record %d: %+v", i, err)
		}
	}
	if err := w.FinishDataBlock(cg); err != nil {
		t.Fatalf("could not finish data block: %+v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("could not close writer: %+v", err)
	}

	f, err := Open(fname)
	if err != nil {
		t.Fatalf("could not open: %+v", err)
	}
	defer f.Close()

	samples, err := f.ChannelGroups()[0].Channels[0].Samples()
	if err != nil {
		t.Fatalf("could not decode samples: %+v", err)
	}
	if len(samples) != 5 {
		t.Fatalf("invalid sample count: got=%d, want=5", len(samples))
	}
	for i, s := range samples {
		want := i != 2
		if s.Valid != want {
			t.Fatalf("sample[%d]: valid=%v, want=%v", i, s.Valid, want)
		}
	}
}

func TestWriteReadAutoFragmentation(t *testing.T) {
	fname := tmpfile(t, "frag.mf4")

	w, err := writer.New(fname)
	if err != nil {
		t.Fatalf("could not create writer: %+v", err)
	}
	if err := w.Init(); err != nil {
		t.Fatalf("could not init: %+v", err)
	}
	dg, err := w.AddDataGroup(nil)
	if err != nil {
		t.Fatalf("could not add data group: %+v", err)
	}
	cg, err := w.AddChannelGroup(dg, nil)
	if err != nil {
		t.Fatalf("could not add channel group: %+v", err)
	}
	const blobSize = 512
	_, err = w.AddChannel(cg, "blob", func(b *blocks.Channel) {
		b.DataType = blocks.ByteArray
		b.BitCount = blobSize * 8
	})
	if err != nil {
		t.Fatalf("could not add channel: %+v", err)
	}

	if err := w.StartDataBlock(cg); err != nil {
		t.Fatalf("could not start data block: %+v", err)
	}
	const n = 9000 // ~4.4 MiB of records, forcing a second fragment
	blob := make([]byte, blobSize)
	for i := 0; i < n; i++ {
		blob[0] = byte(i)
		blob[1] = byte(i >> 8)
		if err := w.WriteRecord(cg, []blocks.Value{blocks.BytesValue(blob)}); err != nil {
			t.Fatalf("could not write record %d: %+v", i, err)
		}
	}
	if err := w.FinishDataBlock(cg); err != nil {
		t.Fatalf("could not finish data block: %+v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("could not close writer: %+v", err)
	}

	f, err := Open(fname)
	if err != nil {
		t.Fatalf("could not open: %+v", err)
	}
	defer f.Close()

	// the data group must point at a ##DL with at least 2 fragments
	dgb := f.Groups[0].Block
	hdr, err := blocks.ParseHeader(f.Bytes()[dgb.Data:], "")
	if err != nil {
		t.Fatalf("could not parse data link header: %+v", err)
	}
	if hdr.ID != blocks.MagicDL {
		t.Fatalf("data link is %q, want %q", hdr.ID, blocks.MagicDL)
	}
	dl, err := blocks.ParseDataList(f.Bytes()[dgb.Data:])
	if err != nil {
		t.Fatalf("could not parse data list: %+v", err)
	}
	if len(dl.Links) < 2 {
		t.Fatalf("invalid fragment count: got=%d, want >= 2", len(dl.Links))
	}

	cgr := f.ChannelGroups()[0]
	if got, want := cgr.Block.CycleCount, uint64(n); got != want {
		t.Fatalf("invalid cycle count: got=%d, want=%d", got, want)
	}

	it, err := cgr.Records()
	if err != nil {
		t.Fatalf("could not iterate records: %+v", err)
	}
	for i := 0; i < n; i++ {
		rec, ok := it.Next()
		if !ok {
			t.Fatalf("record stream ended early at %d", i)
		}
		if len(rec) != blobSize {
			t.Fatalf("record %d: invalid size %d", i, len(rec))
		}
		if got := int(rec[0]) | int(rec[1])<<8; got != i&0xffff {
			t.Fatalf("record %d: invalid payload marker %d", i, got)
		}
	}
	if _, ok := it.Next(); ok {
		t.Fatalf("record stream too long")
	}
}

func TestWriteReadValueToText(t *testing.T) {
	fname := tmpfile(t, "v2t.mf4")

	w, err := writer.New(fname)
	if err != nil {
		t.Fatalf("could not create writer: %+v", err)
	}
	if err := w.Init(); err != nil {
		t.Fatalf("could not init: %+v", err)
	}
	dg, err := w.AddDataGroup(nil)
	if err != nil {
		t.Fatalf("could not add data group: %+v", err)
	}
	cg, err := w.AddChannelGroup(dg, nil)
	if err != nil {
		t.Fatalf("could not add channel group: %+v", err)
	}
	cn, err := w.AddChannel(cg, "state", func(b *blocks.Channel) {
		b.DataType = blocks.UnsignedIntegerLE
		b.BitCount = 8
	})
	if err != nil {
		t.Fatalf("could not add channel: %+v", err)
	}
	_, err = w.AddConversion(cn,
		blocks.NewConversion(blocks.ValueToText, 0, 1),
		[]string{"off", "on", "?"},
	)
	if err != nil {
		t.Fatalf("could not add conversion: %+v", err)
	}

	if err := w.StartDataBlock(cg); err != nil {
		t.Fatalf("could not start data block: %+v", err)
	}
	for _, v := range []uint64{0, 1, 2} {
		if err := w.WriteRecord(cg, []blocks.Value{blocks.UnsignedValue(v)}); err != nil {
			t.Fatalf("could not write record: %+v", err)
		}
	}
	if err := w.FinishDataBlock(cg); err != nil {
		t.Fatalf("could not finish data block: %+v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("could not close writer: %+v", err)
	}

	f, err := Open(fname)
	if err != nil {
		t.Fatalf("could not open: %+v", err)
	}
	defer f.Close()

	vals, err := f.ChannelGroups()[0].Channels[0].Values()
	if err != nil {
		t.Fatalf("could not decode values: %+v", err)
	}
	want := []string{"off", "on", "?"}
	for i, v := range vals {
		if v.Kind() != blocks.KindString || v.Str() != want[i] {
			t.Fatalf("value[%d]: got=%v, want=%q", i, v, want[i])
		}
	}
}

func TestWriteReadVLSD(t *testing.T) {
	fname := tmpfile(t, "vlsd.mf4")

	w, err := writer.New(fname)
	if err != nil {
		t.Fatalf("could not create writer: %+v", err)
	}
	if err := w.Init(); err != nil {
		t.Fatalf("could not init: %+v", err)
	}
	dg, err := w.AddDataGroup(nil)
	if err != nil {
		t.Fatalf("could not add data group: %+v", err)
	}
	cg, err := w.AddChannelGroup(dg, nil)
	if err != nil {
		t.Fatalf("could not add channel group: %+v", err)
	}
	_, err = w.AddChannel(cg, "names", func(b *blocks.Channel) {
		b.ChannelType = blocks.ChannelTypeVLSD
		b.DataType = blocks.StringUTF8
	})
	if err != nil {
		t.Fatalf("could not add channel: %+v", err)
	}

	if err := w.StartDataBlock(cg); err != nil {
		t.Fatalf("could not start data block: %+v", err)
	}
	want := []string{"a", "bb", "", "ccc"}
	for _, s := range want {
		if err := w.WriteRecord(cg, []blocks.Value{blocks.StringValue(s)}); err != nil {
			t.Fatalf("could not write record %q: %+v", s, err)
		}
	}
	if err := w.FinishDataBlock(cg); err != nil {
		t.Fatalf("could not finish data block: %+v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("could not close writer: %+v", err)
	}

	f, err := Open(fname)
	if err != nil {
		t.Fatalf("could not open: %+v", err)
	}
	defer f.Close()

	ch := f.ChannelGroups()[0].Channels[0]
	if ch.Block.Data == 0 {
		t.Fatalf("VLSD channel has no data link")
	}
	vals, err := ch.Values()
	if err != nil {
		t.Fatalf("could not decode values: %+v", err)
	}
	if len(vals) != len(want) {
		t.Fatalf("invalid value count: got=%d, want=%d", len(vals), len(want))
	}
	for i, v := range vals {
		if v.Kind() != blocks.KindString || v.Str() != want[i] {
			t.Fatalf("value[%d]: got=%v, want=%q", i, v, want[i])
		}
	}
}

func TestWriteAlignment(t *testing.T) {
	fname := tmpfile(t, "align.mf4")
	err := writer.WriteSimpleFile(fname)
	if err != nil {
		t.Fatalf("could not write simple file: %+v", err)
	}

	f, err := Open(fname)
	if err != nil {
		t.Fatalf("could not open: %+v", err)
	}
	defer f.Close()

	data := f.Bytes()
	// walk every reachable block and verify 8-byte alignment
	var addrs []uint64
	addrs = append(addrs, uint64(blocks.IdentificationSize))
	for _, dg := range f.Groups {
		for cgAddr := dg.Block.FirstCG; cgAddr != 0; {
			cgb, err := blocks.ParseChannelGroup(data[cgAddr:])
			if err != nil {
				t.Fatalf("could not parse cg: %+v", err)
			}
			addrs = append(addrs, cgAddr)
			for cnAddr := cgb.FirstCN; cnAddr != 0; {
				cnb, err := blocks.ParseChannel(data[cnAddr:])
				if err != nil {
					t.Fatalf("could not parse cn: %+v", err)
				}
				addrs = append(addrs, cnAddr, cnb.NameTX)
				cnAddr = cnb.NextCN
			}
			cgAddr = cgb.NextCG
		}
	}
	for _, addr := range addrs {
		if addr%8 != 0 {
			t.Fatalf("block at %#x not 8-byte aligned", addr)
		}
	}
}

func TestCutByTime(t *testing.T) {
	src := tmpfile(t, "cut-src.mf4")
	dst := filepath.Join(filepath.Dir(src), "cut-dst.mf4")

	w, err := writer.New(src)
	if err != nil {
		t.Fatalf("could not create writer: %+v", err)
	}
	if err := w.Init(); err != nil {
		t.Fatalf("could not init: %+v", err)
	}
	dg, err := w.AddDataGroup(nil)
	if err != nil {
		t.Fatalf("could not add data group: %+v", err)
	}
	cg, err := w.AddChannelGroup(dg, nil)
	if err != nil {
		t.Fatalf("could not add channel group: %+v", err)
	}
	tm, err := w.AddChannel(cg, "time", func(b *blocks.Channel) {
		b.DataType = blocks.FloatLE
		b.BitCount = 64
	})
	if err != nil {
		t.Fatalf("could not add channel: %+v", err)
	}
	if err := w.SetTimeChannel(tm); err != nil {
		t.Fatalf("could not set time channel: %+v", err)
	}
	_, err = w.AddChannel(cg, "value", func(b *blocks.Channel) {
		b.DataType = blocks.UnsignedIntegerLE
		b.BitCount = 32
	})
	if err != nil {
		t.Fatalf("could not add channel: %+v", err)
	}

	if err := w.StartDataBlock(cg); err != nil {
		t.Fatalf("could not start data block: %+v", err)
	}
	for i := 0; i < 10; i++ {
		err := w.WriteRecord(cg, []blocks.Value{
			blocks.FloatValue(float64(i)),
			blocks.UnsignedValue(uint64(i * 100)),
		})
		if err != nil {
			t.Fatalf("could not write record %d: %+v", i, err)
		}
	}
	if err := w.FinishDataBlock(cg); err != nil {
		t.Fatalf("could not finish data block: %+v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("could not close writer: %+v", err)
	}

	if err := CutByTime(src, dst, 3, 6); err != nil {
		t.Fatalf("could not cut: %+v", err)
	}

	f, err := Open(dst)
	if err != nil {
		t.Fatalf("could not open cut file: %+v", err)
	}
	defer f.Close()

	vals, err := f.ChannelGroups()[0].Channels[1].Values()
	if err != nil {
		t.Fatalf("could not decode values: %+v", err)
	}
	want := []uint64{300, 400, 500, 600}
	if len(vals) != len(want) {
		t.Fatalf("invalid record count: got=%d, want=%d", len(vals), len(want))
	}
	for i, v := range vals {
		if v.Uint() != want[i] {
			t.Fatalf("value[%d]: got=%v, want=%d", i, v, want[i])
		}
	}
}

func TestMerge(t *testing.T) {
	mk := func(path string, base int) {
		w, err := writer.New(path)
		if err != nil {
			t.Fatalf("could not create writer: %+v", err)
		}
		if err := w.Init(); err != nil {
			t.Fatalf("could not init: %+v", err)
		}
		dg, err := w.AddDataGroup(nil)
		if err != nil {
			t.Fatalf("could not add data group: %+v", err)
		}
		cg, err := w.AddChannelGroup(dg, nil)
		if err != nil {
			t.Fatalf("could not add channel group: %+v", err)
		}
		_, err = w.AddChannel(cg, "count", func(b *blocks.Channel) {
			b.DataType = blocks.UnsignedIntegerLE
			b.BitCount = 32
		})
		if err != nil {
			t.Fatalf("could not add channel: %+v", err)
		}
		if err := w.StartDataBlock(cg); err != nil {
			t.Fatalf("could not start data block: %+v", err)
		}
		for i := 0; i < 3; i++ {
			if err := w.WriteRecord(cg, []blocks.Value{blocks.UnsignedValue(uint64(base + i))}); err != nil {
				t.Fatalf("could not write record: %+v", err)
			}
		}
		if err := w.FinishDataBlock(cg); err != nil {
			t.Fatalf("could not finish data block: %+v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("could not close writer: %+v", err)
		}
	}

	a := tmpfile(t, "merge-a.mf4")
	b := filepath.Join(filepath.Dir(a), "merge-b.mf4")
	out := filepath.Join(filepath.Dir(a), "merge-out.mf4")
	mk(a, 0)
	mk(b, 100)

	if err := Merge(out, a, b); err != nil {
		t.Fatalf("could not merge: %+v", err)
	}

	f, err := Open(out)
	if err != nil {
		t.Fatalf("could not open merged file: %+v", err)
	}
	defer f.Close()

	vals, err := f.ChannelGroups()[0].Channels[0].Values()
	if err != nil {
		t.Fatalf("could not decode values: %+v", err)
	}
	want := []uint64{0, 1, 2, 100, 101, 102}
	if len(vals) != len(want) {
		t.Fatalf("invalid value count: got=%d, want=%d", len(vals), len(want))
	}
	for i, v := range vals {
		if v.Uint() != want[i] {
			t.Fatalf("value[%d]: got=%v, want=%d", i, v, want[i])
		}
	}
}

func TestOpenRejectsGarbage(t *testing.T) {
	_, err := FromBytes(bytes.Repeat([]byte{0x42}, 256))
	var idErr *blocks.IdentificationError
	if !errors.As(err, &idErr) {
		t.Fatalf("expected an identification error, got %+v", err)
	}
}
