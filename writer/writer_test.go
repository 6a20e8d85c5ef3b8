// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package writer_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-lpc/mdf"
	"github.com/go-lpc/mdf/blocks"
	"github.com/go-lpc/mdf/writer"
)

func tmpfile(t *testing.T, name string) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "mdf-writer-")
	if err != nil {
		t.Fatalf("could not create tmp dir: %+v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return filepath.Join(dir, name)
}

func TestMmapSink(t *testing.T) {
	fname := tmpfile(t, "mmap.mf4")

	w, err := writer.NewMmap(fname, 1<<16)
	if err != nil {
		t.Fatalf("could not create mmap writer: %+v", err)
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
	_, err = w.AddChannel(cg, "v", func(b *blocks.Channel) {
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
		if err := w.WriteRecordU64(cg, []uint64{uint64(i * i)}); err != nil {
			t.Fatalf("could not write record: %+v", err)
		}
	}
	if err := w.FinishDataBlock(cg); err != nil {
		t.Fatalf("could not finish data block: %+v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("could not close writer: %+v", err)
	}

	f, err := mdf.Open(fname)
	if err != nil {
		t.Fatalf("could not open: %+v", err)
	}
	defer f.Close()

	vals, err := f.ChannelGroups()[0].Channels[0].Values()
	if err != nil {
		t.Fatalf("could not decode values: %+v", err)
	}
	for i, v := range vals {
		if v.Uint() != uint64(i*i) {
			t.Fatalf("value[%d]: got=%v, want=%d", i, v, i*i)
		}
	}
}

func TestWriteRecordU64RejectsMixedTypes(t *testing.T) {
	fname := tmpfile(t, "fast.mf4")

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
	_, err = w.AddChannel(cg, "f", func(b *blocks.Channel) {
		b.DataType = blocks.FloatLE
		b.BitCount = 64
	})
	if err != nil {
		t.Fatalf("could not add channel: %+v", err)
	}
	if err := w.StartDataBlock(cg); err != nil {
		t.Fatalf("could not start data block: %+v", err)
	}
	err = w.WriteRecordU64(cg, []uint64{1})
	var serr *blocks.SerializationError
	if !errors.As(err, &serr) {
		t.Fatalf("expected a serialization error, got %+v", err)
	}
}

func TestDanglingLink(t *testing.T) {
	fname := tmpfile(t, "dangling.mf4")

	w, err := writer.New(fname)
	if err != nil {
		t.Fatalf("could not create writer: %+v", err)
	}
	if err := w.Init(); err != nil {
		t.Fatalf("could not init: %+v", err)
	}

	err = w.UpdateBlockLink("hd_block", 0, "no_such_block")
	var lerr *blocks.LinkError
	if !errors.As(err, &lerr) {
		t.Fatalf("expected a link error, got %+v", err)
	}

	w.DeferLink("hd_block", 0, "still_missing")
	err = w.Finalize()
	if !errors.As(err, &lerr) {
		t.Fatalf("expected a link error at finalize, got %+v", err)
	}
}

func TestDeferredLink(t *testing.T) {
	fname := tmpfile(t, "deferred.mf4")

	w, err := writer.New(fname)
	if err != nil {
		t.Fatalf("could not create writer: %+v", err)
	}
	if err := w.Init(); err != nil {
		t.Fatalf("could not init: %+v", err)
	}
	// defer the header comment link to a block written later
	w.DeferLink("hd_block", 5, "comment")

	md, err := blocks.NewMetadataBlock("<HDcomment/>").Serialize()
	if err != nil {
		t.Fatalf("could not serialize metadata: %+v", err)
	}
	pos, err := w.WriteBlockWithID(md, "comment")
	if err != nil {
		t.Fatalf("could not write metadata: %+v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("could not close writer: %+v", err)
	}

	f, err := mdf.Open(fname)
	if err != nil {
		t.Fatalf("could not open: %+v", err)
	}
	defer f.Close()

	if got := f.Header.CommentMD; got != pos {
		t.Fatalf("invalid deferred link: got=%#x, want=%#x", got, pos)
	}
	text, err := blocks.ReadText(f.Bytes(), f.Header.CommentMD)
	if err != nil {
		t.Fatalf("could not read comment: %+v", err)
	}
	if text != "<HDcomment/>" {
		t.Fatalf("invalid comment: got=%q", text)
	}
}
