// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package writer builds MDF 4.1 files: blocks are emitted sequentially,
// 8-byte aligned and little-endian, with forward links patched once the
// target positions are known.
package writer // import "github.com/go-lpc/mdf/writer"

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"golang.org/x/xerrors"

	"github.com/go-lpc/mdf/blocks"
	"github.com/go-lpc/mdf/internal/bitio"
	"github.com/go-lpc/mdf/internal/mmap"
)

// sink is the writer's output: sequential writes plus seeking for link
// back-patching.
type sink interface {
	io.Writer
	io.Seeker
	Flush() error
}

// fileSink writes through a buffered file. Seeks flush the buffer first.
type fileSink struct {
	f *os.File
	w *bufio.Writer
}

func (s *fileSink) Write(p []byte) (int, error) { return s.w.Write(p) }

func (s *fileSink) Seek(off int64, whence int) (int64, error) {
	if err := s.w.Flush(); err != nil {
		return 0, err
	}
	return s.f.Seek(off, whence)
}

func (s *fileSink) Flush() error {
	if err := s.w.Flush(); err != nil {
		return err
	}
	return s.f.Sync()
}

// mmapSink writes into a fixed-size memory-mapped file.
type mmapSink struct {
	h   *mmap.Handle
	pos int64
}

func (s *mmapSink) Write(p []byte) (int, error) {
	n, err := s.h.WriteAt(p, s.pos)
	s.pos += int64(n)
	return n, err
}

func (s *mmapSink) Seek(off int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		s.pos = off
	case io.SeekCurrent:
		s.pos += off
	case io.SeekEnd:
		s.pos = int64(s.h.Len()) + off
	}
	if s.pos < 0 || s.pos > int64(s.h.Len()) {
		return 0, xerrors.Errorf("writer: invalid seek to %d", s.pos)
	}
	return s.pos, nil
}

func (s *mmapSink) Flush() error { return s.h.Sync() }

// Writer emits MDF blocks to a seekable sink, tracking block positions by
// logical id so links can be patched after the fact.
type Writer struct {
	w   sink
	off uint64 // current write offset, kept 8-byte aligned between blocks

	pos map[string]uint64 // logical block id -> absolute offset

	open    map[string]*openDataBlock // per channel-group open ##DT
	counter map[string]int            // per-prefix id counters

	lastDG   string
	lastCG   map[string]string // dg id -> last cg id
	lastCN   map[string]string // cg id -> last cn id
	cgToDG   map[string]string
	cgChans  map[string][]*chanInfo
	dgBlock  map[string]*blocks.DataGroup
	cgBlock  map[string]*blocks.ChannelGroup
	deferred []deferredLink

	closer io.Closer
}

type chanInfo struct {
	id    string
	block *blocks.Channel
}

type deferredLink struct {
	source string
	index  int
	target string
}

// New creates a Writer producing the named file through a 1 MiB buffer.
func New(path string) (*Writer, error) {
	return NewWithCapacity(path, 1<<20)
}

// NewWithCapacity creates a Writer with the given buffer capacity.
func NewWithCapacity(path string, capacity int) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, xerrors.Errorf("writer: could not create %q: %w", path, err)
	}
	s := &fileSink{f: f, w: bufio.NewWriterSize(f, capacity)}
	w := newWriter(s)
	w.closer = f
	return w, nil
}

// NewMmap creates a Writer backed by a memory-mapped file of the given
// fixed size.
func NewMmap(path string, size int) (*Writer, error) {
	h, err := mmap.Create(path, size)
	if err != nil {
		return nil, xerrors.Errorf("writer: could not map %q: %w", path, err)
	}
	w := newWriter(&mmapSink{h: h})
	w.closer = h
	return w, nil
}

func newWriter(s sink) *Writer {
	return &Writer{
		w:       s,
		pos:     make(map[string]uint64),
		open:    make(map[string]*openDataBlock),
		counter: make(map[string]int),
		lastCG:  make(map[string]string),
		lastCN:  make(map[string]string),
		cgToDG:  make(map[string]string),
		cgChans: make(map[string][]*chanInfo),
		dgBlock: make(map[string]*blocks.DataGroup),
		cgBlock: make(map[string]*blocks.ChannelGroup),
	}
}

// nextID mints the next logical id with the given prefix ("dg", "cg", ...).
func (w *Writer) nextID(prefix string) string {
	n := w.counter[prefix]
	w.counter[prefix]++
	return fmt.Sprintf("%s_%d", prefix, n)
}

// Offset returns the current write offset.
func (w *Writer) Offset() uint64 { return w.off }

// align pads the output with zeros up to the next 8-byte boundary.
func (w *Writer) align() error {
	pad := int(blocks.Align(w.off) - w.off)
	if pad == 0 {
		return nil
	}
	var zeros [8]byte
	_, err := w.w.Write(zeros[:pad])
	if err != nil {
		return xerrors.Errorf("writer: could not pad to alignment: %w", err)
	}
	w.off += uint64(pad)
	return nil
}

// WriteBlock writes raw block bytes aligned to 8 bytes and returns the
// block's starting offset.
func (w *Writer) WriteBlock(p []byte) (uint64, error) {
	if err := w.align(); err != nil {
		return 0, err
	}
	start := w.off
	_, err := w.w.Write(p)
	if err != nil {
		return 0, xerrors.Errorf("writer: could not write block: %w", err)
	}
	w.off += uint64(len(p))
	return start, nil
}

// WriteBlockWithID writes a block and records its position under id.
func (w *Writer) WriteBlockWithID(p []byte, id string) (uint64, error) {
	start, err := w.WriteBlock(p)
	if err != nil {
		return 0, err
	}
	w.pos[id] = start
	return start, nil
}

// BlockPosition returns the recorded position of a block.
func (w *Writer) BlockPosition(id string) (uint64, bool) {
	p, ok := w.pos[id]
	return p, ok
}

// UpdateLink writes the 8-byte address at the given absolute file offset,
// restoring the write position afterwards.
func (w *Writer) UpdateLink(off, addr uint64) error {
	var buf [8]byte
	bitio.PutU64(buf[:], addr)
	return w.patch(off, buf[:])
}

func (w *Writer) patch(off uint64, p []byte) error {
	cur := w.off
	if _, err := w.w.Seek(int64(off), io.SeekStart); err != nil {
		return xerrors.Errorf("writer: could not seek to %#x: %w", off, err)
	}
	if _, err := w.w.Write(p); err != nil {
		return xerrors.Errorf("writer: could not patch %d bytes at %#x: %w", len(p), off, err)
	}
	if _, err := w.w.Seek(int64(cur), io.SeekStart); err != nil {
		return xerrors.Errorf("writer: could not seek back to %#x: %w", cur, err)
	}
	return nil
}

// UpdateBlockLink points the index-th link of the source block at the
// target block: the address is written at source + 24 + 8*index.
func (w *Writer) UpdateBlockLink(sourceID string, index int, targetID string) error {
	src, ok := w.pos[sourceID]
	if !ok {
		return &blocks.LinkError{Msg: "source block " + sourceID + " not found"}
	}
	dst, ok := w.pos[targetID]
	if !ok {
		return &blocks.LinkError{Msg: "target block " + targetID + " not found"}
	}
	return w.UpdateLink(src+blocks.HeaderSize+8*uint64(index), dst)
}

// DeferLink records a forward link to be patched at Finalize, when the
// target position is known.
func (w *Writer) DeferLink(sourceID string, index int, targetID string) {
	w.deferred = append(w.deferred, deferredLink{source: sourceID, index: index, target: targetID})
}

func (w *Writer) patchU8(id string, fieldOff uint64, v uint8) error {
	p, ok := w.pos[id]
	if !ok {
		return &blocks.LinkError{Msg: "block " + id + " not found"}
	}
	return w.patch(p+fieldOff, []byte{v})
}

func (w *Writer) patchU32(id string, fieldOff uint64, v uint32) error {
	p, ok := w.pos[id]
	if !ok {
		return &blocks.LinkError{Msg: "block " + id + " not found"}
	}
	var buf [4]byte
	bitio.PutU32(buf[:], v)
	return w.patch(p+fieldOff, buf[:])
}

func (w *Writer) patchU64(id string, fieldOff uint64, v uint64) error {
	p, ok := w.pos[id]
	if !ok {
		return &blocks.LinkError{Msg: "block " + id + " not found"}
	}
	var buf [8]byte
	bitio.PutU64(buf[:], v)
	return w.patch(p+fieldOff, buf[:])
}

// Finalize patches every deferred link and flushes the sink.
func (w *Writer) Finalize() error {
	for _, dl := range w.deferred {
		if err := w.UpdateBlockLink(dl.source, dl.index, dl.target); err != nil {
			return err
		}
	}
	w.deferred = w.deferred[:0]
	if err := w.w.Flush(); err != nil {
		return xerrors.Errorf("writer: could not flush: %w", err)
	}
	return nil
}

// Close finalizes and closes the underlying file.
func (w *Writer) Close() error {
	if err := w.Finalize(); err != nil {
		return err
	}
	if w.closer == nil {
		return nil
	}
	return w.closer.Close()
}
