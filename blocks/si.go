// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package blocks

import "github.com/go-lpc/mdf/internal/bitio"

// SourceInfoSize is the fixed size of a ##SI block.
const SourceInfoSize = 56

// SourceInfo is the ##SI block describing where a signal or acquisition
// came from.
type SourceInfo struct {
	Header Header

	NameTX    uint64
	PathTX    uint64
	CommentMD uint64

	Type    uint8
	BusType uint8
	Flags   uint8
}

// NewSourceInfo returns a ##SI block with all links null.
func NewSourceInfo() *SourceInfo {
	return &SourceInfo{
		Header: Header{ID: MagicSI, Length: SourceInfoSize, LinkCount: 3},
	}
}

// ParseSourceInfo decodes a ##SI block at the beginning of buf.
func ParseSourceInfo(buf []byte) (*SourceInfo, error) {
	hdr, err := ParseHeader(buf, MagicSI)
	if err != nil {
		return nil, err
	}
	if len(buf) < SourceInfoSize {
		return nil, shortBuf(len(buf), SourceInfoSize)
	}
	return &SourceInfo{
		Header:    hdr,
		NameTX:    bitio.ReadU64(buf[24:32]),
		PathTX:    bitio.ReadU64(buf[32:40]),
		CommentMD: bitio.ReadU64(buf[40:48]),
		Type:      buf[48],
		BusType:   buf[49],
		Flags:     buf[50],
	}, nil
}

// Serialize encodes the ##SI block to its fixed 56 bytes.
func (si *SourceInfo) Serialize() ([]byte, error) {
	if si.Header.ID != MagicSI {
		return nil, &SerializationError{Msg: "source info must have ID \"##SI\", found " + si.Header.ID}
	}
	buf := make([]byte, SourceInfoSize)
	si.Header.encode(buf)
	bitio.PutU64(buf[24:32], si.NameTX)
	bitio.PutU64(buf[32:40], si.PathTX)
	bitio.PutU64(buf[40:48], si.CommentMD)
	buf[48] = si.Type
	buf[49] = si.BusType
	buf[50] = si.Flags
	return buf, nil
}

// Source is the resolved, human-readable view of a ##SI block.
type Source struct {
	Name    string
	Path    string
	Comment string
}

// ReadSource parses the ##SI block at addr within data and resolves its
// text links. It returns (nil, nil) when addr is null.
func ReadSource(data []byte, addr uint64) (*Source, error) {
	if addr == 0 {
		return nil, nil
	}
	if err := checkRegion(data, addr, SourceInfoSize); err != nil {
		return nil, err
	}
	si, err := ParseSourceInfo(data[addr:])
	if err != nil {
		return nil, err
	}
	name, err := ReadText(data, si.NameTX)
	if err != nil {
		return nil, err
	}
	path, err := ReadText(data, si.PathTX)
	if err != nil {
		return nil, err
	}
	comment, err := ReadText(data, si.CommentMD)
	if err != nil {
		return nil, err
	}
	return &Source{Name: name, Path: path, Comment: comment}, nil
}
