// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package blocks

import "strings"

// TextBlock is a ##TX (plain text) or ##MD (XML metadata) block. The
// payload is NUL-terminated UTF-8, zero-padded to 8 bytes.
type TextBlock struct {
	Header Header
	Text   string
}

// NewTextBlock returns a ##TX block holding text.
func NewTextBlock(text string) *TextBlock {
	n := Align(uint64(HeaderSize + len(text) + 1))
	return &TextBlock{
		Header: Header{ID: MagicTX, Length: n},
		Text:   text,
	}
}

// NewMetadataBlock returns a ##MD block holding xml.
func NewMetadataBlock(xml string) *TextBlock {
	tx := NewTextBlock(xml)
	tx.Header.ID = MagicMD
	return tx
}

// ParseTextBlock decodes a ##TX or ##MD block at the beginning of buf.
func ParseTextBlock(buf []byte) (*TextBlock, error) {
	hdr, err := ParseHeader(buf, "")
	if err != nil {
		return nil, err
	}
	if hdr.ID != MagicTX && hdr.ID != MagicMD {
		return nil, &MagicError{Got: hdr.ID, Want: MagicTX}
	}
	if uint64(len(buf)) < hdr.Length {
		return nil, shortBuf(len(buf), int(hdr.Length))
	}
	text := strings.TrimRight(string(buf[HeaderSize:hdr.Length]), "\x00")
	return &TextBlock{Header: hdr, Text: text}, nil
}

// Serialize encodes the block: header, text, NUL, zero padding to 8 bytes.
func (tx *TextBlock) Serialize() ([]byte, error) {
	if tx.Header.ID != MagicTX && tx.Header.ID != MagicMD {
		return nil, &SerializationError{Msg: "text block must have ID \"##TX\" or \"##MD\", found " + tx.Header.ID}
	}
	n := Align(uint64(HeaderSize + len(tx.Text) + 1))
	buf := make([]byte, n)
	hdr := tx.Header
	hdr.Length = n
	hdr.encode(buf)
	copy(buf[HeaderSize:], tx.Text)
	return buf, nil
}

// ReadText reads the text payload of the ##TX or ##MD block at addr within
// data. It returns ("", nil) when addr is null.
func ReadText(data []byte, addr uint64) (string, error) {
	if addr == 0 {
		return "", nil
	}
	if err := checkRegion(data, addr, HeaderSize); err != nil {
		return "", err
	}
	tx, err := ParseTextBlock(data[addr:])
	if err != nil {
		return "", err
	}
	return tx.Text, nil
}
