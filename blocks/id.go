// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package blocks

import (
	"strconv"
	"strings"

	"github.com/go-lpc/mdf/internal/bitio"
)

const (
	// IdentificationSize is the fixed size of the file preamble.
	IdentificationSize = 64

	// MinVersion is the minimum supported format version (4.10).
	MinVersion = 410

	idFileMagic = "MDF     "
	idVersStr   = "4.10    "
	idProgram   = "go-mdf  "
)

// Identification is the fixed 64-byte file preamble: file magic, version
// string, writer program and numeric version.
type Identification struct {
	File    string // "MDF     "
	Version string // e.g. "4.10"
	Program string
	Ver     uint16 // e.g. 410
}

// ParseIdentification decodes and validates the 64-byte identification
// preamble at the start of buf.
func ParseIdentification(buf []byte) (*Identification, error) {
	if len(buf) < IdentificationSize {
		return nil, shortBuf(len(buf), IdentificationSize)
	}
	id := &Identification{
		File:    string(buf[0:8]),
		Version: strings.TrimRight(string(buf[8:16]), " \x00"),
		Program: strings.TrimRight(string(buf[16:24]), " \x00"),
		Ver:     bitio.ReadU16(buf[28:30]),
	}
	if id.File != idFileMagic {
		return nil, &IdentificationError{Got: id.File}
	}
	if id.Ver == 0 {
		// older writers leave id_ver zero; fall back to the version string.
		v, err := parseVersionString(id.Version)
		if err != nil {
			return nil, err
		}
		id.Ver = v
	}
	if id.Ver < MinVersion {
		return nil, &VersionError{Version: id.Ver}
	}
	return id, nil
}

// parseVersionString converts a "major.minor" version string to its
// numeric form (e.g. "4.10" -> 410).
func parseVersionString(s string) (uint16, error) {
	maj, min, ok := strings.Cut(strings.TrimSpace(s), ".")
	if !ok {
		return 0, &VersionStringError{Str: s}
	}
	vmaj, err := strconv.Atoi(maj)
	if err != nil {
		return 0, &VersionStringError{Str: s}
	}
	vmin, err := strconv.Atoi(min)
	if err != nil {
		return 0, &VersionStringError{Str: s}
	}
	return uint16(vmaj*100 + vmin), nil
}

// NewIdentification returns the identification preamble written by this
// package.
func NewIdentification() *Identification {
	return &Identification{
		File:    idFileMagic,
		Version: "4.10",
		Program: strings.TrimRight(idProgram, " "),
		Ver:     MinVersion,
	}
}

// Serialize encodes the identification preamble to its fixed 64 bytes.
func (id *Identification) Serialize() ([]byte, error) {
	buf := make([]byte, IdentificationSize)
	copy(buf[0:8], idFileMagic)
	copy(buf[8:16], pad8(id.Version))
	copy(buf[16:24], pad8(id.Program))
	bitio.PutU16(buf[28:30], id.Ver)
	return buf, nil
}

func pad8(s string) []byte {
	b := make([]byte, 8)
	for i := range b {
		b[i] = ' '
	}
	copy(b, s)
	return b
}
