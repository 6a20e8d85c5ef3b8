// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package blocks

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
)

func TestParseHeader(t *testing.T) {
	buf, err := NewDataGroup().Serialize()
	if err != nil {
		t.Fatalf("could not serialize: %+v", err)
	}

	hdr, err := ParseHeader(buf, MagicDG)
	if err != nil {
		t.Fatalf("could not parse header: %+v", err)
	}
	if got, want := hdr.ID, MagicDG; got != want {
		t.Fatalf("invalid magic: got=%q, want=%q", got, want)
	}
	if got, want := hdr.Length, uint64(DataGroupSize); got != want {
		t.Fatalf("invalid length: got=%d, want=%d", got, want)
	}
	if got, want := hdr.LinkCount, uint64(4); got != want {
		t.Fatalf("invalid link count: got=%d, want=%d", got, want)
	}

	_, err = ParseHeader(buf[:10], MagicDG)
	var short *ShortBufferError
	if !errors.As(err, &short) {
		t.Fatalf("expected a short-buffer error, got %+v", err)
	}

	_, err = ParseHeader(buf, MagicCG)
	var magic *MagicError
	if !errors.As(err, &magic) {
		t.Fatalf("expected a magic error, got %+v", err)
	}
	if magic.Got != MagicDG || magic.Want != MagicCG {
		t.Fatalf("invalid magic error: %+v", magic)
	}
}

func TestIdentification(t *testing.T) {
	id := NewIdentification()
	buf, err := id.Serialize()
	if err != nil {
		t.Fatalf("could not serialize: %+v", err)
	}
	if len(buf) != IdentificationSize {
		t.Fatalf("invalid size: got=%d, want=%d", len(buf), IdentificationSize)
	}

	got, err := ParseIdentification(buf)
	if err != nil {
		t.Fatalf("could not parse: %+v", err)
	}
	if got.Ver != MinVersion {
		t.Fatalf("invalid version: got=%d, want=%d", got.Ver, MinVersion)
	}
	if got.Version != "4.10" {
		t.Fatalf("invalid version string: got=%q", got.Version)
	}

	// wrong magic
	bad := append([]byte(nil), buf...)
	copy(bad[:8], "NOPE    ")
	_, err = ParseIdentification(bad)
	var idErr *IdentificationError
	if !errors.As(err, &idErr) {
		t.Fatalf("expected an identification error, got %+v", err)
	}

	// version too low
	old := append([]byte(nil), buf...)
	old[28] = 0x99 // 409
	old[29] = 0x01
	_, err = ParseIdentification(old)
	var verErr *VersionError
	if !errors.As(err, &verErr) {
		t.Fatalf("expected a version error, got %+v", err)
	}

	// unparseable version string, id_ver zero
	bad = append([]byte(nil), buf...)
	copy(bad[8:16], "bogus   ")
	bad[28] = 0
	bad[29] = 0
	_, err = ParseIdentification(bad)
	var strErr *VersionStringError
	if !errors.As(err, &strErr) {
		t.Fatalf("expected a version-string error, got %+v", err)
	}
}

func TestBlockRoundTrips(t *testing.T) {
	hd := NewHeaderBlock()
	hd.FirstDG = 64
	hd.StartTimeNS = 1234567890
	hd.TZOffsetMin = -120
	hd.StartAngle = 1.5

	dg := NewDataGroup()
	dg.NextDG = 4096
	dg.FirstCG = 256
	dg.Data = 512
	dg.RecordIDLen = 2

	cg := NewChannelGroup()
	cg.FirstCN = 1024
	cg.RecordID = 7
	cg.CycleCount = 1000
	cg.SamplesByteNr = 16
	cg.InvalidationBytesNr = 2

	cn := NewChannel()
	cn.NextCN = 2048
	cn.NameTX = 4096
	cn.ChannelType = ChannelTypeMaster
	cn.SyncType = SyncTypeTime
	cn.DataType = FloatLE
	cn.BitOffset = 3
	cn.ByteOffset = 8
	cn.BitCount = 64
	cn.Flags = ChannelFlagInvalBitUsed
	cn.PosInvalidationBit = 5
	cn.MinRawValue = -1
	cn.MaxRawValue = 1

	si := NewSourceInfo()
	si.NameTX = 128
	si.Type = 1
	si.BusType = 2

	for _, tc := range []struct {
		name      string
		serialize func() ([]byte, error)
		parse     func([]byte) (interface{}, error)
	}{
		{
			name:      "hd",
			serialize: hd.Serialize,
			parse:     func(p []byte) (interface{}, error) { return ParseHeaderBlock(p) },
		},
		{
			name:      "dg",
			serialize: dg.Serialize,
			parse:     func(p []byte) (interface{}, error) { return ParseDataGroup(p) },
		},
		{
			name:      "cg",
			serialize: cg.Serialize,
			parse:     func(p []byte) (interface{}, error) { return ParseChannelGroup(p) },
		},
		{
			name:      "cn",
			serialize: cn.Serialize,
			parse:     func(p []byte) (interface{}, error) { return ParseChannel(p) },
		},
		{
			name:      "si",
			serialize: si.Serialize,
			parse:     func(p []byte) (interface{}, error) { return ParseSourceInfo(p) },
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			buf, err := tc.serialize()
			if err != nil {
				t.Fatalf("could not serialize: %+v", err)
			}
			if len(buf)%8 != 0 {
				t.Fatalf("block size %d not 8-byte aligned", len(buf))
			}
			blk, err := tc.parse(buf)
			if err != nil {
				t.Fatalf("could not parse: %+v", err)
			}
			ser := reflect.ValueOf(blk).MethodByName("Serialize").Call(nil)
			if !ser[1].IsNil() {
				t.Fatalf("could not re-serialize: %+v", ser[1].Interface())
			}
			if got := ser[0].Interface().([]byte); !bytes.Equal(got, buf) {
				t.Fatalf("round trip mismatch:\ngot= %x\nwant=%x", got, buf)
			}
		})
	}
}

func TestTextBlockRoundTrip(t *testing.T) {
	for _, text := range []string{"", "x", "exactly8", "a somewhat longer text payload"} {
		tx := NewTextBlock(text)
		buf, err := tx.Serialize()
		if err != nil {
			t.Fatalf("could not serialize %q: %+v", text, err)
		}
		if len(buf)%8 != 0 {
			t.Fatalf("text block size %d not 8-byte aligned", len(buf))
		}
		got, err := ParseTextBlock(buf)
		if err != nil {
			t.Fatalf("could not parse %q: %+v", text, err)
		}
		if got.Text != text {
			t.Fatalf("invalid text: got=%q, want=%q", got.Text, text)
		}
	}

	md := NewMetadataBlock("<meta/>")
	buf, err := md.Serialize()
	if err != nil {
		t.Fatalf("could not serialize metadata: %+v", err)
	}
	got, err := ParseTextBlock(buf)
	if err != nil {
		t.Fatalf("could not parse metadata: %+v", err)
	}
	if got.Header.ID != MagicMD || got.Text != "<meta/>" {
		t.Fatalf("invalid metadata: %#v", got)
	}
}

func TestDataListRoundTrip(t *testing.T) {
	dl := NewDataList([]uint64{1024, 2048, 4096}, 512)
	buf, err := dl.Serialize()
	if err != nil {
		t.Fatalf("could not serialize: %+v", err)
	}
	got, err := ParseDataList(buf)
	if err != nil {
		t.Fatalf("could not parse: %+v", err)
	}
	if !reflect.DeepEqual(got.Links, dl.Links) {
		t.Fatalf("invalid links: got=%v, want=%v", got.Links, dl.Links)
	}
	if got.EqualLength != 512 {
		t.Fatalf("invalid equal length: got=%d", got.EqualLength)
	}
	if got.Flags&1 == 0 {
		t.Fatalf("equal-length flag not set")
	}
}

func TestConversionRoundTrip(t *testing.T) {
	cc := NewConversion(Linear, 10, 2)
	cc.Ref = []uint64{4096, 8192}
	cc.Header.LinkCount = 4 + 2

	buf, err := cc.Serialize()
	if err != nil {
		t.Fatalf("could not serialize: %+v", err)
	}
	got, err := ParseConversion(buf)
	if err != nil {
		t.Fatalf("could not parse: %+v", err)
	}
	if got.Type != Linear {
		t.Fatalf("invalid type: got=%v", got.Type)
	}
	if !reflect.DeepEqual(got.Val, []float64{10, 2}) {
		t.Fatalf("invalid values: got=%v", got.Val)
	}
	if !reflect.DeepEqual(got.Ref, []uint64{4096, 8192}) {
		t.Fatalf("invalid refs: got=%v", got.Ref)
	}

	ser, err := got.Serialize()
	if err != nil {
		t.Fatalf("could not re-serialize: %+v", err)
	}
	if !bytes.Equal(ser, buf) {
		t.Fatalf("round trip mismatch:\ngot= %x\nwant=%x", ser, buf)
	}
}

func TestDataBlockRejectsDZ(t *testing.T) {
	buf, err := NewDataGroup().Serialize()
	if err != nil {
		t.Fatalf("could not serialize: %+v", err)
	}
	copy(buf[:4], MagicDZ)
	_, err = ParseDataBlock(buf)
	var magic *MagicError
	if !errors.As(err, &magic) {
		t.Fatalf("expected a magic error for ##DZ, got %+v", err)
	}
}
