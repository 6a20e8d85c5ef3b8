// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package catalog

import (
	"context"
	"database/sql/driver"
	"reflect"
	"strings"
	"testing"

	"github.com/go-lpc/mdf/index"
	"github.com/go-lpc/mdf/internal/fakedb"
)

func TestFromIndex(t *testing.T) {
	ix := &index.Index{
		Version:     index.FormatVersion,
		FileSize:    1024,
		StartTimeNS: 42,
		Groups: []index.Group{
			{Channels: make([]index.Channel, 2)},
			{Channels: make([]index.Channel, 3)},
		},
	}
	rec := FromIndex("/data/run-001.mf4", ix)
	want := Recording{
		Path:        "/data/run-001.mf4",
		FileSize:    1024,
		StartTimeNS: 42,
		Groups:      2,
		Channels:    5,
	}
	if !reflect.DeepEqual(rec, want) {
		t.Fatalf("invalid recording:\ngot= %#v\nwant=%#v", rec, want)
	}
}

func TestRegisterRecording(t *testing.T) {
	ctx := context.Background()
	execs, err := fakedb.Run(ctx, fakedb.Rows{}, func(ctx context.Context) error {
		db, err := OpenWith("fakedb", "catalog-test", "mdfcat")
		if err != nil {
			return err
		}
		defer db.Close()

		return db.RegisterRecording(ctx, Recording{
			Path:        "/data/run-001.mf4",
			FileSize:    2048,
			StartTimeNS: 7,
			Groups:      1,
			Channels:    4,
		})
	})
	if err != nil {
		t.Fatalf("could not register recording: %+v", err)
	}
	if len(execs) != 1 {
		t.Fatalf("invalid exec count: got=%d, want=1", len(execs))
	}
	if !strings.Contains(execs[0].Query, "INSERT INTO recordings") {
		t.Fatalf("invalid insert statement: %q", execs[0].Query)
	}
	if len(execs[0].Args) != 5 {
		t.Fatalf("invalid arg count: got=%d, want=5", len(execs[0].Args))
	}
	if got, want := execs[0].Args[0], driver.Value("/data/run-001.mf4"); got != want {
		t.Fatalf("invalid path arg: got=%v, want=%v", got, want)
	}
}

func TestRecordings(t *testing.T) {
	rows := fakedb.Rows{
		Names: []string{"identifier", "path", "file_size", "start_time_ns", "groups_nr", "channels_nr"},
		Values: [][]driver.Value{
			{int64(2), "/data/run-002.mf4", int64(4096), int64(9), int64(1), int64(3)},
			{int64(1), "/data/run-001.mf4", int64(2048), int64(7), int64(1), int64(4)},
		},
	}

	ctx := context.Background()
	_, err := fakedb.Run(ctx, rows, func(ctx context.Context) error {
		db, err := OpenWith("fakedb", "catalog-test", "mdfcat")
		if err != nil {
			return err
		}
		defer db.Close()

		recs, err := db.Recordings(ctx)
		if err != nil {
			return err
		}
		if len(recs) != 2 {
			t.Fatalf("invalid recordings count: got=%d, want=2", len(recs))
		}
		want := Recording{
			ID:          2,
			Path:        "/data/run-002.mf4",
			FileSize:    4096,
			StartTimeNS: 9,
			Groups:      1,
			Channels:    3,
		}
		if !reflect.DeepEqual(recs[0], want) {
			t.Fatalf("invalid recording:\ngot= %#v\nwant=%#v", recs[0], want)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("could not list recordings: %+v", err)
	}
}
