// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// mdf-sql registers MDF recordings in the catalog database and lists its
// contents.
//
// Usage: mdf-sql [OPTIONS] [FILE.mf4]
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/go-lpc/mdf/catalog"
	"github.com/go-lpc/mdf/index"
)

const (
	dbname = "mdfcat"
)

func main() {
	log.SetPrefix("mdf-sql: ")
	log.SetFlags(0)

	var (
		doList = flag.Bool("list", false, "list catalogued recordings")
	)

	flag.Usage = func() {
		fmt.Printf(`mdf-sql registers MDF recordings in the catalog database.

Usage: mdf-sql [OPTIONS] [FILE.mf4]

options:
`)
		flag.PrintDefaults()
	}

	flag.Parse()

	db, err := catalog.Open(dbname)
	if err != nil {
		log.Fatalf("could not open catalog db: %+v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch {
	case *doList:
		err = list(ctx, db)
	case flag.NArg() == 1:
		err = register(ctx, db, flag.Arg(0))
	default:
		flag.Usage()
		log.Fatalf("missing input file")
	}
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func register(ctx context.Context, db *catalog.DB, fname string) error {
	ix, err := index.FromFile(fname)
	if err != nil {
		return fmt.Errorf("could not index %q: %w", fname, err)
	}
	rec := catalog.FromIndex(fname, ix)
	err = db.RegisterRecording(ctx, rec)
	if err != nil {
		return fmt.Errorf("could not register %q: %w", fname, err)
	}
	log.Printf("registered %q (%d groups, %d channels)", fname, rec.Groups, rec.Channels)
	return nil
}

func list(ctx context.Context, db *catalog.DB) error {
	recs, err := db.Recordings(ctx)
	if err != nil {
		return fmt.Errorf("could not list recordings: %w", err)
	}
	for _, rec := range recs {
		fmt.Printf("%4d %q size=%d groups=%d channels=%d\n",
			rec.ID, rec.Path, rec.FileSize, rec.Groups, rec.Channels,
		)
	}
	return nil
}
