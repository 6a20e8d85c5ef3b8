// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// mdf-idx builds, inspects and replays indexes of MDF 4.1 files.
//
// Usage: mdf-idx [OPTIONS] FILE.mf4
//
// Example:
//
//	$> mdf-idx -o meas.idx.json ./meas.mf4
//	$> mdf-idx -load meas.idx.json -read speed ./meas.mf4
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/go-lpc/mdf/index"
)

func main() {
	log.SetPrefix("mdf-idx: ")
	log.SetFlags(0)

	var (
		out  = flag.String("o", "", "path to the index file to create")
		load = flag.String("load", "", "path to an existing index to use")
		read = flag.String("read", "", "channel name to read through the index")
	)

	flag.Usage = func() {
		fmt.Printf(`mdf-idx builds, inspects and replays indexes of MDF 4.1 files.

Usage: mdf-idx [OPTIONS] FILE.mf4

options:
`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		log.Fatalf("missing input file")
	}
	fname := flag.Arg(0)

	err := run(fname, *out, *load, *read)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(fname, out, load, read string) error {
	var (
		ix  *index.Index
		err error
	)
	switch {
	case load != "":
		ix, err = index.Load(load)
	default:
		ix, err = index.FromFile(fname)
	}
	if err != nil {
		return fmt.Errorf("could not build index for %q: %w", fname, err)
	}

	if out != "" {
		err = ix.Save(out)
		if err != nil {
			return fmt.Errorf("could not save index to %q: %w", out, err)
		}
		log.Printf("wrote index of %q (%d groups) to %q", fname, len(ix.Groups), out)
	}

	if read == "" {
		for _, g := range ix.ListChannelGroups() {
			fmt.Printf("group[%d]: %q (%d channels)\n", g.Index, g.Name, g.Channels)
		}
		return nil
	}

	r, err := index.OpenFile(fname)
	if err != nil {
		return err
	}
	defer r.Close()

	vals, err := ix.ReadChannelValuesByName(read, r)
	if err != nil {
		return fmt.Errorf("could not read channel %q: %w", read, err)
	}
	for i, v := range vals {
		fmt.Printf("[%d]: %v\n", i, v)
	}
	return nil
}
