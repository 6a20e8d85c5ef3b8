// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// mdf-dump decodes and displays MDF 4.1 files.
//
// Usage: mdf-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]
//
// Example:
//
//	$> mdf-dump ./testdata/meas.mf4
//	=== ./testdata/meas.mf4 (MDF v4.10) ===
//	start time: 2020-04-01T12:00:00Z
//	group[0]: cycles=1000 record=16 bytes
//	  channel[0]: "time" (float-le, 64b) [master]
//	  channel[1]: "speed" (float-le, 64b) km/h
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/go-lpc/mdf"
)

func main() {
	log.SetPrefix("mdf-dump: ")
	log.SetFlags(0)

	var (
		doValues = flag.Bool("values", false, "decode and display channel values")
	)

	flag.Usage = func() {
		fmt.Printf(`mdf-dump decodes and displays MDF 4.1 files.

Usage: mdf-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]

options:
`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		log.Fatalf("missing input file(s)")
	}

	for _, fname := range flag.Args() {
		err := process(fname, *doValues)
		if err != nil {
			log.Fatalf("could not dump %q: %+v", fname, err)
		}
	}
}

func process(fname string, doValues bool) error {
	f, err := mdf.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open %q: %w", fname, err)
	}
	defer f.Close()

	fmt.Printf("=== %s (MDF v%s) ===\n", fname, f.ID.Version)
	if ns := f.StartTimeNS(); ns != 0 {
		fmt.Printf("start time: %v\n", time.Unix(0, ns).UTC().Format(time.RFC3339Nano))
	}

	for i, cg := range f.ChannelGroups() {
		fmt.Printf("group[%d]: cycles=%d record=%d bytes\n",
			i, cg.Block.CycleCount,
			cg.Block.RecordSize(cg.DataGroup().Block.RecordIDLen),
		)
		for j, ch := range cg.Channels {
			name, err := ch.Name()
			if err != nil {
				return fmt.Errorf("could not read channel name: %w", err)
			}
			unit, err := ch.Unit()
			if err != nil {
				return fmt.Errorf("could not read channel unit: %w", err)
			}
			tag := ""
			if ch.IsMaster() {
				tag = " [master]"
			}
			fmt.Printf("  channel[%d]: %q (%v, %db)%s %s\n",
				j, name, ch.Block.DataType, ch.Block.BitCount, tag, unit,
			)
			if !doValues {
				continue
			}
			samples, err := ch.Samples()
			if err != nil {
				return fmt.Errorf("could not decode channel %q: %w", name, err)
			}
			for k, s := range samples {
				if !s.Valid {
					fmt.Printf("    [%d]: <invalid>\n", k)
					continue
				}
				fmt.Printf("    [%d]: %v\n", k, s.Value)
			}
		}
	}
	return nil
}
